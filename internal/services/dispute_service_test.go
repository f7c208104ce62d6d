// internal/services/dispute_service_test.go
package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nomadbitcoin/softlaw-market/internal/models"
)

type disputeFixture struct {
	env        *testEnv
	owner      *models.User
	holder     *models.User
	arbitrator *models.User
	asset      *models.IPAsset
	license    *models.License
}

func newDisputeFixture(t *testing.T) *disputeFixture {
	t.Helper()

	env := newTestEnv(t)
	owner := env.createUser(t, "owner")
	holder := env.createUser(t, "holder")
	arbitrator := env.createUser(t, "arbitrator")
	env.grantRole(t, arbitrator.ID, models.RoleArbitrator)
	asset := env.createAsset(t, owner)
	license := env.mintLicense(t, &MintLicenseRequest{
		IPAssetID: asset.ID,
		HolderID:  holder.ID,
		Supply:    1,
	})

	return &disputeFixture{
		env:        env,
		owner:      owner,
		holder:     holder,
		arbitrator: arbitrator,
		asset:      asset,
		license:    license,
	}
}

func (f *disputeFixture) submit(t *testing.T) *models.Dispute {
	t.Helper()

	dispute, err := f.env.disputes.SubmitDispute(f.owner.ID, &SubmitDisputeRequest{
		LicenseID: f.license.ID,
		Reason:    "unauthorized derivative work",
	})
	if err != nil {
		t.Fatalf("failed to submit dispute: %v", err)
	}
	return dispute
}

func TestSubmitDispute(t *testing.T) {
	f := newDisputeFixture(t)

	dispute := f.submit(t)
	assert.Equal(t, models.DisputeStatusPending, dispute.Status)
	assert.Equal(t, f.owner.ID, dispute.IPOwnerID)
	assert.True(t, dispute.SubmittedAt.Equal(f.env.clock.Now()))

	// Submission flags the underlying asset.
	flagged, err := f.env.assets.HasActiveDispute(f.asset.ID)
	require.NoError(t, err)
	assert.True(t, flagged)
}

func TestSubmitDisputeValidation(t *testing.T) {
	f := newDisputeFixture(t)

	_, err := f.env.disputes.SubmitDispute(f.owner.ID, &SubmitDisputeRequest{
		LicenseID: f.license.ID,
	})
	assert.Error(t, err)

	require.NoError(t, f.env.licenses.RevokeForMissedPayments(f.license.ID, 99))
	_, err = f.env.disputes.SubmitDispute(f.owner.ID, &SubmitDisputeRequest{
		LicenseID: f.license.ID,
		Reason:    "too late, already revoked",
	})
	assert.ErrorIs(t, err, ErrDisputedLicenseInert)
}

func TestResolveDisputeDeadline(t *testing.T) {
	f := newDisputeFixture(t)
	dispute := f.submit(t)

	resolvable, err := f.env.disputes.IsResolvable(dispute.ID)
	require.NoError(t, err)
	assert.True(t, resolvable)

	// Past the 30-day window the dispute can no longer be resolved.
	f.env.clock.Advance(31 * 24 * time.Hour)
	resolvable, err = f.env.disputes.IsResolvable(dispute.ID)
	require.NoError(t, err)
	assert.False(t, resolvable)

	err = f.env.disputes.ResolveDispute(f.arbitrator.ID, dispute.ID, true, "valid claim")
	assert.ErrorIs(t, err, ErrDisputePastDeadline)

	got, err := f.env.disputes.GetDispute(dispute.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DisputeStatusPending, got.Status)
}

func TestResolveDisputeWithinDeadline(t *testing.T) {
	f := newDisputeFixture(t)
	dispute := f.submit(t)

	assert.ErrorIs(t, f.env.disputes.ResolveDispute(f.holder.ID, dispute.ID, true, "x"), ErrRoleRequired)

	f.env.clock.Advance(29 * 24 * time.Hour)
	require.NoError(t, f.env.disputes.ResolveDispute(f.arbitrator.ID, dispute.ID, true, "valid claim"))

	got, err := f.env.disputes.GetDispute(dispute.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DisputeStatusApproved, got.Status)
	require.NotNil(t, got.ResolverID)
	assert.Equal(t, f.arbitrator.ID, *got.ResolverID)
	assert.Equal(t, "valid claim", got.ResolutionReason)

	// Resolution is terminal.
	err = f.env.disputes.ResolveDispute(f.arbitrator.ID, dispute.ID, false, "changed my mind")
	assert.ErrorIs(t, err, ErrDisputeAlreadyResolved)

	// Approval keeps the asset flagged until execution.
	flagged, err := f.env.assets.HasActiveDispute(f.asset.ID)
	require.NoError(t, err)
	assert.True(t, flagged)
}

func TestRejectClearsDisputeFlag(t *testing.T) {
	f := newDisputeFixture(t)
	dispute := f.submit(t)

	require.NoError(t, f.env.disputes.ResolveDispute(f.arbitrator.ID, dispute.ID, false, "no infringement"))

	got, err := f.env.disputes.GetDispute(dispute.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DisputeStatusRejected, got.Status)

	flagged, err := f.env.assets.HasActiveDispute(f.asset.ID)
	require.NoError(t, err)
	assert.False(t, flagged)

	// The license survives a rejected dispute.
	active, err := f.env.licenses.IsActiveLicense(f.license.ID)
	require.NoError(t, err)
	assert.True(t, active)
}

func TestExecuteRevocation(t *testing.T) {
	f := newDisputeFixture(t)
	dispute := f.submit(t)

	// Execution needs an approved dispute.
	err := f.env.disputes.ExecuteRevocation(f.arbitrator.ID, dispute.ID)
	assert.ErrorIs(t, err, ErrDisputeNotApproved)

	require.NoError(t, f.env.disputes.ResolveDispute(f.arbitrator.ID, dispute.ID, true, "valid claim"))

	assert.ErrorIs(t, f.env.disputes.ExecuteRevocation(f.holder.ID, dispute.ID), ErrRoleRequired)
	require.NoError(t, f.env.disputes.ExecuteRevocation(f.arbitrator.ID, dispute.ID))

	got, err := f.env.disputes.GetDispute(dispute.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DisputeStatusExecuted, got.Status)

	license, err := f.env.licenses.GetLicense(f.license.ID)
	require.NoError(t, err)
	assert.True(t, license.Revoked)
	assert.Contains(t, license.RevokedReason, "upheld")

	assert.Equal(t, 0, f.env.assetCount(t, f.asset.ID))

	flagged, err := f.env.assets.HasActiveDispute(f.asset.ID)
	require.NoError(t, err)
	assert.False(t, flagged)
}

func TestExecuteToleratesAlreadyRevoked(t *testing.T) {
	f := newDisputeFixture(t)
	dispute := f.submit(t)

	require.NoError(t, f.env.disputes.ResolveDispute(f.arbitrator.ID, dispute.ID, true, "valid claim"))

	// The license dies through another path before execution.
	require.NoError(t, f.env.licenses.RevokeLicense(f.arbitrator.ID, f.license.ID, "separate action"))

	// Execution still reaches its terminal state.
	require.NoError(t, f.env.disputes.ExecuteRevocation(f.arbitrator.ID, dispute.ID))

	got, err := f.env.disputes.GetDispute(dispute.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DisputeStatusExecuted, got.Status)
	assert.Equal(t, 0, f.env.assetCount(t, f.asset.ID))
}
