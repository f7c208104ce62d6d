// internal/utils/bps_test.go
package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyBps(t *testing.T) {
	assert.Equal(t, int64(250), ApplyBps(10000, 250))
	assert.Equal(t, int64(0), ApplyBps(0, 250))
	assert.Equal(t, int64(10000), ApplyBps(10000, 10000))

	// Floor division, never rounding up.
	assert.Equal(t, int64(24), ApplyBps(999, 250))
	assert.Equal(t, int64(0), ApplyBps(39, 250))
}

func TestSplitBySharesExact(t *testing.T) {
	cases := []struct {
		name   string
		amount int64
		shares []int
		want   []int64
	}{
		{"even split", 1000, []int{5000, 5000}, []int64{500, 500}},
		{"dust to last", 975, []int{7000, 3000}, []int64{682, 293}},
		{"single recipient", 1000, []int{10000}, []int64{1000}},
		{"three way", 100, []int{3333, 3333, 3334}, []int64{33, 33, 34}},
		{"tiny amount", 1, []int{5000, 5000}, []int64{0, 1}},
		{"zero amount", 0, []int{7000, 3000}, []int64{0, 0}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			parts := SplitByShares(tc.amount, tc.shares)
			assert.Equal(t, tc.want, parts)

			var sum int64
			for _, p := range parts {
				sum += p
			}
			assert.Equal(t, tc.amount, sum)
		})
	}
}

func TestSplitBySharesEmpty(t *testing.T) {
	assert.Empty(t, SplitByShares(1000, nil))
}
