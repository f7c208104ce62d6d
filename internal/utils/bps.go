// internal/utils/bps.go
package utils

// Basis-point arithmetic for revenue splitting. All division is integer
// floor division; SplitByShares assigns rounding dust to the last
// recipient so the parts always sum to the input exactly.

const BpsDenominator = 10000

// ApplyBps returns amount * bps / 10000, floored.
func ApplyBps(amount int64, bps int) int64 {
	return amount * int64(bps) / BpsDenominator
}

// SplitByShares divides amount across shares (in bps). The last share
// absorbs the remainder so the returned parts sum to amount exactly.
// Shares are expected to sum to 10,000; callers validate that.
func SplitByShares(amount int64, shares []int) []int64 {
	parts := make([]int64, len(shares))
	if len(shares) == 0 {
		return parts
	}

	var distributed int64
	for i, bps := range shares[:len(shares)-1] {
		parts[i] = ApplyBps(amount, bps)
		distributed += parts[i]
	}
	parts[len(shares)-1] = amount - distributed
	return parts
}
