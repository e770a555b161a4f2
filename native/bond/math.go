package bond

import "math/big"

var (
	basisPoints    = big.NewInt(10_000)
	debtRatioScale = big.NewInt(1_000_000_000) // 1e9
	priceDivisor   = big.NewInt(10_000_000)    // 1e7
	feeScale       = big.NewInt(1_000_000)
)

const (
	minVestingBlocks    = 10_000
	maxPayoutCeilingBps = 1_000
	adjustmentDivisor   = 25
)

// mulDiv computes a * b / div with truncation. Payout math must never round
// upward, so all division in the engine truncates.
func mulDiv(a, b, div *big.Int) *big.Int {
	if a == nil || b == nil || div == nil || div.Sign() == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(a, b)
	return out.Quo(out, div)
}

// scalePow10 returns 10^exp as a big integer.
func scalePow10(exp uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(exp)), nil)
}

// convertDecimals rescales an amount from one fixed-point exponent to another,
// truncating when precision shrinks.
func convertDecimals(amount *big.Int, from, to uint8) *big.Int {
	if amount == nil {
		return big.NewInt(0)
	}
	if from == to {
		return new(big.Int).Set(amount)
	}
	if to > from {
		return new(big.Int).Mul(amount, scalePow10(to-from))
	}
	return new(big.Int).Quo(new(big.Int).Set(amount), scalePow10(from-to))
}
