package pool

import "math/big"

// fee denominator for the per-mille fee scaling used by the invariant check
const feeDenom = 1000

// GetAmountOut computes the output amount for an exact input swap against the
// given reserves, applying the per-mille fee. All division truncates toward
// zero, which favors the pool.
func GetAmountOut(amountIn, reserveIn, reserveOut *big.Int, fee uint64) *big.Int {
	if amountIn == nil || amountIn.Sign() <= 0 || reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return new(big.Int)
	}
	feeMul := big.NewInt(int64(feeDenom - fee))
	inWithFee := new(big.Int).Mul(amountIn, feeMul)
	numerator := new(big.Int).Mul(inWithFee, reserveOut)
	denominator := new(big.Int).Mul(reserveIn, big.NewInt(feeDenom))
	denominator.Add(denominator, inWithFee)
	return numerator.Div(numerator, denominator)
}

func minBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}

// subClampU64 returns a-b, clamped at zero.
func subClampU64(a, b uint64) uint64 {
	if a <= b {
		return 0
	}
	return a - b
}

// subClampBig returns a-b as a new value, clamped at zero.
func subClampBig(a, b *big.Int) *big.Int {
	out := new(big.Int).Sub(a, b)
	if out.Sign() < 0 {
		out.SetInt64(0)
	}
	return out
}

func bigU64(v uint64) *big.Int {
	return new(big.Int).SetUint64(v)
}
