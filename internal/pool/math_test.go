package pool

import (
	"math/big"
	"testing"
)

func TestGetAmountOut(t *testing.T) {
	cases := []struct {
		name       string
		amountIn   int64
		reserveIn  int64
		reserveOut int64
		fee        uint64
		want       int64
	}{
		{"fee three per mille", 17_000, 200_000, 450_000, 3, 35_155},
		{"zero fee", 1000, 10_000, 10_000, 0, 909},
		{"max fee", 1000, 10_000, 10_000, 10, 900},
		{"zero input", 0, 10_000, 10_000, 3, 0},
		{"empty reserve", 1000, 0, 10_000, 3, 0},
	}
	for _, tc := range cases {
		got := GetAmountOut(big.NewInt(tc.amountIn), big.NewInt(tc.reserveIn), big.NewInt(tc.reserveOut), tc.fee)
		if got.Cmp(big.NewInt(tc.want)) != 0 {
			t.Fatalf("%s: got %s, want %d", tc.name, got, tc.want)
		}
	}
}

// The quoted output must always satisfy the fee-adjusted invariant the swap
// path enforces: (reserveIn*1000 + in*(1000-fee)) * (reserveOut-out)*1000
// >= reserveIn * reserveOut * 1000^2.
func FuzzGetAmountOutKeepsInvariant(f *testing.F) {
	f.Add(uint64(17_000), uint64(200_000), uint64(450_000), uint64(3))
	f.Add(uint64(1), uint64(1), uint64(1), uint64(0))
	f.Add(uint64(1<<40), uint64(1<<50), uint64(1<<30), uint64(10))
	f.Fuzz(func(t *testing.T, amountIn, reserveIn, reserveOut, fee uint64) {
		if amountIn == 0 || reserveIn == 0 || reserveOut == 0 {
			t.Skip()
		}
		fee %= MaxFee + 1

		in := new(big.Int).SetUint64(amountIn)
		ri := new(big.Int).SetUint64(reserveIn)
		ro := new(big.Int).SetUint64(reserveOut)
		out := GetAmountOut(in, ri, ro, fee)

		if out.Cmp(ro) >= 0 {
			t.Fatalf("quote drains reserve: %s of %s", out, ro)
		}

		adjIn := new(big.Int).Mul(ri, big.NewInt(feeDenom))
		adjIn.Add(adjIn, new(big.Int).Mul(in, big.NewInt(int64(feeDenom-fee))))
		adjOut := new(big.Int).Sub(ro, out)
		adjOut.Mul(adjOut, big.NewInt(feeDenom))

		lhs := new(big.Int).Mul(adjIn, adjOut)
		rhs := new(big.Int).Mul(ri, ro)
		rhs.Mul(rhs, big.NewInt(feeDenom*feeDenom))
		if lhs.Cmp(rhs) < 0 {
			t.Fatalf("invariant violated: in=%d ri=%d ro=%d fee=%d out=%s", amountIn, reserveIn, reserveOut, fee, out)
		}
	})
}

func TestSubClamp(t *testing.T) {
	if got := subClampU64(5, 7); got != 0 {
		t.Fatalf("u64 clamp: %d", got)
	}
	if got := subClampU64(7, 5); got != 2 {
		t.Fatalf("u64 sub: %d", got)
	}
	if got := subClampBig(big.NewInt(5), big.NewInt(7)); got.Sign() != 0 {
		t.Fatalf("big clamp: %s", got)
	}
	if got := subClampBig(big.NewInt(7), big.NewInt(5)); got.Cmp(big.NewInt(2)) != 0 {
		t.Fatalf("big sub: %s", got)
	}
}
