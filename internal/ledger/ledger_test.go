package ledger

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func addr(b byte) common.Address {
	return common.BytesToAddress([]byte{b})
}

func TestMintBurnConservation(t *testing.T) {
	l := New(nil)
	alice := addr(1)

	if err := l.Mint(alice, big.NewInt(500)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if got := l.TotalSupply(); got.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("total supply after mint: %s", got)
	}
	if err := l.Burn(alice, big.NewInt(200)); err != nil {
		t.Fatalf("burn: %v", err)
	}
	if got := l.TotalSupply(); got.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("total supply after burn: %s", got)
	}
	if got := l.BalanceOf(alice); got.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("balance after burn: %s", got)
	}
}

func TestBurnMoreThanBalance(t *testing.T) {
	l := New(nil)
	alice := addr(1)

	if err := l.Mint(alice, big.NewInt(10)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := l.Burn(alice, big.NewInt(11)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected INSUFFICIENT_BALANCE, got %v", err)
	}
	if got := l.BalanceOf(alice); got.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("balance changed after failed burn: %s", got)
	}
}

func TestTransferInsufficientBalance(t *testing.T) {
	l := New(nil)
	alice, bob := addr(1), addr(2)

	if err := l.Mint(alice, big.NewInt(5)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := l.Transfer(alice, bob, big.NewInt(6)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected INSUFFICIENT_BALANCE, got %v", err)
	}
	if got := l.BalanceOf(bob); got.Sign() != 0 {
		t.Fatalf("bob credited by failed transfer: %s", got)
	}
}

func TestTransferZeroAmountStillRecords(t *testing.T) {
	var events int
	l := New(func(string, any) { events++ })
	alice, bob := addr(1), addr(2)

	if err := l.Transfer(alice, bob, new(big.Int)); err != nil {
		t.Fatalf("zero transfer: %v", err)
	}
	if events != 1 {
		t.Fatalf("expected 1 event, got %d", events)
	}
}

func TestTransferFromDecrementsAllowance(t *testing.T) {
	l := New(nil)
	alice, bob, carol := addr(1), addr(2), addr(3)

	if err := l.Mint(alice, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := l.Approve(alice, bob, big.NewInt(60)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := l.TransferFrom(bob, alice, carol, big.NewInt(40)); err != nil {
		t.Fatalf("transfer from: %v", err)
	}
	if got := l.Allowance(alice, bob); got.Cmp(big.NewInt(20)) != 0 {
		t.Fatalf("allowance after spend: %s", got)
	}
	if err := l.TransferFrom(bob, alice, carol, big.NewInt(21)); !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("expected INSUFFICIENT_ALLOWANCE, got %v", err)
	}
	if got := l.BalanceOf(carol); got.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("carol balance: %s", got)
	}
}

// A recorded zero allowance spends as unlimited; the decrement only applies
// to positive allowances.
func TestTransferFromZeroAllowanceUnlimited(t *testing.T) {
	l := New(nil)
	alice, bob, carol := addr(1), addr(2), addr(3)

	if err := l.Mint(alice, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := l.Approve(alice, bob, new(big.Int)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := l.TransferFrom(bob, alice, carol, big.NewInt(100)); err != nil {
		t.Fatalf("spend against zero allowance: %v", err)
	}
	if got := l.BalanceOf(carol); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("carol balance: %s", got)
	}
}

func TestNegativeAmountRejected(t *testing.T) {
	l := New(nil)
	alice, bob := addr(1), addr(2)

	if err := l.Mint(alice, big.NewInt(-1)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("mint negative: %v", err)
	}
	if err := l.Transfer(alice, bob, big.NewInt(-1)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("transfer negative: %v", err)
	}
	if err := l.Approve(alice, bob, nil); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("approve nil: %v", err)
	}
}

func TestSnapshotRestore(t *testing.T) {
	l := New(nil)
	alice, bob := addr(1), addr(2)

	if err := l.Mint(alice, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := l.Approve(alice, bob, big.NewInt(50)); err != nil {
		t.Fatalf("approve: %v", err)
	}

	snap := l.Snapshot()

	if err := l.Transfer(alice, bob, big.NewInt(70)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if err := l.Approve(alice, bob, big.NewInt(1)); err != nil {
		t.Fatalf("approve: %v", err)
	}

	l.Restore(snap)

	if got := l.BalanceOf(alice); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("alice balance after restore: %s", got)
	}
	if got := l.BalanceOf(bob); got.Sign() != 0 {
		t.Fatalf("bob balance after restore: %s", got)
	}
	if got := l.Allowance(alice, bob); got.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("allowance after restore: %s", got)
	}
}
