// Package ledger implements fungible bookkeeping for a pool's liquidity
// shares: balances, allowances, mint, burn and transfer.
package ledger

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"liquidityCore/internal/model"
)

var (
	// ErrInsufficientBalance is returned when a transfer or burn would
	// underflow a balance.
	ErrInsufficientBalance = errors.New("INSUFFICIENT_BALANCE")
	// ErrInsufficientAllowance is returned when a spender exceeds a
	// positive allowance.
	ErrInsufficientAllowance = errors.New("INSUFFICIENT_ALLOWANCE")
	// ErrInvalidAmount is returned for nil or negative amounts.
	ErrInvalidAmount = errors.New("INVALID_AMOUNT")
)

// EmitFunc receives ledger events. A nil emitter disables event recording.
type EmitFunc func(event string, data any)

// Ledger tracks share balances and allowances for one pool.
type Ledger struct {
	totalSupply *big.Int
	balances    map[common.Address]*big.Int
	allowances  map[common.Address]map[common.Address]*big.Int
	emit        EmitFunc
}

// Snapshot is a deep copy of ledger state used to unwind aborted operations.
type Snapshot struct {
	totalSupply *big.Int
	balances    map[common.Address]*big.Int
	allowances  map[common.Address]map[common.Address]*big.Int
}

func New(emit EmitFunc) *Ledger {
	return &Ledger{
		totalSupply: new(big.Int),
		balances:    make(map[common.Address]*big.Int),
		allowances:  make(map[common.Address]map[common.Address]*big.Int),
		emit:        emit,
	}
}

// TotalSupply returns the total minted shares.
func (l *Ledger) TotalSupply() *big.Int {
	return new(big.Int).Set(l.totalSupply)
}

// BalanceOf returns the share balance of an address.
func (l *Ledger) BalanceOf(addr common.Address) *big.Int {
	bal, ok := l.balances[addr]
	if !ok {
		return new(big.Int)
	}
	return new(big.Int).Set(bal)
}

// Allowance returns the recorded allowance from owner to spender.
func (l *Ledger) Allowance(owner, spender common.Address) *big.Int {
	inner, ok := l.allowances[owner]
	if !ok {
		return new(big.Int)
	}
	allowed, ok := inner[spender]
	if !ok {
		return new(big.Int)
	}
	return new(big.Int).Set(allowed)
}

// Mint creates shares for an address, growing total supply atomically.
func (l *Ledger) Mint(to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	l.credit(to, amount)
	l.totalSupply.Add(l.totalSupply, amount)
	l.record(common.Address{}, to, amount)
	return nil
}

// Burn destroys shares held by an address, shrinking total supply atomically.
func (l *Ledger) Burn(from common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if err := l.debit(from, amount); err != nil {
		return err
	}
	l.totalSupply.Sub(l.totalSupply, amount)
	l.record(from, common.Address{}, amount)
	return nil
}

// Transfer moves shares between addresses. A zero amount is a no-op that
// still records a transfer event for auditability.
func (l *Ledger) Transfer(from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if amount.Sign() == 0 {
		l.record(from, to, amount)
		return nil
	}
	if err := l.debit(from, amount); err != nil {
		return err
	}
	l.credit(to, amount)
	l.record(from, to, amount)
	return nil
}

// TransferFrom spends an allowance. The allowance is decremented only when
// the recorded value is greater than zero: a zero allowance spends as
// unlimited. That mirrors the original contract's behavior and is almost
// certainly a defect there, but callers depend on the exact semantics, so it
// is preserved rather than fixed. See DESIGN.md.
func (l *Ledger) TransferFrom(spender, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	inner := l.allowances[from]
	if inner != nil {
		allowed, ok := inner[spender]
		if ok && allowed.Sign() > 0 {
			if allowed.Cmp(amount) < 0 {
				return ErrInsufficientAllowance
			}
			allowed.Sub(allowed, amount)
		}
	}
	return l.Transfer(from, to, amount)
}

// Approve sets the allowance from owner to spender.
func (l *Ledger) Approve(owner, spender common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	inner, ok := l.allowances[owner]
	if !ok {
		inner = make(map[common.Address]*big.Int)
		l.allowances[owner] = inner
	}
	inner[spender] = new(big.Int).Set(amount)
	if l.emit != nil {
		l.emit(model.EventApproval, model.ApprovalEventData{
			Owner:   owner.Hex(),
			Spender: spender.Hex(),
			Amount:  amount.String(),
		})
	}
	return nil
}

// Snapshot deep-copies the ledger state.
func (l *Ledger) Snapshot() Snapshot {
	snap := Snapshot{
		totalSupply: new(big.Int).Set(l.totalSupply),
		balances:    make(map[common.Address]*big.Int, len(l.balances)),
		allowances:  make(map[common.Address]map[common.Address]*big.Int, len(l.allowances)),
	}
	for addr, bal := range l.balances {
		snap.balances[addr] = new(big.Int).Set(bal)
	}
	for owner, inner := range l.allowances {
		copied := make(map[common.Address]*big.Int, len(inner))
		for spender, allowed := range inner {
			copied[spender] = new(big.Int).Set(allowed)
		}
		snap.allowances[owner] = copied
	}
	return snap
}

// Restore rewinds the ledger to a snapshot.
func (l *Ledger) Restore(snap Snapshot) {
	l.totalSupply = snap.totalSupply
	l.balances = snap.balances
	l.allowances = snap.allowances
}

func (l *Ledger) credit(addr common.Address, amount *big.Int) {
	bal, ok := l.balances[addr]
	if !ok {
		bal = new(big.Int)
		l.balances[addr] = bal
	}
	bal.Add(bal, amount)
}

func (l *Ledger) debit(addr common.Address, amount *big.Int) error {
	bal, ok := l.balances[addr]
	if !ok || bal.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	bal.Sub(bal, amount)
	return nil
}

func (l *Ledger) record(from, to common.Address, amount *big.Int) {
	if l.emit == nil {
		return
	}
	l.emit(model.EventTransfer, model.TransferEventData{
		From:   from.Hex(),
		To:     to.Hex(),
		Amount: amount.String(),
	})
}
