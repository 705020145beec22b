// Package state provides the in-memory chain backdrop the engine contracts
// run against: native and token balances, block height, and contract call
// dispatch with snapshot/revert support for all-or-nothing operations.
package state

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrTransferFailed is returned when a transfer sub-call reports failure.
	ErrTransferFailed = errors.New("TRANSFER_FAILED")
	// ErrUnknownContract is returned when a call targets an address with no
	// registered handler.
	ErrUnknownContract = errors.New("UNKNOWN_CONTRACT")
)

// CallHandler receives contract calls dispatched through the chain, such as
// swap callbacks and governance nomination hooks.
type CallHandler func(method string, payload []byte) error

// Chain is a deterministic stand-in for the host ledger. Unset balances read
// as zero, matching the host convention that "never set" equals the zero
// value for every field.
type Chain struct {
	height   uint64
	native   map[common.Address]uint64
	tokens   map[common.Address]map[common.Address]*big.Int
	handlers map[common.Address]CallHandler
	snaps    []snapshot
}

type snapshot struct {
	height uint64
	native map[common.Address]uint64
	tokens map[common.Address]map[common.Address]*big.Int
}

func NewChain() *Chain {
	return &Chain{
		native:   make(map[common.Address]uint64),
		tokens:   make(map[common.Address]map[common.Address]*big.Int),
		handlers: make(map[common.Address]CallHandler),
	}
}

// BlockNumber returns the current block height.
func (c *Chain) BlockNumber() uint64 {
	return c.height
}

// AdvanceBlocks moves the chain head forward.
func (c *Chain) AdvanceBlocks(n uint64) {
	c.height += n
}

// NativeBalance returns the native balance of an address.
func (c *Chain) NativeBalance(addr common.Address) uint64 {
	return c.native[addr]
}

// TokenBalance returns the balance of a token held by an address.
func (c *Chain) TokenBalance(token, addr common.Address) *big.Int {
	balances, ok := c.tokens[token]
	if !ok {
		return new(big.Int)
	}
	bal, ok := balances[addr]
	if !ok {
		return new(big.Int)
	}
	return new(big.Int).Set(bal)
}

// CreditNative adds native funds to an address.
func (c *Chain) CreditNative(addr common.Address, amount uint64) {
	c.native[addr] += amount
}

// CreditToken adds token funds to an address.
func (c *Chain) CreditToken(token, addr common.Address, amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	balances, ok := c.tokens[token]
	if !ok {
		balances = make(map[common.Address]*big.Int)
		c.tokens[token] = balances
	}
	bal, ok := balances[addr]
	if !ok {
		bal = new(big.Int)
		balances[addr] = bal
	}
	bal.Add(bal, amount)
}

// TransferNative moves native funds between addresses. A short balance fails
// the transfer, mirroring the boolean-success convention of the host.
func (c *Chain) TransferNative(from, to common.Address, amount uint64) error {
	if amount == 0 {
		return nil
	}
	if c.native[from] < amount {
		return ErrTransferFailed
	}
	c.native[from] -= amount
	c.native[to] += amount
	return nil
}

// TransferToken moves token funds between addresses.
func (c *Chain) TransferToken(token, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return ErrTransferFailed
	}
	balances, ok := c.tokens[token]
	if !ok {
		return ErrTransferFailed
	}
	bal, ok := balances[from]
	if !ok || bal.Cmp(amount) < 0 {
		return ErrTransferFailed
	}
	bal.Sub(bal, amount)
	dst, ok := balances[to]
	if !ok {
		dst = new(big.Int)
		balances[to] = dst
	}
	dst.Add(dst, amount)
	return nil
}

// RegisterHandler installs a call handler for an address.
func (c *Chain) RegisterHandler(addr common.Address, handler CallHandler) {
	c.handlers[addr] = handler
}

// Call dispatches a method call to the handler registered at the address.
func (c *Chain) Call(to common.Address, method string, payload []byte) error {
	handler, ok := c.handlers[to]
	if !ok {
		return ErrUnknownContract
	}
	return handler(method, payload)
}

// Snapshot captures the current balances and height, returning an identifier
// for RevertToSnapshot.
func (c *Chain) Snapshot() int {
	snap := snapshot{
		height: c.height,
		native: make(map[common.Address]uint64, len(c.native)),
		tokens: make(map[common.Address]map[common.Address]*big.Int, len(c.tokens)),
	}
	for addr, bal := range c.native {
		snap.native[addr] = bal
	}
	for token, balances := range c.tokens {
		copied := make(map[common.Address]*big.Int, len(balances))
		for addr, bal := range balances {
			copied[addr] = new(big.Int).Set(bal)
		}
		snap.tokens[token] = copied
	}
	c.snaps = append(c.snaps, snap)
	return len(c.snaps) - 1
}

// RevertToSnapshot restores the state captured by Snapshot and discards the
// snapshot along with any taken after it.
func (c *Chain) RevertToSnapshot(id int) {
	if id < 0 || id >= len(c.snaps) {
		return
	}
	snap := c.snaps[id]
	c.height = snap.height
	c.native = snap.native
	c.tokens = snap.tokens
	c.snaps = c.snaps[:id]
}

// DiscardSnapshot drops the snapshot without reverting, once an operation has
// committed.
func (c *Chain) DiscardSnapshot(id int) {
	if id >= 0 && id < len(c.snaps) {
		c.snaps = c.snaps[:id]
	}
}
