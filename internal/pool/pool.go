// Package pool implements the reserve and invariant accounting for one
// constant-product liquidity pool: share minting and burning, fee-adjusted
// swap validation, corrective skim/sync, and the protocol-fee staking
// accrual layered on top when a staking token is configured.
package pool

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityCore/internal/ledger"
	"liquidityCore/internal/model"
)

const (
	// MinimumLiquidity is permanently minted to the zero address on the
	// bootstrap deposit to keep the share price manipulation-resistant at
	// tiny supply.
	MinimumLiquidity = 1000

	// MaxFee bounds the per-mille swap fee (1%).
	MaxFee = 10
)

// Backend is the narrow interface to the host ledger: balance queries,
// transfers, contract calls and snapshotting. Calls are synchronous; a
// failure aborts the surrounding operation except where noted.
type Backend interface {
	BlockNumber() uint64
	NativeBalance(addr common.Address) uint64
	TokenBalance(token, addr common.Address) *big.Int
	TransferNative(from, to common.Address, amount uint64) error
	TransferToken(token, from, to common.Address, amount *big.Int) error
	Call(to common.Address, method string, payload []byte) error
	Snapshot() int
	RevertToSnapshot(id int)
	DiscardSnapshot(id int)
}

// Config describes an immutable pool deployment.
type Config struct {
	Address      common.Address
	Token        common.Address
	StakingToken common.Address // zero address disables staking
	Fee          uint64         // per-mille, 0..MaxFee
}

// Pool holds the cached reserves, invariant checkpoint and staking accrual
// state of one pool. All mutating entry points serialize behind the lock
// flag and either commit fully or revert every side effect.
type Pool struct {
	cfg     Config
	chain   Backend
	shares  *ledger.Ledger
	journal *model.Journal
	logger  *zap.Logger

	reserveNative uint64
	reserveAsset  *big.Int
	kLast         *big.Int
	locked        bool

	totalStaked           *big.Int
	totalStakedApplicable *big.Int
	stakingRewards        *big.Int
	stakedBalance         map[common.Address]*big.Int
	stakedWeight          map[common.Address]*big.Int
}

// SwapOrder names the single requested output side of a swap, replacing the
// original exactly-one-of-two-amounts convention with an explicit shape.
type SwapOrder struct {
	AmountNativeOut uint64
	AmountAssetOut  *big.Int
}

func (o SwapOrder) assetOut() *big.Int {
	if o.AmountAssetOut == nil {
		return new(big.Int)
	}
	return o.AmountAssetOut
}

func New(cfg Config, chain Backend, journal *model.Journal, logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pool{
		cfg:                   cfg,
		chain:                 chain,
		journal:               journal,
		logger:                logger,
		reserveAsset:          new(big.Int),
		kLast:                 new(big.Int),
		totalStaked:           new(big.Int),
		totalStakedApplicable: new(big.Int),
		stakingRewards:        new(big.Int),
		stakedBalance:         make(map[common.Address]*big.Int),
		stakedWeight:          make(map[common.Address]*big.Int),
	}
	p.shares = ledger.New(func(event string, data any) {
		p.emit(event, data)
	})
	return p
}

// Address returns the pool's own address.
func (p *Pool) Address() common.Address { return p.cfg.Address }

// Token returns the traded asset address.
func (p *Pool) Token() common.Address { return p.cfg.Token }

// Fee returns the per-mille swap fee.
func (p *Pool) Fee() uint64 { return p.cfg.Fee }

// Reserves returns the cached reserve balances.
func (p *Pool) Reserves() (uint64, *big.Int) {
	return p.reserveNative, new(big.Int).Set(p.reserveAsset)
}

// KLast returns the invariant checkpoint recorded at the last mint or burn.
func (p *Pool) KLast() *big.Int { return new(big.Int).Set(p.kLast) }

// Shares exposes the pool's liquidity-share ledger.
func (p *Pool) Shares() *ledger.Ledger { return p.shares }

// Mint settles a liquidity deposit. The caller must already have transferred
// both assets to the pool; deposited amounts are inferred as balance minus
// reserve. Returns the number of shares minted to the recipient.
func (p *Pool) Mint(to common.Address) (*big.Int, error) {
	var minted *big.Int
	err := p.guarded(func() error {
		balNative := p.chain.NativeBalance(p.cfg.Address)
		balAsset := p.chain.TokenBalance(p.cfg.Token, p.cfg.Address)
		amountNative := subClampU64(balNative, p.reserveNative)
		amountAsset := subClampBig(balAsset, p.reserveAsset)

		p.accrueFees()

		total := p.shares.TotalSupply()
		var liquidity *big.Int
		if total.Sign() == 0 {
			product := new(big.Int).Mul(bigU64(amountNative), amountAsset)
			liquidity = new(big.Int).Sqrt(product)
			liquidity.Sub(liquidity, big.NewInt(MinimumLiquidity))
			if liquidity.Sign() <= 0 {
				return ErrInsufficientLiquidityMinted
			}
			if err := p.shares.Mint(common.Address{}, big.NewInt(MinimumLiquidity)); err != nil {
				return err
			}
		} else {
			if p.reserveNative == 0 || p.reserveAsset.Sign() == 0 {
				return ErrInsufficientLiquidityMinted
			}
			byNative := new(big.Int).Mul(bigU64(amountNative), total)
			byNative.Div(byNative, bigU64(p.reserveNative))
			byAsset := new(big.Int).Mul(amountAsset, total)
			byAsset.Div(byAsset, p.reserveAsset)
			liquidity = minBig(byNative, byAsset)
			if liquidity.Sign() <= 0 {
				return ErrInsufficientLiquidityMinted
			}
		}
		if err := p.shares.Mint(to, liquidity); err != nil {
			return err
		}

		p.updateReserves(balNative, balAsset)
		p.checkpointK()
		p.emit(model.EventMint, model.MintEventData{
			To:           to.Hex(),
			AmountNative: amountNative,
			AmountAsset:  amountAsset.String(),
			Shares:       liquidity.String(),
		})
		p.logger.Debug("mint settled",
			zap.Uint64("amount_native", amountNative),
			zap.String("amount_asset", amountAsset.String()),
			zap.String("shares", liquidity.String()),
		)
		minted = liquidity
		return nil
	})
	return minted, err
}

// Burn redeems the shares previously transferred to the pool for a
// proportional slice of both reserves.
func (p *Pool) Burn(to common.Address) (uint64, *big.Int, error) {
	var outNative uint64
	var outAsset *big.Int
	err := p.guarded(func() error {
		p.accrueFees()

		liquidity := p.shares.BalanceOf(p.cfg.Address)
		if p.stakingEnabled() {
			// reward shares held by the pool belong to stakers, not burners
			liquidity = subClampBig(liquidity, p.stakingRewards)
		}
		total := p.shares.TotalSupply()
		if liquidity.Sign() == 0 || total.Sign() == 0 {
			return ErrInsufficientLiquidityBurned
		}

		balNative := p.chain.NativeBalance(p.cfg.Address)
		balAsset := p.chain.TokenBalance(p.cfg.Token, p.cfg.Address)

		amountNativeBig := new(big.Int).Mul(liquidity, bigU64(balNative))
		amountNativeBig.Div(amountNativeBig, total)
		amountAsset := new(big.Int).Mul(liquidity, balAsset)
		amountAsset.Div(amountAsset, total)
		if amountNativeBig.Sign() == 0 || amountAsset.Sign() == 0 {
			return ErrInsufficientLiquidityBurned
		}
		amountNative := amountNativeBig.Uint64()

		if err := p.shares.Burn(p.cfg.Address, liquidity); err != nil {
			return err
		}
		if err := p.chain.TransferNative(p.cfg.Address, to, amountNative); err != nil {
			return err
		}
		if err := p.chain.TransferToken(p.cfg.Token, p.cfg.Address, to, amountAsset); err != nil {
			return err
		}

		p.updateReserves(
			p.chain.NativeBalance(p.cfg.Address),
			p.chain.TokenBalance(p.cfg.Token, p.cfg.Address),
		)
		p.checkpointK()
		p.emit(model.EventBurn, model.BurnEventData{
			To:           to.Hex(),
			AmountNative: amountNative,
			AmountAsset:  amountAsset.String(),
			Shares:       liquidity.String(),
		})
		outNative = amountNative
		outAsset = amountAsset
		return nil
	})
	return outNative, outAsset, err
}

// Swap pays out the ordered amount optimistically, optionally calls back
// into the recipient so it can source funds mid-operation, then validates
// the fee-adjusted constant-product invariant against the received inputs.
func (p *Pool) Swap(order SwapOrder, to common.Address, callbackMethod string, callbackPayload []byte) error {
	return p.guarded(func() error {
		outNative := order.AmountNativeOut
		outAsset := order.assetOut()
		if (outNative == 0) == (outAsset.Sign() == 0) {
			return ErrInvalidOutputAmount
		}
		if outAsset.Sign() < 0 {
			return ErrInvalidOutputAmount
		}
		if outNative >= p.reserveNative || outAsset.Cmp(p.reserveAsset) >= 0 {
			return ErrInsufficientLiquidity
		}
		if to == p.cfg.Token || to == p.cfg.Address {
			return ErrInvalidTo
		}

		if outNative > 0 {
			if err := p.chain.TransferNative(p.cfg.Address, to, outNative); err != nil {
				return err
			}
		}
		if outAsset.Sign() > 0 {
			if err := p.chain.TransferToken(p.cfg.Token, p.cfg.Address, to, outAsset); err != nil {
				return err
			}
		}
		if callbackMethod != "" {
			if err := p.chain.Call(to, callbackMethod, callbackPayload); err != nil {
				return err
			}
		}

		balNative := p.chain.NativeBalance(p.cfg.Address)
		balAsset := p.chain.TokenBalance(p.cfg.Token, p.cfg.Address)
		inNative := subClampU64(balNative, p.reserveNative-outNative)
		inAsset := subClampBig(balAsset, new(big.Int).Sub(p.reserveAsset, outAsset))
		if inNative == 0 && inAsset.Sign() == 0 {
			return ErrZeroInputAmount
		}

		fee := big.NewInt(int64(p.cfg.Fee))
		adjNative := new(big.Int).Mul(bigU64(balNative), big.NewInt(feeDenom))
		adjNative.Sub(adjNative, new(big.Int).Mul(bigU64(inNative), fee))
		adjAsset := new(big.Int).Mul(balAsset, big.NewInt(feeDenom))
		adjAsset.Sub(adjAsset, new(big.Int).Mul(inAsset, fee))

		lhs := new(big.Int).Mul(adjNative, adjAsset)
		rhs := new(big.Int).Mul(bigU64(p.reserveNative), p.reserveAsset)
		rhs.Mul(rhs, big.NewInt(feeDenom*feeDenom))
		if lhs.Cmp(rhs) < 0 {
			return ErrInsufficientInputAmount
		}

		p.updateReserves(balNative, balAsset)
		p.emit(model.EventSwap, model.SwapEventData{
			To:              to.Hex(),
			AmountNativeIn:  inNative,
			AmountAssetIn:   inAsset.String(),
			AmountNativeOut: outNative,
			AmountAssetOut:  outAsset.String(),
		})
		p.logger.Debug("swap settled",
			zap.Uint64("in_native", inNative),
			zap.String("in_asset", inAsset.String()),
			zap.Uint64("out_native", outNative),
			zap.String("out_asset", outAsset.String()),
		)
		return nil
	})
}

// Skim pays out any balance in excess of the tracked reserves without
// touching share accounting.
func (p *Pool) Skim(to common.Address) error {
	return p.guarded(func() error {
		excessNative := subClampU64(p.chain.NativeBalance(p.cfg.Address), p.reserveNative)
		excessAsset := subClampBig(p.chain.TokenBalance(p.cfg.Token, p.cfg.Address), p.reserveAsset)
		if excessNative > 0 {
			if err := p.chain.TransferNative(p.cfg.Address, to, excessNative); err != nil {
				return err
			}
		}
		if excessAsset.Sign() > 0 {
			if err := p.chain.TransferToken(p.cfg.Token, p.cfg.Address, to, excessAsset); err != nil {
				return err
			}
		}
		return nil
	})
}

// Sync forcibly resets the cached reserves to the pool's actual balances.
func (p *Pool) Sync() error {
	return p.guarded(func() error {
		p.accrueFees()
		p.updateReserves(
			p.chain.NativeBalance(p.cfg.Address),
			p.chain.TokenBalance(p.cfg.Token, p.cfg.Address),
		)
		return nil
	})
}

// guarded wraps a mutating entry point with the reentrancy lock and
// all-or-nothing semantics: a failure reverts pool state, share ledger,
// chain side effects and any events emitted along the way.
func (p *Pool) guarded(fn func() error) error {
	if p.locked {
		return ErrLocked
	}
	p.locked = true
	defer func() { p.locked = false }()

	chainSnap := p.chain.Snapshot()
	poolSnap := p.snapshot()
	ledgerSnap := p.shares.Snapshot()
	journalMark := 0
	if p.journal != nil {
		journalMark = p.journal.Len()
	}

	if err := fn(); err != nil {
		p.chain.RevertToSnapshot(chainSnap)
		p.restore(poolSnap)
		p.shares.Restore(ledgerSnap)
		if p.journal != nil {
			p.journal.Truncate(journalMark)
		}
		return err
	}
	p.chain.DiscardSnapshot(chainSnap)
	return nil
}

type poolSnapshot struct {
	reserveNative         uint64
	reserveAsset          *big.Int
	kLast                 *big.Int
	totalStaked           *big.Int
	totalStakedApplicable *big.Int
	stakingRewards        *big.Int
	stakedBalance         map[common.Address]*big.Int
	stakedWeight          map[common.Address]*big.Int
}

func (p *Pool) snapshot() poolSnapshot {
	snap := poolSnapshot{
		reserveNative:         p.reserveNative,
		reserveAsset:          new(big.Int).Set(p.reserveAsset),
		kLast:                 new(big.Int).Set(p.kLast),
		totalStaked:           new(big.Int).Set(p.totalStaked),
		totalStakedApplicable: new(big.Int).Set(p.totalStakedApplicable),
		stakingRewards:        new(big.Int).Set(p.stakingRewards),
		stakedBalance:         make(map[common.Address]*big.Int, len(p.stakedBalance)),
		stakedWeight:          make(map[common.Address]*big.Int, len(p.stakedWeight)),
	}
	for addr, bal := range p.stakedBalance {
		snap.stakedBalance[addr] = new(big.Int).Set(bal)
	}
	for addr, weight := range p.stakedWeight {
		snap.stakedWeight[addr] = new(big.Int).Set(weight)
	}
	return snap
}

func (p *Pool) restore(snap poolSnapshot) {
	p.reserveNative = snap.reserveNative
	p.reserveAsset = snap.reserveAsset
	p.kLast = snap.kLast
	p.totalStaked = snap.totalStaked
	p.totalStakedApplicable = snap.totalStakedApplicable
	p.stakingRewards = snap.stakingRewards
	p.stakedBalance = snap.stakedBalance
	p.stakedWeight = snap.stakedWeight
}

func (p *Pool) updateReserves(balNative uint64, balAsset *big.Int) {
	p.reserveNative = balNative
	p.reserveAsset = new(big.Int).Set(balAsset)
	p.emit(model.EventSync, model.SyncEventData{
		ReserveNative: p.reserveNative,
		ReserveAsset:  p.reserveAsset.String(),
	})
}

func (p *Pool) checkpointK() {
	p.kLast = new(big.Int).Mul(bigU64(p.reserveNative), p.reserveAsset)
}

func (p *Pool) emit(event string, data any) {
	if p.journal == nil {
		return
	}
	p.journal.Emit(p.cfg.Address, p.chain.BlockNumber(), event, data)
}
