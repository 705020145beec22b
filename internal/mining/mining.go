// Package mining implements the time-boxed reward emission pool: deposits of
// a liquidity token accrue a separately funded reward token over a fixed
// block-count duration, using a checkpointed reward-per-token accumulator.
package mining

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityCore/internal/model"
)

var (
	ErrInvalidAmount   = errors.New("INVALID_AMOUNT")
	ErrUnauthorized    = errors.New("UNAUTHORIZED")
	ErrRewardTooHigh   = errors.New("PROVIDED_REWARD_TOO_HIGH")
	ErrLocked          = errors.New("LOCKED")
	ErrInvalidDuration = errors.New("INVALID_DURATION")
	ErrInvalidBalance  = errors.New("INVALID_BALANCE")
)

// Scale is the fixed-point factor applied to the reward-per-token
// accumulator so small stakes do not round every reward to zero.
const Scale = 100_000_000

// Token is the narrow surface the mining pool needs from each of its two
// tokens: the deposited liquidity token and the emitted reward token.
type Token interface {
	BalanceOf(addr common.Address) *big.Int
	Transfer(from, to common.Address, amount *big.Int) error
}

// BlockSource reports the current block height.
type BlockSource interface {
	BlockNumber() uint64
}

// Pool streams a funded reward across all deposited balances, block by
// block, within one emission period at a time.
type Pool struct {
	address      common.Address
	stakingToken Token
	rewardToken  Token
	governance   common.Address
	duration     uint64
	blocks       BlockSource
	journal      *model.Journal
	logger       *zap.Logger
	locked       bool

	totalSupply        *big.Int
	rewardRate         *big.Int
	periodEndBlock     uint64
	lastUpdateBlock    uint64
	rewardPerTokenLast *big.Int

	balances           map[common.Address]*big.Int
	storedReward       map[common.Address]*big.Int
	rewardPerTokenPaid map[common.Address]*big.Int
}

func New(address common.Address, stakingToken, rewardToken Token, governance common.Address, duration uint64, blocks BlockSource, journal *model.Journal, logger *zap.Logger) (*Pool, error) {
	if duration == 0 {
		return nil, ErrInvalidDuration
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		address:            address,
		stakingToken:       stakingToken,
		rewardToken:        rewardToken,
		governance:         governance,
		duration:           duration,
		blocks:             blocks,
		journal:            journal,
		logger:             logger,
		totalSupply:        new(big.Int),
		rewardRate:         new(big.Int),
		rewardPerTokenLast: new(big.Int),
		balances:           make(map[common.Address]*big.Int),
		storedReward:       make(map[common.Address]*big.Int),
		rewardPerTokenPaid: make(map[common.Address]*big.Int),
	}, nil
}

// Address returns the mining pool's own address.
func (p *Pool) Address() common.Address { return p.address }

// TotalSupply returns the deposited liquidity-token total.
func (p *Pool) TotalSupply() *big.Int { return new(big.Int).Set(p.totalSupply) }

// RewardRate returns the reward tokens emitted per block.
func (p *Pool) RewardRate() *big.Int { return new(big.Int).Set(p.rewardRate) }

// PeriodEndBlock returns the block at which the current emission ends.
func (p *Pool) PeriodEndBlock() uint64 { return p.periodEndBlock }

// BalanceOf returns a miner's deposited balance.
func (p *Pool) BalanceOf(miner common.Address) *big.Int {
	bal, ok := p.balances[miner]
	if !ok {
		return new(big.Int)
	}
	return new(big.Int).Set(bal)
}

// LatestBlockApplicable clamps the current block to the emission window.
func (p *Pool) LatestBlockApplicable() uint64 {
	head := p.blocks.BlockNumber()
	if head > p.periodEndBlock {
		return p.periodEndBlock
	}
	return head
}

// RewardPerToken returns the monotonically non-decreasing accumulator of
// scaled reward per deposited token.
func (p *Pool) RewardPerToken() *big.Int {
	if p.totalSupply.Sign() == 0 {
		return new(big.Int).Set(p.rewardPerTokenLast)
	}
	elapsed := p.LatestBlockApplicable() - p.lastUpdateBlock
	accrued := new(big.Int).SetUint64(elapsed)
	accrued.Mul(accrued, p.rewardRate)
	accrued.Mul(accrued, big.NewInt(Scale))
	accrued.Div(accrued, p.totalSupply)
	return accrued.Add(accrued, p.rewardPerTokenLast)
}

// Earned returns the reward a miner could collect right now.
func (p *Pool) Earned(miner common.Address) *big.Int {
	return p.earned(miner, p.RewardPerToken())
}

func (p *Pool) earned(miner common.Address, rewardPerToken *big.Int) *big.Int {
	bal, ok := p.balances[miner]
	if !ok {
		bal = new(big.Int)
	}
	paid, ok := p.rewardPerTokenPaid[miner]
	if !ok {
		paid = new(big.Int)
	}
	delta := new(big.Int).Sub(rewardPerToken, paid)
	earned := delta.Mul(delta, bal)
	earned.Div(earned, big.NewInt(Scale))
	stored, ok := p.storedReward[miner]
	if ok {
		earned.Add(earned, stored)
	}
	return earned
}

// settle checkpoints the global accumulator and the miner's position. Every
// mutating entry point settles before changing balances.
func (p *Pool) settle(miner common.Address) {
	rewardPerToken := p.RewardPerToken()
	p.rewardPerTokenLast = rewardPerToken
	p.lastUpdateBlock = p.LatestBlockApplicable()
	if miner != (common.Address{}) {
		p.storedReward[miner] = p.earned(miner, rewardPerToken)
		p.rewardPerTokenPaid[miner] = new(big.Int).Set(rewardPerToken)
	}
}

// StartMining deposits liquidity tokens into the emission pool.
func (p *Pool) StartMining(miner common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return p.guarded(func() error {
		p.settle(miner)
		if err := p.stakingToken.Transfer(miner, p.address, amount); err != nil {
			return err
		}
		p.totalSupply.Add(p.totalSupply, amount)
		bal, ok := p.balances[miner]
		if !ok {
			bal = new(big.Int)
			p.balances[miner] = bal
		}
		bal.Add(bal, amount)
		p.emit(model.EventStartMining, model.MiningEventData{
			Miner:  miner.Hex(),
			Amount: amount.String(),
		})
		return nil
	})
}

// StopMining withdraws deposited liquidity tokens and auto-collects the
// pending reward.
func (p *Pool) StopMining(miner common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return p.guarded(func() error {
		p.settle(miner)
		bal, ok := p.balances[miner]
		if !ok || bal.Cmp(amount) < 0 {
			return ErrInvalidAmount
		}
		// check both payouts up front so a failure cannot strand a
		// half-settled withdrawal
		if p.stakingToken.BalanceOf(p.address).Cmp(amount) < 0 {
			return ErrInvalidBalance
		}
		if reward, ok := p.storedReward[miner]; ok && p.rewardToken.BalanceOf(p.address).Cmp(reward) < 0 {
			return ErrInvalidBalance
		}
		if err := p.stakingToken.Transfer(p.address, miner, amount); err != nil {
			return err
		}
		p.totalSupply.Sub(p.totalSupply, amount)
		bal.Sub(bal, amount)
		p.emit(model.EventStopMining, model.MiningEventData{
			Miner:  miner.Hex(),
			Amount: amount.String(),
		})
		return p.payReward(miner)
	})
}

// CollectRewards pays out the miner's settled reward.
func (p *Pool) CollectRewards(miner common.Address) error {
	return p.guarded(func() error {
		p.settle(miner)
		return p.payReward(miner)
	})
}

func (p *Pool) payReward(miner common.Address) error {
	reward, ok := p.storedReward[miner]
	if !ok || reward.Sign() == 0 {
		return nil
	}
	amount := new(big.Int).Set(reward)
	reward.SetInt64(0)
	if err := p.rewardToken.Transfer(p.address, miner, amount); err != nil {
		return err
	}
	p.emit(model.EventCollectMiningRewards, model.MiningEventData{
		Miner:  miner.Hex(),
		Amount: amount.String(),
	})
	return nil
}

// NotifyRewardAmount refreshes the emission schedule with newly funded
// reward. A still-running period blends its unspent remainder into the new
// rate instead of truncating the in-flight distribution. The pool's reward
// balance must cover the full promised emission.
func (p *Pool) NotifyRewardAmount(caller common.Address, reward *big.Int) error {
	if caller != p.governance {
		return ErrUnauthorized
	}
	if reward == nil || reward.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return p.guarded(func() error {
		p.settle(common.Address{})
		head := p.blocks.BlockNumber()
		duration := new(big.Int).SetUint64(p.duration)
		if head >= p.periodEndBlock {
			p.rewardRate = new(big.Int).Div(reward, duration)
		} else {
			remaining := new(big.Int).SetUint64(p.periodEndBlock - head)
			leftover := remaining.Mul(remaining, p.rewardRate)
			blended := new(big.Int).Add(reward, leftover)
			p.rewardRate = blended.Div(blended, duration)
		}

		funded := p.rewardToken.BalanceOf(p.address)
		promised := new(big.Int).Mul(p.rewardRate, duration)
		if promised.Cmp(funded) > 0 {
			return ErrRewardTooHigh
		}

		p.lastUpdateBlock = head
		p.periodEndBlock = head + p.duration
		p.emit(model.EventRewardAdded, model.RewardAddedEventData{
			Reward:         reward.String(),
			RewardRate:     p.rewardRate.String(),
			PeriodEndBlock: p.periodEndBlock,
		})
		p.logger.Info("emission schedule refreshed",
			zap.String("reward", reward.String()),
			zap.String("reward_rate", p.rewardRate.String()),
			zap.Uint64("period_end_block", p.periodEndBlock),
		)
		return nil
	})
}

// guarded serializes mutating entry points behind the reentrancy lock. State
// is rewound on failure so an aborted call leaves no trace.
func (p *Pool) guarded(fn func() error) error {
	if p.locked {
		return ErrLocked
	}
	p.locked = true
	defer func() { p.locked = false }()

	snap := p.snapshot()
	journalMark := 0
	if p.journal != nil {
		journalMark = p.journal.Len()
	}
	if err := fn(); err != nil {
		p.restore(snap)
		if p.journal != nil {
			p.journal.Truncate(journalMark)
		}
		return err
	}
	return nil
}

type miningSnapshot struct {
	totalSupply        *big.Int
	rewardRate         *big.Int
	periodEndBlock     uint64
	lastUpdateBlock    uint64
	rewardPerTokenLast *big.Int
	balances           map[common.Address]*big.Int
	storedReward       map[common.Address]*big.Int
	rewardPerTokenPaid map[common.Address]*big.Int
}

func (p *Pool) snapshot() miningSnapshot {
	snap := miningSnapshot{
		totalSupply:        new(big.Int).Set(p.totalSupply),
		rewardRate:         new(big.Int).Set(p.rewardRate),
		periodEndBlock:     p.periodEndBlock,
		lastUpdateBlock:    p.lastUpdateBlock,
		rewardPerTokenLast: new(big.Int).Set(p.rewardPerTokenLast),
		balances:           make(map[common.Address]*big.Int, len(p.balances)),
		storedReward:       make(map[common.Address]*big.Int, len(p.storedReward)),
		rewardPerTokenPaid: make(map[common.Address]*big.Int, len(p.rewardPerTokenPaid)),
	}
	for addr, v := range p.balances {
		snap.balances[addr] = new(big.Int).Set(v)
	}
	for addr, v := range p.storedReward {
		snap.storedReward[addr] = new(big.Int).Set(v)
	}
	for addr, v := range p.rewardPerTokenPaid {
		snap.rewardPerTokenPaid[addr] = new(big.Int).Set(v)
	}
	return snap
}

func (p *Pool) restore(snap miningSnapshot) {
	p.totalSupply = snap.totalSupply
	p.rewardRate = snap.rewardRate
	p.periodEndBlock = snap.periodEndBlock
	p.lastUpdateBlock = snap.lastUpdateBlock
	p.rewardPerTokenLast = snap.rewardPerTokenLast
	p.balances = snap.balances
	p.storedReward = snap.storedReward
	p.rewardPerTokenPaid = snap.rewardPerTokenPaid
}

func (p *Pool) emit(event string, data any) {
	if p.journal == nil {
		return
	}
	p.journal.Emit(p.address, p.blocks.BlockNumber(), event, data)
}
