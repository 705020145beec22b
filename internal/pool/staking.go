package pool

import (
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityCore/internal/model"
)

// nominateMethod is the best-effort governance hook invoked on the staking
// token after stake and unstake. A failing hook never aborts the operation.
const nominateMethod = "NominateLiquidityPool"

func (p *Pool) stakingEnabled() bool {
	return p.cfg.StakingToken != (common.Address{}) && p.cfg.StakingToken != p.cfg.Token
}

// StakingEnabled reports whether the protocol-fee staking accrual runs on
// this pool.
func (p *Pool) StakingEnabled() bool { return p.stakingEnabled() }

// TotalStaked returns the total staked principal.
func (p *Pool) TotalStaked() *big.Int { return new(big.Int).Set(p.totalStaked) }

// StakingRewards returns the minted fee shares not yet claimed.
func (p *Pool) StakingRewards() *big.Int { return new(big.Int).Set(p.stakingRewards) }

// StakedBalance returns a staker's principal.
func (p *Pool) StakedBalance(staker common.Address) *big.Int {
	bal, ok := p.stakedBalance[staker]
	if !ok {
		return new(big.Int)
	}
	return new(big.Int).Set(bal)
}

// StakingRewardOf returns the reward currently claimable by a staker.
func (p *Pool) StakingRewardOf(staker common.Address) *big.Int {
	bal, ok := p.stakedBalance[staker]
	if !ok {
		return new(big.Int)
	}
	return p.claimable(bal, p.weightOf(staker))
}

// accrueFees mints the protocol fee owed to stakers since the last invariant
// checkpoint: 1/6 of the growth in sqrt(k), paid by diluting share holders.
// A flat or shrinking invariant accrues nothing.
func (p *Pool) accrueFees() {
	if !p.stakingEnabled() {
		return
	}
	if p.totalStaked.Sign() == 0 || p.kLast.Sign() == 0 {
		return
	}
	k := new(big.Int).Mul(bigU64(p.reserveNative), p.reserveAsset)
	rootK := new(big.Int).Sqrt(k)
	rootKLast := new(big.Int).Sqrt(p.kLast)
	if rootK.Cmp(rootKLast) <= 0 {
		return
	}
	numerator := new(big.Int).Mul(p.shares.TotalSupply(), new(big.Int).Sub(rootK, rootKLast))
	denominator := new(big.Int).Mul(rootK, big.NewInt(5))
	denominator.Add(denominator, rootKLast)
	fee := numerator.Div(numerator, denominator)
	if fee.Sign() == 0 {
		return
	}
	if err := p.shares.Mint(p.cfg.Address, fee); err != nil {
		return
	}
	p.stakingRewards.Add(p.stakingRewards, fee)
	p.totalStakedApplicable = new(big.Int).Set(p.totalStaked)
	p.logger.Debug("protocol fee accrued", zap.String("fee_shares", fee.String()))
}

// Stake locks staking tokens into the pool. An existing position is settled
// first so reward windows never mix.
func (p *Pool) Stake(staker common.Address, amount *big.Int) error {
	if !p.stakingEnabled() {
		return ErrStakingUnavailable
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return p.guarded(func() error {
		p.accrueFees()
		if bal, ok := p.stakedBalance[staker]; ok && bal.Sign() > 0 {
			if err := p.settleRewards(staker, staker, false); err != nil {
				return err
			}
		}
		if err := p.chain.TransferToken(p.cfg.StakingToken, staker, p.cfg.Address, amount); err != nil {
			return err
		}
		p.totalStaked.Add(p.totalStaked, amount)
		bal, ok := p.stakedBalance[staker]
		if !ok {
			bal = new(big.Int)
			p.stakedBalance[staker] = bal
		}
		bal.Add(bal, amount)
		p.stakedWeight[staker] = p.weightCheckpoint(bal)

		p.emit(model.EventStake, model.StakeEventData{
			Staker:      staker.Hex(),
			Amount:      amount.String(),
			TotalStaked: p.totalStaked.String(),
		})
		p.nominate()
		return nil
	})
}

// Collect pays out a staker's accrued reward without touching the staked
// principal. With liquidate set, the reward shares are burned and the
// underlying assets are paid instead.
func (p *Pool) Collect(staker, to common.Address, liquidate bool) error {
	if !p.stakingEnabled() {
		return ErrStakingUnavailable
	}
	return p.guarded(func() error {
		p.accrueFees()
		bal, ok := p.stakedBalance[staker]
		if !ok || bal.Sign() == 0 {
			return ErrInvalidAmount
		}
		return p.settleRewards(staker, to, liquidate)
	})
}

// Unstake settles the reward and returns the staked principal, zeroing the
// position.
func (p *Pool) Unstake(staker, to common.Address, liquidate bool) error {
	if !p.stakingEnabled() {
		return ErrStakingUnavailable
	}
	return p.guarded(func() error {
		p.accrueFees()
		bal, ok := p.stakedBalance[staker]
		if !ok || bal.Sign() == 0 {
			return ErrInvalidAmount
		}
		if err := p.settleRewards(staker, to, liquidate); err != nil {
			return err
		}
		principal := new(big.Int).Set(bal)
		if err := p.chain.TransferToken(p.cfg.StakingToken, p.cfg.Address, to, principal); err != nil {
			return err
		}
		p.totalStaked.Sub(p.totalStaked, principal)
		delete(p.stakedBalance, staker)
		delete(p.stakedWeight, staker)

		p.emit(model.EventUnstake, model.StakeEventData{
			Staker:      staker.Hex(),
			Amount:      principal.String(),
			TotalStaked: p.totalStaked.String(),
		})
		p.nominate()
		return nil
	})
}

// settleRewards pays a staker's earned reward, removes their stake from the
// applicable set for the current window, and re-checkpoints their weight.
// Must run after accrueFees inside a guarded section.
func (p *Pool) settleRewards(staker, to common.Address, liquidate bool) error {
	bal := p.stakedBalance[staker]
	if bal == nil || bal.Sign() == 0 {
		return nil
	}
	reward := p.claimable(bal, p.weightOf(staker))

	p.stakingRewards.Sub(p.stakingRewards, reward)
	if p.stakingRewards.Sign() < 0 {
		p.stakingRewards.SetInt64(0)
	}
	p.totalStakedApplicable = subClampBig(p.totalStakedApplicable, bal)

	if reward.Sign() > 0 {
		if liquidate {
			if err := p.liquidateShares(reward, to); err != nil {
				return err
			}
		} else {
			if err := p.shares.Transfer(p.cfg.Address, to, reward); err != nil {
				return err
			}
		}
	}
	p.stakedWeight[staker] = p.weightCheckpoint(bal)

	p.emit(model.EventCollectStakingRewards, model.StakingRewardEventData{
		Staker:    staker.Hex(),
		To:        to.Hex(),
		Reward:    reward.String(),
		Liquidate: liquidate,
	})
	return nil
}

// claimable computes balance*rewards/applicable minus the weight checkpoint,
// floored at zero and capped by the undistributed reward balance.
func (p *Pool) claimable(bal, weight *big.Int) *big.Int {
	if p.totalStakedApplicable.Sign() == 0 || p.stakingRewards.Sign() == 0 {
		return new(big.Int)
	}
	reward := new(big.Int).Mul(bal, p.stakingRewards)
	reward.Div(reward, p.totalStakedApplicable)
	reward.Sub(reward, weight)
	if reward.Sign() < 0 {
		reward.SetInt64(0)
	}
	if reward.Cmp(p.stakingRewards) > 0 {
		reward = new(big.Int).Set(p.stakingRewards)
	}
	return reward
}

// weightCheckpoint records the slice of the current reward pool a balance is
// not entitled to: rewards accrued before the position's last interaction.
func (p *Pool) weightCheckpoint(bal *big.Int) *big.Int {
	if p.totalStakedApplicable.Sign() == 0 || p.stakingRewards.Sign() == 0 {
		return new(big.Int)
	}
	weight := new(big.Int).Mul(bal, p.stakingRewards)
	return weight.Div(weight, p.totalStakedApplicable)
}

func (p *Pool) weightOf(staker common.Address) *big.Int {
	weight, ok := p.stakedWeight[staker]
	if !ok {
		return new(big.Int)
	}
	return weight
}

// liquidateShares burns reward shares held by the pool and pays the
// underlying assets pro-rata, then re-settles reserves and the invariant
// checkpoint like a burn.
func (p *Pool) liquidateShares(reward *big.Int, to common.Address) error {
	total := p.shares.TotalSupply()
	if total.Sign() == 0 {
		return ErrInsufficientLiquidityBurned
	}
	balNative := p.chain.NativeBalance(p.cfg.Address)
	balAsset := p.chain.TokenBalance(p.cfg.Token, p.cfg.Address)

	amountNativeBig := new(big.Int).Mul(reward, bigU64(balNative))
	amountNativeBig.Div(amountNativeBig, total)
	amountAsset := new(big.Int).Mul(reward, balAsset)
	amountAsset.Div(amountAsset, total)

	if err := p.shares.Burn(p.cfg.Address, reward); err != nil {
		return err
	}
	if amountNativeBig.Sign() > 0 {
		if err := p.chain.TransferNative(p.cfg.Address, to, amountNativeBig.Uint64()); err != nil {
			return err
		}
	}
	if amountAsset.Sign() > 0 {
		if err := p.chain.TransferToken(p.cfg.Token, p.cfg.Address, to, amountAsset); err != nil {
			return err
		}
	}
	p.updateReserves(
		p.chain.NativeBalance(p.cfg.Address),
		p.chain.TokenBalance(p.cfg.Token, p.cfg.Address),
	)
	p.checkpointK()
	return nil
}

// nominate notifies the staking token's governance hook of the pool's staked
// weight. Fire-and-forget: a staking action must not be blockable by an
// unrelated governance contract.
func (p *Pool) nominate() {
	payload, err := json.Marshal(map[string]string{
		"pool":   p.cfg.Address.Hex(),
		"weight": p.totalStaked.String(),
	})
	if err != nil {
		return
	}
	if err := p.chain.Call(p.cfg.StakingToken, nominateMethod, payload); err != nil {
		p.logger.Warn("nomination hook failed", zap.Error(err))
	}
}
