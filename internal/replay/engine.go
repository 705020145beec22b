// Package replay applies a JSONL journal of operations to the pool and
// mining engines and streams the resulting event records to a sink.
package replay

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityCore/internal/ledger"
	"liquidityCore/internal/mining"
	"liquidityCore/internal/model"
	"liquidityCore/internal/pool"
	"liquidityCore/internal/state"
)

// EngineConfig wires one pool and one mining pool over a shared chain
// backdrop. Addresses are injected once at construction rather than looked
// up per call.
type EngineConfig struct {
	Pool           pool.Config
	MiningAddress  common.Address
	RewardToken    common.Address
	Governance     common.Address
	MiningDuration uint64
}

// Engine bundles the contract instances a journal replays against.
type Engine struct {
	Chain   *state.Chain
	Journal *model.Journal
	Pool    *pool.Pool
	Mining  *mining.Pool
}

func NewEngine(cfg EngineConfig, logger *zap.Logger) (*Engine, error) {
	chain := state.NewChain()
	journal := model.NewJournal()
	p := pool.New(cfg.Pool, chain, journal, logger)
	m, err := mining.New(
		cfg.MiningAddress,
		&shareToken{shares: p.Shares()},
		&chainToken{chain: chain, token: cfg.RewardToken},
		cfg.Governance,
		cfg.MiningDuration,
		chain,
		journal,
		logger,
	)
	if err != nil {
		return nil, err
	}
	return &Engine{Chain: chain, Journal: journal, Pool: p, Mining: m}, nil
}

// Apply executes one journal operation against the engine.
func (e *Engine) Apply(op model.Operation) error {
	switch op.Op {
	case model.OpAdvanceBlocks:
		e.Chain.AdvanceBlocks(op.Blocks)
		return nil
	case model.OpFundNative:
		to, err := parseAddress(op.To)
		if err != nil {
			return err
		}
		e.Chain.CreditNative(to, op.AmountNative)
		return nil
	case model.OpFundToken:
		token, err := parseAddress(op.Token)
		if err != nil {
			return err
		}
		to, err := parseAddress(op.To)
		if err != nil {
			return err
		}
		amount, err := parseAmount(op.Amount)
		if err != nil {
			return err
		}
		e.Chain.CreditToken(token, to, amount)
		return nil
	}

	caller, err := parseAddress(op.Caller)
	if err != nil {
		return err
	}

	switch op.Op {
	case model.OpMint:
		to := caller
		if op.To != "" {
			if to, err = parseAddress(op.To); err != nil {
				return err
			}
		}
		_, err := e.Pool.Mint(to)
		return err
	case model.OpBurn:
		_, _, err := e.Pool.Burn(caller)
		return err
	case model.OpSwap:
		to := caller
		if op.To != "" {
			if to, err = parseAddress(op.To); err != nil {
				return err
			}
		}
		assetOut, err := parseAmount(op.Amount)
		if err != nil {
			return err
		}
		var payload []byte
		if op.CallbackData != "" {
			payload = []byte(op.CallbackData)
		}
		return e.Pool.Swap(pool.SwapOrder{
			AmountNativeOut: op.AmountNative,
			AmountAssetOut:  assetOut,
		}, to, op.CallbackMethod, payload)
	case model.OpSkim:
		return e.Pool.Skim(caller)
	case model.OpSync:
		return e.Pool.Sync()
	case model.OpTransfer:
		to, err := parseAddress(op.To)
		if err != nil {
			return err
		}
		amount, err := parseAmount(op.Amount)
		if err != nil {
			return err
		}
		return e.Pool.Shares().Transfer(caller, to, amount)
	case model.OpApprove:
		spender, err := parseAddress(op.To)
		if err != nil {
			return err
		}
		amount, err := parseAmount(op.Amount)
		if err != nil {
			return err
		}
		return e.Pool.Shares().Approve(caller, spender, amount)
	case model.OpTransferFrom:
		from, err := parseAddress(op.Token)
		if err != nil {
			return err
		}
		to, err := parseAddress(op.To)
		if err != nil {
			return err
		}
		amount, err := parseAmount(op.Amount)
		if err != nil {
			return err
		}
		return e.Pool.Shares().TransferFrom(caller, from, to, amount)
	case model.OpStake:
		amount, err := parseAmount(op.Amount)
		if err != nil {
			return err
		}
		return e.Pool.Stake(caller, amount)
	case model.OpCollect:
		to := caller
		if op.To != "" {
			if to, err = parseAddress(op.To); err != nil {
				return err
			}
		}
		return e.Pool.Collect(caller, to, op.Liquidate)
	case model.OpUnstake:
		to := caller
		if op.To != "" {
			if to, err = parseAddress(op.To); err != nil {
				return err
			}
		}
		return e.Pool.Unstake(caller, to, op.Liquidate)
	case model.OpStartMining:
		amount, err := parseAmount(op.Amount)
		if err != nil {
			return err
		}
		return e.Mining.StartMining(caller, amount)
	case model.OpStopMining:
		amount, err := parseAmount(op.Amount)
		if err != nil {
			return err
		}
		return e.Mining.StopMining(caller, amount)
	case model.OpCollectMining:
		return e.Mining.CollectRewards(caller)
	case model.OpNotifyReward:
		amount, err := parseAmount(op.Amount)
		if err != nil {
			return err
		}
		return e.Mining.NotifyRewardAmount(caller, amount)
	default:
		return fmt.Errorf("unknown op: %s", op.Op)
	}
}

// Reject records an operation the engine refused.
func (e *Engine) Reject(op model.Operation, reason error) {
	e.Journal.Emit(e.Pool.Address(), e.Chain.BlockNumber(), model.EventRejected, model.RejectedEventData{
		Op:     op.Op,
		Reason: reason.Error(),
	})
}

// shareToken adapts the pool's share ledger to the mining token surface.
type shareToken struct {
	shares *ledger.Ledger
}

func (t *shareToken) BalanceOf(addr common.Address) *big.Int {
	return t.shares.BalanceOf(addr)
}

func (t *shareToken) Transfer(from, to common.Address, amount *big.Int) error {
	return t.shares.Transfer(from, to, amount)
}

// chainToken adapts a chain token balance to the mining token surface.
type chainToken struct {
	chain *state.Chain
	token common.Address
}

func (t *chainToken) BalanceOf(addr common.Address) *big.Int {
	return t.chain.TokenBalance(t.token, addr)
}

func (t *chainToken) Transfer(from, to common.Address, amount *big.Int) error {
	return t.chain.TransferToken(t.token, from, to, amount)
}

func parseAddress(input string) (common.Address, error) {
	input = strings.TrimSpace(input)
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("invalid address: %s", input)
	}
	return common.HexToAddress(input), nil
}

func parseAmount(input string) (*big.Int, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return new(big.Int), nil
	}
	parsed, ok := new(big.Int).SetString(input, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount: %s", input)
	}
	return parsed, nil
}
