package model

// Operation is one journal line applied to the engine during replay.
type Operation struct {
	Sequence       uint64 `json:"sequence"`
	Op             string `json:"op"`
	Caller         string `json:"caller"`
	To             string `json:"to,omitempty"`
	Token          string `json:"token,omitempty"`
	AmountNative   uint64 `json:"amount_native,omitempty"`
	Amount         string `json:"amount,omitempty"`
	Liquidate      bool   `json:"liquidate,omitempty"`
	Blocks         uint64 `json:"blocks,omitempty"`
	CallbackMethod string `json:"callback_method,omitempty"`
	CallbackData   string `json:"callback_data,omitempty"`
}

// Operation names accepted by the replay runner.
const (
	OpMint          = "mint"
	OpBurn          = "burn"
	OpSwap          = "swap"
	OpSkim          = "skim"
	OpSync          = "sync"
	OpTransfer      = "transfer"
	OpApprove       = "approve"
	OpTransferFrom  = "transfer-from"
	OpStake         = "stake"
	OpCollect       = "collect"
	OpUnstake       = "unstake"
	OpStartMining   = "start-mining"
	OpStopMining    = "stop-mining"
	OpCollectMining = "collect-mining"
	OpNotifyReward  = "notify-reward"
	OpAdvanceBlocks = "advance"
	OpFundNative    = "fund-native"
	OpFundToken     = "fund-token"
)
