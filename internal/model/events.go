package model

// EventRecord is the normalized representation of an engine event for storage.
type EventRecord struct {
	Sequence uint64 `json:"sequence"`
	Block    uint64 `json:"block"`
	Contract string `json:"contract"`
	Event    string `json:"event"`
	Data     any    `json:"data"`
}

// Event names emitted by the engine.
const (
	EventTransfer              = "Transfer"
	EventApproval              = "Approval"
	EventMint                  = "Mint"
	EventBurn                  = "Burn"
	EventSwap                  = "Swap"
	EventSync                  = "Sync"
	EventStake                 = "Stake"
	EventCollectStakingRewards = "CollectStakingRewards"
	EventUnstake               = "Unstake"
	EventStartMining           = "StartMining"
	EventStopMining            = "StopMining"
	EventCollectMiningRewards  = "CollectMiningRewards"
	EventRewardAdded           = "RewardAdded"
	EventRejected              = "Rejected"
)

// TransferEventData records a share transfer. Zero-amount transfers are
// recorded as well so the journal stays a complete audit trail.
type TransferEventData struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

// ApprovalEventData records an allowance update.
type ApprovalEventData struct {
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

// MintEventData records a liquidity deposit.
type MintEventData struct {
	To           string `json:"to"`
	AmountNative uint64 `json:"amount_native"`
	AmountAsset  string `json:"amount_asset"`
	Shares       string `json:"shares"`
}

// BurnEventData records a liquidity withdrawal.
type BurnEventData struct {
	To           string `json:"to"`
	AmountNative uint64 `json:"amount_native"`
	AmountAsset  string `json:"amount_asset"`
	Shares       string `json:"shares"`
}

// SwapEventData records a settled swap.
type SwapEventData struct {
	To              string `json:"to"`
	AmountNativeIn  uint64 `json:"amount_native_in"`
	AmountAssetIn   string `json:"amount_asset_in"`
	AmountNativeOut uint64 `json:"amount_native_out"`
	AmountAssetOut  string `json:"amount_asset_out"`
}

// SyncEventData records the reserves after a settlement.
type SyncEventData struct {
	ReserveNative uint64 `json:"reserve_native"`
	ReserveAsset  string `json:"reserve_asset"`
}

// StakeEventData records a staking deposit or exit.
type StakeEventData struct {
	Staker      string `json:"staker"`
	Amount      string `json:"amount"`
	TotalStaked string `json:"total_staked"`
}

// StakingRewardEventData records a staking reward payout.
type StakingRewardEventData struct {
	Staker    string `json:"staker"`
	To        string `json:"to"`
	Reward    string `json:"reward"`
	Liquidate bool   `json:"liquidate"`
}

// MiningEventData records a mining deposit, withdrawal or reward payout.
type MiningEventData struct {
	Miner  string `json:"miner"`
	Amount string `json:"amount"`
}

// RewardAddedEventData records a refreshed emission schedule.
type RewardAddedEventData struct {
	Reward         string `json:"reward"`
	RewardRate     string `json:"reward_rate"`
	PeriodEndBlock uint64 `json:"period_end_block"`
}

// RejectedEventData records an operation the engine refused.
type RejectedEventData struct {
	Op     string `json:"op"`
	Reason string `json:"reason"`
}
