package pool

import "errors"

// Failure codes are stable strings carried by the original contract's
// assertions; callers match on them when deciding how to resubmit.
var (
	ErrLocked                      = errors.New("LOCKED")
	ErrInvalidOutputAmount         = errors.New("INVALID_OUTPUT_AMOUNT")
	ErrInsufficientLiquidity       = errors.New("INSUFFICIENT_LIQUIDITY")
	ErrInvalidTo                   = errors.New("INVALID_TO")
	ErrZeroInputAmount             = errors.New("ZERO_INPUT_AMOUNT")
	ErrInsufficientInputAmount     = errors.New("INSUFFICIENT_INPUT_AMOUNT")
	ErrInsufficientLiquidityMinted = errors.New("INSUFFICIENT_LIQUIDITY_MINTED")
	ErrInsufficientLiquidityBurned = errors.New("INSUFFICIENT_LIQUIDITY_BURNED")
	ErrStakingUnavailable          = errors.New("STAKING_UNAVAILABLE")
	ErrInvalidAmount               = errors.New("INVALID_AMOUNT")
)
