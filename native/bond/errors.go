package bond

import "errors"

var (
	errNilState     = errors.New("bond engine: state not configured")
	errNilTreasury  = errors.New("bond engine: treasury not configured")
	errNilOracle    = errors.New("bond engine: payout supply oracle not configured")
	errNilConverter = errors.New("bond engine: asset converter not configured")
	errNilTerms     = errors.New("bond engine: terms not initialised")
	errNoBondID     = errors.New("bond engine: bond identifier not configured")

	// Validation failures. Rejected before any state change and never clamped.
	ErrVestingTooShort   = errors.New("bond engine: vesting must be at least 10000 blocks")
	ErrPayoutAboveLimit  = errors.New("bond engine: max payout cannot exceed 1000 bps")
	ErrIncrementTooLarge = errors.New("bond engine: adjustment increment too large")
	ErrAdjustmentTarget  = errors.New("bond engine: decreasing target above control variable")
	ErrDebtNotZero       = errors.New("bond engine: debt must be zero for initialization")
	ErrSupplyUnavailable = errors.New("bond engine: payout asset supply is zero")
	ErrPriceOverflow     = errors.New("bond engine: computed price exceeds range")

	// Capacity and slippage conditions. Expected and user recoverable.
	ErrBondTooSmall       = errors.New("bond engine: bond too small")
	ErrMaxPayoutExceeded  = errors.New("bond engine: payout above max payout")
	ErrMaxCapacityReached = errors.New("bond engine: max debt capacity reached")
	ErrSlippageExceeded   = errors.New("bond engine: price above slippage limit")

	// External collaborator failures.
	ErrAssetConversionFailed = errors.New("bond engine: asset conversion failed")
	ErrFeeRoutingFailed      = errors.New("bond engine: fee routing failed")
	ErrTreasuryUnavailable   = errors.New("bond engine: treasury unavailable")

	// Access control.
	ErrUnauthorized = errors.New("bond engine: caller is not policy")
	ErrOnlyDAO      = errors.New("bond engine: caller is not the DAO")

	// Redemption state.
	ErrNoActiveBond = errors.New("bond engine: no active bond for recipient")
)
