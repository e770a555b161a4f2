package bond

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"bondengine/core/events"
	"bondengine/core/types"
	nativecommon "bondengine/native/common"
)

const moduleName = "bond"

type engineState interface {
	GetTerms(bondID string) (*Terms, error)
	PutTerms(bondID string, terms *Terms) error
	GetAdjustment(bondID string) (*Adjustment, error)
	PutAdjustment(bondID string, adjustment *Adjustment) error
	GetDebt(bondID string) (*DebtState, error)
	PutDebt(bondID string, debt *DebtState) error
	GetTotals(bondID string) (*Totals, error)
	PutTotals(bondID string, totals *Totals) error
	GetBondRecord(bondID string, depositor common.Address) (*BondRecord, error)
	PutBondRecord(bondID string, record *BondRecord) error
	DeleteBondRecord(bondID string, depositor common.Address) error
}

/// Treasury is the settlement surface the engine requires: principal custody on
// deposit, payout reservation against future redemptions and the outbound
// transfer at redemption time. ReleasePayout and RefundPrincipal compensate a
// half-finished deposit; the engine reserves before any balance moves so every
// step it has taken can be walked back.
type Treasury interface {
	DepositPrincipal(bondID string, from common.Address, asset string, amount *big.Int) error
	ReservePayout(bondID string, amount *big.Int) error
	ReleasePayout(bondID string, amount *big.Int) error
	RefundPrincipal(bondID string, to common.Address, asset string, amount *big.Int) error
	Payout(bondID string, recipient common.Address, amount *big.Int) error
}

// FeeRouter forwards skimmed fees to the subsidy pool. Failures propagate;
// they are never swallowed.
type FeeRouter interface {
	RouteFee(asset string, amount *big.Int) error
}

// SupplyOracle reports the circulating supply of the payout asset, the
// denominator of the debt ratio.
type SupplyOracle interface {
	TotalSupply(asset string) (*big.Int, error)
}

// Converter normalizes arbitrary deposit assets into the bond's principal
// asset, optionally minting a liquidity-pool token from two swapped legs. The
// owner is the account the conversion settles against.
type Converter interface {
	SwapToPrincipal(owner common.Address, sourceAsset, principalAsset string, amount *big.Int) (*big.Int, error)
	ProvideLiquidity(owner common.Address, assetA, assetB string, amountA, amountB *big.Int) (*big.Int, error)
}

type bondEvent struct {
	evt *types.Event
}

func (e bondEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e bondEvent) Event() *types.Event { return e.evt }

// Engine orchestrates pricing, debt accounting, deposit settlement and the
// vesting ledger for one bond instance.
type Engine struct {
	state             engineState
	treasury          Treasury
	feeRouter         FeeRouter
	oracle            SupplyOracle
	converter         Converter
	emitter           events.Emitter
	pauses            nativecommon.PauseView
	bondID            string
	policy            common.Address
	dao               common.Address
	principalAsset    string
	payoutAsset       string
	principalDecimals uint8
	payoutDecimals    uint8
	lpAssetA          string
	lpAssetB          string
	lpTokenAsFee      bool
	feeTiers          []FeeTier
	blockHeight       uint64
}

// NewEngine constructs a bond engine bound to a bond identifier and its
// principal/payout asset pair.
func NewEngine(bondID, principalAsset, payoutAsset string, principalDecimals, payoutDecimals uint8) *Engine {
	return &Engine{
		bondID:            strings.TrimSpace(bondID),
		principalAsset:    strings.TrimSpace(principalAsset),
		payoutAsset:       strings.TrimSpace(payoutAsset),
		principalDecimals: principalDecimals,
		payoutDecimals:    payoutDecimals,
		emitter:           events.NoopEmitter{},
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetTreasury wires the treasury ledger used for custody and payouts.
func (e *Engine) SetTreasury(treasury Treasury) {
	if e == nil {
		return
	}
	e.treasury = treasury
}

// SetFeeRouter configures the router receiving skimmed fees.
func (e *Engine) SetFeeRouter(router FeeRouter) {
	if e == nil {
		return
	}
	e.feeRouter = router
}

// SetSupplyOracle configures the payout-asset supply source for debt ratios.
func (e *Engine) SetSupplyOracle(oracle SupplyOracle) {
	if e == nil {
		return
	}
	e.oracle = oracle
}

// SetConverter configures the swap/liquidity strategy used by DepositWithAsset.
func (e *Engine) SetConverter(converter Converter) {
	if e == nil {
		return
	}
	e.converter = converter
}

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetPauses wires the module pause switch.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetPolicy assigns the policy principal allowed to configure the bond.
func (e *Engine) SetPolicy(policy common.Address) {
	if e == nil {
		return
	}
	e.policy = policy
}

// SetDAO assigns the higher-trust principal allowed to swap the treasury.
func (e *Engine) SetDAO(dao common.Address) {
	if e == nil {
		return
	}
	e.dao = dao
}

// SetLPPair configures the two pool legs backing the principal LP token used
// when the LP-as-fee mode is enabled.
func (e *Engine) SetLPPair(assetA, assetB string) {
	if e == nil {
		return
	}
	e.lpAssetA = strings.TrimSpace(assetA)
	e.lpAssetB = strings.TrimSpace(assetB)
}

// SetFeeTiers installs the fee schedule. Tiers must be sorted by ascending
// ceiling with the open-ended tier last.
func (e *Engine) SetFeeTiers(tiers []FeeTier) {
	if e == nil {
		return
	}
	cloned := make([]FeeTier, 0, len(tiers))
	for _, tier := range tiers {
		cloned = append(cloned, tier.Clone())
	}
	e.feeTiers = cloned
}

// SetBlockHeight records the block height used by pricing and vesting math.
func (e *Engine) SetBlockHeight(height uint64) {
	if e == nil {
		return
	}
	e.blockHeight = height
}

// BondID returns the configured bond identifier.
func (e *Engine) BondID() string {
	if e == nil {
		return ""
	}
	return e.bondID
}

// LPTokenAsFee reports whether fees settle in the principal LP token.
func (e *Engine) LPTokenAsFee() bool {
	if e == nil {
		return false
	}
	return e.lpTokenAsFee
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(bondEvent{evt: event})
}

func (e *Engine) requirePolicy(caller common.Address) error {
	if caller != e.policy {
		return ErrUnauthorized
	}
	return nil
}

// InitializeBond seeds the full term set and the starting debt. It is rejected
// once any debt is outstanding so a live bond cannot be re-priced wholesale.
func (e *Engine) InitializeBond(caller common.Address, controlVariable, vestingTerm, minimumPrice, maxPayoutBps uint64, maxDebt, initialDebt *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.requirePolicy(caller); err != nil {
		return err
	}
	if strings.TrimSpace(e.bondID) == "" {
		return errNoBondID
	}
	debt, err := e.ensureDebt()
	if err != nil {
		return err
	}
	e.decayDebt(debt, nil)
	if debt.TotalDebt.Sign() != 0 {
		return ErrDebtNotZero
	}
	terms := &Terms{
		ControlVariable:   controlVariable,
		VestingTermBlocks: vestingTerm,
		MinimumPrice:      minimumPrice,
		MaxPayoutBps:      maxPayoutBps,
	}
	if maxDebt != nil {
		terms.MaxDebt = new(big.Int).Set(maxDebt)
	} else {
		terms.MaxDebt = big.NewInt(0)
	}
	if err := e.state.PutTerms(e.bondID, terms); err != nil {
		return err
	}
	seeded := &DebtState{TotalDebt: big.NewInt(0), LastDecayBlock: e.blockHeight}
	if initialDebt != nil {
		seeded.TotalDebt = new(big.Int).Set(initialDebt)
	}
	return e.state.PutDebt(e.bondID, seeded)
}

// SetBondTerms tightens a single term after initialization. Violating bounds
// reject the call outright rather than clamping.
func (e *Engine) SetBondTerms(caller common.Address, field TermField, input uint64, debtInput *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.requirePolicy(caller); err != nil {
		return err
	}
	terms, err := e.ensureTerms()
	if err != nil {
		return err
	}
	switch field {
	case TermVesting:
		if input < minVestingBlocks {
			return ErrVestingTooShort
		}
		terms.VestingTermBlocks = input
	case TermMaxPayout:
		if input > maxPayoutCeilingBps {
			return ErrPayoutAboveLimit
		}
		terms.MaxPayoutBps = input
	case TermMaxDebt:
		if debtInput == nil {
			terms.MaxDebt = new(big.Int).SetUint64(input)
		} else {
			terms.MaxDebt = new(big.Int).Set(debtInput)
		}
	}
	return e.state.PutTerms(e.bondID, terms)
}

// SetAdjustment schedules a control-variable drift. The per-period increment
// is capped at 1/25 of the current control variable to bound how fast policy
// can move the price.
func (e *Engine) SetAdjustment(caller common.Address, increasing bool, rate, target, buffer uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.requirePolicy(caller); err != nil {
		return err
	}
	terms, err := e.ensureTerms()
	if err != nil {
		return err
	}
	if rate > terms.ControlVariable/adjustmentDivisor {
		return ErrIncrementTooLarge
	}
	if !increasing && target > terms.ControlVariable {
		return ErrAdjustmentTarget
	}
	adjustment := &Adjustment{
		Increasing: increasing,
		Rate:       rate,
		Target:     target,
		Buffer:     buffer,
		LastBlock:  e.blockHeight,
	}
	return e.state.PutAdjustment(e.bondID, adjustment)
}

// SetLPTokenAsFee selects whether fees are skimmed in the principal LP token
// or in the payout asset.
func (e *Engine) SetLPTokenAsFee(caller common.Address, enabled bool) error {
	if e == nil {
		return errNilState
	}
	if err := e.requirePolicy(caller); err != nil {
		return err
	}
	e.lpTokenAsFee = enabled
	return nil
}

// ChangeTreasury swaps the settlement treasury. Reserved for the DAO.
func (e *Engine) ChangeTreasury(caller common.Address, treasury Treasury) error {
	if e == nil {
		return errNilState
	}
	if caller != e.dao {
		return ErrOnlyDAO
	}
	e.treasury = treasury
	return nil
}

// BondInfo returns a copy of the vesting record for the depositor, or nil when
// no active bond exists.
func (e *Engine) BondInfo(depositor common.Address) (*BondRecord, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	record, err := e.state.GetBondRecord(e.bondID, depositor)
	if err != nil {
		return nil, err
	}
	return record.Clone(), nil
}

func (e *Engine) ensureTerms() (*Terms, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if strings.TrimSpace(e.bondID) == "" {
		return nil, errNoBondID
	}
	terms, err := e.state.GetTerms(e.bondID)
	if err != nil {
		return nil, err
	}
	if terms == nil {
		return nil, errNilTerms
	}
	if terms.MaxDebt == nil {
		terms.MaxDebt = big.NewInt(0)
	}
	return terms, nil
}

func (e *Engine) ensureDebt() (*DebtState, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if strings.TrimSpace(e.bondID) == "" {
		return nil, errNoBondID
	}
	debt, err := e.state.GetDebt(e.bondID)
	if err != nil {
		return nil, err
	}
	if debt == nil {
		debt = &DebtState{LastDecayBlock: e.blockHeight}
	}
	if debt.TotalDebt == nil {
		debt.TotalDebt = big.NewInt(0)
	}
	return debt, nil
}

func (e *Engine) ensureAdjustment() (*Adjustment, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	adjustment, err := e.state.GetAdjustment(e.bondID)
	if err != nil {
		return nil, err
	}
	if adjustment == nil {
		adjustment = &Adjustment{}
	}
	return adjustment, nil
}

func (e *Engine) ensureTotals() (*Totals, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	totals, err := e.state.GetTotals(e.bondID)
	if err != nil {
		return nil, err
	}
	if totals == nil {
		totals = &Totals{}
	}
	if totals.PrincipalBonded == nil {
		totals.PrincipalBonded = big.NewInt(0)
	}
	if totals.PayoutGiven == nil {
		totals.PayoutGiven = big.NewInt(0)
	}
	return totals, nil
}

// currentFeeRate selects the fee tier matching the lifetime principal bonded.
func (e *Engine) currentFeeRate(principalBonded *big.Int) uint64 {
	for _, tier := range e.feeTiers {
		if tier.Ceiling == nil || principalBonded.Cmp(tier.Ceiling) <= 0 {
			return tier.RateMilli
		}
	}
	if len(e.feeTiers) > 0 {
		return e.feeTiers[len(e.feeTiers)-1].RateMilli
	}
	return 0
}
