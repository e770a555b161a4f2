package bond

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"bondengine/core/events"
	nativecommon "bondengine/native/common"
)

// Deposit locks principal directly and opens (or extends) a vesting claim on
// the payout asset. Returns the payout granted.
func (e *Engine) Deposit(depositor common.Address, amount *big.Int, maxPrice uint64, recipient common.Address) (*big.Int, error) {
	payout, _, err := e.settleDeposit(depositor, e.principalAsset, amount, amount, maxPrice, recipient)
	return payout, err
}

// DepositWithAsset normalizes an arbitrary source asset (including the native
// coin, which is just a converter-known symbol) into the principal asset and
// runs the regular deposit pipeline on the converted amount. When the LP-fee
// mode is on the converter builds the principal LP token from two swapped
// legs. Conversion failures abort with no debt mutation.
func (e *Engine) DepositWithAsset(depositor common.Address, amount *big.Int, sourceAsset string, maxPrice uint64, recipient common.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.converter == nil {
		return nil, errNilConverter
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrBondTooSmall
	}

	// Reject at-capacity bonds before paying for a conversion.
	terms, err := e.ensureTerms()
	if err != nil {
		return nil, err
	}
	debt, err := e.ensureDebt()
	if err != nil {
		return nil, err
	}
	e.decayDebt(debt, terms)
	if debt.TotalDebt.Cmp(terms.MaxDebt) >= 0 {
		return nil, ErrMaxCapacityReached
	}

	var bonded *big.Int
	var lpMinted *events.LPMinted
	if e.lpTokenAsFee && e.lpAssetA != "" && e.lpAssetB != "" {
		legA := new(big.Int).Rsh(amount, 1)
		legB := new(big.Int).Sub(amount, legA)
		outA, err := e.converter.SwapToPrincipal(depositor, sourceAsset, e.lpAssetA, legA)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrAssetConversionFailed, err)
		}
		outB, err := e.converter.SwapToPrincipal(depositor, sourceAsset, e.lpAssetB, legB)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrAssetConversionFailed, err)
		}
		lpAmount, err := e.converter.ProvideLiquidity(depositor, e.lpAssetA, e.lpAssetB, outA, outB)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrAssetConversionFailed, err)
		}
		bonded = lpAmount
		lpMinted = &events.LPMinted{BondID: e.bondID, LPAsset: e.principalAsset, LPAmount: new(big.Int).Set(lpAmount)}
	} else {
		out, err := e.converter.SwapToPrincipal(depositor, sourceAsset, e.principalAsset, amount)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrAssetConversionFailed, err)
		}
		bonded = out
	}

	payout, _, err := e.settleDeposit(depositor, e.principalAsset, bonded, bonded, maxPrice, recipient)
	if err != nil {
		return nil, err
	}
	if lpMinted != nil {
		e.emit(lpMinted.Event())
	}
	return payout, nil
}

// settleDeposit runs the full deposit protocol: lazy adjustment, price with
// ratchet, slippage and capacity gates, debt mutation, record merge, treasury
// custody, payout reservation and fee skim. custodyAmount is what moves into
// treasury custody; bonded is the principal amount the protocol prices.
func (e *Engine) settleDeposit(depositor common.Address, custodyAsset string, custodyAmount, bonded *big.Int, maxPrice uint64, recipient common.Address) (*big.Int, uint64, error) {
	if e == nil || e.state == nil {
		return nil, 0, errNilState
	}
	if e.treasury == nil {
		return nil, 0, errNilTreasury
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, 0, err
	}
	if bonded == nil || bonded.Sign() <= 0 {
		return nil, 0, ErrBondTooSmall
	}

	terms, err := e.ensureTerms()
	if err != nil {
		return nil, 0, err
	}
	adjustment, err := e.ensureAdjustment()
	if err != nil {
		return nil, 0, err
	}
	debt, err := e.ensureDebt()
	if err != nil {
		return nil, 0, err
	}
	totals, err := e.ensureTotals()
	if err != nil {
		return nil, 0, err
	}

	e.decayDebt(debt, terms)
	if debt.TotalDebt.Cmp(terms.MaxDebt) >= 0 {
		return nil, 0, ErrMaxCapacityReached
	}

	adjusted, initialCV := e.adjustControlVariable(terms, adjustment)

	price, tradeRatio, err := e.bondPriceRatchet(terms, debt.TotalDebt)
	if err != nil {
		return nil, 0, err
	}
	if price > maxPrice {
		return nil, 0, ErrSlippageExceeded
	}

	value := convertDecimals(bonded, e.principalDecimals, e.payoutDecimals)
	payout := new(big.Int).Quo(value, new(big.Int).SetUint64(price))

	// Floor: a payout below one hundredth of a whole payout unit is dust.
	minPayout := new(big.Int).Quo(scalePow10(e.payoutDecimals), big.NewInt(100))
	if payout.Cmp(minPayout) < 0 {
		return nil, 0, ErrBondTooSmall
	}
	payoutCap := mulDiv(debt.TotalDebt, new(big.Int).SetUint64(terms.MaxPayoutBps), basisPoints)
	if payout.Cmp(payoutCap) > 0 {
		return nil, 0, ErrMaxPayoutExceeded
	}
	projected := new(big.Int).Add(debt.TotalDebt, payout)
	if projected.Cmp(terms.MaxDebt) > 0 {
		return nil, 0, ErrMaxCapacityReached
	}

	// Fee skim: tier selected by lifetime principal bonded before this
	// deposit, settled in the principal LP token or the payout asset.
	feeRate := e.currentFeeRate(totals.PrincipalBonded)
	feeAsset := e.payoutAsset
	feeBase := payout
	if e.lpTokenAsFee {
		feeAsset = e.principalAsset
		feeBase = bonded
	}
	fee := mulDiv(feeBase, new(big.Int).SetUint64(feeRate), feeScale)

	// External settlement happens before any state is committed. The
	// reservation goes first: it moves no balances and is releasable, so an
	// underfunded reserve aborts the deposit before principal leaves the
	// depositor, and each later step has a compensation. A payout-asset fee is
	// paid from the same reserve, so it is reserved alongside the payout until
	// the routing settles.
	routeFee := fee.Sign() > 0 && e.feeRouter != nil
	feeFromReserve := routeFee && feeAsset == e.payoutAsset
	reserveAmount := new(big.Int).Set(payout)
	if feeFromReserve {
		reserveAmount.Add(reserveAmount, fee)
	}
	if err := e.treasury.ReservePayout(e.bondID, reserveAmount); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrTreasuryUnavailable, err)
	}
	if err := e.treasury.DepositPrincipal(e.bondID, depositor, custodyAsset, custodyAmount); err != nil {
		err = fmt.Errorf("%w: %w", ErrTreasuryUnavailable, err)
		if relErr := e.treasury.ReleasePayout(e.bondID, reserveAmount); relErr != nil {
			err = errors.Join(err, relErr)
		}
		return nil, 0, err
	}
	if routeFee {
		if err := e.feeRouter.RouteFee(feeAsset, fee); err != nil {
			err = fmt.Errorf("%w: %w", ErrFeeRoutingFailed, err)
			if refundErr := e.treasury.RefundPrincipal(e.bondID, depositor, custodyAsset, custodyAmount); refundErr != nil {
				err = errors.Join(err, refundErr)
			}
			if relErr := e.treasury.ReleasePayout(e.bondID, reserveAmount); relErr != nil {
				err = errors.Join(err, relErr)
			}
			return nil, 0, err
		}
		if feeFromReserve {
			// The routed fee has left custody; drop its share of the
			// reservation so reserved never exceeds the held balance.
			if err := e.treasury.ReleasePayout(e.bondID, fee); err != nil {
				return nil, 0, fmt.Errorf("%w: %w", ErrTreasuryUnavailable, err)
			}
		}
	}

	debt.TotalDebt = projected

	record, err := e.state.GetBondRecord(e.bondID, recipient)
	if err != nil {
		return nil, 0, err
	}
	record = mergeRecord(record, recipient, payout, price, terms.VestingTermBlocks, e.blockHeight)

	totals.PrincipalBonded = new(big.Int).Add(totals.PrincipalBonded, bonded)
	totals.PayoutGiven = new(big.Int).Add(totals.PayoutGiven, payout)

	if err := e.state.PutDebt(e.bondID, debt); err != nil {
		return nil, 0, err
	}
	if err := e.state.PutBondRecord(e.bondID, record); err != nil {
		return nil, 0, err
	}
	if err := e.state.PutTotals(e.bondID, totals); err != nil {
		return nil, 0, err
	}
	if err := e.state.PutTerms(e.bondID, terms); err != nil {
		return nil, 0, err
	}
	if err := e.state.PutAdjustment(e.bondID, adjustment); err != nil {
		return nil, 0, err
	}

	if adjusted {
		e.emit(events.ControlVariableAdjusted{
			BondID:  e.bondID,
			Initial: initialCV,
			New:     terms.ControlVariable,
			Target:  adjustment.Target,
			Rate:    adjustment.Rate,
		}.Event())
	}
	e.emit(events.BondCreated{
		BondID:    e.bondID,
		Depositor: recipient,
		Deposit:   new(big.Int).Set(bonded),
		Payout:    new(big.Int).Set(payout),
		Expires:   e.blockHeight + terms.VestingTermBlocks,
	}.Event())
	postRatio, ratioErr := e.debtRatioOf(debt.TotalDebt)
	if ratioErr != nil {
		postRatio = tradeRatio
	}
	e.emit(events.BondPriceChanged{
		BondID:        e.bondID,
		InternalPrice: price,
		DebtRatio:     postRatio,
	}.Event())

	return new(big.Int).Set(payout), price, nil
}

// mergeRecord folds a new payout into an existing vesting position. The price
// paid becomes the payout-weighted average and the vesting window restarts at
// the current block; a naive overwrite would discard unvested value.
func mergeRecord(existing *BondRecord, depositor common.Address, payout *big.Int, price, vestingBlocks, height uint64) *BondRecord {
	if existing == nil || existing.PayoutOwed == nil || existing.PayoutOwed.Sign() == 0 {
		return &BondRecord{
			Depositor:     depositor,
			PayoutOwed:    new(big.Int).Set(payout),
			VestingBlocks: vestingBlocks,
			LastBlock:     height,
			PricePaid:     price,
		}
	}
	combined := new(big.Int).Add(existing.PayoutOwed, payout)
	weighted := new(big.Int).Mul(existing.PayoutOwed, new(big.Int).SetUint64(existing.PricePaid))
	weighted.Add(weighted, new(big.Int).Mul(payout, new(big.Int).SetUint64(price)))
	weighted.Quo(weighted, combined)
	return &BondRecord{
		Depositor:     depositor,
		PayoutOwed:    combined,
		VestingBlocks: vestingBlocks,
		LastBlock:     height,
		PricePaid:     weighted.Uint64(),
	}
}
