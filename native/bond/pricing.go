package bond

import "math/big"

// debtDecayAmount returns the linear decay accrued since the last checkpoint,
// capped at the outstanding total. A zero vesting term decays everything once
// a block has elapsed.
func debtDecayAmount(debt *DebtState, terms *Terms, height uint64) *big.Int {
	if debt == nil || debt.TotalDebt == nil || debt.TotalDebt.Sign() == 0 {
		return big.NewInt(0)
	}
	if height <= debt.LastDecayBlock {
		return big.NewInt(0)
	}
	elapsed := height - debt.LastDecayBlock
	if terms == nil || terms.VestingTermBlocks == 0 || elapsed >= terms.VestingTermBlocks {
		return new(big.Int).Set(debt.TotalDebt)
	}
	decay := new(big.Int).Mul(debt.TotalDebt, new(big.Int).SetUint64(elapsed))
	return decay.Quo(decay, new(big.Int).SetUint64(terms.VestingTermBlocks))
}

// decayDebt applies the accrued decay in place and moves the checkpoint to the
// current block. Subtraction saturates at zero, never below.
func (e *Engine) decayDebt(debt *DebtState, terms *Terms) {
	if debt == nil {
		return
	}
	if debt.TotalDebt == nil {
		debt.TotalDebt = big.NewInt(0)
	}
	decay := debtDecayAmount(debt, terms, e.blockHeight)
	if decay.Sign() > 0 {
		debt.TotalDebt = new(big.Int).Sub(debt.TotalDebt, decay)
		if debt.TotalDebt.Sign() < 0 {
			debt.TotalDebt = big.NewInt(0)
		}
	}
	if e.blockHeight > debt.LastDecayBlock {
		debt.LastDecayBlock = e.blockHeight
	}
}

// DebtDecay reports the pending decay at the current block without mutating
// state.
func (e *Engine) DebtDecay() (*big.Int, error) {
	debt, err := e.ensureDebt()
	if err != nil {
		return nil, err
	}
	terms, err := e.state.GetTerms(e.bondID)
	if err != nil {
		return nil, err
	}
	return debtDecayAmount(debt, terms, e.blockHeight), nil
}

// CurrentDebt reports total debt net of pending decay. Pure read.
func (e *Engine) CurrentDebt() (*big.Int, error) {
	debt, err := e.ensureDebt()
	if err != nil {
		return nil, err
	}
	terms, err := e.state.GetTerms(e.bondID)
	if err != nil {
		return nil, err
	}
	decay := debtDecayAmount(debt, terms, e.blockHeight)
	current := new(big.Int).Sub(debt.TotalDebt, decay)
	if current.Sign() < 0 {
		current = big.NewInt(0)
	}
	return current, nil
}

// TotalDebt reports the gross outstanding debt before decay.
func (e *Engine) TotalDebt() (*big.Int, error) {
	debt, err := e.ensureDebt()
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(debt.TotalDebt), nil
}

// LastDecay reports the block of the last decay checkpoint.
func (e *Engine) LastDecay() (uint64, error) {
	debt, err := e.ensureDebt()
	if err != nil {
		return 0, err
	}
	return debt.LastDecayBlock, nil
}

func (e *Engine) debtRatioOf(currentDebt *big.Int) (*big.Int, error) {
	if e.oracle == nil {
		return nil, errNilOracle
	}
	supply, err := e.oracle.TotalSupply(e.payoutAsset)
	if err != nil {
		return nil, err
	}
	if supply == nil || supply.Sign() == 0 {
		return nil, ErrSupplyUnavailable
	}
	return mulDiv(currentDebt, debtRatioScale, supply), nil
}

// DebtRatio reports current debt over payout-asset supply, scaled by 1e9.
func (e *Engine) DebtRatio() (*big.Int, error) {
	current, err := e.CurrentDebt()
	if err != nil {
		return nil, err
	}
	return e.debtRatioOf(current)
}

func priceFromRatio(terms *Terms, ratio *big.Int) (uint64, error) {
	price := mulDiv(new(big.Int).SetUint64(terms.ControlVariable), ratio, priceDivisor)
	if !price.IsUint64() {
		return 0, ErrPriceOverflow
	}
	market := price.Uint64()
	if market < terms.MinimumPrice {
		return terms.MinimumPrice, nil
	}
	return market, nil
}

// BondPrice reports the current bond price: the control variable applied to
// the debt ratio, floored at the minimum price. Pure read; the stored floor is
// only ratcheted inside deposits.
func (e *Engine) BondPrice() (uint64, error) {
	terms, err := e.ensureTerms()
	if err != nil {
		return 0, err
	}
	ratio, err := e.DebtRatio()
	if err != nil {
		return 0, err
	}
	return priceFromRatio(terms, ratio)
}

// bondPriceRatchet computes the trade price and lifts the stored minimum price
// when the market-implied price exceeds it. The floor never moves back down.
func (e *Engine) bondPriceRatchet(terms *Terms, currentDebt *big.Int) (uint64, *big.Int, error) {
	ratio, err := e.debtRatioOf(currentDebt)
	if err != nil {
		return 0, nil, err
	}
	price, err := priceFromRatio(terms, ratio)
	if err != nil {
		return 0, nil, err
	}
	if price > terms.MinimumPrice {
		terms.MinimumPrice = price
	}
	return price, ratio, nil
}

// MaxPayout reports the largest single payout currently allowed: basis points
// of current total debt. The basis intentionally tracks live debt, not the
// configured ceiling, so capacity moves with the book.
func (e *Engine) MaxPayout() (*big.Int, error) {
	terms, err := e.ensureTerms()
	if err != nil {
		return nil, err
	}
	current, err := e.CurrentDebt()
	if err != nil {
		return nil, err
	}
	return mulDiv(current, new(big.Int).SetUint64(terms.MaxPayoutBps), basisPoints), nil
}

// adjustControlVariable performs one lazy drift step toward the target when
// the buffer interval has elapsed. Mutates terms and adjustment in memory;
// the caller persists and emits. Returns whether a step occurred and the
// control variable prior to the step.
func (e *Engine) adjustControlVariable(terms *Terms, adjustment *Adjustment) (bool, uint64) {
	if terms == nil || adjustment == nil || adjustment.Rate == 0 {
		return false, 0
	}
	if e.blockHeight < adjustment.LastBlock+adjustment.Buffer {
		return false, 0
	}
	initial := terms.ControlVariable
	if adjustment.Increasing {
		terms.ControlVariable += adjustment.Rate
		if terms.ControlVariable >= adjustment.Target {
			terms.ControlVariable = adjustment.Target
			adjustment.Rate = 0
		}
	} else {
		// A decreasing drift only ever moves the control variable down. A
		// stale target at or above the current value cancels the adjustment
		// instead of snapping to it.
		if terms.ControlVariable > adjustment.Rate && terms.ControlVariable-adjustment.Rate > adjustment.Target {
			terms.ControlVariable -= adjustment.Rate
		} else {
			if adjustment.Target < terms.ControlVariable {
				terms.ControlVariable = adjustment.Target
			}
			adjustment.Rate = 0
		}
	}
	adjustment.LastBlock = e.blockHeight
	return true, initial
}
