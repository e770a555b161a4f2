package bond

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TermField selects which bond term SetBondTerms mutates.
type TermField uint8

const (
	TermVesting TermField = iota
	TermMaxPayout
	TermMaxDebt
)

// Terms captures the pricing configuration of a bond instance. ControlVariable
// scales the debt ratio into a price, MinimumPrice is the ratcheting floor and
// MaxPayoutBps bounds a single payout as basis points of current total debt.
type Terms struct {
	ControlVariable   uint64
	VestingTermBlocks uint64
	MinimumPrice      uint64
	MaxPayoutBps      uint64
	MaxDebt           *big.Int
}

// Clone returns a deep copy of the terms.
func (t *Terms) Clone() *Terms {
	if t == nil {
		return nil
	}
	clone := *t
	if t.MaxDebt != nil {
		clone.MaxDebt = new(big.Int).Set(t.MaxDebt)
	}
	return &clone
}

// Adjustment describes an in-flight, rate-limited drift of the control
// variable toward a target. A zero Rate means no adjustment is scheduled.
type Adjustment struct {
	Increasing bool
	Rate       uint64
	Target     uint64
	Buffer     uint64
	LastBlock  uint64
}

// Clone returns a copy of the adjustment.
func (a *Adjustment) Clone() *Adjustment {
	if a == nil {
		return nil
	}
	clone := *a
	return &clone
}

// DebtState tracks outstanding debt and the block of the last decay
// checkpoint. TotalDebt is denominated in payout-asset base units.
type DebtState struct {
	TotalDebt      *big.Int
	LastDecayBlock uint64
}

// Clone returns a deep copy of the debt state.
func (d *DebtState) Clone() *DebtState {
	if d == nil {
		return nil
	}
	clone := &DebtState{LastDecayBlock: d.LastDecayBlock}
	if d.TotalDebt != nil {
		clone.TotalDebt = new(big.Int).Set(d.TotalDebt)
	}
	return clone
}

// BondRecord is the per-depositor vesting position. PayoutOwed shrinks on
// partial redemption while LastBlock stays fixed so the remainder keeps
// vesting on the original schedule.
type BondRecord struct {
	Depositor     common.Address
	PayoutOwed    *big.Int
	VestingBlocks uint64
	LastBlock     uint64
	PricePaid     uint64
}

// Clone returns a deep copy of the record.
func (r *BondRecord) Clone() *BondRecord {
	if r == nil {
		return nil
	}
	clone := *r
	if r.PayoutOwed != nil {
		clone.PayoutOwed = new(big.Int).Set(r.PayoutOwed)
	}
	return &clone
}

// Totals accumulates lifetime principal bonded and payout granted. Principal
// bonded drives fee tier selection.
type Totals struct {
	PrincipalBonded *big.Int
	PayoutGiven     *big.Int
}

// Clone returns a deep copy of the totals.
func (t *Totals) Clone() *Totals {
	if t == nil {
		return nil
	}
	clone := &Totals{}
	if t.PrincipalBonded != nil {
		clone.PrincipalBonded = new(big.Int).Set(t.PrincipalBonded)
	}
	if t.PayoutGiven != nil {
		clone.PayoutGiven = new(big.Int).Set(t.PayoutGiven)
	}
	return clone
}

// FeeTier maps a principal-bonded ceiling to a fee rate in millionths of the
// settled amount. A nil Ceiling marks the open-ended top tier.
type FeeTier struct {
	Ceiling   *big.Int
	RateMilli uint64
}

// Clone returns a deep copy of the tier.
func (f FeeTier) Clone() FeeTier {
	clone := f
	if f.Ceiling != nil {
		clone.Ceiling = new(big.Int).Set(f.Ceiling)
	}
	return clone
}
