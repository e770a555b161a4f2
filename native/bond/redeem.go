package bond

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"bondengine/core/events"
	nativecommon "bondengine/native/common"
)

// percentVested returns the vested fraction of a record in basis points,
// capped at 10000. A zero vesting window counts as fully vested.
func percentVested(record *BondRecord, height uint64) uint64 {
	if record == nil {
		return 0
	}
	if record.VestingBlocks == 0 {
		return 10_000
	}
	if height <= record.LastBlock {
		return 0
	}
	elapsed := height - record.LastBlock
	vested := elapsed * 10_000 / record.VestingBlocks
	if vested > 10_000 {
		return 10_000
	}
	return vested
}

// PercentVestedFor reports the vested fraction for the depositor in basis
// points.
func (e *Engine) PercentVestedFor(depositor common.Address) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	record, err := e.state.GetBondRecord(e.bondID, depositor)
	if err != nil {
		return 0, err
	}
	if record == nil {
		return 0, nil
	}
	return percentVested(record, e.blockHeight), nil
}

// PendingPayoutFor reports the payout currently claimable by the depositor.
func (e *Engine) PendingPayoutFor(depositor common.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	record, err := e.state.GetBondRecord(e.bondID, depositor)
	if err != nil {
		return nil, err
	}
	if record == nil || record.PayoutOwed == nil {
		return big.NewInt(0), nil
	}
	vested := percentVested(record, e.blockHeight)
	if vested >= 10_000 {
		return new(big.Int).Set(record.PayoutOwed), nil
	}
	return mulDiv(record.PayoutOwed, new(big.Int).SetUint64(vested), basisPoints), nil
}

// Redeem pays out the vested portion of the recipient's bond. A full vest
// closes the record; a partial one reduces the owed payout while the original
// vesting schedule keeps running. The treasury transfer happens before the
// ledger commit so a treasury failure leaves the record untouched.
func (e *Engine) Redeem(recipient common.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.treasury == nil {
		return nil, errNilTreasury
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}

	record, err := e.state.GetBondRecord(e.bondID, recipient)
	if err != nil {
		return nil, err
	}
	if record == nil || record.PayoutOwed == nil || record.PayoutOwed.Sign() == 0 {
		return nil, ErrNoActiveBond
	}

	vestedBps := percentVested(record, e.blockHeight)
	var vestedAmount, remaining *big.Int
	fullyVested := vestedBps >= 10_000
	if fullyVested {
		vestedAmount = new(big.Int).Set(record.PayoutOwed)
		remaining = big.NewInt(0)
	} else {
		vestedAmount = mulDiv(record.PayoutOwed, new(big.Int).SetUint64(vestedBps), basisPoints)
		remaining = new(big.Int).Sub(record.PayoutOwed, vestedAmount)
	}

	if vestedAmount.Sign() > 0 {
		if err := e.treasury.Payout(e.bondID, recipient, vestedAmount); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrTreasuryUnavailable, err)
		}
	}

	if fullyVested {
		if err := e.state.DeleteBondRecord(e.bondID, recipient); err != nil {
			return nil, err
		}
	} else {
		record.PayoutOwed = remaining
		if err := e.state.PutBondRecord(e.bondID, record); err != nil {
			return nil, err
		}
	}

	e.emit(events.BondRedeemed{
		BondID:    e.bondID,
		Recipient: recipient,
		Payout:    new(big.Int).Set(vestedAmount),
		Remaining: new(big.Int).Set(remaining),
	}.Event())

	return vestedAmount, nil
}
