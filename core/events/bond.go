package events

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"bondengine/core/types"
)

const (
	TypeBondCreated             = "bond.created"
	TypeBondPriceChanged        = "bond.price_changed"
	TypeBondRedeemed            = "bond.redeemed"
	TypeBondLPMinted            = "bond.lp_minted"
	TypeControlVariableAdjusted = "bond.control_variable_adjusted"
)

// BondCreated records a settled deposit: the principal locked, the payout
// owed and the block at which the claim is fully vested.
type BondCreated struct {
	BondID    string
	Depositor common.Address
	Deposit   *big.Int
	Payout    *big.Int
	Expires   uint64
}

func (BondCreated) EventType() string { return TypeBondCreated }

func (e BondCreated) Event() *types.Event {
	return &types.Event{
		Type: TypeBondCreated,
		Attributes: map[string]string{
			"bondId":    e.BondID,
			"depositor": e.Depositor.Hex(),
			"deposit":   formatAmount(e.Deposit),
			"payout":    formatAmount(e.Payout),
			"expires":   strconv.FormatUint(e.Expires, 10),
		},
	}
}

// BondPriceChanged captures the internal price and debt ratio observed at the
// moment a deposit committed.
type BondPriceChanged struct {
	BondID        string
	InternalPrice uint64
	DebtRatio     *big.Int
}

func (BondPriceChanged) EventType() string { return TypeBondPriceChanged }

func (e BondPriceChanged) Event() *types.Event {
	return &types.Event{
		Type: TypeBondPriceChanged,
		Attributes: map[string]string{
			"bondId":        e.BondID,
			"internalPrice": strconv.FormatUint(e.InternalPrice, 10),
			"debtRatio":     formatAmount(e.DebtRatio),
		},
	}
}

// BondRedeemed records a vested payout transfer and the amount still owed.
type BondRedeemed struct {
	BondID    string
	Recipient common.Address
	Payout    *big.Int
	Remaining *big.Int
}

func (BondRedeemed) EventType() string { return TypeBondRedeemed }

func (e BondRedeemed) Event() *types.Event {
	return &types.Event{
		Type: TypeBondRedeemed,
		Attributes: map[string]string{
			"bondId":    e.BondID,
			"recipient": e.Recipient.Hex(),
			"payout":    formatAmount(e.Payout),
			"remaining": formatAmount(e.Remaining),
		},
	}
}

// LPMinted is emitted on swap-and-provide deposits when the converter mints a
// principal LP token on behalf of the depositor.
type LPMinted struct {
	BondID   string
	LPAsset  string
	LPAmount *big.Int
}

func (LPMinted) EventType() string { return TypeBondLPMinted }

func (e LPMinted) Event() *types.Event {
	return &types.Event{
		Type: TypeBondLPMinted,
		Attributes: map[string]string{
			"bondId":   e.BondID,
			"lpAsset":  normalizeAsset(e.LPAsset),
			"lpAmount": formatAmount(e.LPAmount),
		},
	}
}

// ControlVariableAdjusted records a lazy drift step of the control variable
// toward its target.
type ControlVariableAdjusted struct {
	BondID  string
	Initial uint64
	New     uint64
	Target  uint64
	Rate    uint64
}

func (ControlVariableAdjusted) EventType() string { return TypeControlVariableAdjusted }

func (e ControlVariableAdjusted) Event() *types.Event {
	return &types.Event{
		Type: TypeControlVariableAdjusted,
		Attributes: map[string]string{
			"bondId":  e.BondID,
			"initial": strconv.FormatUint(e.Initial, 10),
			"new":     strconv.FormatUint(e.New, 10),
			"target":  strconv.FormatUint(e.Target, 10),
			"rate":    strconv.FormatUint(e.Rate, 10),
		},
	}
}
