package events

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"bondengine/core/types"
)

const (
	TypeTreasuryBondToggled = "treasury.bond_toggled"
	TypeTreasuryPayout      = "treasury.payout"
	TypeTreasuryWithdraw    = "treasury.withdraw"
)

// TreasuryBondToggled records an authorization flip for a bond instance.
type TreasuryBondToggled struct {
	BondID  string
	Enabled bool
}

func (TreasuryBondToggled) EventType() string { return TypeTreasuryBondToggled }

func (e TreasuryBondToggled) Event() *types.Event {
	return &types.Event{
		Type: TypeTreasuryBondToggled,
		Attributes: map[string]string{
			"bondId":  e.BondID,
			"enabled": strconv.FormatBool(e.Enabled),
		},
	}
}

// TreasuryPayout records an outbound payout-asset transfer settled against a
// bond's reservation.
type TreasuryPayout struct {
	BondID    string
	Recipient common.Address
	Asset     string
	Amount    *big.Int
}

func (TreasuryPayout) EventType() string { return TypeTreasuryPayout }

func (e TreasuryPayout) Event() *types.Event {
	return &types.Event{
		Type: TypeTreasuryPayout,
		Attributes: map[string]string{
			"bondId":    e.BondID,
			"recipient": e.Recipient.Hex(),
			"asset":     normalizeAsset(e.Asset),
			"amount":    formatAmount(e.Amount),
		},
	}
}

// TreasuryWithdraw records a policy withdrawal of unreserved funds.
type TreasuryWithdraw struct {
	Recipient common.Address
	Asset     string
	Amount    *big.Int
}

func (TreasuryWithdraw) EventType() string { return TypeTreasuryWithdraw }

func (e TreasuryWithdraw) Event() *types.Event {
	return &types.Event{
		Type: TypeTreasuryWithdraw,
		Attributes: map[string]string{
			"recipient": e.Recipient.Hex(),
			"asset":     normalizeAsset(e.Asset),
			"amount":    formatAmount(e.Amount),
		},
	}
}
