package swap

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

var ErrUnknownAsset = errors.New("swap oracle: unknown asset")

// SupplyBook is a static payout-supply oracle keyed by asset symbol. Supplies
// are set by the operator; a missing entry is an error, never a zero.
type SupplyBook struct {
	supplies map[string]*big.Int
}

// NewSupplyBook returns an empty supply book.
func NewSupplyBook() *SupplyBook {
	return &SupplyBook{supplies: make(map[string]*big.Int)}
}

// SetSupply records the circulating supply for an asset.
func (b *SupplyBook) SetSupply(asset string, supply *big.Int) {
	if b == nil || supply == nil {
		return
	}
	b.supplies[normalize(asset)] = new(big.Int).Set(supply)
}

// TotalSupply reports the recorded supply for the asset.
func (b *SupplyBook) TotalSupply(asset string) (*big.Int, error) {
	if b == nil {
		return nil, ErrUnknownAsset
	}
	supply, ok := b.supplies[normalize(asset)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAsset, asset)
	}
	return new(big.Int).Set(supply), nil
}

func normalize(asset string) string {
	return strings.ToUpper(strings.TrimSpace(asset))
}
