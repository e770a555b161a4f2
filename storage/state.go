package storage

import (
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"bondengine/core/types"
	"bondengine/native/bond"
)

var errNilStorage = errors.New("state: storage not configured")

// State adapts a Storage backend into the account and bond state surfaces the
// native modules consume. Stored records are RLP encoded; account balance maps
// are flattened into asset-sorted slices because RLP cannot encode maps.
type State struct {
	store Storage
}

// NewState wraps a Storage backend.
func NewState(store Storage) *State {
	return &State{store: store}
}

func accountKey(addr common.Address) []byte {
	return []byte("account/" + addr.Hex())
}

func bondKey(bondID, suffix string) []byte {
	return []byte("bond/" + strings.TrimSpace(bondID) + "/" + suffix)
}

func recordKey(bondID string, depositor common.Address) []byte {
	return bondKey(bondID, "record/"+depositor.Hex())
}

type storedBalance struct {
	Asset  string
	Amount *big.Int
}

type storedAccount struct {
	Nonce    uint64
	Balances []storedBalance
}

type storedTerms struct {
	ControlVariable   uint64
	VestingTermBlocks uint64
	MinimumPrice      uint64
	MaxPayoutBps      uint64
	MaxDebt           *big.Int
}

type storedAdjustment struct {
	Increasing bool
	Rate       uint64
	Target     uint64
	Buffer     uint64
	LastBlock  uint64
}

type storedDebt struct {
	TotalDebt      *big.Int
	LastDecayBlock uint64
}

type storedTotals struct {
	PrincipalBonded *big.Int
	PayoutGiven     *big.Int
}

type storedBondRecord struct {
	Depositor     common.Address
	PayoutOwed    *big.Int
	VestingBlocks uint64
	LastBlock     uint64
	PricePaid     uint64
}

// GetAccount loads the account at addr, or nil when none is stored.
func (s *State) GetAccount(addr common.Address) (*types.Account, error) {
	if s == nil || s.store == nil {
		return nil, errNilStorage
	}
	var stored storedAccount
	ok, err := s.store.KVGet(accountKey(addr), &stored)
	if err != nil {
		return nil, fmt.Errorf("state: load account %s: %w", addr.Hex(), err)
	}
	if !ok {
		return nil, nil
	}
	account := types.NewAccount()
	account.Nonce = stored.Nonce
	for _, balance := range stored.Balances {
		account.SetBalance(balance.Asset, balance.Amount)
	}
	return account, nil
}

// PutAccount persists the account at addr.
func (s *State) PutAccount(addr common.Address, account *types.Account) error {
	if s == nil || s.store == nil {
		return errNilStorage
	}
	if account == nil {
		return s.store.KVDelete(accountKey(addr))
	}
	stored := storedAccount{Nonce: account.Nonce}
	assets := make([]string, 0, len(account.Balances))
	for asset := range account.Balances {
		assets = append(assets, asset)
	}
	sort.Strings(assets)
	for _, asset := range assets {
		stored.Balances = append(stored.Balances, storedBalance{
			Asset:  asset,
			Amount: account.Balance(asset),
		})
	}
	return s.store.KVPut(accountKey(addr), &stored)
}

func (s *State) GetTerms(bondID string) (*bond.Terms, error) {
	if s == nil || s.store == nil {
		return nil, errNilStorage
	}
	var stored storedTerms
	ok, err := s.store.KVGet(bondKey(bondID, "terms"), &stored)
	if err != nil {
		return nil, fmt.Errorf("state: load terms %s: %w", bondID, err)
	}
	if !ok {
		return nil, nil
	}
	return &bond.Terms{
		ControlVariable:   stored.ControlVariable,
		VestingTermBlocks: stored.VestingTermBlocks,
		MinimumPrice:      stored.MinimumPrice,
		MaxPayoutBps:      stored.MaxPayoutBps,
		MaxDebt:           stored.MaxDebt,
	}, nil
}

func (s *State) PutTerms(bondID string, terms *bond.Terms) error {
	if s == nil || s.store == nil {
		return errNilStorage
	}
	if terms == nil {
		return s.store.KVDelete(bondKey(bondID, "terms"))
	}
	stored := storedTerms{
		ControlVariable:   terms.ControlVariable,
		VestingTermBlocks: terms.VestingTermBlocks,
		MinimumPrice:      terms.MinimumPrice,
		MaxPayoutBps:      terms.MaxPayoutBps,
		MaxDebt:           terms.MaxDebt,
	}
	return s.store.KVPut(bondKey(bondID, "terms"), &stored)
}

func (s *State) GetAdjustment(bondID string) (*bond.Adjustment, error) {
	if s == nil || s.store == nil {
		return nil, errNilStorage
	}
	var stored storedAdjustment
	ok, err := s.store.KVGet(bondKey(bondID, "adjustment"), &stored)
	if err != nil {
		return nil, fmt.Errorf("state: load adjustment %s: %w", bondID, err)
	}
	if !ok {
		return nil, nil
	}
	return &bond.Adjustment{
		Increasing: stored.Increasing,
		Rate:       stored.Rate,
		Target:     stored.Target,
		Buffer:     stored.Buffer,
		LastBlock:  stored.LastBlock,
	}, nil
}

func (s *State) PutAdjustment(bondID string, adjustment *bond.Adjustment) error {
	if s == nil || s.store == nil {
		return errNilStorage
	}
	if adjustment == nil {
		return s.store.KVDelete(bondKey(bondID, "adjustment"))
	}
	stored := storedAdjustment{
		Increasing: adjustment.Increasing,
		Rate:       adjustment.Rate,
		Target:     adjustment.Target,
		Buffer:     adjustment.Buffer,
		LastBlock:  adjustment.LastBlock,
	}
	return s.store.KVPut(bondKey(bondID, "adjustment"), &stored)
}

func (s *State) GetDebt(bondID string) (*bond.DebtState, error) {
	if s == nil || s.store == nil {
		return nil, errNilStorage
	}
	var stored storedDebt
	ok, err := s.store.KVGet(bondKey(bondID, "debt"), &stored)
	if err != nil {
		return nil, fmt.Errorf("state: load debt %s: %w", bondID, err)
	}
	if !ok {
		return nil, nil
	}
	return &bond.DebtState{TotalDebt: stored.TotalDebt, LastDecayBlock: stored.LastDecayBlock}, nil
}

func (s *State) PutDebt(bondID string, debt *bond.DebtState) error {
	if s == nil || s.store == nil {
		return errNilStorage
	}
	if debt == nil {
		return s.store.KVDelete(bondKey(bondID, "debt"))
	}
	stored := storedDebt{TotalDebt: debt.TotalDebt, LastDecayBlock: debt.LastDecayBlock}
	return s.store.KVPut(bondKey(bondID, "debt"), &stored)
}

func (s *State) GetTotals(bondID string) (*bond.Totals, error) {
	if s == nil || s.store == nil {
		return nil, errNilStorage
	}
	var stored storedTotals
	ok, err := s.store.KVGet(bondKey(bondID, "totals"), &stored)
	if err != nil {
		return nil, fmt.Errorf("state: load totals %s: %w", bondID, err)
	}
	if !ok {
		return nil, nil
	}
	return &bond.Totals{PrincipalBonded: stored.PrincipalBonded, PayoutGiven: stored.PayoutGiven}, nil
}

func (s *State) PutTotals(bondID string, totals *bond.Totals) error {
	if s == nil || s.store == nil {
		return errNilStorage
	}
	if totals == nil {
		return s.store.KVDelete(bondKey(bondID, "totals"))
	}
	stored := storedTotals{PrincipalBonded: totals.PrincipalBonded, PayoutGiven: totals.PayoutGiven}
	return s.store.KVPut(bondKey(bondID, "totals"), &stored)
}

func (s *State) GetBondRecord(bondID string, depositor common.Address) (*bond.BondRecord, error) {
	if s == nil || s.store == nil {
		return nil, errNilStorage
	}
	var stored storedBondRecord
	ok, err := s.store.KVGet(recordKey(bondID, depositor), &stored)
	if err != nil {
		return nil, fmt.Errorf("state: load bond record %s/%s: %w", bondID, depositor.Hex(), err)
	}
	if !ok {
		return nil, nil
	}
	return &bond.BondRecord{
		Depositor:     stored.Depositor,
		PayoutOwed:    stored.PayoutOwed,
		VestingBlocks: stored.VestingBlocks,
		LastBlock:     stored.LastBlock,
		PricePaid:     stored.PricePaid,
	}, nil
}

func (s *State) PutBondRecord(bondID string, record *bond.BondRecord) error {
	if s == nil || s.store == nil {
		return errNilStorage
	}
	if record == nil {
		return errors.New("state: nil bond record")
	}
	stored := storedBondRecord{
		Depositor:     record.Depositor,
		PayoutOwed:    record.PayoutOwed,
		VestingBlocks: record.VestingBlocks,
		LastBlock:     record.LastBlock,
		PricePaid:     record.PricePaid,
	}
	return s.store.KVPut(recordKey(bondID, record.Depositor), &stored)
}

func (s *State) DeleteBondRecord(bondID string, depositor common.Address) error {
	if s == nil || s.store == nil {
		return errNilStorage
	}
	return s.store.KVDelete(recordKey(bondID, depositor))
}
