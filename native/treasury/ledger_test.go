package treasury

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"bondengine/core/types"
)

type mockLedgerState struct {
	accounts map[common.Address]*types.Account
}

func newMockLedgerState() *mockLedgerState {
	return &mockLedgerState{accounts: make(map[common.Address]*types.Account)}
}

func (m *mockLedgerState) GetAccount(addr common.Address) (*types.Account, error) {
	return m.accounts[addr].Clone(), nil
}

func (m *mockLedgerState) PutAccount(addr common.Address, account *types.Account) error {
	m.accounts[addr] = account.Clone()
	return nil
}

func (m *mockLedgerState) fund(addr common.Address, asset string, amount int64) {
	acc := m.accounts[addr]
	if acc == nil {
		acc = types.NewAccount()
		m.accounts[addr] = acc
	}
	acc.SetBalance(asset, big.NewInt(amount))
}

func (m *mockLedgerState) balance(addr common.Address, asset string) *big.Int {
	return m.accounts[addr].Balance(asset)
}

func makeAddr(suffix byte) common.Address {
	var addr common.Address
	addr[common.AddressLength-1] = suffix
	return addr
}

var (
	custodyAddr = makeAddr(0x10)
	policyAddr  = makeAddr(0x20)
	userAddr    = makeAddr(0x30)
)

func newTestLedger() (*Ledger, *mockLedgerState) {
	ledger := NewLedger(custodyAddr, policyAddr, "PAY")
	state := newMockLedgerState()
	ledger.SetState(state)
	return ledger, state
}

func TestAuthorizePolicyGated(t *testing.T) {
	ledger, _ := newTestLedger()
	if err := ledger.Authorize(userAddr, "bond-1"); !errors.Is(err, ErrNotPolicy) {
		t.Fatalf("expected ErrNotPolicy, got %v", err)
	}
	if err := ledger.Authorize(policyAddr, "bond-1"); err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if !ledger.Authorized("bond-1") {
		t.Fatalf("bond not authorized")
	}
	if err := ledger.Revoke(policyAddr, "bond-1"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if ledger.Authorized("bond-1") {
		t.Fatalf("bond still authorized after revoke")
	}
}

func TestDepositPrincipalMovesIntoCustody(t *testing.T) {
	ledger, state := newTestLedger()
	if err := ledger.Authorize(policyAddr, "bond-1"); err != nil {
		t.Fatalf("authorize: %v", err)
	}
	state.fund(userAddr, "PRIN", 1_000)

	if err := ledger.DepositPrincipal("bond-1", userAddr, "PRIN", big.NewInt(400)); err != nil {
		t.Fatalf("deposit principal: %v", err)
	}
	if got := state.balance(userAddr, "PRIN"); got.Cmp(big.NewInt(600)) != 0 {
		t.Fatalf("depositor balance: %s", got)
	}
	if got := state.balance(custodyAddr, "PRIN"); got.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("custody balance: %s", got)
	}

	if err := ledger.DepositPrincipal("bond-1", userAddr, "PRIN", big.NewInt(700)); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if err := ledger.DepositPrincipal("bond-2", userAddr, "PRIN", big.NewInt(100)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for unknown bond, got %v", err)
	}
}

func TestReservePayoutBoundedByFreeBalance(t *testing.T) {
	ledger, state := newTestLedger()
	if err := ledger.Authorize(policyAddr, "bond-1"); err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if err := ledger.Authorize(policyAddr, "bond-2"); err != nil {
		t.Fatalf("authorize: %v", err)
	}
	state.fund(custodyAddr, "PAY", 1_000)

	if err := ledger.ReservePayout("bond-1", big.NewInt(600)); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if got := ledger.Reserved("bond-1"); got.Cmp(big.NewInt(600)) != 0 {
		t.Fatalf("reserved: %s", got)
	}

	// Only 400 remains unreserved across all bonds.
	if err := ledger.ReservePayout("bond-2", big.NewInt(500)); !errors.Is(err, ErrInsufficientReserve) {
		t.Fatalf("expected ErrInsufficientReserve, got %v", err)
	}
	if err := ledger.ReservePayout("bond-2", big.NewInt(400)); err != nil {
		t.Fatalf("reserve remainder: %v", err)
	}
}

func TestReleasePayoutFreesReservation(t *testing.T) {
	ledger, state := newTestLedger()
	if err := ledger.Authorize(policyAddr, "bond-1"); err != nil {
		t.Fatalf("authorize: %v", err)
	}
	state.fund(custodyAddr, "PAY", 1_000)
	if err := ledger.ReservePayout("bond-1", big.NewInt(800)); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	if err := ledger.ReleasePayout("bond-1", big.NewInt(300)); err != nil {
		t.Fatalf("release: %v", err)
	}
	if got := ledger.Reserved("bond-1"); got.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("remaining reservation: %s", got)
	}
	// No balances move on a release.
	if got := state.balance(custodyAddr, "PAY"); got.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("custody balance changed on release: %s", got)
	}

	if err := ledger.ReleasePayout("bond-1", big.NewInt(600)); !errors.Is(err, ErrInsufficientReserve) {
		t.Fatalf("expected ErrInsufficientReserve, got %v", err)
	}
	if err := ledger.ReleasePayout("bond-2", big.NewInt(100)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestRefundPrincipalReturnsCustody(t *testing.T) {
	ledger, state := newTestLedger()
	if err := ledger.Authorize(policyAddr, "bond-1"); err != nil {
		t.Fatalf("authorize: %v", err)
	}
	state.fund(userAddr, "PRIN", 1_000)
	if err := ledger.DepositPrincipal("bond-1", userAddr, "PRIN", big.NewInt(1_000)); err != nil {
		t.Fatalf("deposit principal: %v", err)
	}

	if err := ledger.RefundPrincipal("bond-1", userAddr, "PRIN", big.NewInt(1_000)); err != nil {
		t.Fatalf("refund: %v", err)
	}
	if got := state.balance(userAddr, "PRIN"); got.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("depositor balance after refund: %s", got)
	}
	if got := state.balance(custodyAddr, "PRIN"); got.Sign() != 0 {
		t.Fatalf("custody balance after refund: %s", got)
	}

	if err := ledger.RefundPrincipal("bond-1", userAddr, "PRIN", big.NewInt(1)); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if err := ledger.RefundPrincipal("bond-2", userAddr, "PRIN", big.NewInt(1)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestPayoutReleasesReservation(t *testing.T) {
	ledger, state := newTestLedger()
	if err := ledger.Authorize(policyAddr, "bond-1"); err != nil {
		t.Fatalf("authorize: %v", err)
	}
	state.fund(custodyAddr, "PAY", 1_000)
	if err := ledger.ReservePayout("bond-1", big.NewInt(600)); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	if err := ledger.Payout("bond-1", userAddr, big.NewInt(250)); err != nil {
		t.Fatalf("payout: %v", err)
	}
	if got := state.balance(userAddr, "PAY"); got.Cmp(big.NewInt(250)) != 0 {
		t.Fatalf("recipient balance: %s", got)
	}
	if got := state.balance(custodyAddr, "PAY"); got.Cmp(big.NewInt(750)) != 0 {
		t.Fatalf("custody balance: %s", got)
	}
	if got := ledger.Reserved("bond-1"); got.Cmp(big.NewInt(350)) != 0 {
		t.Fatalf("remaining reservation: %s", got)
	}

	// A payout above the open reservation is rejected even with funds on hand.
	if err := ledger.Payout("bond-1", userAddr, big.NewInt(400)); !errors.Is(err, ErrInsufficientReserve) {
		t.Fatalf("expected ErrInsufficientReserve, got %v", err)
	}
}

func TestWithdrawRefusesReservedFunds(t *testing.T) {
	ledger, state := newTestLedger()
	if err := ledger.Authorize(policyAddr, "bond-1"); err != nil {
		t.Fatalf("authorize: %v", err)
	}
	state.fund(custodyAddr, "PAY", 1_000)
	state.fund(custodyAddr, "PRIN", 500)
	if err := ledger.ReservePayout("bond-1", big.NewInt(800)); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	if err := ledger.Withdraw(userAddr, "PAY", userAddr, big.NewInt(100)); !errors.Is(err, ErrNotPolicy) {
		t.Fatalf("expected ErrNotPolicy, got %v", err)
	}
	if err := ledger.Withdraw(policyAddr, "PAY", userAddr, big.NewInt(300)); !errors.Is(err, ErrReservedFunds) {
		t.Fatalf("expected ErrReservedFunds, got %v", err)
	}
	if err := ledger.Withdraw(policyAddr, "PAY", userAddr, big.NewInt(200)); err != nil {
		t.Fatalf("withdraw free payout: %v", err)
	}
	// Non-payout assets are never encumbered by the reserve.
	if err := ledger.Withdraw(policyAddr, "PRIN", userAddr, big.NewInt(500)); err != nil {
		t.Fatalf("withdraw principal: %v", err)
	}
	if got := state.balance(userAddr, "PRIN"); got.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("recipient principal: %s", got)
	}
}
