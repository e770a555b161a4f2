package treasury

import (
	"errors"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"bondengine/core/events"
	"bondengine/core/types"
	nativecommon "bondengine/native/common"
)

const moduleName = "treasury"

var (
	errNilState            = errors.New("treasury ledger: state not configured")
	errInvalidAmount       = errors.New("treasury ledger: amount must be positive")
	errNoBondID            = errors.New("treasury ledger: bond identifier required")
	ErrUnauthorized        = errors.New("treasury ledger: bond not authorized")
	ErrNotPolicy           = errors.New("treasury ledger: caller is not policy")
	ErrInsufficientReserve = errors.New("treasury ledger: insufficient payout reserve")
	ErrInsufficientFunds   = errors.New("treasury ledger: insufficient balance")
	ErrReservedFunds       = errors.New("treasury ledger: amount exceeds unreserved balance")
)

type ledgerState interface {
	GetAccount(addr common.Address) (*types.Account, error)
	PutAccount(addr common.Address, account *types.Account) error
}

type ledgerEvent struct {
	evt *types.Event
}

func (e ledgerEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e ledgerEvent) Event() *types.Event { return e.evt }

// Ledger is the shared payout-asset reserve for the bond instances it
// services. It is a pass-through reserve: every outbound transfer is backed by
// a prior balance, never minted.
type Ledger struct {
	state       ledgerState
	custody     common.Address
	policy      common.Address
	payoutAsset string
	authorized  map[string]bool
	reserved    map[string]*big.Int
	emitter     events.Emitter
	pauses      nativecommon.PauseView
}

// NewLedger constructs a treasury ledger holding its reserve in the custody
// account.
func NewLedger(custody, policy common.Address, payoutAsset string) *Ledger {
	return &Ledger{
		custody:     custody,
		policy:      policy,
		payoutAsset: strings.TrimSpace(payoutAsset),
		authorized:  make(map[string]bool),
		reserved:    make(map[string]*big.Int),
		emitter:     events.NoopEmitter{},
	}
}

// SetState wires the ledger to the external persistence layer.
func (l *Ledger) SetState(state ledgerState) { l.state = state }

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if l == nil {
		return
	}
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

// SetPauses wires the module pause switch.
func (l *Ledger) SetPauses(p nativecommon.PauseView) {
	if l == nil {
		return
	}
	l.pauses = p
}

// Custody returns the treasury custody address.
func (l *Ledger) Custody() common.Address {
	if l == nil {
		return common.Address{}
	}
	return l.custody
}

// PayoutAsset returns the asset the treasury settles redemptions in.
func (l *Ledger) PayoutAsset() string {
	if l == nil {
		return ""
	}
	return l.payoutAsset
}

func (l *Ledger) emit(event *types.Event) {
	if l == nil || l.emitter == nil || event == nil {
		return
	}
	l.emitter.Emit(ledgerEvent{evt: event})
}

// Authorize permits a bond instance to draw on the reserve. Policy gated.
func (l *Ledger) Authorize(caller common.Address, bondID string) error {
	return l.toggle(caller, bondID, true)
}

// Revoke removes a bond instance's draw permission. Policy gated.
func (l *Ledger) Revoke(caller common.Address, bondID string) error {
	return l.toggle(caller, bondID, false)
}

func (l *Ledger) toggle(caller common.Address, bondID string, enabled bool) error {
	if l == nil {
		return errNilState
	}
	if caller != l.policy {
		return ErrNotPolicy
	}
	trimmed := strings.TrimSpace(bondID)
	if trimmed == "" {
		return errNoBondID
	}
	l.authorized[trimmed] = enabled
	l.emit(events.TreasuryBondToggled{BondID: trimmed, Enabled: enabled}.Event())
	return nil
}

// Authorized reports whether the bond instance may draw the reserve.
func (l *Ledger) Authorized(bondID string) bool {
	if l == nil {
		return false
	}
	return l.authorized[strings.TrimSpace(bondID)]
}

// Reserved reports the payout amount reserved for the bond instance.
func (l *Ledger) Reserved(bondID string) *big.Int {
	if l == nil {
		return big.NewInt(0)
	}
	if amount, ok := l.reserved[strings.TrimSpace(bondID)]; ok && amount != nil {
		return new(big.Int).Set(amount)
	}
	return big.NewInt(0)
}

func (l *Ledger) totalReserved() *big.Int {
	total := big.NewInt(0)
	for _, amount := range l.reserved {
		if amount != nil {
			total.Add(total, amount)
		}
	}
	return total
}

func (l *Ledger) loadAccount(addr common.Address) (*types.Account, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	acc, err := l.state.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		acc = types.NewAccount()
	}
	return acc, nil
}

// DepositPrincipal moves a depositor's principal into treasury custody on
// behalf of an authorized bond instance.
func (l *Ledger) DepositPrincipal(bondID string, from common.Address, asset string, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(l.pauses, moduleName); err != nil {
		return err
	}
	if !l.Authorized(bondID) {
		return ErrUnauthorized
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	fromAcc, err := l.loadAccount(from)
	if err != nil {
		return err
	}
	if fromAcc.Balance(asset).Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	custodyAcc, err := l.loadAccount(l.custody)
	if err != nil {
		return err
	}
	fromAcc.SetBalance(asset, new(big.Int).Sub(fromAcc.Balance(asset), amount))
	custodyAcc.SetBalance(asset, new(big.Int).Add(custodyAcc.Balance(asset), amount))
	if err := l.state.PutAccount(from, fromAcc); err != nil {
		return err
	}
	return l.state.PutAccount(l.custody, custodyAcc)
}

// ReservePayout earmarks payout-asset reserve for a bond's future
// redemptions. Fails when the unreserved balance cannot back the new
// obligation.
func (l *Ledger) ReservePayout(bondID string, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(l.pauses, moduleName); err != nil {
		return err
	}
	trimmed := strings.TrimSpace(bondID)
	if !l.Authorized(trimmed) {
		return ErrUnauthorized
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	custodyAcc, err := l.loadAccount(l.custody)
	if err != nil {
		return err
	}
	free := new(big.Int).Sub(custodyAcc.Balance(l.payoutAsset), l.totalReserved())
	if free.Cmp(amount) < 0 {
		return ErrInsufficientReserve
	}
	current := l.reserved[trimmed]
	if current == nil {
		current = big.NewInt(0)
	}
	l.reserved[trimmed] = new(big.Int).Add(current, amount)
	return nil
}

// ReleasePayout drops part of a bond's reservation without moving balances.
// Used when a settlement step after the reserve aborts, and when a reserved
// fee has left custody. No pause guard: unwinding must work even while the
// module is halted.
func (l *Ledger) ReleasePayout(bondID string, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	trimmed := strings.TrimSpace(bondID)
	if !l.Authorized(trimmed) {
		return ErrUnauthorized
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	reserved := l.reserved[trimmed]
	if reserved == nil || reserved.Cmp(amount) < 0 {
		return ErrInsufficientReserve
	}
	l.reserved[trimmed] = new(big.Int).Sub(reserved, amount)
	return nil
}

// RefundPrincipal returns custodied principal to the depositor when a later
// settlement step aborts the deposit. No pause guard, same as ReleasePayout.
func (l *Ledger) RefundPrincipal(bondID string, to common.Address, asset string, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if !l.Authorized(bondID) {
		return ErrUnauthorized
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	custodyAcc, err := l.loadAccount(l.custody)
	if err != nil {
		return err
	}
	if custodyAcc.Balance(asset).Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	toAcc, err := l.loadAccount(to)
	if err != nil {
		return err
	}
	custodyAcc.SetBalance(asset, new(big.Int).Sub(custodyAcc.Balance(asset), amount))
	toAcc.SetBalance(asset, new(big.Int).Add(toAcc.Balance(asset), amount))
	if err := l.state.PutAccount(l.custody, custodyAcc); err != nil {
		return err
	}
	return l.state.PutAccount(to, toAcc)
}

// Payout settles a redemption: transfers the payout asset to the recipient
// and releases the matching reservation.
func (l *Ledger) Payout(bondID string, recipient common.Address, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(l.pauses, moduleName); err != nil {
		return err
	}
	trimmed := strings.TrimSpace(bondID)
	if !l.Authorized(trimmed) {
		return ErrUnauthorized
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	custodyAcc, err := l.loadAccount(l.custody)
	if err != nil {
		return err
	}
	if custodyAcc.Balance(l.payoutAsset).Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	reserved := l.reserved[trimmed]
	if reserved == nil || reserved.Cmp(amount) < 0 {
		return ErrInsufficientReserve
	}
	recipientAcc, err := l.loadAccount(recipient)
	if err != nil {
		return err
	}
	custodyAcc.SetBalance(l.payoutAsset, new(big.Int).Sub(custodyAcc.Balance(l.payoutAsset), amount))
	recipientAcc.SetBalance(l.payoutAsset, new(big.Int).Add(recipientAcc.Balance(l.payoutAsset), amount))
	if err := l.state.PutAccount(l.custody, custodyAcc); err != nil {
		return err
	}
	if err := l.state.PutAccount(recipient, recipientAcc); err != nil {
		return err
	}
	l.reserved[trimmed] = new(big.Int).Sub(reserved, amount)
	l.emit(events.TreasuryPayout{
		BondID:    trimmed,
		Recipient: recipient,
		Asset:     l.payoutAsset,
		Amount:    new(big.Int).Set(amount),
	}.Event())
	return nil
}

// Withdraw releases unreserved funds to the recipient. Policy gated; payout
// reserve earmarked for redemptions can never be withdrawn.
func (l *Ledger) Withdraw(caller common.Address, asset string, recipient common.Address, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if caller != l.policy {
		return ErrNotPolicy
	}
	if err := nativecommon.Guard(l.pauses, moduleName); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	custodyAcc, err := l.loadAccount(l.custody)
	if err != nil {
		return err
	}
	available := custodyAcc.Balance(asset)
	if asset == l.payoutAsset {
		available = new(big.Int).Sub(available, l.totalReserved())
	}
	if available.Cmp(amount) < 0 {
		return ErrReservedFunds
	}
	recipientAcc, err := l.loadAccount(recipient)
	if err != nil {
		return err
	}
	custodyAcc.SetBalance(asset, new(big.Int).Sub(custodyAcc.Balance(asset), amount))
	recipientAcc.SetBalance(asset, new(big.Int).Add(recipientAcc.Balance(asset), amount))
	if err := l.state.PutAccount(l.custody, custodyAcc); err != nil {
		return err
	}
	if err := l.state.PutAccount(recipient, recipientAcc); err != nil {
		return err
	}
	l.emit(events.TreasuryWithdraw{
		Recipient: recipient,
		Asset:     asset,
		Amount:    new(big.Int).Set(amount),
	}.Event())
	return nil
}
