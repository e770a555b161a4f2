package subsidy

import (
	"errors"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"bondengine/core/types"
)

var (
	errNilState      = errors.New("subsidy router: state not configured")
	errInvalidAmount = errors.New("subsidy router: amount must be positive")
	ErrInsufficient  = errors.New("subsidy router: source balance too low")
)

type routerState interface {
	GetAccount(addr common.Address) (*types.Account, error)
	PutAccount(addr common.Address, account *types.Account) error
}

// Router forwards skimmed bond fees from the treasury custody account into
// the subsidy pool and keeps per-asset running totals for reconciliation.
type Router struct {
	state     routerState
	source    common.Address
	pool      common.Address
	collected map[string]*big.Int
}

// NewRouter constructs a router draining fees from source into pool.
func NewRouter(source, pool common.Address) *Router {
	return &Router{
		source:    source,
		pool:      pool,
		collected: make(map[string]*big.Int),
	}
}

// SetState wires the router to the account state.
func (r *Router) SetState(state routerState) { r.state = state }

// RouteFee moves the fee from the source account to the subsidy pool. A
// failure here propagates to the caller; fees are never silently dropped.
func (r *Router) RouteFee(asset string, amount *big.Int) error {
	if r == nil || r.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	sourceAcc, err := r.state.GetAccount(r.source)
	if err != nil {
		return err
	}
	if sourceAcc == nil {
		sourceAcc = types.NewAccount()
	}
	if sourceAcc.Balance(asset).Cmp(amount) < 0 {
		return ErrInsufficient
	}
	poolAcc, err := r.state.GetAccount(r.pool)
	if err != nil {
		return err
	}
	if poolAcc == nil {
		poolAcc = types.NewAccount()
	}
	sourceAcc.SetBalance(asset, new(big.Int).Sub(sourceAcc.Balance(asset), amount))
	poolAcc.SetBalance(asset, new(big.Int).Add(poolAcc.Balance(asset), amount))
	if err := r.state.PutAccount(r.source, sourceAcc); err != nil {
		return err
	}
	if err := r.state.PutAccount(r.pool, poolAcc); err != nil {
		return err
	}
	key := strings.ToUpper(strings.TrimSpace(asset))
	total := r.collected[key]
	if total == nil {
		total = big.NewInt(0)
	}
	r.collected[key] = new(big.Int).Add(total, amount)
	return nil
}

// Collected reports the lifetime fees routed for the asset.
func (r *Router) Collected(asset string) *big.Int {
	if r == nil {
		return big.NewInt(0)
	}
	if total, ok := r.collected[strings.ToUpper(strings.TrimSpace(asset))]; ok && total != nil {
		return new(big.Int).Set(total)
	}
	return big.NewInt(0)
}
