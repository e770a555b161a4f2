package swap

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"bondengine/core/types"
)

var (
	errNilState        = errors.New("swap exchange: state not configured")
	errInvalidAmount   = errors.New("swap exchange: amount must be positive")
	ErrPathUnavailable = errors.New("swap exchange: no rate for pair")
	ErrNoLiquidity     = errors.New("swap exchange: insufficient pool inventory")
	ErrNoPair          = errors.New("swap exchange: liquidity pair not listed")
	ErrInsufficient    = errors.New("swap exchange: insufficient balance")
)

type exchangeState interface {
	GetAccount(addr common.Address) (*types.Account, error)
	PutAccount(addr common.Address, account *types.Account) error
}

// Rate converts amounts of one asset into another in base units:
// out = in * Num / Den, truncating.
type Rate struct {
	Num *big.Int
	Den *big.Int
}

// Apply converts an amount through the rate.
func (r Rate) Apply(amount *big.Int) *big.Int {
	if amount == nil || r.Num == nil || r.Den == nil || r.Den.Sign() == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(amount, r.Num)
	return out.Quo(out, r.Den)
}

// Pair names a listed liquidity pair and the LP token it mints.
type Pair struct {
	AssetA  string
	AssetB  string
	LPAsset string
}

// Exchange is a deterministic swap venue: fixed pairwise rates executed
// against a pool inventory account. It implements the asset conversion
// capability the bond deposit pipeline depends on without a live market.
type Exchange struct {
	state exchangeState
	pool  common.Address
	rates map[string]Rate
	pairs map[string]Pair
}

// NewExchange constructs an exchange settling against the pool inventory
// account.
func NewExchange(pool common.Address) *Exchange {
	return &Exchange{
		pool:  pool,
		rates: make(map[string]Rate),
		pairs: make(map[string]Pair),
	}
}

// SetState wires the exchange to the account state.
func (x *Exchange) SetState(state exchangeState) { x.state = state }

// SetRate lists a directional conversion rate between two assets.
func (x *Exchange) SetRate(from, to string, num, den *big.Int) {
	if x == nil || num == nil || den == nil || den.Sign() == 0 {
		return
	}
	x.rates[pairKey(from, to)] = Rate{Num: new(big.Int).Set(num), Den: new(big.Int).Set(den)}
}

// ListPair registers a liquidity pair and the LP token it mints.
func (x *Exchange) ListPair(assetA, assetB, lpAsset string) {
	if x == nil {
		return
	}
	key := pairKey(assetA, assetB)
	x.pairs[key] = Pair{
		AssetA:  strings.TrimSpace(assetA),
		AssetB:  strings.TrimSpace(assetB),
		LPAsset: strings.TrimSpace(lpAsset),
	}
}

func pairKey(from, to string) string {
	return strings.ToUpper(strings.TrimSpace(from)) + "/" + strings.ToUpper(strings.TrimSpace(to))
}

func (x *Exchange) rate(from, to string) (Rate, error) {
	if strings.EqualFold(strings.TrimSpace(from), strings.TrimSpace(to)) {
		return Rate{Num: big.NewInt(1), Den: big.NewInt(1)}, nil
	}
	rate, ok := x.rates[pairKey(from, to)]
	if !ok {
		return Rate{}, fmt.Errorf("%w: %s", ErrPathUnavailable, pairKey(from, to))
	}
	return rate, nil
}

func (x *Exchange) loadAccount(addr common.Address) (*types.Account, error) {
	if x == nil || x.state == nil {
		return nil, errNilState
	}
	acc, err := x.state.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		acc = types.NewAccount()
	}
	return acc, nil
}

// SwapToPrincipal executes a swap of the owner's source asset into the
// principal asset at the listed rate, drawing the output from pool inventory.
func (x *Exchange) SwapToPrincipal(owner common.Address, sourceAsset, principalAsset string, amount *big.Int) (*big.Int, error) {
	if x == nil || x.state == nil {
		return nil, errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	rate, err := x.rate(sourceAsset, principalAsset)
	if err != nil {
		return nil, err
	}
	out := rate.Apply(amount)
	if out.Sign() == 0 {
		return nil, fmt.Errorf("%w: output rounds to zero", ErrPathUnavailable)
	}
	if strings.EqualFold(strings.TrimSpace(sourceAsset), strings.TrimSpace(principalAsset)) {
		return out, nil
	}
	ownerAcc, err := x.loadAccount(owner)
	if err != nil {
		return nil, err
	}
	if ownerAcc.Balance(sourceAsset).Cmp(amount) < 0 {
		return nil, ErrInsufficient
	}
	poolAcc, err := x.loadAccount(x.pool)
	if err != nil {
		return nil, err
	}
	if poolAcc.Balance(principalAsset).Cmp(out) < 0 {
		return nil, ErrNoLiquidity
	}
	ownerAcc.SetBalance(sourceAsset, new(big.Int).Sub(ownerAcc.Balance(sourceAsset), amount))
	ownerAcc.SetBalance(principalAsset, new(big.Int).Add(ownerAcc.Balance(principalAsset), out))
	poolAcc.SetBalance(sourceAsset, new(big.Int).Add(poolAcc.Balance(sourceAsset), amount))
	poolAcc.SetBalance(principalAsset, new(big.Int).Sub(poolAcc.Balance(principalAsset), out))
	if err := x.state.PutAccount(owner, ownerAcc); err != nil {
		return nil, err
	}
	if err := x.state.PutAccount(x.pool, poolAcc); err != nil {
		return nil, err
	}
	return out, nil
}

// ProvideLiquidity deposits both legs into the pool and mints the pair's LP
// token to the owner. The LP amount is the A leg plus the B leg valued in A
// units.
func (x *Exchange) ProvideLiquidity(owner common.Address, assetA, assetB string, amountA, amountB *big.Int) (*big.Int, error) {
	if x == nil || x.state == nil {
		return nil, errNilState
	}
	if amountA == nil || amountB == nil || amountA.Sign() <= 0 || amountB.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	pair, ok := x.pairs[pairKey(assetA, assetB)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoPair, pairKey(assetA, assetB))
	}
	rateBA, err := x.rate(assetB, assetA)
	if err != nil {
		return nil, err
	}
	ownerAcc, err := x.loadAccount(owner)
	if err != nil {
		return nil, err
	}
	if ownerAcc.Balance(assetA).Cmp(amountA) < 0 || ownerAcc.Balance(assetB).Cmp(amountB) < 0 {
		return nil, ErrInsufficient
	}
	poolAcc, err := x.loadAccount(x.pool)
	if err != nil {
		return nil, err
	}
	lpAmount := new(big.Int).Add(amountA, rateBA.Apply(amountB))
	ownerAcc.SetBalance(assetA, new(big.Int).Sub(ownerAcc.Balance(assetA), amountA))
	ownerAcc.SetBalance(assetB, new(big.Int).Sub(ownerAcc.Balance(assetB), amountB))
	ownerAcc.SetBalance(pair.LPAsset, new(big.Int).Add(ownerAcc.Balance(pair.LPAsset), lpAmount))
	poolAcc.SetBalance(assetA, new(big.Int).Add(poolAcc.Balance(assetA), amountA))
	poolAcc.SetBalance(assetB, new(big.Int).Add(poolAcc.Balance(assetB), amountB))
	if err := x.state.PutAccount(owner, ownerAcc); err != nil {
		return nil, err
	}
	if err := x.state.PutAccount(x.pool, poolAcc); err != nil {
		return nil, err
	}
	return lpAmount, nil
}
