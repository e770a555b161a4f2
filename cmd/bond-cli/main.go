package main

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"bondengine/config"
	"bondengine/core/types"
	"bondengine/native/bond"
	"bondengine/native/subsidy"
	"bondengine/native/swap"
	"bondengine/native/treasury"
	"bondengine/storage"
)

var (
	configPath  = envOr("BOND_CONFIG", "./config.toml")
	blockHeight = uint64(0)
)

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func main() {
	args, err := applyGlobalFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if len(args) < 1 {
		printUsage()
		return
	}

	wiring, err := buildWiring()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer wiring.close()

	command := args[0]
	args = args[1:]
	switch command {
	case "init":
		err = cmdInit(wiring, args)
	case "set-adjustment":
		err = cmdSetAdjustment(wiring, args)
	case "authorize":
		err = cmdToggle(wiring, args, true)
	case "revoke":
		err = cmdToggle(wiring, args, false)
	case "fund":
		err = cmdFund(wiring, args)
	case "deposit":
		err = cmdDeposit(wiring, args)
	case "redeem":
		err = cmdRedeem(wiring, args)
	case "pending":
		err = cmdPending(wiring, args)
	case "price":
		err = cmdPrice(wiring)
	case "info":
		err = cmdInfo(wiring, args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", command)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Usage: bond-cli [--config <path>] [--height <block>] <command>

Commands:
  init <cv> <vesting> <minPrice> <maxPayoutBps> <maxDebt> <initialDebt>
  set-adjustment <up|down> <rate> <target> <buffer>
  authorize                       permit the configured bond to draw the treasury
  revoke                          revoke the configured bond's treasury access
  fund <address> <asset> <amount> credit an account balance (dev/ops)
  deposit <depositor> <amount> <maxPrice> [sourceAsset]
  redeem <recipient>
  pending <address>
  price                           print the current bond price and debt ratio
  info <address>                  print the vesting record for an address`)
}

func applyGlobalFlags(args []string) ([]string, error) {
	var rest []string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--config requires a path")
			}
			i++
			configPath = args[i]
		case "--height":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--height requires a block number")
			}
			i++
			height, err := strconv.ParseUint(args[i], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid --height %q", args[i])
			}
			blockHeight = height
		default:
			rest = append(rest, args[i])
		}
	}
	return rest, nil
}

type wiring struct {
	cfg      *config.Config
	store    *storage.BoltKV
	state    *storage.State
	engine   *bond.Engine
	ledger   *treasury.Ledger
	exchange *swap.Exchange
	policy   common.Address
}

func (w *wiring) close() {
	if w != nil && w.store != nil {
		_ = w.store.Close()
	}
}

func buildWiring() (*wiring, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, err
	}
	store, err := storage.OpenBolt(filepath.Join(cfg.DataDir, "state.db"), nil)
	if err != nil {
		return nil, err
	}
	state := storage.NewState(store)

	policy := common.HexToAddress(cfg.PolicyAddress)
	custody := common.HexToAddress(cfg.CustodyAddress)
	pool := common.HexToAddress(cfg.SubsidyPool)

	ledger := treasury.NewLedger(custody, policy, cfg.PayoutAsset)
	ledger.SetState(state)

	router := subsidy.NewRouter(custody, pool)
	router.SetState(state)

	exchange := swap.NewExchange(custody)
	exchange.SetState(state)
	for _, rate := range cfg.SwapRates {
		num, den, err := rate.Fraction()
		if err != nil {
			return nil, err
		}
		exchange.SetRate(rate.From, rate.To, num, den)
	}
	for _, pair := range cfg.LiquidityPairs {
		exchange.ListPair(pair.AssetA, pair.AssetB, pair.LPAsset)
	}

	book := swap.NewSupplyBook()
	if supply, err := cfg.Supply(); err == nil && supply != nil {
		book.SetSupply(cfg.PayoutAsset, supply)
	}

	engine := bond.NewEngine(cfg.BondID, cfg.PrincipalAsset, cfg.PayoutAsset, cfg.PrincipalDecimals, cfg.PayoutDecimals)
	engine.SetState(state)
	engine.SetTreasury(ledger)
	engine.SetFeeRouter(router)
	engine.SetSupplyOracle(book)
	engine.SetConverter(exchange)
	engine.SetPolicy(policy)
	engine.SetDAO(common.HexToAddress(cfg.DAOAddress))
	engine.SetLPPair(cfg.LPAssetA, cfg.LPAssetB)
	engine.SetBlockHeight(blockHeight)

	tiers, err := feeTiers(cfg)
	if err != nil {
		return nil, err
	}
	engine.SetFeeTiers(tiers)

	return &wiring{
		cfg:      cfg,
		store:    store,
		state:    state,
		engine:   engine,
		ledger:   ledger,
		exchange: exchange,
		policy:   policy,
	}, nil
}

func feeTiers(cfg *config.Config) ([]bond.FeeTier, error) {
	ceilings, err := cfg.TierCeilings()
	if err != nil {
		return nil, err
	}
	tiers := make([]bond.FeeTier, len(cfg.FeeTiers))
	for i := range cfg.FeeTiers {
		tiers[i] = bond.FeeTier{Ceiling: ceilings[i], RateMilli: cfg.FeeTiers[i].RateMilli}
	}
	return tiers, nil
}

func parseAddress(raw string) (common.Address, error) {
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("invalid address %q", raw)
	}
	return common.HexToAddress(raw), nil
}

func parseAmount(raw string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	return amount, nil
}

func parseUint(raw, name string) (uint64, error) {
	value, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return value, nil
}

func cmdInit(w *wiring, args []string) error {
	if len(args) != 6 {
		return fmt.Errorf("usage: init <cv> <vesting> <minPrice> <maxPayoutBps> <maxDebt> <initialDebt>")
	}
	cv, err := parseUint(args[0], "control variable")
	if err != nil {
		return err
	}
	vesting, err := parseUint(args[1], "vesting term")
	if err != nil {
		return err
	}
	minPrice, err := parseUint(args[2], "minimum price")
	if err != nil {
		return err
	}
	maxPayout, err := parseUint(args[3], "max payout bps")
	if err != nil {
		return err
	}
	maxDebt, err := parseAmount(args[4])
	if err != nil {
		return err
	}
	initialDebt, err := parseAmount(args[5])
	if err != nil {
		return err
	}
	if err := w.engine.InitializeBond(w.policy, cv, vesting, minPrice, maxPayout, maxDebt, initialDebt); err != nil {
		return err
	}
	fmt.Printf("bond %s initialized\n", w.cfg.BondID)
	return nil
}

func cmdSetAdjustment(w *wiring, args []string) error {
	if len(args) != 4 {
		return fmt.Errorf("usage: set-adjustment <up|down> <rate> <target> <buffer>")
	}
	var increasing bool
	switch args[0] {
	case "up":
		increasing = true
	case "down":
		increasing = false
	default:
		return fmt.Errorf("direction must be up or down, got %q", args[0])
	}
	rate, err := parseUint(args[1], "rate")
	if err != nil {
		return err
	}
	target, err := parseUint(args[2], "target")
	if err != nil {
		return err
	}
	buffer, err := parseUint(args[3], "buffer")
	if err != nil {
		return err
	}
	if err := w.engine.SetAdjustment(w.policy, increasing, rate, target, buffer); err != nil {
		return err
	}
	fmt.Println("adjustment scheduled")
	return nil
}

func cmdToggle(w *wiring, args []string, enabled bool) error {
	if len(args) != 0 {
		return fmt.Errorf("usage: authorize|revoke")
	}
	var err error
	if enabled {
		err = w.ledger.Authorize(w.policy, w.cfg.BondID)
	} else {
		err = w.ledger.Revoke(w.policy, w.cfg.BondID)
	}
	if err != nil {
		return err
	}
	fmt.Printf("bond %s authorized=%v\n", w.cfg.BondID, enabled)
	return nil
}

func cmdFund(w *wiring, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: fund <address> <asset> <amount>")
	}
	addr, err := parseAddress(args[0])
	if err != nil {
		return err
	}
	amount, err := parseAmount(args[2])
	if err != nil {
		return err
	}
	account, err := w.state.GetAccount(addr)
	if err != nil {
		return err
	}
	if account == nil {
		account = types.NewAccount()
	}
	account.SetBalance(args[1], new(big.Int).Add(account.Balance(args[1]), amount))
	if err := w.state.PutAccount(addr, account); err != nil {
		return err
	}
	fmt.Printf("funded %s with %s %s\n", addr.Hex(), amount, args[1])
	return nil
}

func cmdDeposit(w *wiring, args []string) error {
	if len(args) != 3 && len(args) != 4 {
		return fmt.Errorf("usage: deposit <depositor> <amount> <maxPrice> [sourceAsset]")
	}
	depositor, err := parseAddress(args[0])
	if err != nil {
		return err
	}
	amount, err := parseAmount(args[1])
	if err != nil {
		return err
	}
	maxPrice, err := parseUint(args[2], "max price")
	if err != nil {
		return err
	}
	var payout *big.Int
	if len(args) == 4 {
		payout, err = w.engine.DepositWithAsset(depositor, amount, args[3], maxPrice, depositor)
	} else {
		payout, err = w.engine.Deposit(depositor, amount, maxPrice, depositor)
	}
	if err != nil {
		return err
	}
	fmt.Printf("payout owed: %s\n", payout)
	return nil
}

func cmdRedeem(w *wiring, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: redeem <recipient>")
	}
	recipient, err := parseAddress(args[0])
	if err != nil {
		return err
	}
	paid, err := w.engine.Redeem(recipient)
	if err != nil {
		return err
	}
	fmt.Printf("redeemed: %s\n", paid)
	return nil
}

func cmdPending(w *wiring, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: pending <address>")
	}
	addr, err := parseAddress(args[0])
	if err != nil {
		return err
	}
	pending, err := w.engine.PendingPayoutFor(addr)
	if err != nil {
		return err
	}
	vested, err := w.engine.PercentVestedFor(addr)
	if err != nil {
		return err
	}
	fmt.Printf("pending payout: %s (%d bps vested)\n", pending, vested)
	return nil
}

func cmdPrice(w *wiring) error {
	price, err := w.engine.BondPrice()
	if err != nil {
		return err
	}
	ratio, err := w.engine.DebtRatio()
	if err != nil {
		return err
	}
	debt, err := w.engine.CurrentDebt()
	if err != nil {
		return err
	}
	fmt.Printf("price: %d\ndebt ratio: %s\ncurrent debt: %s\n", price, ratio, debt)
	return nil
}

func cmdInfo(w *wiring, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: info <address>")
	}
	addr, err := parseAddress(args[0])
	if err != nil {
		return err
	}
	record, err := w.engine.BondInfo(addr)
	if err != nil {
		return err
	}
	if record == nil {
		fmt.Println("no active bond")
		return nil
	}
	fmt.Printf("payout owed: %s\nvesting blocks: %d\nlast block: %d\nprice paid: %d\n",
		record.PayoutOwed, record.VestingBlocks, record.LastBlock, record.PricePaid)
	return nil
}
