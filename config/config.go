package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
)

// FeeTier is the on-disk shape of one fee schedule step. Ceiling is a decimal
// amount in principal base units; an empty Ceiling marks the open-ended top
// tier.
type FeeTier struct {
	Ceiling   string `toml:"Ceiling"`
	RateMilli uint64 `toml:"RateMilli"`
}

// SwapRate is one fixed exchange rate for deposit normalization: Num units of
// To per Den units of From. Num and Den are decimal strings.
type SwapRate struct {
	From string `toml:"From"`
	To   string `toml:"To"`
	Num  string `toml:"Num"`
	Den  string `toml:"Den"`
}

// LiquidityPair declares an LP listing the converter can mint into.
type LiquidityPair struct {
	AssetA  string `toml:"AssetA"`
	AssetB  string `toml:"AssetB"`
	LPAsset string `toml:"LPAsset"`
}

type Config struct {
	DataDir           string          `toml:"DataDir"`
	BondID            string          `toml:"BondID"`
	PrincipalAsset    string          `toml:"PrincipalAsset"`
	PrincipalDecimals uint8           `toml:"PrincipalDecimals"`
	PayoutAsset       string          `toml:"PayoutAsset"`
	PayoutDecimals    uint8           `toml:"PayoutDecimals"`
	LPAssetA          string          `toml:"LPAssetA"`
	LPAssetB          string          `toml:"LPAssetB"`
	LPTokenAsFee      bool            `toml:"LPTokenAsFee"`
	PolicyAddress     string          `toml:"PolicyAddress"`
	DAOAddress        string          `toml:"DAOAddress"`
	CustodyAddress    string          `toml:"CustodyAddress"`
	SubsidyPool       string          `toml:"SubsidyPool"`
	PayoutSupply      string          `toml:"PayoutSupply"`
	FeeTiers          []FeeTier       `toml:"FeeTiers"`
	SwapRates         []SwapRate      `toml:"SwapRates"`
	LiquidityPairs    []LiquidityPair `toml:"LiquidityPairs"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./bond-data"
	}
	if cfg.FeeTiers == nil {
		cfg.FeeTiers = []FeeTier{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the engines would refuse at wiring time.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.BondID) == "" {
		return fmt.Errorf("config: BondID must not be empty")
	}
	if strings.TrimSpace(c.PrincipalAsset) == "" {
		return fmt.Errorf("config: PrincipalAsset must not be empty")
	}
	if strings.TrimSpace(c.PayoutAsset) == "" {
		return fmt.Errorf("config: PayoutAsset must not be empty")
	}
	for _, field := range []struct {
		name  string
		value string
	}{
		{"PolicyAddress", c.PolicyAddress},
		{"DAOAddress", c.DAOAddress},
		{"CustodyAddress", c.CustodyAddress},
		{"SubsidyPool", c.SubsidyPool},
	} {
		if strings.TrimSpace(field.value) == "" {
			continue
		}
		if !common.IsHexAddress(field.value) {
			return fmt.Errorf("config: %s is not a valid address", field.name)
		}
	}
	if (c.LPAssetA == "") != (c.LPAssetB == "") {
		return fmt.Errorf("config: LPAssetA and LPAssetB must be set together")
	}
	if _, err := c.Supply(); err != nil {
		return err
	}
	var prev *big.Int
	for i, tier := range c.FeeTiers {
		ceiling, err := tier.ceiling()
		if err != nil {
			return fmt.Errorf("config: FeeTiers[%d]: %w", i, err)
		}
		if ceiling == nil {
			if i != len(c.FeeTiers)-1 {
				return fmt.Errorf("config: FeeTiers[%d]: open-ended tier must be last", i)
			}
			continue
		}
		if prev != nil && ceiling.Cmp(prev) <= 0 {
			return fmt.Errorf("config: FeeTiers[%d]: ceilings must strictly increase", i)
		}
		prev = ceiling
	}
	for i, rate := range c.SwapRates {
		if strings.TrimSpace(rate.From) == "" || strings.TrimSpace(rate.To) == "" {
			return fmt.Errorf("config: SwapRates[%d]: From and To must not be empty", i)
		}
		if _, _, err := rate.Fraction(); err != nil {
			return fmt.Errorf("config: SwapRates[%d]: %w", i, err)
		}
	}
	for i, pair := range c.LiquidityPairs {
		if strings.TrimSpace(pair.AssetA) == "" || strings.TrimSpace(pair.AssetB) == "" || strings.TrimSpace(pair.LPAsset) == "" {
			return fmt.Errorf("config: LiquidityPairs[%d]: AssetA, AssetB and LPAsset must not be empty", i)
		}
	}
	return nil
}

// Fraction parses the rate's numerator and denominator. Both must be positive.
func (r SwapRate) Fraction() (*big.Int, *big.Int, error) {
	num, ok := new(big.Int).SetString(strings.TrimSpace(r.Num), 10)
	if !ok || num.Sign() <= 0 {
		return nil, nil, fmt.Errorf("invalid rate numerator %q", r.Num)
	}
	den, ok := new(big.Int).SetString(strings.TrimSpace(r.Den), 10)
	if !ok || den.Sign() <= 0 {
		return nil, nil, fmt.Errorf("invalid rate denominator %q", r.Den)
	}
	return num, den, nil
}

// TierCeilings parses the fee tier ceilings into big integers, preserving the
// nil top-tier sentinel.
func (c *Config) TierCeilings() ([]*big.Int, error) {
	ceilings := make([]*big.Int, len(c.FeeTiers))
	for i, tier := range c.FeeTiers {
		ceiling, err := tier.ceiling()
		if err != nil {
			return nil, fmt.Errorf("config: FeeTiers[%d]: %w", i, err)
		}
		ceilings[i] = ceiling
	}
	return ceilings, nil
}

// Supply parses the configured payout-asset circulating supply, nil when
// unset.
func (c *Config) Supply() (*big.Int, error) {
	trimmed := strings.TrimSpace(c.PayoutSupply)
	if trimmed == "" {
		return nil, nil
	}
	supply, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || supply.Sign() <= 0 {
		return nil, fmt.Errorf("config: invalid PayoutSupply %q", c.PayoutSupply)
	}
	return supply, nil
}

func (t FeeTier) ceiling() (*big.Int, error) {
	trimmed := strings.TrimSpace(t.Ceiling)
	if trimmed == "" {
		return nil, nil
	}
	ceiling, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || ceiling.Sign() < 0 {
		return nil, fmt.Errorf("invalid ceiling %q", t.Ceiling)
	}
	return ceiling, nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		DataDir:           "./bond-data",
		BondID:            "bond-default",
		PrincipalAsset:    "PRINCIPAL",
		PrincipalDecimals: 18,
		PayoutAsset:       "PAYOUT",
		PayoutDecimals:    9,
		FeeTiers:          []FeeTier{},
	}

	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
