package config

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadParsesFeeTiers(t *testing.T) {
	path := writeConfig(t, `
DataDir = "/tmp/bond"
BondID = "bond-1"
PrincipalAsset = "PRIN"
PrincipalDecimals = 18
PayoutAsset = "PAY"
PayoutDecimals = 9
PolicyAddress = "0x00000000000000000000000000000000000000aa"

[[FeeTiers]]
Ceiling = "1000000"
RateMilli = 50000

[[FeeTiers]]
Ceiling = ""
RateMilli = 33300
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "bond-1", cfg.BondID)
	require.Equal(t, uint8(18), cfg.PrincipalDecimals)
	require.Len(t, cfg.FeeTiers, 2)

	ceilings, err := cfg.TierCeilings()
	require.NoError(t, err)
	require.Zero(t, ceilings[0].Cmp(big.NewInt(1_000_000)))
	require.Nil(t, ceilings[1])
}

func TestLoadParsesSwapRatesAndPairs(t *testing.T) {
	path := writeConfig(t, `
BondID = "bond-1"
PrincipalAsset = "PRIN"
PayoutAsset = "PAY"

[[SwapRates]]
From = "COIN"
To = "PRIN"
Num = "2"
Den = "1"

[[LiquidityPairs]]
AssetA = "WETH"
AssetB = "USDC"
LPAsset = "PRIN"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.SwapRates, 1)
	num, den, err := cfg.SwapRates[0].Fraction()
	require.NoError(t, err)
	require.Zero(t, num.Cmp(big.NewInt(2)))
	require.Zero(t, den.Cmp(big.NewInt(1)))
	require.Len(t, cfg.LiquidityPairs, 1)
	require.Equal(t, "PRIN", cfg.LiquidityPairs[0].LPAsset)
}

func TestValidateRejectsBadSwapRate(t *testing.T) {
	path := writeConfig(t, `
BondID = "bond-1"
PrincipalAsset = "PRIN"
PayoutAsset = "PAY"

[[SwapRates]]
From = "COIN"
To = "PRIN"
Num = "2"
Den = "0"
`)
	_, err := Load(path)
	require.ErrorContains(t, err, "SwapRates[0]")
}

func TestValidateRejectsIncompletePair(t *testing.T) {
	path := writeConfig(t, `
BondID = "bond-1"
PrincipalAsset = "PRIN"
PayoutAsset = "PAY"

[[LiquidityPairs]]
AssetA = "WETH"
AssetB = ""
LPAsset = "PRIN"
`)
	_, err := Load(path)
	require.ErrorContains(t, err, "LiquidityPairs[0]")
}

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NotEmpty(t, cfg.BondID)

	// The default must persist and reload cleanly.
	_, err = os.Stat(path)
	require.NoError(t, err)
	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.BondID, reloaded.BondID)
}

func TestValidateRejectsBadAddress(t *testing.T) {
	path := writeConfig(t, `
BondID = "bond-1"
PrincipalAsset = "PRIN"
PayoutAsset = "PAY"
DAOAddress = "not-an-address"
`)
	_, err := Load(path)
	require.ErrorContains(t, err, "DAOAddress")
}

func TestValidateRejectsUnorderedTiers(t *testing.T) {
	path := writeConfig(t, `
BondID = "bond-1"
PrincipalAsset = "PRIN"
PayoutAsset = "PAY"

[[FeeTiers]]
Ceiling = "2000"
RateMilli = 50000

[[FeeTiers]]
Ceiling = "1000"
RateMilli = 40000
`)
	_, err := Load(path)
	require.ErrorContains(t, err, "strictly increase")
}

func TestValidateRejectsLoneLPAsset(t *testing.T) {
	path := writeConfig(t, `
BondID = "bond-1"
PrincipalAsset = "PRIN"
PayoutAsset = "PAY"
LPAssetA = "WETH"
`)
	_, err := Load(path)
	require.ErrorContains(t, err, "LPAssetA and LPAssetB")
}

func TestValidateRejectsMisplacedOpenTier(t *testing.T) {
	path := writeConfig(t, `
BondID = "bond-1"
PrincipalAsset = "PRIN"
PayoutAsset = "PAY"

[[FeeTiers]]
Ceiling = ""
RateMilli = 50000

[[FeeTiers]]
Ceiling = "1000"
RateMilli = 40000
`)
	_, err := Load(path)
	require.ErrorContains(t, err, "must be last")
}
