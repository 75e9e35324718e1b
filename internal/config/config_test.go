package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Base.RPCURL = "https://mainnet.base.org"
	cfg.Arbitrage.TargetToken = "virtual"
	cfg.Solana.Tokens["virtual"] = TokenConfig{
		Address:  "3iQL8BFS2vE7mww4ehAqQHAsbmRNCrPxizWAT2Zfyr9y",
		Decimals: 9,
	}
	return cfg
}

func TestDefaultsValidateMonitorMode(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidateMissingTargetToken(t *testing.T) {
	cfg := validConfig()
	cfg.Arbitrage.TargetToken = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "target_token must be set")
}

func TestValidateUnknownPolicy(t *testing.T) {
	cfg := validConfig()
	cfg.Arbitrage.Policy = "martingale"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown policy "martingale"`)
}

func TestValidateTradeModeRequiresKeys(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "trade"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base_private_key or base_encrypted_key_path")
	assert.Contains(t, err.Error(), "sol_private_key or sol_encrypted_key_path")

	cfg.Wallet.BasePrivateKey = "0xdeadbeef"
	cfg.Wallet.SolPrivateKey = "5abc"
	require.NoError(t, cfg.Validate())
}

func TestValidateEncryptedKeyNeedsPassword(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "trade"
	cfg.Wallet.BaseEncryptedKeyPath = "/keys/base.enc"
	cfg.Wallet.SolPrivateKey = "5abc"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base_key_password is required")
}

func TestValidateLiquidityWeightedNeedsLPAddresses(t *testing.T) {
	cfg := validConfig()
	cfg.Arbitrage.Policy = "liquidity_weighted"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lp_address required")
}

func TestValidateCollectsMultipleErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "invalid"
	cfg.Base.RPCURL = ""
	cfg.Arbitrage.MinDivergencePct = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Contains(t, err.Error(), "rpc_url must not be empty")
	assert.Contains(t, err.Error(), "min_divergence_pct must be > 0")
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	data := `
mode = "monitor"

[base]
rpc_url = "https://base.example.org"

[arbitrage]
target_token = "virtual"
min_divergence_pct = 2.5

[monitor]
interval = "3s"
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://base.example.org", cfg.Base.RPCURL)
	assert.Equal(t, 2.5, cfg.Arbitrage.MinDivergencePct)
	assert.Equal(t, 3*time.Second, cfg.Monitor.Interval.Duration)
	// Untouched defaults survive the merge.
	assert.Equal(t, int64(8453), cfg.Base.ChainID)
	assert.Equal(t, "https://api.odos.xyz", cfg.Odos.BaseURL)
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`mode = "monitor"`), 0o600))

	t.Setenv("ARBBOT_BASE_RPC_URL", "https://env.example.org")
	t.Setenv("ARBBOT_ARBITRAGE_POLICY", "balanced_search")
	t.Setenv("ARBBOT_MONITOR_INTERVAL", "750ms")
	t.Setenv("ARBBOT_NOTIFY_EVENTS", "error, partial_fill")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://env.example.org", cfg.Base.RPCURL)
	assert.Equal(t, "balanced_search", cfg.Arbitrage.Policy)
	assert.Equal(t, 750*time.Millisecond, cfg.Monitor.Interval.Duration)
	assert.Equal(t, []string{"error", "partial_fill"}, cfg.Notify.Events)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	require.Error(t, err)
}
