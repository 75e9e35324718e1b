// Package config defines the top-level configuration for the arbitrage bot
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by ARBBOT_* environment variables.
type Config struct {
	Wallet    WalletConfig    `toml:"wallet"`
	Base      BaseChainConfig `toml:"base"`
	Solana    SolanaConfig    `toml:"solana"`
	Odos      OdosConfig      `toml:"odos"`
	Jupiter   JupiterConfig   `toml:"jupiter"`
	Raydium   RaydiumConfig   `toml:"raydium"`
	Redis     RedisConfig     `toml:"redis"`
	Arbitrage ArbitrageConfig `toml:"arbitrage"`
	Monitor   MonitorConfig   `toml:"monitor"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// WalletConfig holds signing key material for both chains. Each key may be
// given raw or as a path to an encrypted key file plus password.
type WalletConfig struct {
	BasePrivateKey       string `toml:"base_private_key"`
	BaseEncryptedKeyPath string `toml:"base_encrypted_key_path"`
	BaseKeyPassword      string `toml:"base_key_password"`
	BaseAddress          string `toml:"base_address"`

	SolPrivateKey       string `toml:"sol_private_key"`
	SolEncryptedKeyPath string `toml:"sol_encrypted_key_path"`
	SolKeyPassword      string `toml:"sol_key_password"`
	SolAddress          string `toml:"sol_address"`
}

// TokenConfig describes one token on one chain.
type TokenConfig struct {
	Address   string `toml:"address"`
	Decimals  int    `toml:"decimals"`
	LPAddress string `toml:"lp_address"`
}

// BaseChainConfig holds EVM chain parameters and its token table.
type BaseChainConfig struct {
	RPCURL         string                 `toml:"rpc_url"`
	ChainID        int64                  `toml:"chain_id"`
	OdosRouter     string                 `toml:"odos_router"`
	ConfirmRetries int                    `toml:"confirm_retries"`
	ConfirmDelay   duration               `toml:"confirm_delay"`
	Tokens         map[string]TokenConfig `toml:"tokens"`
}

// SolanaConfig holds Solana RPC parameters and its token table.
type SolanaConfig struct {
	RPCURL         string                 `toml:"rpc_url"`
	WSURL          string                 `toml:"ws_url"`
	ConfirmRetries int                    `toml:"confirm_retries"`
	ConfirmDelay   duration               `toml:"confirm_delay"`
	Tokens         map[string]TokenConfig `toml:"tokens"`
}

// OdosConfig holds Odos aggregator API parameters.
type OdosConfig struct {
	BaseURL     string   `toml:"base_url"`
	SlippagePct float64  `toml:"slippage_pct"`
	Timeout     duration `toml:"timeout"`
}

// JupiterConfig holds Jupiter aggregator API parameters.
type JupiterConfig struct {
	QuoteURL            string   `toml:"quote_url"`
	PriceURL            string   `toml:"price_url"`
	Timeout             duration `toml:"timeout"`
	PriorityFeeLamports int64    `toml:"priority_fee_lamports"`
	UseSharedAccounts   bool     `toml:"use_shared_accounts"`
	PriceRatePerSec     float64  `toml:"price_rate_per_sec"`
}

// RaydiumConfig holds the Raydium pool-info API endpoint used by the
// liquidity-aware sizing policy.
type RaydiumConfig struct {
	BaseURL string   `toml:"base_url"`
	Timeout duration `toml:"timeout"`
}

// RedisConfig holds Redis connection parameters for the reference-price
// cache. An empty addr disables Redis; reference prices are then fetched
// directly on every read.
type RedisConfig struct {
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	PriceTTL   duration `toml:"price_ttl"`
}

// ArbitrageConfig holds the detection threshold, the selectable sizing
// policy, and each policy's parameters.
type ArbitrageConfig struct {
	// TargetToken names the arbitraged token in both chains' token tables.
	TargetToken string `toml:"target_token"`
	// BaseQuoteToken names the intermediate asset the EVM leg quotes
	// against (e.g. "virtual" or "usdc").
	BaseQuoteToken string `toml:"base_quote_token"`
	// SolQuoteToken names the intermediate asset the Solana leg quotes
	// against (normally "sol").
	SolQuoteToken string `toml:"sol_quote_token"`

	MinDivergencePct   float64 `toml:"min_divergence_pct"`
	ReferenceAmount    float64 `toml:"reference_amount"`
	ProfitThresholdUSD float64 `toml:"profit_threshold_usd"`

	// Policy selects the sizing policy: "balanced_search", "gap_close",
	// "liquidity_weighted".
	Policy string `toml:"policy"`

	// balanced_search parameters.
	MinSize       float64 `toml:"min_size"`
	MaxSize       float64 `toml:"max_size"`
	SizeIncrement float64 `toml:"size_increment"`
	// CalibrationSize is the trade size at which the quoted impact was
	// observed; impact at other sizes extrapolates by sqrt(x/C).
	CalibrationSize float64 `toml:"calibration_size"`

	// gap_close / liquidity_weighted parameters.
	TargetClose float64 `toml:"target_close"` // fraction of the gap to eliminate, (0,1]
	SizeWeight  float64 `toml:"size_weight"`  // blend weight between the two legs' implied sizes
}

// MonitorConfig holds the polling cadence and alerting parameters.
type MonitorConfig struct {
	Interval      duration `toml:"interval"`
	ErrorCooldown duration `toml:"error_cooldown"`
	// AlertThresholdPct triggers an operator notification when divergence
	// exceeds it, independent of trading.
	AlertThresholdPct float64  `toml:"alert_threshold_pct"`
	AlertMinChangePct float64  `toml:"alert_min_change_pct"`
	AlertCooldown     duration `toml:"alert_cooldown"`
	// StatusEvery controls the periodic heartbeat log.
	StatusEvery duration `toml:"status_every"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5s", "2m").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Base: BaseChainConfig{
			ChainID: 8453,
			// Odos router V2 on Base.
			OdosRouter:     "0x19cEeAd7105607Cd444F5ad10dd51356436095a1",
			ConfirmRetries: 30,
			ConfirmDelay:   duration{2 * time.Second},
			Tokens: map[string]TokenConfig{
				"usdc":    {Address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", Decimals: 6},
				"virtual": {Address: "0x0b3e328455c4059EEb9e3f84b5543F74E24e7E1b", Decimals: 18},
			},
		},
		Solana: SolanaConfig{
			RPCURL:         "https://api.mainnet-beta.solana.com",
			ConfirmRetries: 60,
			ConfirmDelay:   duration{2 * time.Second},
			Tokens: map[string]TokenConfig{
				"usdc": {Address: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", Decimals: 6},
				"sol":  {Address: "So11111111111111111111111111111111111111112", Decimals: 9},
			},
		},
		Odos: OdosConfig{
			BaseURL:     "https://api.odos.xyz",
			SlippagePct: 0.3,
			Timeout:     duration{10 * time.Second},
		},
		Jupiter: JupiterConfig{
			QuoteURL:            "https://quote-api.jup.ag/v6",
			PriceURL:            "https://api.jup.ag/price/v2",
			Timeout:             duration{10 * time.Second},
			PriorityFeeLamports: 500_000,
			UseSharedAccounts:   true,
			PriceRatePerSec:     2,
		},
		Raydium: RaydiumConfig{
			BaseURL: "https://api-v3.raydium.io",
			Timeout: duration{10 * time.Second},
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   10,
			MaxRetries: 3,
			PriceTTL:   duration{15 * time.Second},
		},
		Arbitrage: ArbitrageConfig{
			BaseQuoteToken:     "virtual",
			SolQuoteToken:      "sol",
			MinDivergencePct:   1.0,
			ReferenceAmount:    1000,
			ProfitThresholdUSD: 0,
			Policy:             "gap_close",
			MinSize:            10_000,
			MaxSize:            50_000,
			SizeIncrement:      100,
			CalibrationSize:    10_000,
			TargetClose:        1.0,
			SizeWeight:         0.7,
		},
		Monitor: MonitorConfig{
			Interval:          duration{1 * time.Second},
			ErrorCooldown:     duration{5 * time.Second},
			AlertThresholdPct: 4.0,
			AlertMinChangePct: 0.1,
			AlertCooldown:     duration{60 * time.Second},
			StatusEvery:       duration{60 * time.Second},
		},
		Notify: NotifyConfig{
			Events: []string{"opportunity", "trade_executed", "partial_fill", "error"},
		},
		Mode:     "monitor",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"monitor": true,
	"trade":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validPolicies enumerates the accepted sizing policy names.
var validPolicies = map[string]bool{
	"balanced_search":    true,
	"gap_close":          true,
	"liquidity_weighted": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: monitor, trade)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Chain endpoints.
	if c.Base.RPCURL == "" {
		errs = append(errs, "base: rpc_url must not be empty")
	}
	if c.Base.ChainID <= 0 {
		errs = append(errs, fmt.Sprintf("base: chain_id must be positive, got %d", c.Base.ChainID))
	}
	if c.Solana.RPCURL == "" {
		errs = append(errs, "solana: rpc_url must not be empty")
	}

	// Token tables. The target token must exist on both chains, and each
	// configured quote token on its chain.
	if c.Arbitrage.TargetToken == "" {
		errs = append(errs, "arbitrage: target_token must be set")
	} else {
		if _, ok := c.Base.Tokens[c.Arbitrage.TargetToken]; !ok {
			errs = append(errs, fmt.Sprintf("base: tokens[%q] missing for target_token", c.Arbitrage.TargetToken))
		}
		if _, ok := c.Solana.Tokens[c.Arbitrage.TargetToken]; !ok {
			errs = append(errs, fmt.Sprintf("solana: tokens[%q] missing for target_token", c.Arbitrage.TargetToken))
		}
	}
	if _, ok := c.Base.Tokens[c.Arbitrage.BaseQuoteToken]; !ok {
		errs = append(errs, fmt.Sprintf("base: tokens[%q] missing for base_quote_token", c.Arbitrage.BaseQuoteToken))
	}
	if _, ok := c.Solana.Tokens[c.Arbitrage.SolQuoteToken]; !ok {
		errs = append(errs, fmt.Sprintf("solana: tokens[%q] missing for sol_quote_token", c.Arbitrage.SolQuoteToken))
	}

	// Wallet — required for trade mode only.
	if strings.ToLower(c.Mode) == "trade" {
		if c.Wallet.BasePrivateKey == "" && c.Wallet.BaseEncryptedKeyPath == "" {
			errs = append(errs, "wallet: either base_private_key or base_encrypted_key_path must be set for trade mode")
		}
		if c.Wallet.SolPrivateKey == "" && c.Wallet.SolEncryptedKeyPath == "" {
			errs = append(errs, "wallet: either sol_private_key or sol_encrypted_key_path must be set for trade mode")
		}
		if c.Wallet.BaseEncryptedKeyPath != "" && c.Wallet.BaseKeyPassword == "" {
			errs = append(errs, "wallet: base_key_password is required when base_encrypted_key_path is set")
		}
		if c.Wallet.SolEncryptedKeyPath != "" && c.Wallet.SolKeyPassword == "" {
			errs = append(errs, "wallet: sol_key_password is required when sol_encrypted_key_path is set")
		}
	}

	// Aggregators.
	if c.Odos.BaseURL == "" {
		errs = append(errs, "odos: base_url must not be empty")
	}
	if c.Odos.SlippagePct < 0 {
		errs = append(errs, "odos: slippage_pct must be >= 0")
	}
	if c.Jupiter.QuoteURL == "" {
		errs = append(errs, "jupiter: quote_url must not be empty")
	}
	if c.Jupiter.PriceURL == "" {
		errs = append(errs, "jupiter: price_url must not be empty")
	}

	// Arbitrage parameters.
	if !validPolicies[c.Arbitrage.Policy] {
		errs = append(errs, fmt.Sprintf("arbitrage: unknown policy %q (valid: balanced_search, gap_close, liquidity_weighted)", c.Arbitrage.Policy))
	}
	if c.Arbitrage.MinDivergencePct <= 0 {
		errs = append(errs, "arbitrage: min_divergence_pct must be > 0")
	}
	if c.Arbitrage.ReferenceAmount <= 0 {
		errs = append(errs, "arbitrage: reference_amount must be > 0")
	}
	if c.Arbitrage.Policy == "balanced_search" {
		if c.Arbitrage.MinSize <= 0 || c.Arbitrage.MaxSize < c.Arbitrage.MinSize {
			errs = append(errs, "arbitrage: balanced_search needs 0 < min_size <= max_size")
		}
		if c.Arbitrage.SizeIncrement <= 0 {
			errs = append(errs, "arbitrage: size_increment must be > 0")
		}
		if c.Arbitrage.CalibrationSize <= 0 {
			errs = append(errs, "arbitrage: calibration_size must be > 0")
		}
	}
	if c.Arbitrage.Policy == "gap_close" || c.Arbitrage.Policy == "liquidity_weighted" {
		if c.Arbitrage.TargetClose <= 0 || c.Arbitrage.TargetClose > 1 {
			errs = append(errs, "arbitrage: target_close must be in (0, 1]")
		}
	}
	if c.Arbitrage.Policy == "liquidity_weighted" {
		if c.Arbitrage.SizeWeight < 0 || c.Arbitrage.SizeWeight > 1 {
			errs = append(errs, "arbitrage: size_weight must be in [0, 1]")
		}
		if tok, ok := c.Base.Tokens[c.Arbitrage.TargetToken]; ok && tok.LPAddress == "" {
			errs = append(errs, "base: target token lp_address required for liquidity_weighted policy")
		}
		if tok, ok := c.Solana.Tokens[c.Arbitrage.TargetToken]; ok && tok.LPAddress == "" {
			errs = append(errs, "solana: target token lp_address required for liquidity_weighted policy")
		}
	}

	// Monitor cadence.
	if c.Monitor.Interval.Duration <= 0 {
		errs = append(errs, "monitor: interval must be > 0")
	}
	if c.Monitor.ErrorCooldown.Duration < c.Monitor.Interval.Duration {
		errs = append(errs, "monitor: error_cooldown must be >= interval")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
