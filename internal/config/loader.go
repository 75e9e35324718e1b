package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ARBBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known ARBBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Wallet ──
	setStr(&cfg.Wallet.BasePrivateKey, "ARBBOT_WALLET_BASE_PRIVATE_KEY")
	setStr(&cfg.Wallet.BaseEncryptedKeyPath, "ARBBOT_WALLET_BASE_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.BaseKeyPassword, "ARBBOT_WALLET_BASE_KEY_PASSWORD")
	setStr(&cfg.Wallet.BaseAddress, "ARBBOT_WALLET_BASE_ADDRESS")
	setStr(&cfg.Wallet.SolPrivateKey, "ARBBOT_WALLET_SOL_PRIVATE_KEY")
	setStr(&cfg.Wallet.SolEncryptedKeyPath, "ARBBOT_WALLET_SOL_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.SolKeyPassword, "ARBBOT_WALLET_SOL_KEY_PASSWORD")
	setStr(&cfg.Wallet.SolAddress, "ARBBOT_WALLET_SOL_ADDRESS")

	// ── Base chain ──
	setStr(&cfg.Base.RPCURL, "ARBBOT_BASE_RPC_URL")
	setInt64(&cfg.Base.ChainID, "ARBBOT_BASE_CHAIN_ID")
	setStr(&cfg.Base.OdosRouter, "ARBBOT_BASE_ODOS_ROUTER")
	setInt(&cfg.Base.ConfirmRetries, "ARBBOT_BASE_CONFIRM_RETRIES")
	setDuration(&cfg.Base.ConfirmDelay, "ARBBOT_BASE_CONFIRM_DELAY")

	// ── Solana ──
	setStr(&cfg.Solana.RPCURL, "ARBBOT_SOLANA_RPC_URL")
	setStr(&cfg.Solana.WSURL, "ARBBOT_SOLANA_WS_URL")
	setInt(&cfg.Solana.ConfirmRetries, "ARBBOT_SOLANA_CONFIRM_RETRIES")
	setDuration(&cfg.Solana.ConfirmDelay, "ARBBOT_SOLANA_CONFIRM_DELAY")

	// ── Odos ──
	setStr(&cfg.Odos.BaseURL, "ARBBOT_ODOS_BASE_URL")
	setFloat64(&cfg.Odos.SlippagePct, "ARBBOT_ODOS_SLIPPAGE_PCT")
	setDuration(&cfg.Odos.Timeout, "ARBBOT_ODOS_TIMEOUT")

	// ── Jupiter ──
	setStr(&cfg.Jupiter.QuoteURL, "ARBBOT_JUPITER_QUOTE_URL")
	setStr(&cfg.Jupiter.PriceURL, "ARBBOT_JUPITER_PRICE_URL")
	setDuration(&cfg.Jupiter.Timeout, "ARBBOT_JUPITER_TIMEOUT")
	setInt64(&cfg.Jupiter.PriorityFeeLamports, "ARBBOT_JUPITER_PRIORITY_FEE_LAMPORTS")
	setBool(&cfg.Jupiter.UseSharedAccounts, "ARBBOT_JUPITER_USE_SHARED_ACCOUNTS")
	setFloat64(&cfg.Jupiter.PriceRatePerSec, "ARBBOT_JUPITER_PRICE_RATE_PER_SEC")

	// ── Raydium ──
	setStr(&cfg.Raydium.BaseURL, "ARBBOT_RAYDIUM_BASE_URL")
	setDuration(&cfg.Raydium.Timeout, "ARBBOT_RAYDIUM_TIMEOUT")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "ARBBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ARBBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ARBBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ARBBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ARBBOT_REDIS_MAX_RETRIES")
	setDuration(&cfg.Redis.PriceTTL, "ARBBOT_REDIS_PRICE_TTL")

	// ── Arbitrage ──
	setStr(&cfg.Arbitrage.TargetToken, "ARBBOT_ARBITRAGE_TARGET_TOKEN")
	setStr(&cfg.Arbitrage.BaseQuoteToken, "ARBBOT_ARBITRAGE_BASE_QUOTE_TOKEN")
	setStr(&cfg.Arbitrage.SolQuoteToken, "ARBBOT_ARBITRAGE_SOL_QUOTE_TOKEN")
	setFloat64(&cfg.Arbitrage.MinDivergencePct, "ARBBOT_ARBITRAGE_MIN_DIVERGENCE_PCT")
	setFloat64(&cfg.Arbitrage.ReferenceAmount, "ARBBOT_ARBITRAGE_REFERENCE_AMOUNT")
	setFloat64(&cfg.Arbitrage.ProfitThresholdUSD, "ARBBOT_ARBITRAGE_PROFIT_THRESHOLD_USD")
	setStr(&cfg.Arbitrage.Policy, "ARBBOT_ARBITRAGE_POLICY")
	setFloat64(&cfg.Arbitrage.MinSize, "ARBBOT_ARBITRAGE_MIN_SIZE")
	setFloat64(&cfg.Arbitrage.MaxSize, "ARBBOT_ARBITRAGE_MAX_SIZE")
	setFloat64(&cfg.Arbitrage.SizeIncrement, "ARBBOT_ARBITRAGE_SIZE_INCREMENT")
	setFloat64(&cfg.Arbitrage.CalibrationSize, "ARBBOT_ARBITRAGE_CALIBRATION_SIZE")
	setFloat64(&cfg.Arbitrage.TargetClose, "ARBBOT_ARBITRAGE_TARGET_CLOSE")
	setFloat64(&cfg.Arbitrage.SizeWeight, "ARBBOT_ARBITRAGE_SIZE_WEIGHT")

	// ── Monitor ──
	setDuration(&cfg.Monitor.Interval, "ARBBOT_MONITOR_INTERVAL")
	setDuration(&cfg.Monitor.ErrorCooldown, "ARBBOT_MONITOR_ERROR_COOLDOWN")
	setFloat64(&cfg.Monitor.AlertThresholdPct, "ARBBOT_MONITOR_ALERT_THRESHOLD_PCT")
	setFloat64(&cfg.Monitor.AlertMinChangePct, "ARBBOT_MONITOR_ALERT_MIN_CHANGE_PCT")
	setDuration(&cfg.Monitor.AlertCooldown, "ARBBOT_MONITOR_ALERT_COOLDOWN")
	setDuration(&cfg.Monitor.StatusEvery, "ARBBOT_MONITOR_STATUS_EVERY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "ARBBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "ARBBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "ARBBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "ARBBOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "ARBBOT_MODE")
	setStr(&cfg.LogLevel, "ARBBOT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
