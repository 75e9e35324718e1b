package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Adam-leaf/arbitrage-bot/internal/cache/redis"
	"github.com/Adam-leaf/arbitrage-bot/internal/chain/evm"
	"github.com/Adam-leaf/arbitrage-bot/internal/chain/solana"
	"github.com/Adam-leaf/arbitrage-bot/internal/config"
	"github.com/Adam-leaf/arbitrage-bot/internal/crypto"
	"github.com/Adam-leaf/arbitrage-bot/internal/domain"
	"github.com/Adam-leaf/arbitrage-bot/internal/engine"
	"github.com/Adam-leaf/arbitrage-bot/internal/notify"
	"github.com/Adam-leaf/arbitrage-bot/internal/platform/jupiter"
	"github.com/Adam-leaf/arbitrage-bot/internal/platform/odos"
	"github.com/Adam-leaf/arbitrage-bot/internal/platform/raydium"
	"github.com/Adam-leaf/arbitrage-bot/internal/pricing"
)

// Dependencies bundles everything the application modes need to run. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	BaseQuotes domain.QuoteProvider
	SolQuotes  domain.QuoteProvider
	Normalizer *pricing.Normalizer
	Detector   *engine.Detector
	Policies   *engine.Registry

	// Coordinator is nil in monitor mode.
	Coordinator *engine.Coordinator
	Monitor     *engine.Monitor
	Notifier    *notify.Notifier
}

// Wire constructs the full dependency graph from the configuration. The
// returned cleanup function closes everything Wire opened, in reverse order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	assets, err := resolveAssets(cfg)
	if err != nil {
		return fail(err)
	}

	tradeMode := strings.ToLower(cfg.Mode) == "trade"

	// Signing keys are only resolved in trade mode; monitor mode never
	// signs anything.
	var baseKey, solKey string
	if tradeMode {
		baseKey, err = crypto.LoadKey(crypto.KeyConfig{
			RawKey:           cfg.Wallet.BasePrivateKey,
			EncryptedKeyPath: cfg.Wallet.BaseEncryptedKeyPath,
			Password:         cfg.Wallet.BaseKeyPassword,
			Kind:             crypto.KindEVM,
		})
		if err != nil {
			return fail(fmt.Errorf("load base key: %w", err))
		}
		solKey, err = crypto.LoadKey(crypto.KeyConfig{
			RawKey:           cfg.Wallet.SolPrivateKey,
			EncryptedKeyPath: cfg.Wallet.SolEncryptedKeyPath,
			Password:         cfg.Wallet.SolKeyPassword,
			Kind:             crypto.KindSolana,
		})
		if err != nil {
			return fail(fmt.Errorf("load solana key: %w", err))
		}
	}

	evmClient, err := evm.NewClient(ctx, evm.Config{
		RPCURL:         cfg.Base.RPCURL,
		ChainID:        cfg.Base.ChainID,
		PrivateKeyHex:  baseKey,
		ConfirmRetries: cfg.Base.ConfirmRetries,
		ConfirmDelay:   cfg.Base.ConfirmDelay.Duration,
		Logger:         logger,
	})
	if err != nil {
		return fail(fmt.Errorf("evm client: %w", err))
	}
	closers = append(closers, evmClient.Close)
	logger.Info("evm client ready", slog.Int64("chain_id", cfg.Base.ChainID))

	baseOwner := cfg.Wallet.BaseAddress
	if addr := evmClient.Address(); addr != "" {
		baseOwner = addr
	}
	if baseOwner == "" {
		return fail(fmt.Errorf("wire: no base wallet address; set wallet.base_address or a signing key"))
	}

	solSubmitter, err := solana.NewSubmitter(solana.Config{
		RPCURL:           cfg.Solana.RPCURL,
		WSURL:            cfg.Solana.WSURL,
		PrivateKeyBase58: solKey,
		ConfirmRetries:   cfg.Solana.ConfirmRetries,
		ConfirmDelay:     cfg.Solana.ConfirmDelay.Duration,
		Logger:           logger,
	})
	if err != nil {
		return fail(fmt.Errorf("solana submitter: %w", err))
	}

	solOwner := cfg.Wallet.SolAddress
	if addr := solSubmitter.Address(); addr != "" {
		solOwner = addr
	}
	if solOwner == "" {
		return fail(fmt.Errorf("wire: no solana wallet address; set wallet.sol_address or a signing key"))
	}

	odosClient := odos.NewClient(cfg.Odos.BaseURL, cfg.Base.ChainID, baseOwner,
		cfg.Odos.SlippagePct, cfg.Odos.Timeout.Duration)

	jupiterClient := jupiter.NewClient(cfg.Jupiter.QuoteURL, cfg.Jupiter.PriceURL, solOwner, jupiter.Options{
		PriorityFeeLamports: cfg.Jupiter.PriorityFeeLamports,
		UseSharedAccounts:   cfg.Jupiter.UseSharedAccounts,
		PriceRatePerSec:     cfg.Jupiter.PriceRatePerSec,
		Timeout:             cfg.Jupiter.Timeout.Duration,
	})

	// The SOL/USD reference price comes from Jupiter, optionally cached in
	// Redis. An empty addr disables the cache.
	var refPricer domain.ReferencePricer = jupiterClient
	if cfg.Redis.Addr != "" {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
		})
		if err != nil {
			return fail(fmt.Errorf("redis: %w", err))
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		logger.Info("redis connected", slog.String("addr", cfg.Redis.Addr))
		refPricer = redis.NewRefPriceCache(redisClient, jupiterClient, cfg.Redis.PriceTTL.Duration, logger)
	}

	normalizer := pricing.NewNormalizer(refPricer, assets.SolQuote.Address, logger)

	detector := engine.NewDetector(engine.DetectorConfig{
		MinDivergencePct: cfg.Arbitrage.MinDivergencePct,
		Logger:           logger,
	})

	registry := engine.NewRegistry()
	balanced := engine.NewBalancedSearch(engine.BalancedSearchConfig{
		MinSize:         cfg.Arbitrage.MinSize,
		MaxSize:         cfg.Arbitrage.MaxSize,
		Increment:       cfg.Arbitrage.SizeIncrement,
		CalibrationSize: cfg.Arbitrage.CalibrationSize,
	}, logger)
	registry.Register(balanced.Name(), balanced)

	gapClose := engine.NewGapClose(engine.GapCloseConfig{
		TargetClose:     cfg.Arbitrage.TargetClose,
		CalibrationSize: cfg.Arbitrage.CalibrationSize,
	}, logger)
	registry.Register(gapClose.Name(), gapClose)

	raydiumClient := raydium.NewClient(cfg.Raydium.BaseURL, cfg.Raydium.Timeout.Duration)
	liquidity := engine.NewLiquidityWeighted(engine.LiquidityWeightedConfig{
		TargetClose:   cfg.Arbitrage.TargetClose,
		SizeWeight:    cfg.Arbitrage.SizeWeight,
		BaseLPAddress: cfg.Base.Tokens[cfg.Arbitrage.TargetToken].LPAddress,
		SolLPAddress:  cfg.Solana.Tokens[cfg.Arbitrage.TargetToken].LPAddress,
		QuoteDecimals: assets.BaseQuote.Decimals,
	}, evmClient, raydiumClient, logger)
	registry.Register(liquidity.Name(), liquidity)

	policy, err := registry.Get(cfg.Arbitrage.Policy)
	if err != nil {
		return fail(fmt.Errorf("sizing policy: %w", err))
	}

	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	notifier := notify.NewNotifier(senders, cfg.Notify.Events, logger)

	var coordinator *engine.Coordinator
	var executor engine.Executor
	if tradeMode {
		coordinator = engine.NewCoordinator(engine.CoordinatorConfig{
			Assets:        assets,
			BaseOwner:     baseOwner,
			Spender:       cfg.Base.OdosRouter,
			BaseQuotes:    odosClient,
			SolQuotes:     jupiterClient,
			BaseAssembler: odosClient,
			SolAssembler:  jupiterClient,
			Allowance:     evmClient,
			BaseSubmitter: evmClient,
			SolSubmitter:  solSubmitter,
			Analyzer:      normalizer,
			Logger:        logger,
		})
		executor = coordinator
	}

	monitor := engine.NewMonitor(engine.MonitorConfig{
		Interval:           cfg.Monitor.Interval.Duration,
		ErrorCooldown:      cfg.Monitor.ErrorCooldown.Duration,
		AlertThresholdPct:  cfg.Monitor.AlertThresholdPct,
		AlertMinChangePct:  cfg.Monitor.AlertMinChangePct,
		AlertCooldown:      cfg.Monitor.AlertCooldown.Duration,
		StatusEvery:        cfg.Monitor.StatusEvery.Duration,
		ReferenceAmount:    cfg.Arbitrage.ReferenceAmount,
		ProfitThresholdUSD: cfg.Arbitrage.ProfitThresholdUSD,
		ExecuteEnabled:     tradeMode,
		Assets:             assets,
	}, odosClient, jupiterClient, normalizer, detector, policy, executor, notifier, logger)

	deps := &Dependencies{
		BaseQuotes:  odosClient,
		SolQuotes:   jupiterClient,
		Normalizer:  normalizer,
		Detector:    detector,
		Policies:    registry,
		Coordinator: coordinator,
		Monitor:     monitor,
		Notifier:    notifier,
	}
	return deps, cleanup, nil
}

// resolveAssets looks up the configured token names in both chains' token
// tables.
func resolveAssets(cfg *config.Config) (engine.Assets, error) {
	lookup := func(chain string, table map[string]config.TokenConfig, name string) (engine.Asset, error) {
		tok, ok := table[name]
		if !ok {
			return engine.Asset{}, fmt.Errorf("wire: token %q not in %s token table", name, chain)
		}
		return engine.Asset{Address: tok.Address, Decimals: tok.Decimals}, nil
	}

	baseToken, err := lookup("base", cfg.Base.Tokens, cfg.Arbitrage.TargetToken)
	if err != nil {
		return engine.Assets{}, err
	}
	baseQuote, err := lookup("base", cfg.Base.Tokens, cfg.Arbitrage.BaseQuoteToken)
	if err != nil {
		return engine.Assets{}, err
	}
	solToken, err := lookup("solana", cfg.Solana.Tokens, cfg.Arbitrage.TargetToken)
	if err != nil {
		return engine.Assets{}, err
	}
	solQuote, err := lookup("solana", cfg.Solana.Tokens, cfg.Arbitrage.SolQuoteToken)
	if err != nil {
		return engine.Assets{}, err
	}

	return engine.Assets{
		BaseToken: baseToken,
		BaseQuote: baseQuote,
		SolToken:  solToken,
		SolQuote:  solQuote,
	}, nil
}
