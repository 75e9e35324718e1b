package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/Adam-leaf/arbitrage-bot/internal/domain"
)

// LiquidityWeightedConfig configures the pool-depth sizer.
type LiquidityWeightedConfig struct {
	// TargetClose is the fraction of the price gap to eliminate, in (0, 1].
	TargetClose float64
	// SizeWeight blends the two legs' implied sizes: 0 takes the smaller,
	// 1 the larger.
	SizeWeight float64
	// BaseLPAddress is the EVM chain's constant-product pair for the token.
	BaseLPAddress string
	// SolLPAddress is the Solana pool id for the token.
	SolLPAddress string
	// QuoteDecimals is the decimal count of the pair's reserve0 token (the
	// EVM intermediate asset).
	QuoteDecimals int
}

// LiquidityWeighted sizes from live pool depth instead of quoted impact: it
// computes, per leg, the token amount whose trade would move that leg's price
// halfway toward the target, then blends the two implied amounts. Each side
// moves half the closed gap because both legs push the prices toward each
// other.
type LiquidityWeighted struct {
	cfg    LiquidityWeightedConfig
	pairs  domain.PairReserveReader
	depths domain.PoolDepthReader
	logger *slog.Logger
}

// NewLiquidityWeighted creates the pool-depth sizer.
func NewLiquidityWeighted(cfg LiquidityWeightedConfig, pairs domain.PairReserveReader, depths domain.PoolDepthReader, logger *slog.Logger) *LiquidityWeighted {
	return &LiquidityWeighted{
		cfg:    cfg,
		pairs:  pairs,
		depths: depths,
		logger: logger.With(slog.String("sizing_policy", "liquidity_weighted")),
	}
}

// Name returns the policy identifier.
func (l *LiquidityWeighted) Name() string { return "liquidity_weighted" }

// Size reads both pools' depth and returns the blended token amount. Unlike
// the model-based policies, this one performs network reads and can fail.
func (l *LiquidityWeighted) Size(ctx context.Context, in SizingInput) (domain.SizedOpportunity, error) {
	opp := in.Opp
	buy, sell := opp.BuyLeg(), opp.SellLeg()
	if opp.Base.USDPrice <= 0 || opp.Sol.USDPrice <= 0 {
		return domain.SizedOpportunity{}, nil
	}
	if opp.Base.CrossRate <= 0 || opp.Sol.CrossRate <= 0 {
		return domain.SizedOpportunity{}, nil
	}
	if l.cfg.TargetClose <= 0 || l.cfg.TargetClose > 1 {
		return domain.SizedOpportunity{}, nil
	}

	gap := math.Abs(opp.Base.USDPrice - opp.Sol.USDPrice)
	if gap == 0 {
		return domain.SizedOpportunity{}, nil
	}
	// Each side carries half of the closed portion of the gap.
	priceMove := gap * l.cfg.TargetClose / 2
	targetGap := gap * (1 - l.cfg.TargetClose)

	reserve0, _, err := l.pairs.PairReserves(ctx, l.cfg.BaseLPAddress)
	if err != nil {
		return domain.SizedOpportunity{}, fmt.Errorf("engine: base pair reserves: %w", err)
	}
	solPoolUSD, err := l.depths.PoolUSDDepth(ctx, l.cfg.SolLPAddress)
	if err != nil {
		return domain.SizedOpportunity{}, fmt.Errorf("engine: sol pool depth: %w", err)
	}

	// reserve0 is the EVM intermediate asset; value it in USD through the
	// token's cross rate. The Solana pool reports total depth, so one side
	// is half of it.
	quoteUSDPrice := opp.Base.USDPrice / opp.Base.CrossRate
	basePoolLiquidity := reserve0 / math.Pow10(l.cfg.QuoteDecimals) * quoteUSDPrice
	solPoolLiquidity := solPoolUSD / 2
	if basePoolLiquidity <= 0 || solPoolLiquidity <= 0 {
		return domain.SizedOpportunity{}, nil
	}

	deltaBase := priceMove / opp.Base.USDPrice * basePoolLiquidity
	deltaSol := priceMove / opp.Sol.USDPrice * solPoolLiquidity

	smaller, larger := deltaBase, deltaSol
	if smaller > larger {
		smaller, larger = larger, smaller
	}
	x := smaller + (larger-smaller)*l.cfg.SizeWeight
	if x <= 0 {
		return domain.SizedOpportunity{}, nil
	}

	cost := x * buy.USDPrice
	proceeds := x * sell.USDPrice

	sized := domain.SizedOpportunity{
		Opportunity:       opp,
		TokenAmount:       x,
		BuyLegAmount:      x * buy.CrossRate,
		SellLegAmount:     x,
		ExpectedProfitUSD: proceeds - cost,
		Audit: domain.SizingAudit{
			Policy:       l.Name(),
			PriceGapUSD:  gap,
			TargetGapUSD: targetGap,
			BuyLegUSD:    cost,
			SellLegUSD:   proceeds,
		},
	}
	l.logger.InfoContext(ctx, "sized trade",
		slog.String("opp_id", opp.ID),
		slog.Float64("gap_usd", gap),
		slog.Float64("price_move_usd", priceMove),
		slog.Float64("base_pool_usd", basePoolLiquidity),
		slog.Float64("sol_pool_usd", solPoolLiquidity),
		slog.Float64("delta_base", deltaBase),
		slog.Float64("delta_sol", deltaSol),
		slog.Float64("token_amount", x),
		slog.Float64("expected_profit_usd", sized.ExpectedProfitUSD),
	)
	return sized, nil
}
