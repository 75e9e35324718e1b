package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/Adam-leaf/arbitrage-bot/internal/domain"
)

// GapCloseConfig configures the closed-form sizer.
type GapCloseConfig struct {
	// TargetClose is the fraction of the price gap the trade should
	// eliminate, in (0, 1].
	TargetClose float64
	// CalibrationSize anchors the square-root impact model, as in
	// BalancedSearchConfig.
	CalibrationSize float64
}

// GapClose solves directly for the token amount whose combined two-sided
// impact moves the prices together by TargetClose of the current gap. Under
// impact(x) = slope*sqrt(x), the buy side rises by buyPrice*buySlope*sqrt(x)
// and the sell side falls by sellPrice*sellSlope*sqrt(x), giving a linear
// equation in sqrt(x).
type GapClose struct {
	cfg    GapCloseConfig
	logger *slog.Logger
}

// NewGapClose creates the closed-form sizer.
func NewGapClose(cfg GapCloseConfig, logger *slog.Logger) *GapClose {
	return &GapClose{cfg: cfg, logger: logger.With(slog.String("sizing_policy", "gap_close"))}
}

// Name returns the policy identifier.
func (g *GapClose) Name() string { return "gap_close" }

// Size returns the gap-closing token amount, or the zero SizedOpportunity
// when the gap is not crossable or the solution is non-positive.
func (g *GapClose) Size(ctx context.Context, in SizingInput) (domain.SizedOpportunity, error) {
	opp := in.Opp
	buy, sell := opp.BuyLeg(), opp.SellLeg()
	if buy.USDPrice <= 0 || sell.USDPrice <= 0 {
		return domain.SizedOpportunity{}, nil
	}
	if buy.ImpactPct <= 0 || sell.ImpactPct <= 0 {
		return domain.SizedOpportunity{}, fmt.Errorf("gap_close: impacts %.6f/%.6f: %w",
			buy.ImpactPct, sell.ImpactPct, domain.ErrZeroImpact)
	}
	if g.cfg.TargetClose <= 0 || g.cfg.TargetClose > 1 {
		return domain.SizedOpportunity{}, nil
	}

	buySlope := impactSlope(buy.ImpactPct, g.cfg.CalibrationSize)
	sellSlope := impactSlope(sell.ImpactPct, g.cfg.CalibrationSize)

	// gap <= 0 means the buy side is cheaper and the gap is crossable.
	gap := buy.USDPrice - sell.USDPrice
	denom := buy.USDPrice*buySlope + sell.USDPrice*sellSlope
	if denom <= 0 {
		return domain.SizedOpportunity{}, nil
	}

	sqrtX := -g.cfg.TargetClose * gap / denom
	if sqrtX <= 0 {
		return domain.SizedOpportunity{}, nil
	}
	x := sqrtX * sqrtX

	cost, proceeds, ok := legEconomics(x, buy.USDPrice, sell.USDPrice, buySlope, sellSlope)
	if !ok {
		return domain.SizedOpportunity{}, nil
	}

	sized := domain.SizedOpportunity{
		Opportunity:       opp,
		TokenAmount:       x,
		BuyLegAmount:      x * buy.CrossRate,
		SellLegAmount:     x,
		ExpectedProfitUSD: proceeds - cost,
		Audit: domain.SizingAudit{
			Policy:           g.Name(),
			PriceGapUSD:      -gap,
			TargetGapUSD:     -gap * (1 - g.cfg.TargetClose),
			BuyImpactPctAtX:  buySlope * sqrtX * 100,
			SellImpactPctAtX: sellSlope * sqrtX * 100,
			BuyLegUSD:        cost,
			SellLegUSD:       proceeds,
		},
	}
	g.logger.InfoContext(ctx, "sized trade",
		slog.String("opp_id", opp.ID),
		slog.Float64("gap_usd", math.Abs(gap)),
		slog.Float64("token_amount", x),
		slog.Float64("cost_usd", cost),
		slog.Float64("proceeds_usd", proceeds),
		slog.Float64("expected_profit_usd", sized.ExpectedProfitUSD),
	)
	return sized, nil
}
