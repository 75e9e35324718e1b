package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/Adam-leaf/arbitrage-bot/internal/domain"
)

// BalancedSearchConfig configures the scanning sizer.
type BalancedSearchConfig struct {
	// MinSize and MaxSize bound the scanned token amounts.
	MinSize float64
	MaxSize float64
	// Increment is the scan step.
	Increment float64
	// CalibrationSize is the trade size the quoted impact was observed at;
	// impact at other sizes extrapolates via the square-root model.
	CalibrationSize float64
}

// BalancedSearch scans candidate token amounts from smallest to largest and
// takes the first size that is profitable under the impact model. Stopping at
// the first hit deliberately biases toward smaller trades: model error grows
// with size, and a small real profit beats a large modeled one.
type BalancedSearch struct {
	cfg    BalancedSearchConfig
	logger *slog.Logger
}

// NewBalancedSearch creates the scanning sizer.
func NewBalancedSearch(cfg BalancedSearchConfig, logger *slog.Logger) *BalancedSearch {
	return &BalancedSearch{cfg: cfg, logger: logger.With(slog.String("sizing_policy", "balanced_search"))}
}

// Name returns the policy identifier.
func (b *BalancedSearch) Name() string { return "balanced_search" }

// Size scans [MinSize, MaxSize] in Increment steps and returns the first
// profitable size, or the zero SizedOpportunity when none exists.
func (b *BalancedSearch) Size(ctx context.Context, in SizingInput) (domain.SizedOpportunity, error) {
	opp := in.Opp
	buy, sell := opp.BuyLeg(), opp.SellLeg()
	if buy.USDPrice <= 0 || sell.USDPrice <= 0 {
		return domain.SizedOpportunity{}, nil
	}
	if buy.ImpactPct <= 0 || sell.ImpactPct <= 0 {
		return domain.SizedOpportunity{}, fmt.Errorf("balanced_search: impacts %.6f/%.6f: %w",
			buy.ImpactPct, sell.ImpactPct, domain.ErrZeroImpact)
	}
	if b.cfg.MinSize <= 0 || b.cfg.MaxSize < b.cfg.MinSize || b.cfg.Increment <= 0 {
		return domain.SizedOpportunity{}, nil
	}

	buySlope := impactSlope(buy.ImpactPct, b.cfg.CalibrationSize)
	sellSlope := impactSlope(sell.ImpactPct, b.cfg.CalibrationSize)

	// The range is closed; the tolerance keeps accumulated float error from
	// dropping a MaxSize the step sequence lands on exactly.
	tol := b.cfg.Increment * 1e-9
	for x := b.cfg.MinSize; x <= b.cfg.MaxSize+tol; x += b.cfg.Increment {
		cost, proceeds, ok := legEconomics(x, buy.USDPrice, sell.USDPrice, buySlope, sellSlope)
		if !ok {
			continue
		}
		profit := proceeds - cost
		if profit <= 0 || cost <= 0 || proceeds <= 0 {
			continue
		}

		sized := domain.SizedOpportunity{
			Opportunity:       opp,
			TokenAmount:       x,
			BuyLegAmount:      x * buy.CrossRate,
			SellLegAmount:     x,
			ExpectedProfitUSD: profit,
			Audit: domain.SizingAudit{
				Policy:           b.Name(),
				PriceGapUSD:      sell.USDPrice - buy.USDPrice,
				BuyImpactPctAtX:  buySlope * math.Sqrt(x) * 100,
				SellImpactPctAtX: sellSlope * math.Sqrt(x) * 100,
				BuyLegUSD:        cost,
				SellLegUSD:       proceeds,
			},
		}
		b.logger.InfoContext(ctx, "sized trade",
			slog.String("opp_id", opp.ID),
			slog.Float64("token_amount", x),
			slog.Float64("cost_usd", cost),
			slog.Float64("proceeds_usd", proceeds),
			slog.Float64("expected_profit_usd", profit),
			slog.Float64("buy_impact_pct", sized.Audit.BuyImpactPctAtX),
			slog.Float64("sell_impact_pct", sized.Audit.SellImpactPctAtX),
		)
		return sized, nil
	}

	b.logger.DebugContext(ctx, "no profitable size in range",
		slog.String("opp_id", opp.ID),
		slog.Float64("min_size", b.cfg.MinSize),
		slog.Float64("max_size", b.cfg.MaxSize),
	)
	return domain.SizedOpportunity{}, nil
}
