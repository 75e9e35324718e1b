// Package engine contains the arbitrage decision pipeline: divergence
// detection, trade sizing policies, the settlement coordinator, and the
// monitoring loop that drives them.
package engine

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Adam-leaf/arbitrage-bot/internal/domain"
)

// DetectorConfig configures the opportunity detector.
type DetectorConfig struct {
	// MinDivergencePct is the relative price divergence, in percent, below
	// which no opportunity is reported.
	MinDivergencePct float64
	Logger           *slog.Logger
}

// Detector compares the two chains' normalized prices and reports a crossable
// divergence as an Opportunity.
type Detector struct {
	minDivergencePct float64
	logger           *slog.Logger
}

// NewDetector creates a detector.
func NewDetector(cfg DetectorConfig) *Detector {
	return &Detector{
		minDivergencePct: cfg.MinDivergencePct,
		logger:           cfg.Logger.With(slog.String("component", "detector")),
	}
}

// Detect returns an Opportunity when the normalized prices diverge beyond the
// configured threshold, and false otherwise. A zero impact on either side
// marks a degenerate quote; the pair is discarded before any divergence math
// runs, no matter how wide the gap looks.
func (d *Detector) Detect(base, sol domain.NormalizedPrice) (domain.Opportunity, bool) {
	if base.ImpactPct == 0 || sol.ImpactPct == 0 {
		d.logger.Warn("zero impact detected, skipping round",
			slog.Float64("base_impact_pct", base.ImpactPct),
			slog.Float64("sol_impact_pct", sol.ImpactPct),
		)
		return domain.Opportunity{}, false
	}
	if base.USDPrice <= 0 || sol.USDPrice <= 0 {
		return domain.Opportunity{}, false
	}

	avg := (base.USDPrice + sol.USDPrice) / 2
	diff := base.USDPrice - sol.USDPrice
	if diff < 0 {
		diff = -diff
	}
	divergencePct := diff / avg * 100

	if divergencePct < d.minDivergencePct {
		return domain.Opportunity{}, false
	}

	// Buy wherever the token is cheaper. An exact tie sells the EVM side.
	direction := domain.BuySolSellBase
	if base.USDPrice < sol.USDPrice {
		direction = domain.BuyBaseSellSol
	}

	opp := domain.Opportunity{
		ID:            uuid.Must(uuid.NewRandom()).String(),
		Direction:     direction,
		Base:          base,
		Sol:           sol,
		DivergencePct: divergencePct,
		DetectedAt:    time.Now(),
	}
	d.logger.Info("arbitrage opportunity found",
		slog.String("opp_id", opp.ID),
		slog.String("direction", string(direction)),
		slog.Float64("base_usd", base.USDPrice),
		slog.Float64("sol_usd", sol.USDPrice),
		slog.Float64("divergence_pct", divergencePct),
	)
	return opp, true
}
