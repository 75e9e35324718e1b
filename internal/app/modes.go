package app

import (
	"context"
	"log/slog"
)

// MonitorMode runs the detection loop without execution: quotes, divergence
// detection, and operator alerts only.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "monitor mode started")
	return deps.Monitor.Run(ctx)
}

// TradeMode runs the same loop with execution enabled: sized opportunities
// above the profit threshold are handed to the settlement coordinator.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "trade mode started",
		slog.String("policy", a.cfg.Arbitrage.Policy),
		slog.Float64("profit_threshold_usd", a.cfg.Arbitrage.ProfitThresholdUSD),
	)
	return deps.Monitor.Run(ctx)
}
