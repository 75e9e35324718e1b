package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adam-leaf/arbitrage-bot/internal/domain"
	"github.com/Adam-leaf/arbitrage-bot/internal/notify"
)

// PriceNormalizer reduces a raw quote to the common unit system. Satisfied by
// pricing.Normalizer.
type PriceNormalizer interface {
	Normalize(ctx context.Context, q domain.Quote, outDecimals int, refAmount float64) (domain.NormalizedPrice, error)
}

// Executor runs a sized opportunity to settlement. Satisfied by Coordinator.
type Executor interface {
	Execute(ctx context.Context, sized domain.SizedOpportunity) domain.TradeResult
}

// Notifier delivers operator notifications. Satisfied by notify.Notifier.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// MonitorConfig configures the monitoring loop.
type MonitorConfig struct {
	// Interval is the normal gap between cycles; ErrorCooldown replaces it
	// after a failed cycle.
	Interval      time.Duration
	ErrorCooldown time.Duration

	// AlertThresholdPct triggers an operator alert when divergence exceeds
	// it, independent of trading. AlertMinChangePct and AlertCooldown keep
	// a persistent divergence from spamming the channel.
	AlertThresholdPct float64
	AlertMinChangePct float64
	AlertCooldown     time.Duration

	// StatusEvery controls the heartbeat log; zero disables it.
	StatusEvery time.Duration

	// ReferenceAmount is the token amount reference quotes are fetched for.
	ReferenceAmount float64
	// ProfitThresholdUSD is the minimum estimated profit to execute.
	ProfitThresholdUSD float64
	// ExecuteEnabled gates trading; when false the loop only observes and
	// alerts.
	ExecuteEnabled bool

	Assets Assets
}

// Monitor drives the detection pipeline on a fixed cadence: quote both
// chains, normalize, detect, size, execute. Every error is contained within
// its own cycle; the loop itself stops only on context cancellation.
type Monitor struct {
	cfg        MonitorConfig
	baseQuotes domain.QuoteProvider
	solQuotes  domain.QuoteProvider
	normalizer PriceNormalizer
	detector   *Detector
	policy     SizingPolicy
	executor   Executor
	notifier   Notifier
	logger     *slog.Logger

	// Alert state, touched only by the loop goroutine.
	lastAlertAt  time.Time
	lastAlertPct float64

	cycles     uint64
	cycleErrs  uint64
	lastStatus time.Time
}

// NewMonitor creates the monitoring loop. executor may be nil only when
// cfg.ExecuteEnabled is false.
func NewMonitor(cfg MonitorConfig, baseQuotes, solQuotes domain.QuoteProvider, normalizer PriceNormalizer, detector *Detector, policy SizingPolicy, executor Executor, notifier Notifier, logger *slog.Logger) *Monitor {
	return &Monitor{
		cfg:        cfg,
		baseQuotes: baseQuotes,
		solQuotes:  solQuotes,
		normalizer: normalizer,
		detector:   detector,
		policy:     policy,
		executor:   executor,
		notifier:   notifier,
		logger:     logger.With(slog.String("component", "monitor")),
	}
}

// Run blocks until ctx is cancelled. A failed cycle is logged and followed by
// the longer error cooldown instead of the normal interval.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("monitor started",
		slog.Duration("interval", m.cfg.Interval),
		slog.Bool("execute_enabled", m.cfg.ExecuteEnabled),
		slog.String("policy", m.policy.Name()),
	)
	defer m.logger.Info("monitor stopped")
	m.lastStatus = time.Now()

	for {
		delay := m.cfg.Interval
		m.cycles++
		if err := m.cycle(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			m.cycleErrs++
			m.logger.Error("cycle failed, cooling down",
				slog.String("error", err.Error()),
				slog.Duration("cooldown", m.cfg.ErrorCooldown),
			)
			delay = m.cfg.ErrorCooldown
		}

		m.maybeHeartbeat()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// cycle runs one full pass of the pipeline. Everything it computes is local
// to the call; nothing carries over to the next cycle except alert state.
func (m *Monitor) cycle(ctx context.Context) error {
	a := m.cfg.Assets

	baseReq := domain.QuoteRequest{
		InToken:    a.BaseToken.Address,
		OutToken:   a.BaseQuote.Address,
		Amount:     m.cfg.ReferenceAmount,
		InDecimals: a.BaseToken.Decimals,
	}
	solReq := domain.QuoteRequest{
		InToken:    a.SolToken.Address,
		OutToken:   a.SolQuote.Address,
		Amount:     m.cfg.ReferenceAmount,
		InDecimals: a.SolToken.Decimals,
	}

	var baseQuote, solQuote domain.Quote
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		baseQuote, err = m.baseQuotes.GetQuote(gctx, baseReq)
		return err
	})
	g.Go(func() error {
		var err error
		solQuote, err = m.solQuotes.GetQuote(gctx, solReq)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("reference quotes: %w", err)
	}

	base, err := m.normalizer.Normalize(ctx, baseQuote, a.BaseQuote.Decimals, m.cfg.ReferenceAmount)
	if err != nil {
		return fmt.Errorf("normalize base: %w", err)
	}
	sol, err := m.normalizer.Normalize(ctx, solQuote, a.SolQuote.Decimals, m.cfg.ReferenceAmount)
	if err != nil {
		return fmt.Errorf("normalize sol: %w", err)
	}

	m.logger.Debug("prices",
		slog.Float64("base_usd", base.USDPrice),
		slog.Float64("sol_usd", sol.USDPrice),
	)

	m.maybeAlert(ctx, base, sol)

	opp, found := m.detector.Detect(base, sol)
	if !found {
		return nil
	}
	m.notifyEvent(ctx, notify.EventOpportunity, "Arbitrage opportunity",
		fmt.Sprintf("direction=%s divergence=%.2f%% base=$%.6f sol=$%.6f",
			opp.Direction, opp.DivergencePct, base.USDPrice, sol.USDPrice))

	if !m.cfg.ExecuteEnabled {
		return nil
	}

	sized, err := m.policy.Size(ctx, SizingInput{Opp: opp})
	if err != nil {
		return fmt.Errorf("sizing: %w", err)
	}
	if sized.IsZero() {
		m.logger.Info("no profitable size", slog.String("opp_id", opp.ID))
		return nil
	}
	if sized.ExpectedProfitUSD <= m.cfg.ProfitThresholdUSD {
		m.logger.Info("expected profit below threshold",
			slog.String("opp_id", opp.ID),
			slog.Float64("expected_profit_usd", sized.ExpectedProfitUSD),
			slog.Float64("threshold_usd", m.cfg.ProfitThresholdUSD),
		)
		return nil
	}

	res := m.executor.Execute(ctx, sized)
	switch {
	case res.Success:
		m.notifyEvent(ctx, notify.EventTradeExecuted, "Trade executed",
			fmt.Sprintf("profit est. $%.4f\nbase tx: %s\nsol tx: %s",
				sized.ExpectedProfitUSD, res.BaseTxID, res.SolTxID))
	case res.Partial:
		m.notifyEvent(ctx, notify.EventPartialFill, "PARTIAL FILL - reconcile manually",
			fmt.Sprintf("stage=%s base_tx=%q sol_tx=%q err=%s",
				res.Stage, res.BaseTxID, res.SolTxID, res.Err))
	default:
		m.notifyEvent(ctx, notify.EventError, "Trade failed",
			fmt.Sprintf("stage=%s err=%s", res.Stage, res.Err))
	}
	return nil
}

// maybeAlert sends a divergence alert when the gap is above the alert
// threshold and either the cooldown has expired or the divergence moved by
// more than the minimum change since the last alert.
func (m *Monitor) maybeAlert(ctx context.Context, base, sol domain.NormalizedPrice) {
	if m.cfg.AlertThresholdPct <= 0 || base.USDPrice <= 0 || sol.USDPrice <= 0 {
		return
	}
	avg := (base.USDPrice + sol.USDPrice) / 2
	diff := base.USDPrice - sol.USDPrice
	if diff < 0 {
		diff = -diff
	}
	pct := diff / avg * 100
	if pct < m.cfg.AlertThresholdPct {
		return
	}

	change := pct - m.lastAlertPct
	if change < 0 {
		change = -change
	}
	if !m.lastAlertAt.IsZero() && time.Since(m.lastAlertAt) < m.cfg.AlertCooldown && change < m.cfg.AlertMinChangePct {
		return
	}
	m.lastAlertAt = time.Now()
	m.lastAlertPct = pct

	m.notifyEvent(ctx, notify.EventDivergence, "Price divergence",
		fmt.Sprintf("divergence=%.2f%% base=$%.6f sol=$%.6f", pct, base.USDPrice, sol.USDPrice))
}

func (m *Monitor) maybeHeartbeat() {
	if m.cfg.StatusEvery <= 0 || time.Since(m.lastStatus) < m.cfg.StatusEvery {
		return
	}
	m.lastStatus = time.Now()
	m.logger.Info("monitor status",
		slog.Uint64("cycles", m.cycles),
		slog.Uint64("cycle_errors", m.cycleErrs),
	)
}

func (m *Monitor) notifyEvent(ctx context.Context, event, title, message string) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Notify(ctx, event, title, message); err != nil {
		m.logger.Warn("notification failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
