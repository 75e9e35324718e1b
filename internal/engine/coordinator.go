package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Adam-leaf/arbitrage-bot/internal/domain"
	"github.com/Adam-leaf/arbitrage-bot/internal/pricing"
)

// Asset is a token address with its decimal count.
type Asset struct {
	Address  string
	Decimals int
}

// Assets names the four tokens the coordinator trades between: the arbitraged
// token and the intermediate asset on each chain.
type Assets struct {
	BaseToken Asset // arbitraged token on the EVM chain
	BaseQuote Asset // EVM intermediate asset (e.g. VIRTUAL)
	SolToken  Asset // arbitraged token on Solana
	SolQuote  Asset // wrapped SOL
}

// ExecutionAnalyzer re-validates a pair of fresh execution quotes. Satisfied
// by pricing.Normalizer.
type ExecutionAnalyzer interface {
	AnalyzeExecution(ctx context.Context, dir domain.TradeDirection, baseQuote, solQuote domain.Quote, dec pricing.LegDecimals) (pricing.ExecutionAnalysis, error)
}

// CoordinatorConfig wires the settlement coordinator's collaborators.
type CoordinatorConfig struct {
	Assets Assets
	// BaseOwner is the EVM wallet address; Spender is the router the EVM
	// leg's input token must be approved for.
	BaseOwner string
	Spender   string

	BaseQuotes    domain.QuoteProvider
	SolQuotes     domain.QuoteProvider
	BaseAssembler domain.Assembler
	SolAssembler  domain.Assembler
	Allowance     domain.AllowanceManager
	BaseSubmitter domain.Submitter
	SolSubmitter  domain.Submitter
	Analyzer      ExecutionAnalyzer

	Logger *slog.Logger
}

// Coordinator executes a sized opportunity as two coordinated swaps, one per
// chain, through a fixed sequence of gates: re-quote, re-validate, assemble,
// approve, submit, confirm. Any gate's failure is terminal for the attempt.
// The two legs share no transaction and cannot be rolled back, so the result
// explicitly distinguishes a partial fill from a clean failure.
type Coordinator struct {
	cfg    CoordinatorConfig
	logger *slog.Logger
}

// NewCoordinator creates a settlement coordinator.
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	return &Coordinator{
		cfg:    cfg,
		logger: cfg.Logger.With(slog.String("component", "coordinator")),
	}
}

// legRequests builds each leg's quote request for the sized trade. The buy
// leg spends the chain's intermediate asset; the sell leg spends the token.
func (c *Coordinator) legRequests(sized domain.SizedOpportunity) (base, sol domain.QuoteRequest) {
	a := c.cfg.Assets
	switch sized.Direction {
	case domain.BuyBaseSellSol:
		base = domain.QuoteRequest{
			InToken:    a.BaseQuote.Address,
			OutToken:   a.BaseToken.Address,
			Amount:     sized.BuyLegAmount,
			InDecimals: a.BaseQuote.Decimals,
		}
		sol = domain.QuoteRequest{
			InToken:    a.SolToken.Address,
			OutToken:   a.SolQuote.Address,
			Amount:     sized.SellLegAmount,
			InDecimals: a.SolToken.Decimals,
		}
	default: // BuySolSellBase
		base = domain.QuoteRequest{
			InToken:    a.BaseToken.Address,
			OutToken:   a.BaseQuote.Address,
			Amount:     sized.SellLegAmount,
			InDecimals: a.BaseToken.Decimals,
		}
		sol = domain.QuoteRequest{
			InToken:    a.SolQuote.Address,
			OutToken:   a.SolToken.Address,
			Amount:     sized.BuyLegAmount,
			InDecimals: a.SolQuote.Decimals,
		}
	}
	return base, sol
}

// Execute runs the sized opportunity through all gates and returns the
// terminal TradeResult. It never panics and never retries within the attempt;
// the monitoring loop decides whether to try again on a later cycle.
func (c *Coordinator) Execute(ctx context.Context, sized domain.SizedOpportunity) domain.TradeResult {
	res := domain.TradeResult{AttemptID: uuid.New().String()}
	log := c.logger.With(
		slog.String("attempt_id", res.AttemptID),
		slog.String("opp_id", sized.ID),
		slog.String("direction", string(sized.Direction)),
	)

	// Gate 1: re-quote both legs at the sized amounts.
	baseReq, solReq := c.legRequests(sized)
	var baseQuote, solQuote domain.Quote
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		baseQuote, err = c.cfg.BaseQuotes.GetQuote(gctx, baseReq)
		return err
	})
	g.Go(func() error {
		var err error
		solQuote, err = c.cfg.SolQuotes.GetQuote(gctx, solReq)
		return err
	})
	if err := g.Wait(); err != nil {
		res.Stage = domain.StageQuote
		res.Err = fmt.Sprintf("quote failed: %v", err)
		log.Error("execution quote failed", slog.String("error", err.Error()))
		return res
	}

	// Gate 2: re-validate against the fresh quotes. Prices move between
	// sizing and execution; this gate is what stands between the bot and
	// trading on a stale estimate.
	analysis, err := c.cfg.Analyzer.AnalyzeExecution(ctx, sized.Direction, baseQuote, solQuote, pricing.LegDecimals{
		BaseToken: c.cfg.Assets.BaseToken.Decimals,
		SolToken:  c.cfg.Assets.SolToken.Decimals,
		Sol:       c.cfg.Assets.SolQuote.Decimals,
	})
	if err != nil {
		res.Stage = domain.StageValidate
		res.Err = fmt.Sprintf("revalidation failed: %v", err)
		log.Error("revalidation failed", slog.String("error", err.Error()))
		return res
	}
	if analysis.ProfitUSD <= 0 {
		res.Stage = domain.StageValidate
		res.Err = fmt.Sprintf("no longer profitable after fresh quote: %.6f USD", analysis.ProfitUSD)
		log.Info("aborting, no longer profitable",
			slog.Float64("profit_usd", analysis.ProfitUSD),
			slog.Float64("imbalance_usd", analysis.ImbalanceUSD),
		)
		return res
	}
	log.Info("revalidation passed",
		slog.Float64("profit_usd", analysis.ProfitUSD),
		slog.Float64("usd_base", analysis.USDBase),
		slog.Float64("usd_sol", analysis.USDSol),
	)

	// Gate 3: assemble both transactions.
	var basePayload, solPayload domain.Payload
	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		basePayload, err = c.cfg.BaseAssembler.Assemble(gctx, baseQuote)
		return err
	})
	g.Go(func() error {
		var err error
		solPayload, err = c.cfg.SolAssembler.Assemble(gctx, solQuote)
		return err
	})
	if err := g.Wait(); err != nil {
		res.Stage = domain.StageAssemble
		res.Err = fmt.Sprintf("%v: %v", domain.ErrAssembly, err)
		log.Error("assembly failed", slog.String("error", err.Error()))
		return res
	}

	// Gate 4: EVM-side allowance. The router must be able to pull the
	// input token before the swap can execute.
	needs, err := c.cfg.Allowance.NeedsApproval(ctx, baseReq.InToken, c.cfg.BaseOwner, c.cfg.Spender)
	if err != nil {
		res.Stage = domain.StageApprove
		res.Err = fmt.Sprintf("allowance check failed: %v", err)
		log.Error("allowance check failed", slog.String("error", err.Error()))
		return res
	}
	if needs {
		log.Info("submitting infinite approval", slog.String("token", baseReq.InToken))
		if err := c.cfg.Allowance.Approve(ctx, baseReq.InToken, c.cfg.Spender); err != nil {
			res.Stage = domain.StageApprove
			res.Err = fmt.Sprintf("approval failed: %v", err)
			log.Error("approval failed", slog.String("error", err.Error()))
			return res
		}
	}

	// Gates 5 and 6: submit both legs and confirm each independently. A
	// plain WaitGroup, not an errgroup: one leg's failure must never cancel
	// the other once submission has started.
	var (
		wg              sync.WaitGroup
		baseTx, solTx   string
		baseErr, solErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		baseTx, baseErr = c.cfg.BaseSubmitter.SubmitAndConfirm(ctx, basePayload)
	}()
	go func() {
		defer wg.Done()
		solTx, solErr = c.cfg.SolSubmitter.SubmitAndConfirm(ctx, solPayload)
	}()
	wg.Wait()

	res.BaseTxID = baseTx
	res.SolTxID = solTx

	switch {
	case baseErr == nil && solErr == nil:
		res.Success = true
		res.Stage = domain.StageSettled
		log.Info("both legs settled",
			slog.String("base_tx", baseTx),
			slog.String("sol_tx", solTx),
			slog.Float64("expected_profit_usd", analysis.ProfitUSD),
		)
	case baseErr != nil && solErr != nil:
		res.Stage = domain.StageSubmit
		res.Err = fmt.Sprintf("both legs failed: base: %v; sol: %v", baseErr, solErr)
		log.Error("both legs failed",
			slog.String("base_error", baseErr.Error()),
			slog.String("sol_error", solErr.Error()),
		)
	default:
		// One leg settled, the other did not: surfaced for manual
		// reconciliation, never silently swallowed.
		res.Partial = true
		res.Stage = domain.StageSubmit
		failed := baseErr
		leg := "base"
		if failed == nil {
			failed = solErr
			leg = "sol"
		}
		res.Err = fmt.Sprintf("%v: %s leg failed: %v", domain.ErrPartialFill, leg, failed)
		log.Error("partial fill, manual reconciliation required",
			slog.String("failed_leg", leg),
			slog.String("base_tx", baseTx),
			slog.String("sol_tx", solTx),
			slog.String("error", failed.Error()),
		)
	}
	return res
}
