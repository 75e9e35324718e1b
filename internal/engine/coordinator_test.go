package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adam-leaf/arbitrage-bot/internal/domain"
	"github.com/Adam-leaf/arbitrage-bot/internal/pricing"
)

type stubQuoteProvider struct {
	quote   domain.Quote
	err     error
	calls   int
	lastReq domain.QuoteRequest
}

func (s *stubQuoteProvider) GetQuote(ctx context.Context, req domain.QuoteRequest) (domain.Quote, error) {
	s.calls++
	s.lastReq = req
	return s.quote, s.err
}

type stubAssembler struct {
	payload domain.Payload
	err     error
	calls   int
}

func (s *stubAssembler) Assemble(ctx context.Context, q domain.Quote) (domain.Payload, error) {
	s.calls++
	return s.payload, s.err
}

type stubAllowance struct {
	needs        bool
	needsErr     error
	approveErr   error
	approveCalls int
}

func (s *stubAllowance) NeedsApproval(ctx context.Context, token, owner, spender string) (bool, error) {
	return s.needs, s.needsErr
}

func (s *stubAllowance) Approve(ctx context.Context, token, spender string) error {
	s.approveCalls++
	return s.approveErr
}

type stubSubmitter struct {
	tx    string
	err   error
	calls int
}

func (s *stubSubmitter) SubmitAndConfirm(ctx context.Context, p domain.Payload) (string, error) {
	s.calls++
	return s.tx, s.err
}

type stubAnalyzer struct {
	analysis pricing.ExecutionAnalysis
	err      error
	calls    int
}

func (s *stubAnalyzer) AnalyzeExecution(ctx context.Context, dir domain.TradeDirection, baseQuote, solQuote domain.Quote, dec pricing.LegDecimals) (pricing.ExecutionAnalysis, error) {
	s.calls++
	return s.analysis, s.err
}

type coordinatorFixture struct {
	baseQuotes, solQuotes *stubQuoteProvider
	baseAsm, solAsm       *stubAssembler
	allowance             *stubAllowance
	baseSub, solSub       *stubSubmitter
	analyzer              *stubAnalyzer
	coord                 *Coordinator
}

func testAssets() Assets {
	return Assets{
		BaseToken: Asset{Address: "0xToken", Decimals: 18},
		BaseQuote: Asset{Address: "0xVirtual", Decimals: 18},
		SolToken:  Asset{Address: "TokenMint", Decimals: 9},
		SolQuote:  Asset{Address: "SolMint", Decimals: 9},
	}
}

func newCoordinatorFixture() *coordinatorFixture {
	f := &coordinatorFixture{
		baseQuotes: &stubQuoteProvider{quote: domain.Quote{Source: domain.SourceOdos, Payload: []byte(`{}`)}},
		solQuotes:  &stubQuoteProvider{quote: domain.Quote{Source: domain.SourceJupiter, Payload: []byte(`{}`)}},
		baseAsm:    &stubAssembler{payload: domain.Payload{Source: domain.SourceOdos}},
		solAsm:     &stubAssembler{payload: domain.Payload{Source: domain.SourceJupiter}},
		allowance:  &stubAllowance{},
		baseSub:    &stubSubmitter{tx: "0xbasetx"},
		solSub:     &stubSubmitter{tx: "soltx"},
		analyzer:   &stubAnalyzer{analysis: pricing.ExecutionAnalysis{ProfitUSD: 1.5}},
	}
	f.coord = NewCoordinator(CoordinatorConfig{
		Assets:        testAssets(),
		BaseOwner:     "0xOwner",
		Spender:       "0xRouter",
		BaseQuotes:    f.baseQuotes,
		SolQuotes:     f.solQuotes,
		BaseAssembler: f.baseAsm,
		SolAssembler:  f.solAsm,
		Allowance:     f.allowance,
		BaseSubmitter: f.baseSub,
		SolSubmitter:  f.solSub,
		Analyzer:      f.analyzer,
		Logger:        testLogger(),
	})
	return f
}

func sizedFixture(dir domain.TradeDirection) domain.SizedOpportunity {
	return domain.SizedOpportunity{
		Opportunity:       opportunity(dir, 0.0900, 0.05, 0.0950, 0.05),
		TokenAmount:       1000,
		BuyLegAmount:      500,
		SellLegAmount:     1000,
		ExpectedProfitUSD: 2.0,
	}
}

func TestExecuteHappyPath(t *testing.T) {
	f := newCoordinatorFixture()

	res := f.coord.Execute(context.Background(), sizedFixture(domain.BuyBaseSellSol))

	assert.True(t, res.Success)
	assert.False(t, res.Partial)
	assert.Equal(t, domain.StageSettled, res.Stage)
	assert.Equal(t, "0xbasetx", res.BaseTxID)
	assert.Equal(t, "soltx", res.SolTxID)
	assert.Empty(t, res.Err)
	assert.NotEmpty(t, res.AttemptID)

	assert.Equal(t, 1, f.baseQuotes.calls)
	assert.Equal(t, 1, f.solQuotes.calls)
	assert.Equal(t, 1, f.analyzer.calls)
	assert.Equal(t, 1, f.baseAsm.calls)
	assert.Equal(t, 1, f.solAsm.calls)
	assert.Equal(t, 1, f.baseSub.calls)
	assert.Equal(t, 1, f.solSub.calls)
	assert.Zero(t, f.allowance.approveCalls)
}

func TestExecuteLegRequestsBuyBase(t *testing.T) {
	f := newCoordinatorFixture()
	f.coord.Execute(context.Background(), sizedFixture(domain.BuyBaseSellSol))

	// EVM leg buys the token with the intermediate asset.
	assert.Equal(t, "0xVirtual", f.baseQuotes.lastReq.InToken)
	assert.Equal(t, "0xToken", f.baseQuotes.lastReq.OutToken)
	assert.Equal(t, 500.0, f.baseQuotes.lastReq.Amount)
	// Solana leg sells the token for SOL.
	assert.Equal(t, "TokenMint", f.solQuotes.lastReq.InToken)
	assert.Equal(t, "SolMint", f.solQuotes.lastReq.OutToken)
	assert.Equal(t, 1000.0, f.solQuotes.lastReq.Amount)
}

func TestExecuteLegRequestsBuySol(t *testing.T) {
	f := newCoordinatorFixture()
	f.coord.Execute(context.Background(), sizedFixture(domain.BuySolSellBase))

	// EVM leg sells the token.
	assert.Equal(t, "0xToken", f.baseQuotes.lastReq.InToken)
	assert.Equal(t, "0xVirtual", f.baseQuotes.lastReq.OutToken)
	assert.Equal(t, 1000.0, f.baseQuotes.lastReq.Amount)
	// Solana leg buys the token with SOL.
	assert.Equal(t, "SolMint", f.solQuotes.lastReq.InToken)
	assert.Equal(t, "TokenMint", f.solQuotes.lastReq.OutToken)
	assert.Equal(t, 500.0, f.solQuotes.lastReq.Amount)
}

func TestExecuteQuoteFailure(t *testing.T) {
	f := newCoordinatorFixture()
	f.solQuotes.err = errors.New("jupiter unavailable")

	res := f.coord.Execute(context.Background(), sizedFixture(domain.BuyBaseSellSol))

	assert.False(t, res.Success)
	assert.Equal(t, domain.StageQuote, res.Stage)
	assert.Contains(t, res.Err, "jupiter unavailable")
	assert.Zero(t, f.analyzer.calls)
	assert.Zero(t, f.baseAsm.calls)
	assert.Zero(t, f.baseSub.calls)
}

func TestExecuteRevalidationAbort(t *testing.T) {
	// The estimate said profitable but the fresh quotes say otherwise: the
	// attempt must stop before anything is assembled or submitted.
	f := newCoordinatorFixture()
	f.analyzer.analysis = pricing.ExecutionAnalysis{ProfitUSD: -0.42}

	res := f.coord.Execute(context.Background(), sizedFixture(domain.BuyBaseSellSol))

	assert.False(t, res.Success)
	assert.False(t, res.Partial)
	assert.Equal(t, domain.StageValidate, res.Stage)
	assert.Contains(t, res.Err, "no longer profitable")

	assert.Zero(t, f.baseAsm.calls)
	assert.Zero(t, f.solAsm.calls)
	assert.Zero(t, f.baseSub.calls)
	assert.Zero(t, f.solSub.calls)
	assert.Zero(t, f.allowance.approveCalls)
}

func TestExecuteRevalidationError(t *testing.T) {
	f := newCoordinatorFixture()
	f.analyzer.err = errors.New("bad payload")

	res := f.coord.Execute(context.Background(), sizedFixture(domain.BuyBaseSellSol))

	assert.Equal(t, domain.StageValidate, res.Stage)
	assert.Zero(t, f.baseAsm.calls)
}

func TestExecuteAssembleFailure(t *testing.T) {
	f := newCoordinatorFixture()
	f.solAsm.err = errors.New("swap build rejected")

	res := f.coord.Execute(context.Background(), sizedFixture(domain.BuyBaseSellSol))

	assert.False(t, res.Success)
	assert.Equal(t, domain.StageAssemble, res.Stage)
	assert.Contains(t, res.Err, domain.ErrAssembly.Error())
	assert.Contains(t, res.Err, "swap build rejected")
	assert.Zero(t, f.baseSub.calls)
	assert.Zero(t, f.solSub.calls)
}

func TestExecuteApprovalFlow(t *testing.T) {
	f := newCoordinatorFixture()
	f.allowance.needs = true

	res := f.coord.Execute(context.Background(), sizedFixture(domain.BuyBaseSellSol))

	assert.True(t, res.Success)
	assert.Equal(t, 1, f.allowance.approveCalls)
}

func TestExecuteApprovalFailure(t *testing.T) {
	f := newCoordinatorFixture()
	f.allowance.needs = true
	f.allowance.approveErr = errors.New("approval reverted")

	res := f.coord.Execute(context.Background(), sizedFixture(domain.BuyBaseSellSol))

	assert.False(t, res.Success)
	assert.Equal(t, domain.StageApprove, res.Stage)
	assert.Contains(t, res.Err, "approval reverted")
	assert.Zero(t, f.baseSub.calls)
	assert.Zero(t, f.solSub.calls)
}

func TestExecutePartialFill(t *testing.T) {
	// EVM leg settles, the Solana leg times out: the result must surface
	// exactly which transaction exists.
	f := newCoordinatorFixture()
	f.solSub.tx = ""
	f.solSub.err = domain.ErrConfirmTimeout

	res := f.coord.Execute(context.Background(), sizedFixture(domain.BuyBaseSellSol))

	assert.False(t, res.Success)
	assert.True(t, res.Partial)
	assert.Equal(t, domain.StageSubmit, res.Stage)
	assert.Equal(t, "0xbasetx", res.BaseTxID)
	assert.Empty(t, res.SolTxID)
	assert.Contains(t, res.Err, domain.ErrPartialFill.Error())
	assert.Contains(t, res.Err, "sol leg failed")
}

func TestExecutePartialFillOtherLeg(t *testing.T) {
	f := newCoordinatorFixture()
	f.baseSub.tx = ""
	f.baseSub.err = domain.ErrSubmission

	res := f.coord.Execute(context.Background(), sizedFixture(domain.BuyBaseSellSol))

	assert.True(t, res.Partial)
	assert.Empty(t, res.BaseTxID)
	assert.Equal(t, "soltx", res.SolTxID)
	assert.Contains(t, res.Err, "base leg failed")
}

func TestExecuteBothLegsFail(t *testing.T) {
	f := newCoordinatorFixture()
	f.baseSub.err = domain.ErrSubmission
	f.solSub.err = domain.ErrConfirmTimeout

	res := f.coord.Execute(context.Background(), sizedFixture(domain.BuyBaseSellSol))

	assert.False(t, res.Success)
	assert.False(t, res.Partial)
	assert.Equal(t, domain.StageSubmit, res.Stage)
	assert.Contains(t, res.Err, "both legs failed")
}

func TestExecuteBothLegsRunDespiteOneFailing(t *testing.T) {
	// Submission is not an errgroup: the healthy leg must still be
	// submitted and confirmed even though its sibling errors immediately.
	f := newCoordinatorFixture()
	f.baseSub.err = domain.ErrSubmission

	res := f.coord.Execute(context.Background(), sizedFixture(domain.BuyBaseSellSol))

	require.Equal(t, 1, f.solSub.calls)
	assert.True(t, res.Partial)
}
