package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/Adam-leaf/arbitrage-bot/internal/domain"
)

// LegDecimals carries the decimal counts needed to scale execution quotes.
type LegDecimals struct {
	// BaseToken is the arbitraged token's decimals on the EVM chain.
	BaseToken int
	// SolToken is the arbitraged token's decimals on Solana.
	SolToken int
	// Sol is the wrapped-SOL mint's decimals.
	Sol int
}

// ExecutionAnalysis is the outcome of re-validating a pair of fresh execution
// quotes right before assembly. ProfitUSD already subtracts the imbalance
// penalty; a non-positive value means the attempt must abort.
type ExecutionAnalysis struct {
	Direction domain.TradeDirection
	// TokenBase and TokenSol are the arbitraged-token quantities each leg
	// would move. They rarely match exactly; the difference is priced into
	// ImbalanceUSD.
	TokenBase float64
	TokenSol  float64
	// USDBase and USDSol are each leg's settlement-currency value: spent on
	// the buy leg, received on the sell leg.
	USDBase float64
	USDSol  float64
	// ImbalanceUSD is the USD value of the token-quantity mismatch between
	// the two legs, priced at the average per-token price.
	ImbalanceUSD float64
	ProfitUSD    float64
}

// odosExecQuote is the subset of an Odos execution quote the analyzer reads.
type odosExecQuote struct {
	InAmounts  []flexFloat `json:"inAmounts"`
	InValues   []flexFloat `json:"inValues"`
	OutAmounts []flexFloat `json:"outAmounts"`
	OutValues  []flexFloat `json:"outValues"`
}

// jupiterExecQuote is the subset of a Jupiter execution quote the analyzer
// reads.
type jupiterExecQuote struct {
	InAmount  flexFloat `json:"inAmount"`
	OutAmount flexFloat `json:"outAmount"`
}

// AnalyzeExecution recomputes actual profit from the fresh execution quotes
// fetched at the sized amounts. This is the last correctness gate before any
// transaction is assembled: prices move between sizing and execution, and a
// stale estimate must never be trusted over what the venues quote now.
//
// Profit is the sell leg's USD proceeds minus the buy leg's USD cost, minus
// the USD value of the token-quantity mismatch between legs (the leftover
// inventory one side would hold after both legs settle).
func (n *Normalizer) AnalyzeExecution(ctx context.Context, dir domain.TradeDirection, baseQuote, solQuote domain.Quote, dec LegDecimals) (ExecutionAnalysis, error) {
	var oq odosExecQuote
	if err := json.Unmarshal(baseQuote.Payload, &oq); err != nil {
		return ExecutionAnalysis{}, fmt.Errorf("pricing: decode odos execution quote: %w: %v", domain.ErrParse, err)
	}
	var jq jupiterExecQuote
	if err := json.Unmarshal(solQuote.Payload, &jq); err != nil {
		return ExecutionAnalysis{}, fmt.Errorf("pricing: decode jupiter execution quote: %w: %v", domain.ErrParse, err)
	}
	if len(oq.InAmounts) == 0 || len(oq.InValues) == 0 || len(oq.OutAmounts) == 0 || len(oq.OutValues) == 0 {
		return ExecutionAnalysis{}, fmt.Errorf("pricing: odos execution quote missing amount fields: %w", domain.ErrParse)
	}

	solUSD, err := n.refPricer.USDPrice(ctx, n.solMint)
	if err != nil {
		return ExecutionAnalysis{}, fmt.Errorf("pricing: sol/usd reference price: %w", err)
	}

	baseTokenScale := math.Pow10(dec.BaseToken)
	solTokenScale := math.Pow10(dec.SolToken)
	solScale := math.Pow10(dec.Sol)

	a := ExecutionAnalysis{Direction: dir}

	switch dir {
	case domain.BuyBaseSellSol:
		// EVM leg buys the token, Solana leg sells it for SOL.
		a.TokenBase = float64(oq.OutAmounts[0]) / baseTokenScale
		a.USDBase = float64(oq.InValues[0])
		a.TokenSol = float64(jq.InAmount) / solTokenScale
		a.USDSol = float64(jq.OutAmount) / solScale * solUSD
	case domain.BuySolSellBase:
		// Solana leg buys the token with SOL, EVM leg sells it.
		a.TokenBase = float64(oq.InAmounts[0]) / baseTokenScale
		a.USDBase = float64(oq.OutValues[0])
		a.TokenSol = float64(jq.OutAmount) / solTokenScale
		a.USDSol = float64(jq.InAmount) / solScale * solUSD
	default:
		return ExecutionAnalysis{}, fmt.Errorf("pricing: unknown trade direction %q: %w", dir, domain.ErrParse)
	}

	if a.TokenBase <= 0 || a.TokenSol <= 0 {
		return ExecutionAnalysis{}, fmt.Errorf("pricing: execution quote moved zero tokens: %w", domain.ErrParse)
	}

	avgPrice := (a.USDBase/a.TokenBase + a.USDSol/a.TokenSol) / 2
	a.ImbalanceUSD = math.Abs(a.TokenBase-a.TokenSol) * avgPrice

	switch dir {
	case domain.BuyBaseSellSol:
		a.ProfitUSD = a.USDSol - a.USDBase - a.ImbalanceUSD
	case domain.BuySolSellBase:
		a.ProfitUSD = a.USDBase - a.USDSol - a.ImbalanceUSD
	}

	return a, nil
}
