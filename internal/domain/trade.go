package domain

import "time"

// TradeDirection determines which chain is the buy leg and which is the sell
// leg. It is derived solely from which chain quotes the lower normalized
// price.
type TradeDirection string

const (
	// BuyBaseSellSol buys the token on the EVM chain and sells it on Solana.
	BuyBaseSellSol TradeDirection = "buy_base_sell_sol"
	// BuySolSellBase buys the token on Solana and sells it on the EVM chain.
	BuySolSellBase TradeDirection = "buy_sol_sell_base"
)

// Opportunity is the detector's output: a crossable price divergence between
// the two chains. It is valid only within the monitoring cycle that produced
// it.
type Opportunity struct {
	ID            string
	Direction     TradeDirection
	Base          NormalizedPrice
	Sol           NormalizedPrice
	DivergencePct float64
	DetectedAt    time.Time
}

// BuyLeg returns the normalized price of the buy side.
func (o Opportunity) BuyLeg() NormalizedPrice {
	if o.Direction == BuyBaseSellSol {
		return o.Base
	}
	return o.Sol
}

// SellLeg returns the normalized price of the sell side.
func (o Opportunity) SellLeg() NormalizedPrice {
	if o.Direction == BuyBaseSellSol {
		return o.Sol
	}
	return o.Base
}

// SizingAudit records the intermediate state of a sizing decision so every
// trade can be reconstructed from logs after the fact.
type SizingAudit struct {
	Policy           string
	PriceGapUSD      float64
	TargetGapUSD     float64
	BuyImpactPctAtX  float64
	SellImpactPctAtX float64
	BuyLegUSD        float64
	SellLegUSD       float64
}

// SizedOpportunity is an Opportunity with a concrete trade size attached.
// ExpectedProfitUSD is a point-in-time estimate, not a guarantee; it must be
// revalidated against a fresh quote before anything is submitted on chain.
// The zero value means "no trade".
type SizedOpportunity struct {
	Opportunity
	// TokenAmount is the amount of the arbitraged token moved on each leg.
	TokenAmount float64
	// BuyLegAmount is the amount of the buy chain's intermediate asset
	// spent to acquire TokenAmount.
	BuyLegAmount float64
	// SellLegAmount is the amount of the arbitraged token sold on the sell
	// chain. Balanced policies keep this equal to TokenAmount.
	SellLegAmount     float64
	ExpectedProfitUSD float64
	Audit             SizingAudit
}

// IsZero reports whether the sizer declined to trade.
func (s SizedOpportunity) IsZero() bool {
	return s.TokenAmount <= 0
}

// Execution stages, recorded in TradeResult.Stage so a failed attempt names
// the gate that terminated it.
const (
	StageQuote    = "quote"
	StageValidate = "validate"
	StageAssemble = "assemble"
	StageApprove  = "approve"
	StageSubmit   = "submit"
	StageSettled  = "settled"
)

// TradeResult is the terminal record of one execution attempt. The two legs
// settle on independent chains with no shared transaction and no rollback, so
// one leg can confirm while the other fails: that state is surfaced as
// Partial=true with whichever transaction id exists populated, and requires
// manual reconciliation.
type TradeResult struct {
	AttemptID string
	Success   bool
	Partial   bool
	BaseTxID  string
	SolTxID   string
	Stage     string
	Err       string
}
