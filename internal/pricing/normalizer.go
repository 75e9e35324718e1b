// Package pricing reduces raw aggregator quotes to the common unit system the
// engine compares across chains, and re-validates execution quotes right
// before submission.
package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"

	"github.com/Adam-leaf/arbitrage-bot/internal/domain"
)

// flexFloat decodes a JSON value that may arrive as either a number or a
// numeric string. Odos and Jupiter payloads mix both representations.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*f = flexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

// odosQuote is the subset of the Odos /sor/quote/v2 response the normalizer
// reads. outAmounts are raw integer strings in the output token's decimals;
// outValues are already USD.
type odosQuote struct {
	OutAmounts  []flexFloat `json:"outAmounts"`
	OutValues   []flexFloat `json:"outValues"`
	PriceImpact flexFloat   `json:"priceImpact"`
}

// jupiterQuote is the subset of the Jupiter /quote response the normalizer
// reads. outAmount is a raw integer string; priceImpactPct is a fraction.
type jupiterQuote struct {
	OutAmount      flexFloat `json:"outAmount"`
	PriceImpactPct flexFloat `json:"priceImpactPct"`
}

// Normalizer converts source-specific quote payloads into NormalizedPrice.
// Jupiter quotes price the token in SOL, so the normalizer needs a reference
// pricer to rescale into USD; that lookup is a separate call and fails
// independently of the quote parse.
type Normalizer struct {
	refPricer domain.ReferencePricer
	solMint   string
	log       *slog.Logger
}

// NewNormalizer builds a Normalizer. solMint is the wrapped-SOL mint address
// used for the SOL/USD reference lookup.
func NewNormalizer(refPricer domain.ReferencePricer, solMint string, log *slog.Logger) *Normalizer {
	return &Normalizer{
		refPricer: refPricer,
		solMint:   solMint,
		log:       log.With(slog.String("component", "normalizer")),
	}
}

// Normalize reduces a raw quote to the common unit system. outDecimals is the
// decimal count of the quote's output token; refAmount is the human-readable
// input amount the quote was fetched for. The result is a pure function of
// the quote, the parameters, and the current reference price.
func (n *Normalizer) Normalize(ctx context.Context, q domain.Quote, outDecimals int, refAmount float64) (domain.NormalizedPrice, error) {
	if refAmount <= 0 {
		return domain.NormalizedPrice{}, fmt.Errorf("pricing: reference amount must be positive, got %v: %w", refAmount, domain.ErrParse)
	}

	switch q.Source {
	case domain.SourceOdos:
		return n.normalizeOdos(q.Payload, outDecimals, refAmount)
	case domain.SourceJupiter:
		return n.normalizeJupiter(ctx, q.Payload, outDecimals, refAmount)
	default:
		return domain.NormalizedPrice{}, fmt.Errorf("pricing: unknown quote source %q: %w", q.Source, domain.ErrParse)
	}
}

func (n *Normalizer) normalizeOdos(payload json.RawMessage, outDecimals int, refAmount float64) (domain.NormalizedPrice, error) {
	var q odosQuote
	if err := json.Unmarshal(payload, &q); err != nil {
		return domain.NormalizedPrice{}, fmt.Errorf("pricing: decode odos quote: %w: %v", domain.ErrParse, err)
	}
	if len(q.OutValues) == 0 || len(q.OutAmounts) == 0 {
		return domain.NormalizedPrice{}, fmt.Errorf("pricing: odos quote missing outValues/outAmounts: %w", domain.ErrParse)
	}

	scale := math.Pow10(outDecimals)
	return domain.NormalizedPrice{
		USDPrice:  float64(q.OutValues[0]) / refAmount,
		ImpactPct: math.Abs(float64(q.PriceImpact)),
		CrossRate: float64(q.OutAmounts[0]) / scale / refAmount,
	}, nil
}

func (n *Normalizer) normalizeJupiter(ctx context.Context, payload json.RawMessage, outDecimals int, refAmount float64) (domain.NormalizedPrice, error) {
	var q jupiterQuote
	if err := json.Unmarshal(payload, &q); err != nil {
		return domain.NormalizedPrice{}, fmt.Errorf("pricing: decode jupiter quote: %w: %v", domain.ErrParse, err)
	}
	if q.OutAmount == 0 {
		return domain.NormalizedPrice{}, fmt.Errorf("pricing: jupiter quote missing outAmount: %w", domain.ErrParse)
	}

	scale := math.Pow10(outDecimals)
	cross := float64(q.OutAmount) / scale / refAmount

	solUSD, err := n.refPricer.USDPrice(ctx, n.solMint)
	if err != nil {
		return domain.NormalizedPrice{}, fmt.Errorf("pricing: sol/usd reference price: %w", err)
	}

	return domain.NormalizedPrice{
		USDPrice: cross * solUSD,
		// Jupiter reports impact as a fraction, not percent.
		ImpactPct: float64(q.PriceImpactPct) * 100,
		CrossRate: cross,
	}, nil
}
