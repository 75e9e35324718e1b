package engine

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adam-leaf/arbitrage-bot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func price(usd, impact float64) domain.NormalizedPrice {
	return domain.NormalizedPrice{USDPrice: usd, ImpactPct: impact, CrossRate: usd / 2}
}

func TestDetectBelowThreshold(t *testing.T) {
	d := NewDetector(DetectorConfig{MinDivergencePct: 1.0, Logger: testLogger()})

	// ~0.55% divergence.
	_, found := d.Detect(price(0.0910, 0.1), price(0.0915, 0.1))
	assert.False(t, found)
}

func TestDetectAboveThreshold(t *testing.T) {
	d := NewDetector(DetectorConfig{MinDivergencePct: 1.0, Logger: testLogger()})

	opp, found := d.Detect(price(0.0900, 0.1), price(0.0950, 0.1))
	require.True(t, found)

	// avg = 0.0925, diff = 0.005 -> 5.405...%
	assert.InDelta(t, 0.005/0.0925*100, opp.DivergencePct, 1e-9)
	assert.Equal(t, domain.BuyBaseSellSol, opp.Direction)
	assert.NotEmpty(t, opp.ID)
	assert.False(t, opp.DetectedAt.IsZero())
}

func TestDetectDirectionSellBase(t *testing.T) {
	d := NewDetector(DetectorConfig{MinDivergencePct: 1.0, Logger: testLogger()})

	opp, found := d.Detect(price(0.0950, 0.1), price(0.0900, 0.1))
	require.True(t, found)
	assert.Equal(t, domain.BuySolSellBase, opp.Direction)
}

func TestDetectZeroImpactGuard(t *testing.T) {
	// Huge divergence, but a zero impact on either side kills the round
	// before the divergence math runs.
	d := NewDetector(DetectorConfig{MinDivergencePct: 1.0, Logger: testLogger()})

	_, found := d.Detect(price(0.05, 0), price(0.10, 0.3))
	assert.False(t, found)

	_, found = d.Detect(price(0.05, 0.3), price(0.10, 0))
	assert.False(t, found)

	_, found = d.Detect(price(0.05, 0), price(0.10, 0))
	assert.False(t, found)
}

func TestDetectExactTieSellsBase(t *testing.T) {
	d := NewDetector(DetectorConfig{MinDivergencePct: 0, Logger: testLogger()})

	opp, found := d.Detect(price(0.0910, 0.1), price(0.0910, 0.1))
	require.True(t, found)
	assert.Equal(t, domain.BuySolSellBase, opp.Direction)
}

func TestDetectThresholdMonotonic(t *testing.T) {
	base, sol := price(0.0900, 0.1), price(0.0950, 0.1)

	var prevFound bool
	first := true
	for _, threshold := range []float64{0.1, 1, 2, 5, 5.5, 10, 50} {
		d := NewDetector(DetectorConfig{MinDivergencePct: threshold, Logger: testLogger()})
		_, found := d.Detect(base, sol)
		if !first && found {
			// A stricter threshold can only lose opportunities.
			assert.True(t, prevFound, "threshold %v found an opportunity a looser one missed", threshold)
		}
		prevFound = found
		first = false
	}
}

func TestDetectRejectsNonPositivePrices(t *testing.T) {
	d := NewDetector(DetectorConfig{MinDivergencePct: 1.0, Logger: testLogger()})

	_, found := d.Detect(domain.NormalizedPrice{USDPrice: 0, ImpactPct: 0.1}, price(0.09, 0.1))
	assert.False(t, found)
}
