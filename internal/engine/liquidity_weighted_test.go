package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adam-leaf/arbitrage-bot/internal/domain"
)

type stubPairReader struct {
	reserve0 float64
	reserve1 float64
	err      error
	lastPair string
}

func (s *stubPairReader) PairReserves(ctx context.Context, pair string) (float64, float64, error) {
	s.lastPair = pair
	return s.reserve0, s.reserve1, s.err
}

type stubDepthReader struct {
	depth    float64
	err      error
	lastPool string
}

func (s *stubDepthReader) PoolUSDDepth(ctx context.Context, pool string) (float64, error) {
	s.lastPool = pool
	return s.depth, s.err
}

func liquidityCfg() LiquidityWeightedConfig {
	return LiquidityWeightedConfig{
		TargetClose:   1,
		SizeWeight:    0.7,
		BaseLPAddress: "0xpair",
		SolLPAddress:  "SolPool",
		QuoteDecimals: 18,
	}
}

func TestLiquidityWeightedBlend(t *testing.T) {
	pairs := &stubPairReader{reserve0: 500_000e18}
	depths := &stubDepthReader{depth: 400_000}
	p := NewLiquidityWeighted(liquidityCfg(), pairs, depths, testLogger())

	opp := opportunity(domain.BuyBaseSellSol, 0.0900, 0.05, 0.0950, 0.05)
	sized := sizePolicy(t, p, opp)
	require.False(t, sized.IsZero())

	assert.Equal(t, "0xpair", pairs.lastPair)
	assert.Equal(t, "SolPool", depths.lastPool)

	// gap=0.005 closed fully, each side moves 0.0025. The quote asset is
	// worth baseUSD/crossRate = 2 USD, so the EVM side holds 1M USD of
	// one-sided liquidity; the Solana pool reports 400k total, 200k a side.
	priceMove := 0.0025
	deltaBase := priceMove / 0.0900 * 1_000_000
	deltaSol := priceMove / 0.0950 * 200_000
	want := deltaSol + (deltaBase-deltaSol)*0.7

	assert.InDelta(t, want, sized.TokenAmount, 1e-6)
	assert.InDelta(t, want*(0.0950-0.0900), sized.ExpectedProfitUSD, 1e-6)
	assert.InDelta(t, 0.005, sized.Audit.PriceGapUSD, 1e-12)
	assert.Zero(t, sized.Audit.TargetGapUSD)
	assert.Equal(t, "liquidity_weighted", sized.Audit.Policy)
}

func TestLiquidityWeightedWeightExtremes(t *testing.T) {
	pairs := &stubPairReader{reserve0: 500_000e18}
	depths := &stubDepthReader{depth: 400_000}
	opp := opportunity(domain.BuyBaseSellSol, 0.0900, 0.05, 0.0950, 0.05)

	cfgSmall := liquidityCfg()
	cfgSmall.SizeWeight = 0
	small := sizePolicy(t, NewLiquidityWeighted(cfgSmall, pairs, depths, testLogger()), opp)

	cfgLarge := liquidityCfg()
	cfgLarge.SizeWeight = 1
	large := sizePolicy(t, NewLiquidityWeighted(cfgLarge, pairs, depths, testLogger()), opp)

	require.False(t, small.IsZero())
	require.False(t, large.IsZero())
	// Weight 0 takes the smaller implied size, weight 1 the larger.
	assert.Less(t, small.TokenAmount, large.TokenAmount)

	deltaSol := 0.0025 / 0.0950 * 200_000
	assert.InDelta(t, deltaSol, small.TokenAmount, 1e-6)
	deltaBase := 0.0025 / 0.0900 * 1_000_000
	assert.InDelta(t, deltaBase, large.TokenAmount, 1e-6)
}

func TestLiquidityWeightedPartialClose(t *testing.T) {
	pairs := &stubPairReader{reserve0: 500_000e18}
	depths := &stubDepthReader{depth: 400_000}

	cfg := liquidityCfg()
	cfg.TargetClose = 0.5
	p := NewLiquidityWeighted(cfg, pairs, depths, testLogger())

	opp := opportunity(domain.BuyBaseSellSol, 0.0900, 0.05, 0.0950, 0.05)
	sized := sizePolicy(t, p, opp)
	require.False(t, sized.IsZero())

	// Half the gap remains.
	assert.InDelta(t, 0.0025, sized.Audit.TargetGapUSD, 1e-12)
}

func TestLiquidityWeightedPoolReadFailures(t *testing.T) {
	opp := opportunity(domain.BuyBaseSellSol, 0.0900, 0.05, 0.0950, 0.05)

	t.Run("pair reserves error", func(t *testing.T) {
		p := NewLiquidityWeighted(liquidityCfg(), &stubPairReader{err: assert.AnError}, &stubDepthReader{depth: 1}, testLogger())
		_, err := p.Size(context.Background(), SizingInput{Opp: opp})
		require.Error(t, err)
		assert.ErrorIs(t, err, assert.AnError)
	})

	t.Run("pool depth error", func(t *testing.T) {
		p := NewLiquidityWeighted(liquidityCfg(), &stubPairReader{reserve0: 1e18}, &stubDepthReader{err: assert.AnError}, testLogger())
		_, err := p.Size(context.Background(), SizingInput{Opp: opp})
		require.Error(t, err)
		assert.ErrorIs(t, err, assert.AnError)
	})
}

func TestLiquidityWeightedDegenerateInputs(t *testing.T) {
	pairs := &stubPairReader{reserve0: 500_000e18}
	depths := &stubDepthReader{depth: 400_000}

	t.Run("zero gap", func(t *testing.T) {
		p := NewLiquidityWeighted(liquidityCfg(), pairs, depths, testLogger())
		sized := sizePolicy(t, p, opportunity(domain.BuyBaseSellSol, 0.0900, 0.05, 0.0900, 0.05))
		assert.True(t, sized.IsZero())
	})

	t.Run("empty pools", func(t *testing.T) {
		p := NewLiquidityWeighted(liquidityCfg(), &stubPairReader{reserve0: 0}, depths, testLogger())
		sized := sizePolicy(t, p, opportunity(domain.BuyBaseSellSol, 0.0900, 0.05, 0.0950, 0.05))
		assert.True(t, sized.IsZero())
	})

	t.Run("bad target close", func(t *testing.T) {
		cfg := liquidityCfg()
		cfg.TargetClose = 0
		p := NewLiquidityWeighted(cfg, pairs, depths, testLogger())
		sized := sizePolicy(t, p, opportunity(domain.BuyBaseSellSol, 0.0900, 0.05, 0.0950, 0.05))
		assert.True(t, sized.IsZero())
	})
}
