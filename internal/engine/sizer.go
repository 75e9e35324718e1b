package engine

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/Adam-leaf/arbitrage-bot/internal/domain"
)

// SizingInput carries everything a sizing policy needs for one decision.
type SizingInput struct {
	Opp domain.Opportunity
}

// SizingPolicy decides how much of the token to trade for a detected
// opportunity. A policy returns the zero SizedOpportunity (never a negative
// size, never an error) when no profitable size exists; errors are reserved
// for failed collaborator calls such as pool-depth reads, and for degenerate
// input: a non-positive impact on either leg yields the zero SizedOpportunity
// with domain.ErrZeroImpact, since the impact model cannot price such a
// quote.
type SizingPolicy interface {
	Name() string
	Size(ctx context.Context, in SizingInput) (domain.SizedOpportunity, error)
}

// Registry holds named sizing policies for selection by config.
type Registry struct {
	policies map[string]SizingPolicy
	mu       sync.RWMutex
}

// NewRegistry returns an empty registry. Call Register to add policies.
func NewRegistry() *Registry {
	return &Registry{policies: make(map[string]SizingPolicy)}
}

// Register adds a policy under the given name.
func (r *Registry) Register(name string, p SizingPolicy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policies[name] = p
}

// Get returns the policy by name, or an error if not found.
func (r *Registry) Get(name string) (SizingPolicy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.policies[name]
	if !ok {
		return nil, fmt.Errorf("sizing policy %q not found", name)
	}
	return p, nil
}

// List returns all registered policy names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.policies))
	for n := range r.policies {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// impactSlope converts an observed impact percentage at the calibration size
// into the square-root impact model's slope: impact(x) = slope * sqrt(x).
// The model assumes constant-product style liquidity where marginal impact
// grows with the square root of trade size.
func impactSlope(impactPct, calibrationSize float64) float64 {
	if calibrationSize <= 0 {
		return 0
	}
	return (impactPct / 100) / math.Sqrt(calibrationSize)
}

// legEconomics prices both legs of an x-sized trade under the square-root
// impact model. The buy side pays its impact as a markup on cost, the sell
// side as a haircut on proceeds. ok is false when the buy denominator is not
// positive, i.e. the model says the size is unbuyable.
func legEconomics(x, buyPrice, sellPrice, buySlope, sellSlope float64) (cost, proceeds float64, ok bool) {
	sqrtX := math.Sqrt(x)
	denom := 1 - buySlope*sqrtX
	if denom <= 0 {
		return 0, 0, false
	}
	cost = x * buyPrice / denom
	proceeds = x * sellPrice * (1 - sellSlope*sqrtX)
	return cost, proceeds, true
}
