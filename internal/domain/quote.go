// Package domain defines the core types shared across the arbitrage bot: raw
// aggregator quotes, normalized prices, sized opportunities, trade results,
// and the collaborator interfaces the engine depends on.
package domain

import (
	"encoding/json"
	"time"
)

// SourceKind discriminates which liquidity source produced a Quote. The two
// sources return structurally different payloads, so every consumer must
// switch on the kind before touching the payload.
type SourceKind string

const (
	// SourceOdos is the Odos aggregator on the EVM chain.
	SourceOdos SourceKind = "odos"
	// SourceJupiter is the Jupiter aggregator on Solana.
	SourceJupiter SourceKind = "jupiter"
)

// Quote is a raw, immutable response from one liquidity source. The payload is
// carried intact because downstream steps need it verbatim: Odos assembly
// requires the pathId buried in the quote body, and Jupiter's swap endpoint
// expects the entire quote echoed back.
type Quote struct {
	Source    SourceKind
	Payload   json.RawMessage
	InAmount  float64 // human-readable input amount the quote was requested for
	FetchedAt time.Time
}

// QuoteRequest describes a swap quote to fetch from an aggregator.
type QuoteRequest struct {
	InToken    string
	OutToken   string
	Amount     float64 // human-readable units of the input token
	InDecimals int
}

// NormalizedPrice is a quote reduced to the common unit system used for
// cross-chain comparison.
type NormalizedPrice struct {
	// USDPrice is the price per unit of the arbitraged token in the
	// settlement currency. Both chains must be in this unit before any
	// comparison.
	USDPrice float64
	// ImpactPct is the observed price impact at the reference amount, in
	// percent. A value of exactly zero marks a degenerate quote that must
	// not be traded on.
	ImpactPct float64
	// CrossRate is the token's price in the chain-local intermediate asset
	// (VIRTUAL on the EVM chain, SOL on Solana).
	CrossRate float64
}
