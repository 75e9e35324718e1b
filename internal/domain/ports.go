package domain

import (
	"context"
	"encoding/json"
)

// QuoteProvider fetches a swap quote from one liquidity source. May fail with
// a network or rate-limit error; failures are cycle-local, never fatal.
type QuoteProvider interface {
	GetQuote(ctx context.Context, req QuoteRequest) (Quote, error)
}

// ReferencePricer resolves an asset's USD price from an auxiliary source.
// Used to rescale a chain-local price (e.g. token/SOL) into the settlement
// currency. This is a separate network call and can fail independently of the
// quote itself.
type ReferencePricer interface {
	USDPrice(ctx context.Context, asset string) (float64, error)
}

// Payload is a submittable transaction produced from a Quote by an Assembler.
// The body shape is source-specific: the Odos assemble response for the EVM
// leg, the Jupiter swap response (base64 transaction inside) for Solana.
type Payload struct {
	Source SourceKind
	Body   json.RawMessage
}

// Assembler converts a fresh Quote into a submittable transaction payload.
type Assembler interface {
	Assemble(ctx context.Context, q Quote) (Payload, error)
}

// AllowanceManager covers the EVM-side ERC-20 approval flow. Solana swaps in
// this design need no separate approval step.
type AllowanceManager interface {
	// NeedsApproval reports whether the spender's current allowance for the
	// token is below the infinite-approval threshold.
	NeedsApproval(ctx context.Context, token, owner, spender string) (bool, error)
	// Approve submits an infinite approval and waits for it to be mined.
	Approve(ctx context.Context, token, spender string) error
}

// Submitter signs, submits, and confirms one leg's transaction on its chain.
// It returns the transaction id once a finalized status is observed, or an
// error wrapping ErrSubmission / ErrConfirmTimeout. Once submission starts
// the operation runs to completion or timeout; there is no safe mid-flight
// cancellation of an on-chain transaction.
type Submitter interface {
	SubmitAndConfirm(ctx context.Context, p Payload) (string, error)
}

// PairReserveReader reads a constant-product pair's raw reserves. Used by the
// liquidity-aware sizing policy for the EVM-side pool.
type PairReserveReader interface {
	PairReserves(ctx context.Context, pair string) (reserve0, reserve1 float64, err error)
}

// PoolDepthReader reads a pool's total pooled USD valuation. Used by the
// liquidity-aware sizing policy for the Solana-side pool.
type PoolDepthReader interface {
	PoolUSDDepth(ctx context.Context, pool string) (float64, error)
}
