// Package jupiter is the REST client for the Jupiter aggregator on Solana:
// swap quotes, swap-transaction building, and the v2 price endpoint used for
// SOL/USD reference pricing.
package jupiter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/Adam-leaf/arbitrage-bot/internal/domain"
)

// Client is the REST client for the Jupiter swap and price APIs.
type Client struct {
	quoteURL   string
	priceURL   string
	userPubkey string
	httpClient *http.Client

	priorityFeeLamports int64
	useSharedAccounts   bool

	// priceLimiter throttles the price endpoint, which rate-limits far
	// more aggressively than the quote endpoint.
	priceLimiter *rate.Limiter
}

// Options tune swap building and price polling. Zero values fall back to
// sane defaults.
type Options struct {
	PriorityFeeLamports int64
	UseSharedAccounts   bool
	PriceRatePerSec     float64
	Timeout             time.Duration
}

// NewClient creates a new Jupiter client.
//
// quoteURL is the swap API root, e.g. "https://quote-api.jup.ag/v6".
// priceURL is the price API root, e.g. "https://api.jup.ag/price/v2".
// userPubkey is the wallet the swap transactions are built for.
func NewClient(quoteURL, priceURL, userPubkey string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.PriceRatePerSec <= 0 {
		opts.PriceRatePerSec = 2
	}
	return &Client{
		quoteURL:            quoteURL,
		priceURL:            priceURL,
		userPubkey:          userPubkey,
		priorityFeeLamports: opts.PriorityFeeLamports,
		useSharedAccounts:   opts.UseSharedAccounts,
		priceLimiter:        rate.NewLimiter(rate.Limit(opts.PriceRatePerSec), 1),
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
	}
}

// swapRequest is the /swap request envelope. The quote response is echoed
// back verbatim; Jupiter rebuilds the route from it.
type swapRequest struct {
	QuoteResponse                 json.RawMessage `json:"quoteResponse"`
	UserPublicKey                 string          `json:"userPublicKey"`
	WrapUnwrapSOL                 bool            `json:"wrapUnwrapSOL"`
	ComputeUnitPriceMicroLamports *int64          `json:"computeUnitPriceMicroLamports"`
	AsLegacyTransaction           bool            `json:"asLegacyTransaction"`
	UseSharedAccounts             bool            `json:"useSharedAccounts"`
	PrioritizationFeeLamports     int64           `json:"prioritizationFeeLamports"`
}

// GetQuote fetches a swap quote for the given mint pair and amount.
func (c *Client) GetQuote(ctx context.Context, req domain.QuoteRequest) (domain.Quote, error) {
	if req.Amount <= 0 {
		return domain.Quote{}, fmt.Errorf("jupiter: quote amount must be positive, got %v", req.Amount)
	}

	params := url.Values{}
	params.Set("inputMint", req.InToken)
	params.Set("outputMint", req.OutToken)
	params.Set("amount", domain.ToRawAmount(req.Amount, req.InDecimals))

	body, err := c.doRequest(ctx, http.MethodGet, c.quoteURL+"/quote?"+params.Encode(), nil)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("jupiter: get quote: %w", err)
	}

	return domain.Quote{
		Source:    domain.SourceJupiter,
		Payload:   body,
		InAmount:  req.Amount,
		FetchedAt: time.Now(),
	}, nil
}

// Assemble builds the swap transaction for a quote. The response body
// carries the base64-encoded versioned transaction under "swapTransaction"
// for the Solana submitter to sign.
func (c *Client) Assemble(ctx context.Context, q domain.Quote) (domain.Payload, error) {
	if q.Source != domain.SourceJupiter {
		return domain.Payload{}, fmt.Errorf("jupiter: cannot assemble %s quote", q.Source)
	}
	if len(q.Payload) == 0 || !json.Valid(q.Payload) {
		return domain.Payload{}, fmt.Errorf("jupiter: quote payload is not valid JSON: %w", domain.ErrParse)
	}

	body, err := c.doRequest(ctx, http.MethodPost, c.quoteURL+"/swap", swapRequest{
		QuoteResponse:             q.Payload,
		UserPublicKey:             c.userPubkey,
		WrapUnwrapSOL:             true,
		AsLegacyTransaction:       false,
		UseSharedAccounts:         c.useSharedAccounts,
		PrioritizationFeeLamports: c.priorityFeeLamports,
	})
	if err != nil {
		return domain.Payload{}, fmt.Errorf("jupiter: build swap: %w", err)
	}

	return domain.Payload{
		Source: domain.SourceJupiter,
		Body:   body,
	}, nil
}

// USDPrice returns the asset's USD price from the v2 price endpoint. The
// asset is addressed by its mint. Calls are throttled by the price limiter
// and block until a slot frees up or the context ends.
func (c *Client) USDPrice(ctx context.Context, asset string) (float64, error) {
	if err := c.priceLimiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("jupiter: wait for price slot: %w", err)
	}

	params := url.Values{}
	params.Set("ids", asset)

	body, err := c.doRequest(ctx, http.MethodGet, c.priceURL+"?"+params.Encode(), nil)
	if err != nil {
		return 0, fmt.Errorf("jupiter: fetch price for %s: %w", asset, err)
	}

	// The price comes back as a decimal string.
	var resp struct {
		Data map[string]struct {
			Price string `json:"price"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("jupiter: decode price response: %w: %v", domain.ErrParse, err)
	}

	entry, ok := resp.Data[asset]
	if !ok {
		return 0, fmt.Errorf("jupiter: no price for %s: %w", asset, domain.ErrNotFound)
	}
	price, err := strconv.ParseFloat(entry.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("jupiter: parse price %q: %w", entry.Price, domain.ErrParse)
	}
	if price <= 0 {
		return 0, fmt.Errorf("jupiter: non-positive price %v for %s: %w", price, asset, domain.ErrParse)
	}

	return price, nil
}

// doRequest builds, sends, and reads an HTTP request against a Jupiter API.
func (c *Client) doRequest(ctx context.Context, method, fullURL string, reqBody any) ([]byte, error) {
	var bodyReader io.Reader
	if reqBody != nil {
		jsonBody, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w: %v", domain.ErrQuoteFetch, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: status 429", domain.ErrRateLimited)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(respBody))
	}

	return respBody, nil
}

func truncate(b []byte) string {
	const max = 256
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}

var (
	_ domain.QuoteProvider   = (*Client)(nil)
	_ domain.Assembler       = (*Client)(nil)
	_ domain.ReferencePricer = (*Client)(nil)
)
