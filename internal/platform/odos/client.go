// Package odos is the REST client for the Odos aggregator API, which quotes
// and assembles swaps on the EVM chain.
package odos

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Adam-leaf/arbitrage-bot/internal/domain"
)

// Client is the REST client for the Odos smart order router.
type Client struct {
	baseURL     string
	chainID     int64
	userAddr    string
	slippagePct float64
	httpClient  *http.Client
}

// NewClient creates a new Odos client.
//
// baseURL is the API root, e.g. "https://api.odos.xyz". userAddr is the
// wallet address quotes and assembled transactions are built for; Odos bakes
// it into the calldata, so it must match the submitting wallet.
func NewClient(baseURL string, chainID int64, userAddr string, slippagePct float64, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:     baseURL,
		chainID:     chainID,
		userAddr:    userAddr,
		slippagePct: slippagePct,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// quoteRequest is the /sor/quote/v2 request envelope.
type quoteRequest struct {
	ChainID              int64         `json:"chainId"`
	InputTokens          []inputToken  `json:"inputTokens"`
	OutputTokens         []outputToken `json:"outputTokens"`
	UserAddr             string        `json:"userAddr"`
	SlippageLimitPercent float64       `json:"slippageLimitPercent"`
	SourceBlacklist      []string      `json:"sourceBlacklist"`
	SourceWhitelist      []string      `json:"sourceWhitelist"`
	Compact              bool          `json:"compact"`
}

type inputToken struct {
	TokenAddress string `json:"tokenAddress"`
	Amount       string `json:"amount"`
}

type outputToken struct {
	TokenAddress string  `json:"tokenAddress"`
	Proportion   float64 `json:"proportion"`
}

// assembleRequest is the /sor/assemble request envelope.
type assembleRequest struct {
	UserAddr string `json:"userAddr"`
	PathID   string `json:"pathId"`
	Simulate bool   `json:"simulate"`
}

// GetQuote fetches a swap quote from the smart order router. The returned
// quote carries the raw response body; the pathId inside it is what Assemble
// later exchanges for calldata, and path ids expire after about a minute.
func (c *Client) GetQuote(ctx context.Context, req domain.QuoteRequest) (domain.Quote, error) {
	if req.Amount <= 0 {
		return domain.Quote{}, fmt.Errorf("odos: quote amount must be positive, got %v", req.Amount)
	}

	payload := quoteRequest{
		ChainID: c.chainID,
		InputTokens: []inputToken{
			{TokenAddress: req.InToken, Amount: domain.ToRawAmount(req.Amount, req.InDecimals)},
		},
		OutputTokens: []outputToken{
			{TokenAddress: req.OutToken, Proportion: 1},
		},
		UserAddr:             c.userAddr,
		SlippageLimitPercent: c.slippagePct,
		SourceBlacklist:      []string{},
		SourceWhitelist:      []string{},
		Compact:              true,
	}

	body, err := c.doRequest(ctx, http.MethodPost, "/sor/quote/v2", payload)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("odos: get quote: %w", err)
	}

	return domain.Quote{
		Source:    domain.SourceOdos,
		Payload:   body,
		InAmount:  req.Amount,
		FetchedAt: time.Now(),
	}, nil
}

// Assemble exchanges a quote's pathId for a submittable transaction. The
// response body carries the full transaction object (to, data, value, gas)
// for the EVM submitter to sign.
func (c *Client) Assemble(ctx context.Context, q domain.Quote) (domain.Payload, error) {
	if q.Source != domain.SourceOdos {
		return domain.Payload{}, fmt.Errorf("odos: cannot assemble %s quote", q.Source)
	}

	var quote struct {
		PathID string `json:"pathId"`
	}
	if err := json.Unmarshal(q.Payload, &quote); err != nil {
		return domain.Payload{}, fmt.Errorf("odos: decode quote for assembly: %w: %v", domain.ErrParse, err)
	}
	if quote.PathID == "" {
		return domain.Payload{}, fmt.Errorf("odos: quote has no pathId: %w", domain.ErrParse)
	}

	body, err := c.doRequest(ctx, http.MethodPost, "/sor/assemble", assembleRequest{
		UserAddr: c.userAddr,
		PathID:   quote.PathID,
		Simulate: false,
	})
	if err != nil {
		return domain.Payload{}, fmt.Errorf("odos: assemble path %s: %w", quote.PathID, err)
	}

	return domain.Payload{
		Source: domain.SourceOdos,
		Body:   body,
	}, nil
}

// doRequest builds, sends, and reads an HTTP request against the Odos API.
func (c *Client) doRequest(ctx context.Context, method, path string, reqBody any) ([]byte, error) {
	var bodyReader io.Reader
	if reqBody != nil {
		jsonBody, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
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
		return nil, fmt.Errorf("%w: status 429: %s", domain.ErrRateLimited, truncate(respBody))
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(respBody))
	}

	return respBody, nil
}

// truncate caps an error body for log-safe messages.
func truncate(b []byte) string {
	const max = 256
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}

var (
	_ domain.QuoteProvider = (*Client)(nil)
	_ domain.Assembler     = (*Client)(nil)
)
