// Package raydium is a read-only client for the Raydium v3 pool-info API,
// used to value the Solana-side pool for liquidity-aware sizing.
package raydium

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Adam-leaf/arbitrage-bot/internal/domain"
)

// Client is the REST client for the Raydium v3 API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new Raydium client. baseURL is the API root, e.g.
// "https://api-v3.raydium.io".
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// PoolUSDDepth returns the pool's total USD valuation, computed as LP token
// price times LP token supply.
func (c *Client) PoolUSDDepth(ctx context.Context, pool string) (float64, error) {
	params := url.Values{}
	params.Set("ids", pool)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/pools/info/ids?"+params.Encode(), nil)
	if err != nil {
		return 0, fmt.Errorf("raydium: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("raydium: fetch pool %s: %w", pool, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("raydium: read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return 0, fmt.Errorf("raydium: fetch pool %s: status %d", pool, resp.StatusCode)
	}

	var envelope struct {
		Data []struct {
			LPPrice  float64 `json:"lpPrice"`
			LPAmount float64 `json:"lpAmount"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return 0, fmt.Errorf("raydium: decode pool response: %w: %v", domain.ErrParse, err)
	}
	if len(envelope.Data) == 0 {
		return 0, fmt.Errorf("raydium: pool %s: %w", pool, domain.ErrNotFound)
	}

	p := envelope.Data[0]
	if p.LPPrice <= 0 || p.LPAmount <= 0 {
		return 0, fmt.Errorf("raydium: pool %s has no priced liquidity: %w", pool, domain.ErrParse)
	}

	return p.LPPrice * p.LPAmount, nil
}

var _ domain.PoolDepthReader = (*Client)(nil)
