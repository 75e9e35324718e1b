package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

// wsWatcher confirms signatures over the websocket API. One subscription per
// confirmation; the connection is not reused because confirmations are rare
// relative to its idle-timeout behavior on public endpoints.
type wsWatcher struct {
	url string
	log *slog.Logger
}

func newWSWatcher(url string, log *slog.Logger) *wsWatcher {
	return &wsWatcher{url: url, log: log}
}

type wsMessage struct {
	ID     uint64          `json:"id"`
	Method string          `json:"method"`
	Error  *rpcError       `json:"error"`
	Params json.RawMessage `json:"params"`
}

type signatureNotification struct {
	Result struct {
		Value struct {
			Err any `json:"err"`
		} `json:"value"`
	} `json:"result"`
}

// waitFinalized subscribes to the signature at finalized commitment and
// blocks until the cluster notifies, the timeout passes, or the context
// ends. It returns the transaction's on-chain error value, nil for success.
func (w *wsWatcher) waitFinalized(ctx context.Context, sig string, timeout time.Duration) (any, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, w.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", w.url, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return nil, fmt.Errorf("set read deadline: %w", err)
	}

	sub := rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "signatureSubscribe",
		Params:  []any{sig, map[string]any{"commitment": "finalized"}},
	}
	if err := conn.WriteJSON(sub); err != nil {
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return nil, fmt.Errorf("read notification: %w", err)
		}
		if msg.Error != nil {
			return nil, msg.Error
		}
		if msg.Method != "signatureNotification" {
			// Subscription confirmation or unrelated traffic.
			continue
		}

		var note signatureNotification
		if err := json.Unmarshal(msg.Params, &note); err != nil {
			return nil, fmt.Errorf("decode notification: %w", err)
		}
		return note.Result.Value.Err, nil
	}
}
