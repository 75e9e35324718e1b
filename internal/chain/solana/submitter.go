package solana

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	solanago "github.com/gagliardetto/solana-go"

	"github.com/Adam-leaf/arbitrage-bot/internal/domain"
)

// Config holds the Solana submitter parameters.
type Config struct {
	RPCURL string
	// WSURL enables the websocket confirmation fast path when set. Polling
	// remains the fallback either way.
	WSURL            string
	PrivateKeyBase58 string
	ConfirmRetries   int
	ConfirmDelay     time.Duration
	Timeout          time.Duration
	Logger           *slog.Logger
}

// Submitter signs Jupiter swap transactions and confirms them to finality.
type Submitter struct {
	rpc *rpcClient
	ws  *wsWatcher
	key solanago.PrivateKey

	confirmRetries int
	confirmDelay   time.Duration
	log            *slog.Logger
}

// NewSubmitter creates a Submitter. Pass an empty PrivateKeyBase58 in
// monitor-only mode; submission then fails fast.
func NewSubmitter(cfg Config) (*Submitter, error) {
	if cfg.ConfirmRetries <= 0 {
		cfg.ConfirmRetries = 60
	}
	if cfg.ConfirmDelay <= 0 {
		cfg.ConfirmDelay = 2 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Submitter{
		rpc:            newRPCClient(cfg.RPCURL, cfg.Timeout),
		confirmRetries: cfg.ConfirmRetries,
		confirmDelay:   cfg.ConfirmDelay,
		log:            cfg.Logger.With(slog.String("component", "solana")),
	}

	if cfg.WSURL != "" {
		s.ws = newWSWatcher(cfg.WSURL, s.log)
	}

	if cfg.PrivateKeyBase58 != "" {
		key, err := solanago.PrivateKeyFromBase58(cfg.PrivateKeyBase58)
		if err != nil {
			return nil, fmt.Errorf("solana: invalid private key: %w", err)
		}
		s.key = key
	}

	return s, nil
}

// Address returns the base58 public key of the signing wallet, or an empty
// string when no key is loaded.
func (s *Submitter) Address() string {
	if s.key == nil {
		return ""
	}
	return s.key.PublicKey().String()
}

// SubmitAndConfirm signs the swap transaction from a Jupiter swap response,
// submits it, and waits for finalized status. A transaction that finalizes
// with an on-chain error is a submission failure.
func (s *Submitter) SubmitAndConfirm(ctx context.Context, p domain.Payload) (string, error) {
	if p.Source != domain.SourceJupiter {
		return "", fmt.Errorf("solana: cannot submit %s payload", p.Source)
	}
	if s.key == nil {
		return "", fmt.Errorf("solana: submit: no signing key loaded: %w", domain.ErrSubmission)
	}

	signedB64, err := s.signSwap(p.Body)
	if err != nil {
		return "", err
	}

	sig, err := s.rpc.sendTransaction(ctx, signedB64)
	if err != nil {
		return "", fmt.Errorf("solana: send transaction: %w: %v", domain.ErrSubmission, err)
	}

	s.log.Info("swap submitted", slog.String("signature", sig))

	if err := s.confirm(ctx, sig); err != nil {
		return "", fmt.Errorf("solana: confirm %s: %w", sig, err)
	}
	return sig, nil
}

// signSwap extracts the unsigned transaction from a swap response, signs it
// with the wallet key, and re-encodes it.
func (s *Submitter) signSwap(body json.RawMessage) (string, error) {
	var swap struct {
		SwapTransaction string `json:"swapTransaction"`
	}
	if err := json.Unmarshal(body, &swap); err != nil {
		return "", fmt.Errorf("solana: decode swap response: %w: %v", domain.ErrParse, err)
	}
	if swap.SwapTransaction == "" {
		return "", fmt.Errorf("solana: swap response has no transaction: %w", domain.ErrParse)
	}

	tx, err := solanago.TransactionFromBase64(swap.SwapTransaction)
	if err != nil {
		return "", fmt.Errorf("solana: decode transaction: %w: %v", domain.ErrParse, err)
	}

	_, err = tx.Sign(func(key solanago.PublicKey) *solanago.PrivateKey {
		if key.Equals(s.key.PublicKey()) {
			return &s.key
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("solana: sign transaction: %w", err)
	}

	raw, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("solana: marshal signed transaction: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// confirm waits for the signature to finalize. The websocket path resolves
// in one message when available; every failure there falls back to status
// polling.
func (s *Submitter) confirm(ctx context.Context, sig string) error {
	budget := time.Duration(s.confirmRetries) * s.confirmDelay

	if s.ws != nil {
		txErr, err := s.ws.waitFinalized(ctx, sig, budget)
		if err == nil {
			return finalizedResult(txErr)
		}
		s.log.Warn("websocket confirmation failed, falling back to polling",
			slog.String("signature", sig),
			slog.String("error", err.Error()))
	}

	for i := 0; i < s.confirmRetries; i++ {
		status, err := s.rpc.getSignatureStatus(ctx, sig)
		if err != nil {
			s.log.Warn("status poll failed", slog.String("error", err.Error()))
		} else if status != nil && status.ConfirmationStatus == "finalized" {
			return finalizedResult(status.Err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.confirmDelay):
		}
	}
	return fmt.Errorf("not finalized after %d polls: %w", s.confirmRetries, domain.ErrConfirmTimeout)
}

func finalizedResult(txErr any) error {
	if txErr != nil {
		return fmt.Errorf("finalized with error %v: %w", txErr, domain.ErrSubmission)
	}
	return nil
}

var _ domain.Submitter = (*Submitter)(nil)
