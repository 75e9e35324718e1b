// Package evm talks to the Base chain: ERC-20 allowance management,
// submission of assembled swap transactions, and Uniswap V2 pair reads for
// the liquidity-aware sizing policy.
package evm

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/Adam-leaf/arbitrage-bot/internal/domain"
)

const (
	erc20ABIJSON = `[
		{"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
		{"inputs":[{"name":"spender","type":"address"},{"name":"value","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"}
	]`

	pairABIJSON = `[
		{"inputs":[],"name":"getReserves","outputs":[{"name":"reserve0","type":"uint112"},{"name":"reserve1","type":"uint112"},{"name":"blockTimestampLast","type":"uint32"}],"stateMutability":"view","type":"function"},
		{"inputs":[],"name":"token0","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"}
	]`

	approveGasLimit = 100_000
)

var (
	// approvalThreshold marks an allowance as effectively infinite. Anything
	// below it triggers a fresh max-uint256 approval.
	approvalThreshold = new(big.Int).Lsh(big.NewInt(1), 200)
	maxUint256        = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
)

// backend is the slice of ethclient.Client the EVM client uses. Narrowed for
// testability.
type backend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Config holds the EVM client parameters.
type Config struct {
	RPCURL         string
	ChainID        int64
	PrivateKeyHex  string
	ConfirmRetries int
	ConfirmDelay   time.Duration
	Logger         *slog.Logger
}

// Client signs and submits transactions on the Base chain and serves
// read-only pair queries.
type Client struct {
	backend  backend
	conn     *ethclient.Client
	chainID  *big.Int
	signer   types.Signer
	key      *keyPair
	erc20ABI abi.ABI
	pairABI  abi.ABI

	confirmRetries int
	confirmDelay   time.Duration
	log            *slog.Logger
}

type keyPair struct {
	priv    *ecdsa.PrivateKey
	address common.Address
}

// NewClient dials the RPC endpoint and derives the signing address from the
// private key. Pass an empty PrivateKeyHex in monitor-only mode; allowance
// reads and pair reads still work, signing operations fail.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("evm: dial %s: %w", cfg.RPCURL, err)
	}
	c, err := newClient(eth, cfg)
	if err != nil {
		eth.Close()
		return nil, err
	}
	c.conn = eth
	return c, nil
}

func newClient(b backend, cfg Config) (*Client, error) {
	erc20, err := abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		return nil, fmt.Errorf("evm: parse erc20 abi: %w", err)
	}
	pair, err := abi.JSON(strings.NewReader(pairABIJSON))
	if err != nil {
		return nil, fmt.Errorf("evm: parse pair abi: %w", err)
	}

	if cfg.ConfirmRetries <= 0 {
		cfg.ConfirmRetries = 30
	}
	if cfg.ConfirmDelay <= 0 {
		cfg.ConfirmDelay = 2 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	c := &Client{
		backend:        b,
		chainID:        big.NewInt(cfg.ChainID),
		signer:         types.LatestSignerForChainID(big.NewInt(cfg.ChainID)),
		erc20ABI:       erc20,
		pairABI:        pair,
		confirmRetries: cfg.ConfirmRetries,
		confirmDelay:   cfg.ConfirmDelay,
		log:            cfg.Logger.With(slog.String("component", "evm")),
	}

	if cfg.PrivateKeyHex != "" {
		pk, err := ethcrypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKeyHex, "0x"))
		if err != nil {
			return nil, fmt.Errorf("evm: invalid private key: %w", err)
		}
		c.key = &keyPair{priv: pk, address: ethcrypto.PubkeyToAddress(pk.PublicKey)}
	}

	return c, nil
}

// Close releases the RPC connection. It is a no-op for clients built on a
// caller-supplied backend.
func (c *Client) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}

// Address returns the hex address of the signing wallet, or an empty string
// when no key is loaded.
func (c *Client) Address() string {
	if c.key == nil {
		return ""
	}
	return c.key.address.Hex()
}

// NeedsApproval reports whether the spender's allowance for the token is
// below the infinite-approval threshold.
func (c *Client) NeedsApproval(ctx context.Context, token, owner, spender string) (bool, error) {
	data, err := c.erc20ABI.Pack("allowance", common.HexToAddress(owner), common.HexToAddress(spender))
	if err != nil {
		return false, fmt.Errorf("evm: pack allowance call: %w", err)
	}

	tokenAddr := common.HexToAddress(token)
	out, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &tokenAddr, Data: data}, nil)
	if err != nil {
		return false, fmt.Errorf("evm: read allowance of %s: %w", token, err)
	}

	var allowance *big.Int
	if err := c.erc20ABI.UnpackIntoInterface(&allowance, "allowance", out); err != nil {
		return false, fmt.Errorf("evm: unpack allowance: %w", err)
	}

	return allowance.Cmp(approvalThreshold) < 0, nil
}

// Approve submits a max-uint256 approval for the spender and waits for it to
// be mined.
func (c *Client) Approve(ctx context.Context, token, spender string) error {
	if c.key == nil {
		return fmt.Errorf("evm: approve: no signing key loaded: %w", domain.ErrApprovalFailed)
	}

	data, err := c.erc20ABI.Pack("approve", common.HexToAddress(spender), maxUint256)
	if err != nil {
		return fmt.Errorf("evm: pack approve call: %w", err)
	}

	nonce, err := c.backend.PendingNonceAt(ctx, c.key.address)
	if err != nil {
		return fmt.Errorf("evm: fetch nonce: %w", err)
	}
	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return fmt.Errorf("evm: fetch gas price: %w", err)
	}

	tokenAddr := common.HexToAddress(token)
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &tokenAddr,
		Value:    big.NewInt(0),
		Gas:      approveGasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	hash, err := c.signAndSend(ctx, tx)
	if err != nil {
		return fmt.Errorf("evm: approve %s for %s: %w: %v", token, spender, domain.ErrApprovalFailed, err)
	}

	c.log.Info("approval submitted",
		slog.String("token", token),
		slog.String("spender", spender),
		slog.String("tx", hash.Hex()))

	if err := c.waitMined(ctx, hash); err != nil {
		return fmt.Errorf("evm: approve %s: %w", token, err)
	}
	return nil
}

// assembledTx mirrors the transaction object inside an Odos assemble
// response. Numeric fields arrive as JSON numbers or decimal strings
// depending on magnitude.
type assembledTx struct {
	Transaction struct {
		To       string      `json:"to"`
		Data     string      `json:"data"`
		Value    json.Number `json:"value"`
		Gas      json.Number `json:"gas"`
		GasPrice json.Number `json:"gasPrice"`
		Nonce    json.Number `json:"nonce"`
	} `json:"transaction"`
}

// SubmitAndConfirm signs the assembled swap transaction, submits it, and
// polls until it is mined or the retry budget runs out. There is no
// cancellation once the transaction is on the wire.
func (c *Client) SubmitAndConfirm(ctx context.Context, p domain.Payload) (string, error) {
	if p.Source != domain.SourceOdos {
		return "", fmt.Errorf("evm: cannot submit %s payload", p.Source)
	}
	if c.key == nil {
		return "", fmt.Errorf("evm: submit: no signing key loaded: %w", domain.ErrSubmission)
	}

	tx, err := c.buildTx(ctx, p.Body)
	if err != nil {
		return "", err
	}

	hash, err := c.signAndSend(ctx, tx)
	if err != nil {
		return "", fmt.Errorf("evm: submit swap: %w: %v", domain.ErrSubmission, err)
	}

	c.log.Info("swap submitted", slog.String("tx", hash.Hex()))

	if err := c.waitMined(ctx, hash); err != nil {
		return "", fmt.Errorf("evm: confirm swap %s: %w", hash.Hex(), err)
	}
	return hash.Hex(), nil
}

// PairReserves reads a Uniswap V2 pair's raw reserves.
func (c *Client) PairReserves(ctx context.Context, pair string) (float64, float64, error) {
	data, err := c.pairABI.Pack("getReserves")
	if err != nil {
		return 0, 0, fmt.Errorf("evm: pack getReserves call: %w", err)
	}

	pairAddr := common.HexToAddress(pair)
	out, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &pairAddr, Data: data}, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("evm: read pair reserves of %s: %w", pair, err)
	}

	var reserves struct {
		Reserve0           *big.Int
		Reserve1           *big.Int
		BlockTimestampLast uint32
	}
	if err := c.pairABI.UnpackIntoInterface(&reserves, "getReserves", out); err != nil {
		return 0, 0, fmt.Errorf("evm: unpack reserves: %w", err)
	}

	r0, _ := new(big.Float).SetInt(reserves.Reserve0).Float64()
	r1, _ := new(big.Float).SetInt(reserves.Reserve1).Float64()
	return r0, r1, nil
}

func (c *Client) buildTx(ctx context.Context, body json.RawMessage) (*types.Transaction, error) {
	var assembled assembledTx
	if err := json.Unmarshal(body, &assembled); err != nil {
		return nil, fmt.Errorf("evm: decode assembled transaction: %w: %v", domain.ErrParse, err)
	}
	t := assembled.Transaction
	if t.To == "" || t.Data == "" {
		return nil, fmt.Errorf("evm: assembled transaction missing to/data: %w", domain.ErrParse)
	}

	value, ok := parseBig(t.Value)
	if !ok {
		return nil, fmt.Errorf("evm: bad transaction value %q: %w", t.Value, domain.ErrParse)
	}
	gasPrice, ok := parseBig(t.GasPrice)
	if !ok {
		return nil, fmt.Errorf("evm: bad gas price %q: %w", t.GasPrice, domain.ErrParse)
	}
	gas, err := t.Gas.Int64()
	if err != nil || gas <= 0 {
		return nil, fmt.Errorf("evm: bad gas limit %q: %w", t.Gas, domain.ErrParse)
	}

	// Odos bakes the account nonce into the assembled transaction; fall
	// back to the node when it is absent.
	var nonce uint64
	if t.Nonce != "" {
		n, err := t.Nonce.Int64()
		if err != nil || n < 0 {
			return nil, fmt.Errorf("evm: bad nonce %q: %w", t.Nonce, domain.ErrParse)
		}
		nonce = uint64(n)
	} else {
		nonce, err = c.backend.PendingNonceAt(ctx, c.key.address)
		if err != nil {
			return nil, fmt.Errorf("evm: fetch nonce: %w", err)
		}
	}

	to := common.HexToAddress(t.To)
	return types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      uint64(gas),
		GasPrice: gasPrice,
		Data:     common.FromHex(t.Data),
	}), nil
}

func (c *Client) signAndSend(ctx context.Context, tx *types.Transaction) (common.Hash, error) {
	signed, err := types.SignTx(tx, c.signer, c.key.priv)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign: %w", err)
	}
	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("send: %w", err)
	}
	return signed.Hash(), nil
}

// waitMined polls for the receipt on a fixed cadence. A mined-but-reverted
// transaction is a submission failure, not a timeout.
func (c *Client) waitMined(ctx context.Context, hash common.Hash) error {
	for i := 0; i < c.confirmRetries; i++ {
		receipt, err := c.backend.TransactionReceipt(ctx, hash)
		if err == nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				return fmt.Errorf("transaction reverted in block %d: %w", receipt.BlockNumber.Uint64(), domain.ErrSubmission)
			}
			return nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return fmt.Errorf("fetch receipt: %w", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.confirmDelay):
		}
	}
	return fmt.Errorf("no receipt after %d polls: %w", c.confirmRetries, domain.ErrConfirmTimeout)
}

func parseBig(n json.Number) (*big.Int, bool) {
	if n == "" {
		return big.NewInt(0), true
	}
	v, ok := new(big.Int).SetString(n.String(), 10)
	if !ok || v.Sign() < 0 {
		return nil, false
	}
	return v, true
}

var (
	_ domain.AllowanceManager  = (*Client)(nil)
	_ domain.Submitter         = (*Client)(nil)
	_ domain.PairReserveReader = (*Client)(nil)
)
