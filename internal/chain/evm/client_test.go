package evm

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adam-leaf/arbitrage-bot/internal/domain"
)

// Well-known throwaway development key, never funded.
const (
	testKeyHex  = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testKeyAddr = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"

	testToken   = "0x2222222222222222222222222222222222222222"
	testSpender = "0x19cEeAd7105607Cd444F5ad10dd51356436095a1"
	testPair    = "0x3333333333333333333333333333333333333333"
)

type stubBackend struct {
	callOut []byte
	callErr error

	nonce    uint64
	gasPrice *big.Int

	sent    []*types.Transaction
	sendErr error

	receipt       *types.Receipt
	notFoundPolls int
	receiptCalls  int
}

func (s *stubBackend) CallContract(ctx context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	return s.callOut, s.callErr
}

func (s *stubBackend) PendingNonceAt(ctx context.Context, _ common.Address) (uint64, error) {
	return s.nonce, nil
}

func (s *stubBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	if s.gasPrice == nil {
		return big.NewInt(1_000_000_000), nil
	}
	return s.gasPrice, nil
}

func (s *stubBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent = append(s.sent, tx)
	return nil
}

func (s *stubBackend) TransactionReceipt(ctx context.Context, _ common.Hash) (*types.Receipt, error) {
	s.receiptCalls++
	if s.notFoundPolls > 0 {
		s.notFoundPolls--
		return nil, ethereum.NotFound
	}
	if s.receipt == nil {
		return nil, ethereum.NotFound
	}
	return s.receipt, nil
}

func newTestClient(t *testing.T, b backend) *Client {
	t.Helper()
	c, err := newClient(b, Config{
		ChainID:        8453,
		PrivateKeyHex:  testKeyHex,
		ConfirmRetries: 3,
		ConfirmDelay:   time.Millisecond,
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	return c
}

func successReceipt() *types.Receipt {
	return &types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(100)}
}

func packUint256(v *big.Int) []byte {
	return common.LeftPadBytes(v.Bytes(), 32)
}

func TestNewClient_DerivesAddress(t *testing.T) {
	c := newTestClient(t, &stubBackend{})
	assert.Equal(t, testKeyAddr, c.Address())
}

func TestNewClient_NoKey(t *testing.T) {
	c, err := newClient(&stubBackend{}, Config{ChainID: 8453})
	require.NoError(t, err)
	assert.Empty(t, c.Address())

	err = c.Approve(context.Background(), testToken, testSpender)
	require.ErrorIs(t, err, domain.ErrApprovalFailed)

	_, err = c.SubmitAndConfirm(context.Background(), domain.Payload{Source: domain.SourceOdos})
	require.ErrorIs(t, err, domain.ErrSubmission)
}

func TestClient_NeedsApproval(t *testing.T) {
	tests := map[string]struct {
		allowance *big.Int
		want      bool
	}{
		"zero allowance":     {big.NewInt(0), true},
		"small allowance":    {big.NewInt(1_000_000), true},
		"below threshold":    {new(big.Int).Sub(approvalThreshold, big.NewInt(1)), true},
		"at threshold":       {approvalThreshold, false},
		"infinite allowance": {maxUint256, false},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			b := &stubBackend{callOut: packUint256(tt.allowance)}
			c := newTestClient(t, b)

			need, err := c.NeedsApproval(context.Background(), testToken, testKeyAddr, testSpender)
			require.NoError(t, err)
			assert.Equal(t, tt.want, need)
		})
	}
}

func TestClient_Approve(t *testing.T) {
	b := &stubBackend{nonce: 7, receipt: successReceipt()}
	c := newTestClient(t, b)

	err := c.Approve(context.Background(), testToken, testSpender)
	require.NoError(t, err)

	require.Len(t, b.sent, 1)
	tx := b.sent[0]
	assert.Equal(t, common.HexToAddress(testToken), *tx.To())
	assert.Equal(t, uint64(7), tx.Nonce())
	assert.Equal(t, uint64(approveGasLimit), tx.Gas())

	// approve(address,uint256) selector followed by spender and max uint256.
	data := tx.Data()
	require.GreaterOrEqual(t, len(data), 4+32+32)
	assert.Equal(t, []byte{0x09, 0x5e, 0xa7, 0xb3}, data[:4])
	assert.Equal(t, packUint256(maxUint256), data[4+32:4+64])
}

func TestClient_Approve_Reverted(t *testing.T) {
	b := &stubBackend{
		receipt: &types.Receipt{Status: types.ReceiptStatusFailed, BlockNumber: big.NewInt(100)},
	}
	c := newTestClient(t, b)

	err := c.Approve(context.Background(), testToken, testSpender)
	require.ErrorIs(t, err, domain.ErrSubmission)
}

func assembledBody(t *testing.T) json.RawMessage {
	t.Helper()
	return json.RawMessage(`{
		"transaction": {
			"to": "0x19cEeAd7105607Cd444F5ad10dd51356436095a1",
			"data": "0xdeadbeef",
			"value": "0",
			"gas": 350000,
			"gasPrice": "12000000",
			"nonce": 42
		}
	}`)
}

func TestClient_SubmitAndConfirm(t *testing.T) {
	b := &stubBackend{notFoundPolls: 1, receipt: successReceipt()}
	c := newTestClient(t, b)

	txID, err := c.SubmitAndConfirm(context.Background(), domain.Payload{
		Source: domain.SourceOdos,
		Body:   assembledBody(t),
	})
	require.NoError(t, err)

	require.Len(t, b.sent, 1)
	tx := b.sent[0]
	assert.Equal(t, common.HexToAddress(testSpender), *tx.To())
	assert.Equal(t, uint64(42), tx.Nonce())
	assert.Equal(t, uint64(350000), tx.Gas())
	assert.Equal(t, big.NewInt(12_000_000), tx.GasPrice())
	assert.Equal(t, common.FromHex("0xdeadbeef"), tx.Data())
	assert.Equal(t, tx.Hash().Hex(), txID)
	assert.Equal(t, 2, b.receiptCalls)
}

func TestClient_SubmitAndConfirm_Timeout(t *testing.T) {
	b := &stubBackend{} // never a receipt
	c := newTestClient(t, b)

	_, err := c.SubmitAndConfirm(context.Background(), domain.Payload{
		Source: domain.SourceOdos,
		Body:   assembledBody(t),
	})
	require.ErrorIs(t, err, domain.ErrConfirmTimeout)
	assert.Equal(t, 3, b.receiptCalls)
}

func TestClient_SubmitAndConfirm_WrongSource(t *testing.T) {
	c := newTestClient(t, &stubBackend{})

	_, err := c.SubmitAndConfirm(context.Background(), domain.Payload{Source: domain.SourceJupiter})
	require.Error(t, err)
}

func TestClient_SubmitAndConfirm_BadPayload(t *testing.T) {
	c := newTestClient(t, &stubBackend{})

	for name, body := range map[string]string{
		"not json":     `nope`,
		"missing to":   `{"transaction":{"data":"0xdead","value":"0","gas":1}}`,
		"missing data": `{"transaction":{"to":"0x1","value":"0","gas":1}}`,
		"bad value":    `{"transaction":{"to":"0x1","data":"0xdead","value":"abc","gas":1}}`,
		"zero gas":     `{"transaction":{"to":"0x1","data":"0xdead","value":"0","gas":0}}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := c.SubmitAndConfirm(context.Background(), domain.Payload{
				Source: domain.SourceOdos,
				Body:   json.RawMessage(body),
			})
			require.ErrorIs(t, err, domain.ErrParse)
		})
	}
}

func TestClient_BuildTx_FallsBackToNodeNonce(t *testing.T) {
	b := &stubBackend{nonce: 99}
	c := newTestClient(t, b)

	tx, err := c.buildTx(context.Background(), json.RawMessage(
		`{"transaction":{"to":"0x1","data":"0xdead","value":"0","gas":100,"gasPrice":"1"}}`))
	require.NoError(t, err)
	assert.Equal(t, uint64(99), tx.Nonce())
}

func TestClient_PairReserves(t *testing.T) {
	c := newTestClient(t, &stubBackend{})

	out, err := c.pairABI.Methods["getReserves"].Outputs.Pack(
		big.NewInt(500_000), big.NewInt(45_000), uint32(1_700_000_000))
	require.NoError(t, err)

	b := &stubBackend{callOut: out}
	c = newTestClient(t, b)

	r0, r1, err := c.PairReserves(context.Background(), testPair)
	require.NoError(t, err)
	assert.Equal(t, 500_000.0, r0)
	assert.Equal(t, 45_000.0, r1)
}

func TestClient_PairReserves_CallError(t *testing.T) {
	c := newTestClient(t, &stubBackend{callErr: assert.AnError})

	_, _, err := c.PairReserves(context.Background(), testPair)
	require.Error(t, err)
}
