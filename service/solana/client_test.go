package solana

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/jvr0x/wba-solana-enrollment/service/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRPCClient implements RPCClient for testing.
// It's behavior-focused: we set what it should return, not verify call sequences.
type mockRPCClient struct {
	blockhash   *rpc.GetLatestBlockhashResult
	balance     uint64
	fee         *uint64
	sendSig     solana.Signature
	sendErr     error
	statuses    []*rpc.SignatureStatusesResult
	statusErr   error
	blockHeight uint64
	airdropSig  solana.Signature
	err         error

	sent         []*solana.Transaction
	feeMessages  []string
	statusPolls  int
	airdropAsked uint64
}

func (m *mockRPCClient) GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.blockhash, nil
}

func (m *mockRPCClient) GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &rpc.GetBalanceResult{Value: m.balance}, nil
}

func (m *mockRPCClient) GetFeeForMessage(ctx context.Context, message string, commitment rpc.CommitmentType) (*rpc.GetFeeForMessageResult, error) {
	m.feeMessages = append(m.feeMessages, message)
	if m.err != nil {
		return nil, m.err
	}
	return &rpc.GetFeeForMessageResult{Value: m.fee}, nil
}

func (m *mockRPCClient) SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error) {
	m.sent = append(m.sent, tx)
	if m.sendErr != nil {
		return solana.Signature{}, m.sendErr
	}
	if m.sendSig == (solana.Signature{}) && len(tx.Signatures) > 0 {
		return tx.Signatures[0], nil
	}
	return m.sendSig, nil
}

func (m *mockRPCClient) GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, signatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	m.statusPolls++
	if m.statusErr != nil {
		return nil, m.statusErr
	}
	return &rpc.GetSignatureStatusesResult{Value: m.statuses}, nil
}

func (m *mockRPCClient) GetBlockHeight(ctx context.Context, commitment rpc.CommitmentType) (uint64, error) {
	if m.err != nil {
		return 0, m.err
	}
	return m.blockHeight, nil
}

func (m *mockRPCClient) RequestAirdrop(ctx context.Context, account solana.PublicKey, lamports uint64, commitment rpc.CommitmentType) (solana.Signature, error) {
	m.airdropAsked = lamports
	if m.err != nil {
		return solana.Signature{}, m.err
	}
	return m.airdropSig, nil
}

func newTestClient(mock *mockRPCClient) *Client {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClient(mock, "test", Options{PollInterval: time.Millisecond}, nil, logger)
}

func confirmedStatus() []*rpc.SignatureStatusesResult {
	return []*rpc.SignatureStatusesResult{{
		Slot:               42,
		ConfirmationStatus: rpc.ConfirmationStatusConfirmed,
	}}
}

func signedTransfer(t *testing.T) *solana.Transaction {
	t.Helper()
	from, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	to, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	tx, err := solana.NewTransaction(
		[]solana.Instruction{system.NewTransferInstruction(10, from.PublicKey(), to.PublicKey()).Build()},
		testHash("H1"),
		solana.TransactionPayer(from.PublicKey()),
	)
	require.NoError(t, err)
	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(from.PublicKey()) {
			return &from
		}
		return nil
	})
	require.NoError(t, err)
	return tx
}

func TestParseCommitment(t *testing.T) {
	c, err := ParseCommitment("finalized")
	require.NoError(t, err)
	assert.Equal(t, rpc.CommitmentFinalized, c)

	_, err = ParseCommitment("max")
	assert.Error(t, err)
}

func TestNewClient_Defaults(t *testing.T) {
	client := NewClient(&mockRPCClient{}, "test", Options{}, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Equal(t, rpc.CommitmentConfirmed, client.commitment)
	assert.Equal(t, DefaultPollInterval, client.pollInterval)
}

func TestLatestBlockhash(t *testing.T) {
	ctx := context.Background()
	mock := &mockRPCClient{
		blockhash: &rpc.GetLatestBlockhashResult{
			Value: &rpc.LatestBlockhashResult{Blockhash: testHash("H1"), LastValidBlockHeight: 300},
		},
	}

	bh, err := newTestClient(mock).LatestBlockhash(ctx)

	require.NoError(t, err)
	assert.Equal(t, testHash("H1"), bh.Hash)
	assert.Equal(t, uint64(300), bh.LastValidBlockHeight)
}

func TestLatestBlockhash_Errors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		mock *mockRPCClient
	}{
		{"transport failure", &mockRPCClient{err: errors.New("connection refused")}},
		{"nil result", &mockRPCClient{}},
		{"nil value", &mockRPCClient{blockhash: &rpc.GetLatestBlockhashResult{}}},
		{"zero hash", &mockRPCClient{blockhash: &rpc.GetLatestBlockhashResult{Value: &rpc.LatestBlockhashResult{}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestClient(tt.mock).LatestBlockhash(ctx)
			var netErr *NetworkError
			require.ErrorAs(t, err, &netErr)
			assert.Equal(t, "getLatestBlockhash", netErr.Op)
			assert.True(t, IsRetriable(err))
		})
	}
}

func TestBalance(t *testing.T) {
	ctx := context.Background()
	wallet := solana.MustPublicKeyFromBase58("11111111111111111111111111111112")

	lamports, err := newTestClient(&mockRPCClient{balance: 1_000_000_000}).Balance(ctx, wallet)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000_000), lamports)

	_, err = newTestClient(&mockRPCClient{err: errors.New("timeout")}).Balance(ctx, wallet)
	var netErr *NetworkError
	assert.ErrorAs(t, err, &netErr)
}

func TestFeeForMessage(t *testing.T) {
	ctx := context.Background()
	tx := signedTransfer(t)
	fee := uint64(5000)
	mock := &mockRPCClient{fee: &fee}

	got, err := newTestClient(mock).FeeForMessage(ctx, &tx.Message)

	require.NoError(t, err)
	assert.Equal(t, uint64(5000), got)
	require.Len(t, mock.feeMessages, 1)
	assert.NotEmpty(t, mock.feeMessages[0])
}

func TestFeeForMessage_Errors(t *testing.T) {
	ctx := context.Background()
	tx := signedTransfer(t)

	t.Run("no fee quoted", func(t *testing.T) {
		_, err := newTestClient(&mockRPCClient{}).FeeForMessage(ctx, &tx.Message)
		var feeErr *FeeEstimationError
		assert.ErrorAs(t, err, &feeErr)
	})

	t.Run("rpc rejection", func(t *testing.T) {
		mock := &mockRPCClient{err: &jsonrpc.RPCError{Code: -32602, Message: "invalid params"}}
		_, err := newTestClient(mock).FeeForMessage(ctx, &tx.Message)
		var feeErr *FeeEstimationError
		assert.ErrorAs(t, err, &feeErr)
		assert.False(t, IsRetriable(err))
	})

	t.Run("transport failure", func(t *testing.T) {
		mock := &mockRPCClient{err: errors.New("dial tcp: i/o timeout")}
		_, err := newTestClient(mock).FeeForMessage(ctx, &tx.Message)
		var netErr *NetworkError
		assert.ErrorAs(t, err, &netErr)
	})
}

func TestSendAndConfirm(t *testing.T) {
	ctx := context.Background()
	tx := signedTransfer(t)
	mock := &mockRPCClient{statuses: confirmedStatus()}

	sig, err := newTestClient(mock).SendAndConfirm(ctx, tx, 300)

	require.NoError(t, err)
	assert.Equal(t, tx.Signatures[0], sig)
	require.Len(t, mock.sent, 1)
	assert.Equal(t, 1, mock.statusPolls)
}

func TestSendAndConfirm_RecordsMetrics(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := NewClient(&mockRPCClient{statuses: confirmedStatus()}, "test", Options{PollInterval: time.Millisecond}, m, logger)

	_, err := client.SendAndConfirm(ctx, signedTransfer(t), 0)

	require.NoError(t, err)
	assert.Equal(t, float64(1), counterValue(t, reg, "solana_submissions_total", map[string]string{"outcome": "confirmed"}))
	assert.Equal(t, float64(1), counterValue(t, reg, "solana_rpc_calls_total", map[string]string{
		"method": "SendTransaction", "status": "success", "endpoint": "test",
	}))
}

// counterValue returns the value of the counter series matching labels.
func counterValue(t *testing.T, g prometheus.Gatherer, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := g.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	series:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue series
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestSendAndConfirm_Rejected(t *testing.T) {
	ctx := context.Background()
	tx := signedTransfer(t)

	tests := []struct {
		name      string
		rpcErr    *jsonrpc.RPCError
		key       TransactionErrorKey
		retriable bool
	}{
		{
			name:      "blockhash not found in data",
			rpcErr:    &jsonrpc.RPCError{Code: -32002, Message: "Transaction simulation failed", Data: map[string]interface{}{"err": "BlockhashNotFound"}},
			key:       TransactionErrorBlockhashNotFound,
			retriable: true,
		},
		{
			name:      "blockhash not found in message",
			rpcErr:    &jsonrpc.RPCError{Code: -32002, Message: "Transaction simulation failed: Blockhash not found"},
			key:       TransactionErrorBlockhashNotFound,
			retriable: true,
		},
		{
			name:      "insufficient funds for fee",
			rpcErr:    &jsonrpc.RPCError{Code: -32002, Message: "Transaction simulation failed", Data: map[string]interface{}{"err": "InsufficientFundsForFee"}},
			key:       TransactionErrorInsufficientFundsForFee,
			retriable: false,
		},
		{
			name:   "instruction error",
			rpcErr: &jsonrpc.RPCError{Code: -32002, Message: "Transaction simulation failed", Data: map[string]interface{}{"err": map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}}}},
			key:    TransactionErrorInstructionError,
		},
		{
			name:   "signature failure",
			rpcErr: &jsonrpc.RPCError{Code: -32003, Message: "Transaction signature verification failure"},
			key:    TransactionErrorSignatureFailure,
		},
		{
			name:   "unrecognized",
			rpcErr: &jsonrpc.RPCError{Code: -32000, Message: "node is behind"},
			key:    TransactionErrorUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockRPCClient{sendErr: tt.rpcErr}

			_, err := newTestClient(mock).SendAndConfirm(ctx, tx, 300)

			var subErr *SubmissionError
			require.ErrorAs(t, err, &subErr)
			assert.Equal(t, tt.key, subErr.Key)
			assert.Equal(t, tt.retriable, subErr.Retriable)
			assert.Equal(t, tt.retriable, IsRetriable(err))
			assert.Equal(t, tx.Signatures[0], subErr.Signature)
			assert.Zero(t, mock.statusPolls)
		})
	}
}

func TestSendAndConfirm_TransportFailure(t *testing.T) {
	ctx := context.Background()
	tx := signedTransfer(t)
	mock := &mockRPCClient{sendErr: errors.New("connection reset by peer")}

	_, err := newTestClient(mock).SendAndConfirm(ctx, tx, 300)

	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, "sendTransaction", netErr.Op)
	assert.Contains(t, err.Error(), tx.Signatures[0].String())
}

func TestWaitForConfirmation_FailedOnChain(t *testing.T) {
	ctx := context.Background()
	sig := signedTransfer(t).Signatures[0]
	mock := &mockRPCClient{
		statuses: []*rpc.SignatureStatusesResult{{
			Slot: 7,
			Err:  map[string]interface{}{"InstructionError": []interface{}{0, map[string]interface{}{"Custom": 1}}},
		}},
	}

	err := newTestClient(mock).WaitForConfirmation(ctx, sig, 300)

	var subErr *SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, TransactionErrorInstructionError, subErr.Key)
	assert.False(t, subErr.Retriable)
	assert.Equal(t, sig, subErr.Signature)
}

func TestWaitForConfirmation_BlockhashExpired(t *testing.T) {
	ctx := context.Background()
	sig := signedTransfer(t).Signatures[0]
	mock := &mockRPCClient{blockHeight: 301}

	err := newTestClient(mock).WaitForConfirmation(ctx, sig, 300)

	var subErr *SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, TransactionErrorBlockhashExpired, subErr.Key)
	assert.True(t, IsRetriable(err))
}

func TestWaitForConfirmation_Timeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	sig := signedTransfer(t).Signatures[0]
	mock := &mockRPCClient{blockHeight: 100}

	err := newTestClient(mock).WaitForConfirmation(ctx, sig, 300)

	var subErr *SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, TransactionErrorConfirmationTimeout, subErr.Key)
	assert.False(t, IsRetriable(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Greater(t, mock.statusPolls, 1)
}

func TestWaitForConfirmation_PollErrorsAreTolerated(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	sig := signedTransfer(t).Signatures[0]
	mock := &mockRPCClient{statusErr: errors.New("503 service unavailable")}

	err := newTestClient(mock).WaitForConfirmation(ctx, sig, 0)

	var subErr *SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, TransactionErrorConfirmationTimeout, subErr.Key)
	assert.Greater(t, mock.statusPolls, 1)
}

func TestCommitmentReached(t *testing.T) {
	one := uint64(1)

	tests := []struct {
		name   string
		status rpc.SignatureStatusesResult
		want   rpc.CommitmentType
		ok     bool
	}{
		{"processed below confirmed", rpc.SignatureStatusesResult{ConfirmationStatus: rpc.ConfirmationStatusProcessed}, rpc.CommitmentConfirmed, false},
		{"confirmed meets confirmed", rpc.SignatureStatusesResult{ConfirmationStatus: rpc.ConfirmationStatusConfirmed}, rpc.CommitmentConfirmed, true},
		{"confirmed below finalized", rpc.SignatureStatusesResult{ConfirmationStatus: rpc.ConfirmationStatusConfirmed}, rpc.CommitmentFinalized, false},
		{"finalized meets processed", rpc.SignatureStatusesResult{ConfirmationStatus: rpc.ConfirmationStatusFinalized}, rpc.CommitmentProcessed, true},
		{"legacy rooted", rpc.SignatureStatusesResult{}, rpc.CommitmentFinalized, true},
		{"legacy with confirmations", rpc.SignatureStatusesResult{Confirmations: &one}, rpc.CommitmentConfirmed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := tt.status
			assert.Equal(t, tt.ok, commitmentReached(&status, tt.want))
		})
	}
}

func TestRequestAirdrop(t *testing.T) {
	ctx := context.Background()
	wallet := solana.MustPublicKeyFromBase58("11111111111111111111111111111112")
	airdropSig := signedTransfer(t).Signatures[0]
	mock := &mockRPCClient{airdropSig: airdropSig}

	sig, err := newTestClient(mock).RequestAirdrop(ctx, wallet, 2_000_000_000)

	require.NoError(t, err)
	assert.Equal(t, airdropSig, sig)
	assert.Equal(t, uint64(2_000_000_000), mock.airdropAsked)

	mock = &mockRPCClient{err: &jsonrpc.RPCError{Code: 429, Message: "airdrop limit reached"}}
	_, err = newTestClient(mock).RequestAirdrop(ctx, wallet, 2_000_000_000)
	require.Error(t, err)
	var netErr *NetworkError
	assert.False(t, errors.As(err, &netErr))
}

func TestParseTransactionErrorKey(t *testing.T) {
	assert.Equal(t, TransactionErrorKey(""), ParseTransactionErrorKey(nil))
	assert.Equal(t, TransactionErrorBlockhashNotFound, ParseTransactionErrorKey("BlockhashNotFound"))
	assert.Equal(t, TransactionErrorInstructionError, ParseTransactionErrorKey(map[string]interface{}{"InstructionError": []interface{}{0}}))
	assert.Equal(t, TransactionErrorUnknown, ParseTransactionErrorKey(42))
}
