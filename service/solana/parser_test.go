package solana

import (
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHash(s string) solana.Hash {
	var h solana.Hash
	copy(h[:], s)
	return h
}

// TestSummarize_SystemTransfer tests summarizing a signed SOL transfer.
func TestSummarize_SystemTransfer(t *testing.T) {
	from, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	to := solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")

	tx, err := solana.NewTransaction(
		[]solana.Instruction{
			system.NewTransferInstruction(1_000_000_000, from.PublicKey(), to).Build(),
		},
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

	// Act
	summary, err := Summarize(tx)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, tx.Signatures[0].String(), summary.Signature)
	assert.Equal(t, from.PublicKey().String(), summary.FeePayer)
	assert.Equal(t, testHash("H1").String(), summary.RecentBlockhash)
	assert.Equal(t, []string{from.PublicKey().String()}, summary.Signers)
	assert.Equal(t, 1, summary.InstructionCount)
	assert.Equal(t, []string{solana.SystemProgramID.String()}, summary.Programs)

	require.Len(t, summary.Transfers, 1)
	assert.Equal(t, from.PublicKey().String(), summary.Transfers[0].From)
	assert.Equal(t, to.String(), summary.Transfers[0].To)
	assert.Equal(t, uint64(1_000_000_000), summary.Transfers[0].Lamports)
}

// TestSummarize_Unsigned tests that an unsigned transaction has no signature.
func TestSummarize_Unsigned(t *testing.T) {
	from := solana.MustPublicKeyFromBase58("11111111111111111111111111111112")
	to := solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")

	tx, err := solana.NewTransaction(
		[]solana.Instruction{system.NewTransferInstruction(5, from, to).Build()},
		testHash("H2"),
		solana.TransactionPayer(from),
	)
	require.NoError(t, err)

	summary, err := Summarize(tx)

	require.NoError(t, err)
	assert.Empty(t, summary.Signature)
	require.Len(t, summary.Transfers, 1)
	assert.Equal(t, uint64(5), summary.Transfers[0].Lamports)
}

func TestSummarize_Invalid(t *testing.T) {
	_, err := Summarize(nil)
	assert.Error(t, err)

	_, err = Summarize(&solana.Transaction{})
	assert.Error(t, err)

	_, err = Summarize(&solana.Transaction{
		Message: solana.Message{
			AccountKeys:  []solana.PublicKey{solana.SystemProgramID},
			Instructions: []solana.CompiledInstruction{{ProgramIDIndex: 4}},
		},
	})
	assert.Error(t, err)
}

// TestParseSystemTransfer tests parsing System Program transfer instructions.
func TestParseSystemTransfer(t *testing.T) {
	fromAddr := solana.MustPublicKeyFromBase58("11111111111111111111111111111112")
	toAddr := solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")

	instructionData := make([]byte, 12)
	binary.LittleEndian.PutUint32(instructionData[0:4], SystemProgramTransferInstruction)
	binary.LittleEndian.PutUint64(instructionData[4:12], 2000000000)

	instruction := solana.CompiledInstruction{
		ProgramIDIndex: 0,
		Accounts:       []uint16{0, 1},
		Data:           instructionData,
	}

	accountKeys := []solana.PublicKey{fromAddr, toAddr}

	// Act
	transfer, err := parseSystemTransfer(instruction, accountKeys)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, uint64(2000000000), transfer.Lamports)
	assert.Equal(t, fromAddr.String(), transfer.From)
	assert.Equal(t, toAddr.String(), transfer.To)
}

func TestParseSystemTransfer_Rejects(t *testing.T) {
	accountKeys := []solana.PublicKey{
		solana.MustPublicKeyFromBase58("11111111111111111111111111111112"),
		solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112"),
	}

	createAccount := make([]byte, 12)
	binary.LittleEndian.PutUint32(createAccount[0:4], 0)

	transfer := make([]byte, 12)
	binary.LittleEndian.PutUint32(transfer[0:4], SystemProgramTransferInstruction)

	tests := []struct {
		name        string
		instruction solana.CompiledInstruction
	}{
		{"short data", solana.CompiledInstruction{Accounts: []uint16{0, 1}, Data: []byte{2, 0, 0, 0}}},
		{"other instruction", solana.CompiledInstruction{Accounts: []uint16{0, 1}, Data: createAccount}},
		{"missing accounts", solana.CompiledInstruction{Accounts: []uint16{0}, Data: transfer}},
		{"account out of bounds", solana.CompiledInstruction{Accounts: []uint16{0, 7}, Data: transfer}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseSystemTransfer(tt.instruction, accountKeys)
			assert.Error(t, err)
		})
	}
}

func TestExplorerURL(t *testing.T) {
	assert.Equal(t, "https://explorer.solana.com/tx/abc?cluster=devnet", ExplorerURL("abc", "devnet"))
	assert.Equal(t, "https://explorer.solana.com/tx/abc", ExplorerURL("abc", "mainnet-beta"))
	assert.Equal(t, "https://explorer.solana.com/tx/abc", ExplorerURL("abc", ""))
}
