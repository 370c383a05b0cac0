package solana

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// System Program instruction types
const (
	SystemProgramTransferInstruction = uint32(2)
)

// Summarize converts an assembled transaction into our domain summary.
// It decodes System Program transfers so callers can check what a transaction
// will do before it is submitted.
func Summarize(tx *solana.Transaction) (*Transaction, error) {
	if tx == nil {
		return nil, fmt.Errorf("nil transaction")
	}

	msg := tx.Message
	accountKeys := msg.AccountKeys
	if len(accountKeys) == 0 {
		return nil, fmt.Errorf("transaction has no account keys")
	}

	summary := &Transaction{
		FeePayer:         accountKeys[0].String(),
		RecentBlockhash:  msg.RecentBlockhash.String(),
		InstructionCount: len(msg.Instructions),
	}

	if len(tx.Signatures) > 0 && tx.Signatures[0] != (solana.Signature{}) {
		summary.Signature = tx.Signatures[0].String()
	}

	numSigners := int(msg.Header.NumRequiredSignatures)
	for i := 0; i < numSigners && i < len(accountKeys); i++ {
		summary.Signers = append(summary.Signers, accountKeys[i].String())
	}

	seenPrograms := make(map[string]struct{})
	for _, instruction := range msg.Instructions {
		if int(instruction.ProgramIDIndex) >= len(accountKeys) {
			return nil, fmt.Errorf("program index %d out of bounds", instruction.ProgramIDIndex)
		}
		programID := accountKeys[instruction.ProgramIDIndex]
		if _, ok := seenPrograms[programID.String()]; !ok {
			seenPrograms[programID.String()] = struct{}{}
			summary.Programs = append(summary.Programs, programID.String())
		}

		if programID.Equals(solana.SystemProgramID) {
			if transfer, err := parseSystemTransfer(instruction, accountKeys); err == nil {
				summary.Transfers = append(summary.Transfers, *transfer)
			}
		}
	}

	return summary, nil
}

// parseSystemTransfer extracts amount, source and destination from a System Program Transfer instruction.
func parseSystemTransfer(instruction solana.CompiledInstruction, accountKeys []solana.PublicKey) (*SystemTransfer, error) {
	// System Transfer instruction format:
	// [0..4]  = instruction type (u32, should be 2 for Transfer)
	// [4..12] = lamports (u64)
	if len(instruction.Data) < 12 {
		return nil, fmt.Errorf("instruction data too short: %d bytes", len(instruction.Data))
	}

	instructionType := binary.LittleEndian.Uint32(instruction.Data[0:4])
	if instructionType != SystemProgramTransferInstruction {
		return nil, fmt.Errorf("not a transfer instruction: type %d", instructionType)
	}

	// System Transfer accounts: [from, to]
	if len(instruction.Accounts) < 2 {
		return nil, fmt.Errorf("transfer instruction missing accounts")
	}
	fromIndex, toIndex := int(instruction.Accounts[0]), int(instruction.Accounts[1])
	if fromIndex >= len(accountKeys) || toIndex >= len(accountKeys) {
		return nil, fmt.Errorf("transfer account index out of bounds")
	}

	return &SystemTransfer{
		From:     accountKeys[fromIndex].String(),
		To:       accountKeys[toIndex].String(),
		Lamports: binary.LittleEndian.Uint64(instruction.Data[4:12]),
	}, nil
}
