package solana

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Blockhash is a recent blockhash together with the last block height at
// which transactions referencing it are still accepted.
type Blockhash struct {
	Hash                 solana.Hash
	LastValidBlockHeight uint64
}

// Transaction is a readable summary of an assembled transaction.
// This is our domain model, independent of the wire format.
type Transaction struct {
	Signature        string           `json:"signature,omitempty"`
	FeePayer         string           `json:"fee_payer"`
	RecentBlockhash  string           `json:"recent_blockhash"`
	Signers          []string         `json:"signers"`
	Transfers        []SystemTransfer `json:"transfers,omitempty"`
	InstructionCount int              `json:"instruction_count"`
	Programs         []string         `json:"programs"`
}

// SystemTransfer is a System Program lamport transfer found in a transaction.
type SystemTransfer struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Lamports uint64 `json:"lamports"`
}

// ExplorerURL returns the Solana Explorer link for a transaction signature.
// mainnet-beta is the explorer default and takes no cluster parameter.
func ExplorerURL(signature, cluster string) string {
	if cluster == "" || cluster == "mainnet-beta" || cluster == "mainnet" {
		return fmt.Sprintf("https://explorer.solana.com/tx/%s", signature)
	}
	return fmt.Sprintf("https://explorer.solana.com/tx/%s?cluster=%s", signature, cluster)
}
