// Package prereq is a client for the enrollment program's complete and
// update instructions. Instruction data follows the Anchor convention: an
// 8-byte discriminator followed by the Borsh-encoded arguments.
package prereq

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	bin "github.com/gagliardetto/binary"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/jvr0x/wba-solana-enrollment/service/pda"
)

// PrereqSeed is the first seed of the per-signer enrollment account.
const PrereqSeed = "prereq"

var (
	CompleteDiscriminator = Discriminator("complete")
	UpdateDiscriminator   = Discriminator("update")
)

// Discriminator returns the Anchor instruction discriminator for name.
func Discriminator(name string) [8]byte {
	sum := sha256.Sum256([]byte("global:" + name))
	var d [8]byte
	copy(d[:], sum[:8])
	return d
}

// CompleteArgs are the arguments of the complete instruction.
type CompleteArgs struct {
	Github []byte
}

// UpdateArgs are the arguments of the update instruction.
type UpdateArgs struct {
	Github []byte
}

// Accounts are the accounts both instructions take, in order.
type Accounts struct {
	Signer        solanago.PublicKey
	Prereq        solanago.PublicKey
	SystemProgram solanago.PublicKey
}

// NewAccounts fills in the enrollment PDA and the system program for signer.
func NewAccounts(programID, signer solanago.PublicKey) (Accounts, pda.Address, error) {
	addr, err := PrereqAddress(programID, signer)
	if err != nil {
		return Accounts{}, pda.Address{}, err
	}
	return Accounts{
		Signer:        signer,
		Prereq:        addr.PublicKey,
		SystemProgram: solanago.SystemProgramID,
	}, addr, nil
}

// PrereqAddress derives the enrollment account of signer.
func PrereqAddress(programID, signer solanago.PublicKey) (pda.Address, error) {
	addr, err := pda.Find(programID, []byte(PrereqSeed), signer.Bytes())
	if err != nil {
		return pda.Address{}, fmt.Errorf("failed to derive prereq address: %w", err)
	}
	return addr, nil
}

func (a Accounts) metas() solanago.AccountMetaSlice {
	return solanago.AccountMetaSlice{
		solanago.NewAccountMeta(a.Signer, true, true),
		solanago.NewAccountMeta(a.Prereq, true, false),
		solanago.NewAccountMeta(a.SystemProgram, false, false),
	}
}

// NewCompleteInstruction builds the complete instruction.
func NewCompleteInstruction(programID solanago.PublicKey, accounts Accounts, args CompleteArgs) (solanago.Instruction, error) {
	return newInstruction(programID, CompleteDiscriminator, accounts, args)
}

// NewUpdateInstruction builds the update instruction.
func NewUpdateInstruction(programID solanago.PublicKey, accounts Accounts, args UpdateArgs) (solanago.Instruction, error) {
	return newInstruction(programID, UpdateDiscriminator, accounts, args)
}

func newInstruction(programID solanago.PublicKey, discriminator [8]byte, accounts Accounts, args interface{}) (solanago.Instruction, error) {
	buf := new(bytes.Buffer)
	buf.Write(discriminator[:])
	if err := bin.NewBorshEncoder(buf).Encode(args); err != nil {
		return nil, fmt.Errorf("failed to encode instruction args: %w", err)
	}
	return solanago.NewInstruction(programID, accounts.metas(), buf.Bytes()), nil
}
