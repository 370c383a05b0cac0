// Package pda derives program addresses: public keys that lie off the
// ed25519 curve and so have no private key.
package pda

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strings"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/jvr0x/wba-solana-enrollment/service/keys"
)

const (
	// MaxSeeds is the number of user seeds; the bump takes the last of the 16 slots.
	MaxSeeds      = 15
	MaxSeedLength = 32
)

var (
	ErrTooManySeeds = errors.New("too many seeds")
	ErrSeedTooLong  = errors.New("max seed length exceeded")
)

var (
	createProgramAddress = solanago.CreateProgramAddress
)

// NoValidBumpError means every bump from 255 down to 1 produced an on-curve address.
type NoValidBumpError struct {
	ProgramID solanago.PublicKey
}

func (e *NoValidBumpError) Error() string {
	return fmt.Sprintf("unable to find a viable program address bump for program %s", e.ProgramID)
}

// Address is a program derived address and the bump seed that produced it.
type Address struct {
	PublicKey solanago.PublicKey `json:"address"`
	Bump      uint8              `json:"bump"`
}

// Find returns the first off-curve address for seeds, trying bumps from 255 down.
func Find(programID solanago.PublicKey, seeds ...[]byte) (Address, error) {
	if len(seeds) > MaxSeeds {
		return Address{}, ErrTooManySeeds
	}
	for _, s := range seeds {
		if len(s) > MaxSeedLength {
			return Address{}, ErrSeedTooLong
		}
	}

	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)

	for bump := uint8(math.MaxUint8); bump > 0; bump-- {
		withBump[len(seeds)] = []byte{bump}
		pub, err := createProgramAddress(withBump, programID)
		if err == nil {
			return Address{PublicKey: pub, Bump: bump}, nil
		}
	}

	return Address{}, &NoValidBumpError{ProgramID: programID}
}

// ParseSeed converts a seed argument to bytes. Arguments are "str:<text>",
// "pubkey:<base58 key>", "hex:<hex>" or "base58:<base58>"; a value with no
// recognised prefix is taken as text.
func ParseSeed(arg string) ([]byte, error) {
	kind, value, found := strings.Cut(arg, ":")
	if !found {
		return []byte(arg), nil
	}

	switch kind {
	case "str":
		return []byte(value), nil
	case "pubkey":
		return keys.DecodeBase58(value, keys.PublicKeySize)
	case "base58":
		return keys.DecodeBase58(value, 0)
	case "hex":
		b, err := hex.DecodeString(value)
		if err != nil {
			return nil, fmt.Errorf("invalid hex seed %q: %w", value, err)
		}
		return b, nil
	}
	return []byte(arg), nil
}
