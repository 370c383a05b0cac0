// Package keys loads signing keypairs and converts key material between the
// JSON byte-array ("wallet file") form and base58 strings.
package keys

import (
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// Key sizes in bytes.
const (
	PrivateKeySize = ed25519.PrivateKeySize // seed || public key
	PublicKeySize  = ed25519.PublicKeySize
)

// FileNotFoundError is returned when the key file does not exist.
type FileNotFoundError struct {
	Path string
}

func (e *FileNotFoundError) Error() string {
	return fmt.Sprintf("key file not found: %s", e.Path)
}

// Unwrap lets errors.Is(err, fs.ErrNotExist) match.
func (e *FileNotFoundError) Unwrap() error {
	return fs.ErrNotExist
}

// DecodeError is returned for malformed key material.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("decode error: %s", e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Generate creates a fresh random keypair. Nothing is written to disk.
func Generate() (solana.PrivateKey, error) {
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate keypair: %w", err)
	}
	return key, nil
}

// LoadFile reads a keypair stored as a JSON byte array, the format written by
// `solana-keygen`. The file is only read.
func LoadFile(path string) (solana.PrivateKey, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &FileNotFoundError{Path: path}
		}
		return nil, fmt.Errorf("failed to read key file %s: %w", path, err)
	}

	raw, err := ParseWalletBytes(string(content))
	if err != nil {
		return nil, fmt.Errorf("key file %s: %w", path, err)
	}

	key, err := KeypairFromBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("key file %s: %w", path, err)
	}
	return key, nil
}

// KeypairFromBytes validates 64 bytes of keypair material. The trailing 32
// bytes must be the public key of the leading seed.
func KeypairFromBytes(raw []byte) (solana.PrivateKey, error) {
	if len(raw) != PrivateKeySize {
		return nil, &DecodeError{Reason: fmt.Sprintf("keypair must be %d bytes, got %d", PrivateKeySize, len(raw))}
	}

	derived := ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize])
	if !ed25519.PublicKey(derived[ed25519.SeedSize:]).Equal(ed25519.PublicKey(raw[ed25519.SeedSize:])) {
		return nil, &DecodeError{Reason: "public key half does not match the secret seed"}
	}

	key := make(solana.PrivateKey, PrivateKeySize)
	copy(key, raw)
	return key, nil
}

// KeypairFromBase58 decodes a base58 private key, as exported by browser wallets.
func KeypairFromBase58(s string) (solana.PrivateKey, error) {
	raw, err := DecodeBase58(s, PrivateKeySize)
	if err != nil {
		return nil, err
	}
	return KeypairFromBytes(raw)
}

// EncodeBase58 renders raw bytes as a base58 string.
func EncodeBase58(b []byte) string {
	return base58.Encode(b)
}

// DecodeBase58 decodes a base58 string. When size is positive the decoded
// length must equal it. On any error the returned slice is nil.
func DecodeBase58(s string, size int) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		if size > 0 {
			return nil, &DecodeError{Reason: fmt.Sprintf("expected %d bytes, got 0", size)}
		}
		return []byte{}, nil
	}

	out, err := base58.Decode(s)
	if err != nil {
		return nil, &DecodeError{Reason: "invalid base58", Err: err}
	}

	if size > 0 && len(out) != size {
		return nil, &DecodeError{Reason: fmt.Sprintf("expected %d bytes, got %d", size, len(out))}
	}
	return out, nil
}

// FormatWalletBytes renders bytes as a JSON array of integers, e.g. [1,2,3].
func FormatWalletBytes(b []byte) string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// ParseWalletBytes parses a JSON array of integers in the range 0..255.
func ParseWalletBytes(s string) ([]byte, error) {
	var values []int
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &values); err != nil {
		return nil, &DecodeError{Reason: "wallet bytes must be a JSON array of integers", Err: err}
	}
	if len(values) == 0 {
		return nil, &DecodeError{Reason: "wallet bytes are empty"}
	}

	out := make([]byte, len(values))
	for i, v := range values {
		if v < 0 || v > 255 {
			return nil, &DecodeError{Reason: fmt.Sprintf("byte %d out of range: %d", i, v)}
		}
		out[i] = byte(v)
	}
	return out, nil
}
