package chain

import (
	"bytes"
	"crypto/ed25519"
	"fmt"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// NewKeypair generates a random ed25519 key-pair.
func NewKeypair() (solana.PrivateKey, error) {
	return solana.NewRandomPrivateKey()
}

// ParseKeypair accepts a 64-byte secret key either base58 encoded or as a
// comma-separated byte list (optionally wrapped in brackets).
func ParseKeypair(raw string) (solana.PrivateKey, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidKey)
	}

	var secret []byte
	if strings.ContainsAny(raw, ",[") {
		parsed, err := parseByteList(raw)
		if err != nil {
			return nil, err
		}
		secret = parsed
	} else {
		decoded, err := base58.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		secret = decoded
	}

	if len(secret) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidKey, ed25519.PrivateKeySize, len(secret))
	}
	derived := ed25519.NewKeyFromSeed(secret[:ed25519.SeedSize])
	if !bytes.Equal(derived, secret) {
		return nil, fmt.Errorf("%w: public half does not match seed", ErrInvalidKey)
	}
	return solana.PrivateKey(secret), nil
}

// ParsePublicKey decodes a base58 account address.
func ParsePublicKey(raw string) (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(strings.TrimSpace(raw))
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return pk, nil
}

func parseByteList(raw string) ([]byte, error) {
	raw = strings.TrimSuffix(strings.TrimPrefix(raw, "["), "]")
	parts := strings.Split(raw, ",")
	out := make([]byte, 0, len(parts))
	for i, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 || n > 255 {
			return nil, fmt.Errorf("%w: byte %d is not in 0..255", ErrInvalidKey, i)
		}
		out = append(out, byte(n))
	}
	return out, nil
}
