package chain

import (
	"errors"
	"strconv"
	"strings"
	"testing"
)

func TestParseKeypairFormats(t *testing.T) {
	key, err := NewKeypair()
	if err != nil {
		t.Fatalf("keypair: %v", err)
	}

	fromBase58, err := ParseKeypair(key.String())
	if err != nil {
		t.Fatalf("base58: %v", err)
	}
	if !fromBase58.PublicKey().Equals(key.PublicKey()) {
		t.Fatalf("base58 round trip changed the key")
	}

	parts := make([]string, len(key))
	for i, b := range key {
		parts[i] = strconv.Itoa(int(b))
	}
	for _, raw := range []string{strings.Join(parts, ","), "[" + strings.Join(parts, ", ") + "]"} {
		parsed, err := ParseKeypair(raw)
		if err != nil {
			t.Fatalf("byte list %q: %v", raw[:10], err)
		}
		if !parsed.PublicKey().Equals(key.PublicKey()) {
			t.Fatalf("byte list produced a different key")
		}
	}
}

func TestParseKeypairRejects(t *testing.T) {
	key, _ := NewKeypair()
	tampered := append([]byte(nil), key...)
	tampered[63] ^= 0xff

	cases := map[string]string{
		"empty":      "",
		"not base58": "0OIl",
		"short":      "1,2,3",
		"overflow":   strings.Repeat("256,", 63) + "256",
		"tampered":   joinBytes(tampered),
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseKeypair(raw); !errors.Is(err, ErrInvalidKey) {
				t.Fatalf("expected ErrInvalidKey, got %v", err)
			}
		})
	}
}

func TestParsePublicKey(t *testing.T) {
	key, _ := NewKeypair()
	pk, err := ParsePublicKey(" " + key.PublicKey().String() + " ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !pk.Equals(key.PublicKey()) {
		t.Fatalf("mismatch")
	}
	if _, err := ParsePublicKey("not-an-address"); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress, got %v", err)
	}
}

func joinBytes(b []byte) string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = strconv.Itoa(int(v))
	}
	return strings.Join(parts, ",")
}
