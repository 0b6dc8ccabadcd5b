// Package crypto provides the pluggable encryption strategies applied to
// serialized envelopes before they cross the transport.
//
// Two variants exist:
//   - Noop: identity transform with zero overhead
//   - AEAD: authenticated encryption (AES-256-GCM or XChaCha20-Poly1305)
//
// An AEAD frame is laid out at fixed offsets as nonce‖ciphertext‖tag. The
// nonce is drawn from crypto/rand on every Encrypt call, so callers never
// manage nonces themselves.
//
// When Decrypt cannot authenticate a frame it fires the compromised
// callback exactly once for that call and returns ErrTampered. It never
// returns partially decrypted bytes.
package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// KeySize is the symmetric key length in bytes required by every AEAD cipher.
const KeySize = 32

// Cipher names accepted by New.
const (
	CipherNone              = "none"
	CipherAESGCM            = "aes-256-gcm"
	CipherXChaCha20Poly1305 = "xchacha20-poly1305"
)

var (
	// ErrTampered indicates a frame failed authentication.
	ErrTampered = errors.New("message authentication failed")

	// ErrInvalidKey indicates the hex key is malformed or has the wrong length.
	ErrInvalidKey = errors.New("invalid encryption key")

	// ErrUnknownCipher indicates New was given a cipher name it does not know.
	ErrUnknownCipher = errors.New("unknown cipher")
)

// Strategy transforms serialized envelopes on their way to and from the wire.
// Implementations must be safe for concurrent use.
type Strategy interface {
	// Encrypt returns the frame to send for the given plaintext.
	Encrypt(plaintext []byte) ([]byte, error)

	// Decrypt returns the plaintext for a received frame. Authentication
	// failures must fire the compromised callback and return an error
	// wrapping ErrTampered.
	Decrypt(frame []byte) ([]byte, error)

	// OnCompromised sets the callback fired on authentication failure.
	// Passing nil clears it.
	OnCompromised(fn func())
}

// New returns the strategy registered under name. An empty name selects
// the no-op strategy.
func New(name, hexKey string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", CipherNone:
		return Noop{}, nil
	case CipherAESGCM:
		return NewAESGCM(hexKey)
	case CipherXChaCha20Poly1305:
		return NewXChaCha20Poly1305(hexKey)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCipher, name)
	}
}

// GenerateKeyHex returns a fresh random key, hex encoded.
func GenerateKeyHex() (string, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return hex.EncodeToString(key), nil
}

// decodeKey decodes a hex key and enforces KeySize.
func decodeKey(hexKey string) ([]byte, error) {
	key, err := hex.DecodeString(strings.TrimSpace(hexKey))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: decoded %d bytes, want %d", ErrInvalidKey, len(key), KeySize)
	}
	return key, nil
}
