package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
)

// AEAD is the authenticated encryption strategy. The key is decoded once
// at construction and owned by the instance.
type AEAD struct {
	name string
	aead cipher.AEAD

	mu            sync.RWMutex
	onCompromised func()
}

// Compile-time interface check.
var _ Strategy = (*AEAD)(nil)

// NewAESGCM creates an AES-256-GCM strategy from a 64-character hex key.
func NewAESGCM(hexKey string) (*AEAD, error) {
	key, err := decodeKey(hexKey)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return &AEAD{name: CipherAESGCM, aead: gcm}, nil
}

// NewXChaCha20Poly1305 creates an XChaCha20-Poly1305 strategy from a
// 64-character hex key. Its 24-byte nonce makes random nonce collisions
// negligible even for very long-lived keys.
func NewXChaCha20Poly1305(hexKey string) (*AEAD, error) {
	key, err := decodeKey(hexKey)
	if err != nil {
		return nil, err
	}
	x, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create xchacha20-poly1305: %w", err)
	}
	return &AEAD{name: CipherXChaCha20Poly1305, aead: x}, nil
}

// Name returns the cipher name.
func (a *AEAD) Name() string {
	return a.name
}

// Overhead returns the number of bytes Encrypt adds to a plaintext.
func (a *AEAD) Overhead() int {
	return a.aead.NonceSize() + a.aead.Overhead()
}

// Encrypt seals plaintext under a fresh random nonce and returns
// nonce‖ciphertext‖tag.
func (a *AEAD) Encrypt(plaintext []byte) ([]byte, error) {
	ns := a.aead.NonceSize()
	frame := make([]byte, ns, ns+len(plaintext)+a.aead.Overhead())
	if _, err := rand.Read(frame); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return a.aead.Seal(frame, frame[:ns], plaintext, nil), nil
}

// Decrypt authenticates and opens a frame produced by Encrypt.
func (a *AEAD) Decrypt(frame []byte) ([]byte, error) {
	ns := a.aead.NonceSize()
	if len(frame) < ns+a.aead.Overhead() {
		a.compromised()
		return nil, fmt.Errorf("%w: frame is %d bytes, shorter than nonce and tag", ErrTampered, len(frame))
	}

	plaintext, err := a.aead.Open(nil, frame[:ns], frame[ns:], nil)
	if err != nil {
		a.compromised()
		return nil, ErrTampered
	}
	return plaintext, nil
}

// OnCompromised sets the callback fired when Decrypt rejects a frame.
func (a *AEAD) OnCompromised(fn func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onCompromised = fn
}

func (a *AEAD) compromised() {
	a.mu.RLock()
	fn := a.onCompromised
	a.mu.RUnlock()

	if fn != nil {
		fn()
	}
}
