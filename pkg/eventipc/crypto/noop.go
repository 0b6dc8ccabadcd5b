package crypto

// Noop is a Strategy that passes bytes through unchanged.
// Use it when neither confidentiality nor authentication is needed.
type Noop struct{}

// Compile-time interface check.
var _ Strategy = Noop{}

// Encrypt returns plaintext unchanged.
func (Noop) Encrypt(plaintext []byte) ([]byte, error) { return plaintext, nil }

// Decrypt returns frame unchanged.
func (Noop) Decrypt(frame []byte) ([]byte, error) { return frame, nil }

// OnCompromised does nothing; a no-op strategy cannot detect tampering.
func (Noop) OnCompromised(func()) {}
