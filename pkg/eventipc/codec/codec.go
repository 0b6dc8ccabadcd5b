package codec

import (
	"fmt"
	"sync"

	"github.com/randalmurphal/eventipc/pkg/eventipc/crypto"
	ipcerrors "github.com/randalmurphal/eventipc/pkg/eventipc/errors"
)

// Codec encodes and decodes wire frames. It is safe for concurrent use,
// and the encryption strategy may be swapped at any time.
type Codec struct {
	serializer Serializer

	mu       sync.RWMutex
	strategy crypto.Strategy
}

// Option configures a Codec.
type Option func(*Codec)

// WithSerializer sets the envelope serializer. The default is JSON.
func WithSerializer(s Serializer) Option {
	return func(c *Codec) {
		if s != nil {
			c.serializer = s
		}
	}
}

// WithStrategy sets the initial encryption strategy.
func WithStrategy(s crypto.Strategy) Option {
	return func(c *Codec) {
		c.strategy = s
	}
}

// New creates a Codec. With no strategy, frames are the serialized
// envelope bytes.
func New(opts ...Option) *Codec {
	c := &Codec{serializer: JSON{}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetStrategy replaces the encryption strategy. Nil disables encryption.
func (c *Codec) SetStrategy(s crypto.Strategy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.strategy = s
}

// Strategy returns the current encryption strategy, or nil.
func (c *Codec) Strategy() crypto.Strategy {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.strategy
}

// Serializer returns the envelope serializer.
func (c *Codec) Serializer() Serializer {
	return c.serializer
}

// Encode serializes {event, payload} and encrypts it if a strategy is set.
func (c *Codec) Encode(event string, payload any) ([]byte, error) {
	if event == "" {
		return nil, ErrEmptyEvent
	}

	data, err := c.serializer.Marshal(NewEnvelope(event, payload))
	if err != nil {
		return nil, fmt.Errorf("serialize %q: %w", event, err)
	}

	s := c.Strategy()
	if s == nil {
		return data, nil
	}
	frame, err := s.Encrypt(data)
	if err != nil {
		return nil, fmt.Errorf("encrypt %q: %w", event, err)
	}
	return frame, nil
}

// Decode decrypts (if a strategy is set) and parses a frame.
//
// A frame that fails authentication yields *errors.TamperError; the
// strategy has already fired its compromised callback. Plaintext that does
// not parse yields *errors.DecodeError.
func (c *Codec) Decode(frame []byte) (Envelope, error) {
	plaintext := frame
	if s := c.Strategy(); s != nil {
		p, err := s.Decrypt(frame)
		if err != nil {
			return Envelope{}, &ipcerrors.TamperError{Size: len(frame), Err: err}
		}
		plaintext = p
	}

	env, err := c.serializer.Unmarshal(plaintext)
	if err != nil {
		return Envelope{}, &ipcerrors.DecodeError{Size: len(plaintext), Err: err}
	}
	return env, nil
}
