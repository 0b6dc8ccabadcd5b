// Package codec turns (event, payload) pairs into wire frames and back.
//
// An Envelope is serialized by a Serializer (JSON by default) and, when a
// crypto.Strategy is set, the serialized bytes are encrypted into the frame
// that crosses the transport. Decode reverses both steps and reports the
// two ways a frame can be rejected as distinct error types:
//
//   - *errors.TamperError: the strategy could not authenticate the frame
//   - *errors.DecodeError: the plaintext is not a valid envelope
package codec

import "errors"

// ErrEmptyEvent is returned when encoding an envelope with no event name.
var ErrEmptyEvent = errors.New("event name is empty")

// ErrMissingEvent is returned when a decoded envelope has no event name.
var ErrMissingEvent = errors.New("envelope has no event")

// Envelope is the unit of transmission.
type Envelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// NewEnvelope builds an envelope, substituting an empty object for a nil
// payload.
func NewEnvelope(event string, payload any) Envelope {
	if payload == nil {
		payload = map[string]any{}
	}
	return Envelope{Event: event, Payload: payload}
}
