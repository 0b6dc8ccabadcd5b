package errors

import (
	"fmt"
	"strings"
)

// DialError records a failed attempt to open one transport handle.
type DialError struct {
	Handle   string // "subscribe", "request", "publish", "reply"
	Addr     string
	Attempts int
	Err      error
}

// Error implements the error interface.
func (e *DialError) Error() string {
	if e.Attempts > 0 {
		return fmt.Sprintf("dial %s handle at %s failed after %d attempts: %v", e.Handle, e.Addr, e.Attempts, e.Err)
	}
	return fmt.Sprintf("dial %s handle at %s: %v", e.Handle, e.Addr, e.Err)
}

// Unwrap returns the underlying error.
func (e *DialError) Unwrap() error {
	return e.Err
}

// ConnectError reports that an agent could not open both of its handles
// within the retry budget. Each handle's last error string is kept so
// callers can tell which side of the pair was unreachable.
type ConnectError struct {
	Addr string

	// Handle names, in the order they were attempted.
	FirstHandle  string
	SecondHandle string

	// Last recorded error per handle. Empty when that handle opened.
	FirstErr  string
	SecondErr string

	Err error
}

// Error implements the error interface.
func (e *ConnectError) Error() string {
	var parts []string
	if e.FirstErr != "" {
		parts = append(parts, fmt.Sprintf("%s: %s", e.FirstHandle, e.FirstErr))
	}
	if e.SecondErr != "" {
		parts = append(parts, fmt.Sprintf("%s: %s", e.SecondHandle, e.SecondErr))
	}
	return fmt.Sprintf("connect %s: %s", e.Addr, strings.Join(parts, "; "))
}

// Unwrap returns the underlying error.
func (e *ConnectError) Unwrap() error {
	return e.Err
}

// TamperError indicates a frame failed authenticated decryption.
type TamperError struct {
	Size int
	Err  error
}

// Error implements the error interface.
func (e *TamperError) Error() string {
	return fmt.Sprintf("frame of %d bytes failed authentication: %v", e.Size, e.Err)
}

// Unwrap returns the underlying error.
func (e *TamperError) Unwrap() error {
	return e.Err
}

// DecodeError indicates bytes that authenticated (or were never encrypted)
// but do not form a valid envelope.
type DecodeError struct {
	Size int
	Err  error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("malformed envelope (%d bytes): %v", e.Size, e.Err)
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// TransportError wraps a send or receive failure on an open handle.
type TransportError struct {
	Op      string // "send" or "recv"
	Handle  string
	Timeout bool
	Err     error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("%s on %s handle: %v", e.Op, e.Handle, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// HandlerError captures a failure inside a registered event handler,
// either a returned error or a recovered panic.
type HandlerError struct {
	Event string
	Panic any
	Err   error
}

// Error implements the error interface.
func (e *HandlerError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("handler for %q panicked: %v", e.Event, e.Panic)
	}
	return fmt.Sprintf("handler for %q: %v", e.Event, e.Err)
}

// Unwrap returns the underlying error.
func (e *HandlerError) Unwrap() error {
	return e.Err
}
