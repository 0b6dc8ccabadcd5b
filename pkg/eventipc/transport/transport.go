// Package transport defines the byte-oriented socket abstraction the event
// layer is built on, plus two implementations:
//
//   - Mangos: nanomsg/nng-compatible sockets (tcp://, ipc://, inproc://)
//   - Memory: an in-process transport with the same delivery semantics,
//     used by tests and single-process setups
//
// A peer needs two sockets. The broadcast pair (Publisher/Subscriber)
// delivers every message to each currently connected subscriber, dropping
// for slow or absent ones. The request pair (Requester/Responder) enforces
// strict alternation: one request, then zero or one reply.
package transport

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Pattern identifies the messaging role of a socket.
type Pattern int

const (
	// Publisher broadcasts to all connected subscribers.
	Publisher Pattern = iota
	// Subscriber receives every broadcast from its publisher.
	Subscriber
	// Requester sends a request and waits for the matching reply.
	Requester
	// Responder receives requests and optionally replies.
	Responder
)

// String returns the pattern name.
func (p Pattern) String() string {
	switch p {
	case Publisher:
		return "pub"
	case Subscriber:
		return "sub"
	case Requester:
		return "req"
	case Responder:
		return "rep"
	default:
		return "unknown"
	}
}

var (
	// ErrClosed is returned by operations on a closed socket, and by a
	// blocked Recv when the socket is closed underneath it.
	ErrClosed = errors.New("socket closed")

	// ErrTimeout is returned when Recv exceeds Options.RecvTimeout.
	ErrTimeout = errors.New("receive timed out")

	// ErrRefused is returned by Dial when nothing listens at the address.
	ErrRefused = errors.New("connection refused")

	// ErrAddressInUse is returned by Listen when the address is taken.
	ErrAddressInUse = errors.New("address in use")

	// ErrProtocolState is returned for out-of-order request/reply calls,
	// such as a reply with no outstanding request.
	ErrProtocolState = errors.New("incorrect protocol state")

	// ErrUnsupported is returned for operations a pattern does not offer.
	ErrUnsupported = errors.New("operation not supported by pattern")

	// ErrBadPort is returned when no reply port can follow the given port.
	ErrBadPort = errors.New("port out of range")
)

// Options tunes a socket at creation.
type Options struct {
	// RecvTimeout bounds each Recv call. Zero blocks indefinitely.
	RecvTimeout time.Duration
}

// Socket is one open transport handle.
type Socket interface {
	// Send transmits one message.
	Send(data []byte) error

	// Recv blocks for the next message.
	Recv() ([]byte, error)

	// Close releases the socket and unblocks any pending Recv.
	Close() error
}

// Transport opens sockets. Dial connects to a listening peer and fails
// immediately when none is reachable; Listen binds an address.
type Transport interface {
	Dial(ctx context.Context, p Pattern, addr string, o Options) (Socket, error)
	Listen(ctx context.Context, p Pattern, addr string, o Options) (Socket, error)
}

// Address joins a URL and port into a transport address.
//
//	Address("tcp://localhost", 57239) == "tcp://localhost:57239"
func Address(url string, port uint16) string {
	return fmt.Sprintf("%s:%d", url, port)
}

// Endpoints returns the broadcast and request addresses for url:port.
// The broadcast pair binds port and the request pair binds port+1, since
// two sockets cannot share one TCP listener.
func Endpoints(url string, port uint16) (broadcast, request string, err error) {
	if port == 0 || port == ^uint16(0) {
		return "", "", fmt.Errorf("%w: %d", ErrBadPort, port)
	}
	return Address(url, port), Address(url, port+1), nil
}
