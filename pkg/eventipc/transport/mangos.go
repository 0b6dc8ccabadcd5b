package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/pub"
	"go.nanomsg.org/mangos/v3/protocol/rep"
	"go.nanomsg.org/mangos/v3/protocol/req"
	"go.nanomsg.org/mangos/v3/protocol/sub"

	// Register tcp, ipc, inproc, tls+tcp and ws transports.
	_ "go.nanomsg.org/mangos/v3/transport/all"
)

// Mangos is the production Transport. It speaks the nanomsg scalability
// protocols and interoperates with nng peers.
type Mangos struct{}

// Compile-time interface check.
var _ Transport = Mangos{}

// Dial opens a socket and connects it synchronously; an unreachable
// address fails the call instead of retrying in the background.
func (Mangos) Dial(ctx context.Context, p Pattern, addr string, o Options) (Socket, error) {
	return openMangos(ctx, p, o, addr, "dial", func(s mangos.Socket) error {
		return s.Dial(addr)
	})
}

// Listen opens a socket and binds it to addr.
func (Mangos) Listen(ctx context.Context, p Pattern, addr string, o Options) (Socket, error) {
	return openMangos(ctx, p, o, addr, "listen", func(s mangos.Socket) error {
		return s.Listen(addr)
	})
}

func openMangos(ctx context.Context, p Pattern, o Options, addr, op string, attach func(mangos.Socket) error) (Socket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sock, err := newMangosSocket(p)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", op, addr, err)
	}

	if err := configureMangos(sock, p, o); err != nil {
		_ = sock.Close()
		return nil, fmt.Errorf("%s %s: %w", op, addr, err)
	}

	if err := attach(sock); err != nil {
		_ = sock.Close()
		return nil, fmt.Errorf("%s %s: %w", op, addr, normalizeMangos(err))
	}
	return &mangosSocket{sock: sock}, nil
}

func newMangosSocket(p Pattern) (mangos.Socket, error) {
	switch p {
	case Publisher:
		return pub.NewSocket()
	case Subscriber:
		return sub.NewSocket()
	case Requester:
		return req.NewSocket()
	case Responder:
		return rep.NewSocket()
	default:
		return nil, fmt.Errorf("pattern %d: %w", p, ErrUnsupported)
	}
}

func configureMangos(sock mangos.Socket, p Pattern, o Options) error {
	if p == Subscriber {
		// Empty prefix subscribes to every topic.
		if err := sock.SetOption(mangos.OptionSubscribe, []byte("")); err != nil {
			return fmt.Errorf("subscribe: %w", err)
		}
	}
	if p == Requester {
		// Deliver each request at most once; a handler that never replies
		// must not see the request again.
		if err := sock.SetOption(mangos.OptionRetryTime, time.Duration(0)); err != nil {
			return fmt.Errorf("disable resend: %w", err)
		}
	}
	if o.RecvTimeout > 0 {
		if err := sock.SetOption(mangos.OptionRecvDeadline, o.RecvTimeout); err != nil {
			return fmt.Errorf("set recv deadline: %w", err)
		}
	}
	return nil
}

type mangosSocket struct {
	sock mangos.Socket
}

func (m *mangosSocket) Send(data []byte) error {
	return normalizeMangos(m.sock.Send(data))
}

func (m *mangosSocket) Recv() ([]byte, error) {
	data, err := m.sock.Recv()
	if err != nil {
		return nil, normalizeMangos(err)
	}
	return data, nil
}

func (m *mangosSocket) Close() error {
	return normalizeMangos(m.sock.Close())
}

// normalizeMangos maps mangos errors onto this package's sentinels so
// callers can match on them regardless of implementation.
func normalizeMangos(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mangos.ErrClosed):
		return ErrClosed
	case errors.Is(err, mangos.ErrRecvTimeout):
		return ErrTimeout
	case errors.Is(err, mangos.ErrConnRefused):
		return fmt.Errorf("%w: %v", ErrRefused, err)
	case errors.Is(err, mangos.ErrAddrInUse):
		return fmt.Errorf("%w: %v", ErrAddressInUse, err)
	case errors.Is(err, mangos.ErrProtoState):
		return fmt.Errorf("%w: %v", ErrProtocolState, err)
	case errors.Is(err, mangos.ErrProtoOp):
		return fmt.Errorf("%w: %v", ErrUnsupported, err)
	default:
		return err
	}
}
