package eventipc

import (
	"context"
	"errors"
	"log/slog"

	"github.com/randalmurphal/eventipc/pkg/eventipc/event"
	"github.com/randalmurphal/eventipc/pkg/eventipc/transport"
)

// Server broadcasts events to every subscribed client and answers their
// requests.
//
// Request handlers run on the server's reply loop, one request at a time.
// A handler that returns a present Reply has it sent back as the reply
// payload under the request's event name. A handler that returns NoReply,
// fails or panics leaves the requester without an answer.
type Server struct {
	*agent
}

// NewServer creates a server that is not yet serving.
func NewServer(opts ...Option) *Server {
	return &Server{agent: newAgent(roleServer, opts)}
}

// Serve binds the broadcast endpoint at url:port and the reply endpoint
// at url:port+1, then starts answering requests in the background. It
// returns nil without doing anything if the server is already serving.
func (s *Server) Serve(ctx context.Context, url string, port uint16, opts ...ConnectOption) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	switch s.State() {
	case StateConnected:
		return nil
	case StateShuttingDown, StateClosed:
		return ErrClosed
	}

	defs := [2]handleDef{
		{name: HandlePublish, pattern: transport.Publisher, listen: true},
		{name: HandleReply, pattern: transport.Responder, listen: true},
	}
	return s.connect(ctx, url, port, defs, opts, func(socks [2]transport.Socket) {
		rep := socks[1]
		s.receive(HandleReply, rep, func(ctx context.Context, data []byte) bool {
			return s.answer(ctx, rep, data)
		})
	})
}

// answer dispatches one request and sends the reply, if any. It returns
// false when the reply handle is gone.
func (s *Server) answer(ctx context.Context, rep transport.Socket, data []byte) bool {
	name, reply, ok := s.process(ctx, HandleReply, data)
	if !ok {
		return true
	}
	v, present := reply.Value()
	if !present {
		return true
	}

	frame, err := s.codec.Encode(name, v)
	if err != nil {
		s.logger.Error("encoding reply",
			slog.String("event", name),
			slog.String("error", err.Error()),
		)
		return true
	}
	if err := rep.Send(frame); err != nil {
		if errors.Is(err, transport.ErrClosed) {
			return false
		}
		s.logger.Warn("sending reply",
			slog.String("event", name),
			slog.String("error", err.Error()),
		)
		return true
	}
	s.metrics.RecordSend(ctx, s.role, name, len(frame))
	return true
}

// On registers the handler for a request event, replacing any earlier
// one. A nil handler removes the registration.
//
// Example:
//
//	srv.On("greet", event.Replier(func(ctx context.Context, p any) any {
//	    return p
//	}))
func (s *Server) On(name string, h event.HandlerFunc) {
	s.router.On(name, h)
}

// Fallback registers a handler for request events with no registration.
func (s *Server) Fallback(h event.HandlerFunc) {
	s.router.Fallback(h)
}

// Emit broadcasts {event, payload} to every currently subscribed client.
// Clients that subscribe later do not receive it, and a slow client may
// miss it.
func (s *Server) Emit(ctx context.Context, name string, payload any) error {
	switch s.State() {
	case StateConnected:
	case StateShuttingDown, StateClosed:
		return ErrClosed
	default:
		return ErrNotConnected
	}

	ctx, span := s.spans.StartEmitSpan(ctx, s.role, name)
	err := s.broadcast(ctx, name, payload)
	s.spans.EndSpanWithError(span, err)
	return err
}

func (s *Server) broadcast(ctx context.Context, name string, payload any) error {
	frame, err := s.codec.Encode(name, payload)
	if err != nil {
		return err
	}
	if err := s.handles[0].Send(frame); err != nil {
		return transportError("send", HandlePublish, err)
	}
	s.metrics.RecordSend(ctx, s.role, name, len(frame))
	return nil
}

// IsServing reports whether both endpoints are bound.
func (s *Server) IsServing() bool {
	return s.IsConnected()
}

// LastPublishListenError returns the last error recorded for the publish
// handle by the most recent Serve, or "" if it bound.
func (s *Server) LastPublishListenError() string {
	return s.lastDialErr(0)
}

// LastReplyListenError returns the last error recorded for the reply
// handle by the most recent Serve, or "" if it bound.
func (s *Server) LastReplyListenError() string {
	return s.lastDialErr(1)
}

// Shutdown stops answering requests and closes both endpoints. It is
// safe to call more than once but must not be called from a handler
// running on this server.
func (s *Server) Shutdown() {
	s.shutdown()
}

// Close implements io.Closer.
func (s *Server) Close() error {
	s.Shutdown()
	return nil
}
