package eventipc

import (
	"context"
	"sync"

	"github.com/randalmurphal/eventipc/pkg/eventipc/event"
	"github.com/randalmurphal/eventipc/pkg/eventipc/transport"
)

// Handle names reported in errors, logs and metrics.
const (
	HandleSubscribe = "subscribe"
	HandleRequest   = "request"
	HandlePublish   = "publish"
	HandleReply     = "reply"
)

// Client subscribes to a server's broadcasts and sends it requests.
//
// Listeners registered with On run on the client's receive loop, one at a
// time, in arrival order. Emit may be called from any goroutine; requests
// are serialized so each caller receives its own reply.
type Client struct {
	*agent

	// reqMu holds the request handle for one send/receive round trip.
	reqMu sync.Mutex
}

// NewClient creates a disconnected client.
func NewClient(opts ...Option) *Client {
	return &Client{agent: newAgent(roleClient, opts)}
}

// Connect dials the server's broadcast endpoint at url:port and its
// request endpoint at url:port+1, retrying each handle independently.
// If either handle cannot be opened within the retry budget, both are
// closed and a *errors.ConnectError carrying each handle's last error is
// returned; the client stays disconnected and may try again.
func (c *Client) Connect(ctx context.Context, url string, port uint16, opts ...ConnectOption) error {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()

	switch c.State() {
	case StateConnected:
		return ErrAlreadyConnected
	case StateShuttingDown, StateClosed:
		return ErrClosed
	}

	defs := [2]handleDef{
		{name: HandleSubscribe, pattern: transport.Subscriber},
		{name: HandleRequest, pattern: transport.Requester, opts: transport.Options{RecvTimeout: c.requestTimeout}},
	}

	return c.connect(ctx, url, port, defs, opts, func(socks [2]transport.Socket) {
		c.receive(HandleSubscribe, socks[0], func(ctx context.Context, data []byte) bool {
			c.process(ctx, HandleSubscribe, data)
			return true
		})
	})
}

// On registers a listener for a broadcast event, replacing any earlier
// one. Listeners never reply. A nil fn removes the registration.
func (c *Client) On(name string, fn func(ctx context.Context, payload any)) {
	if fn == nil {
		c.router.Off(name)
		return
	}
	c.router.On(name, event.Listener(fn))
}

// Emit sends {event, payload} on the request handle and blocks until the
// server's reply arrives, returning its payload. With a request timeout
// configured, a missing reply yields a *errors.TransportError with
// Timeout set.
func (c *Client) Emit(ctx context.Context, name string, payload any) (any, error) {
	switch c.State() {
	case StateConnected:
	case StateShuttingDown, StateClosed:
		return nil, ErrClosed
	default:
		return nil, ErrNotConnected
	}

	ctx, span := c.spans.StartEmitSpan(ctx, c.role, name)
	reply, err := c.request(ctx, name, payload)
	c.spans.EndSpanWithError(span, err)
	return reply, err
}

func (c *Client) request(ctx context.Context, name string, payload any) (any, error) {
	frame, err := c.codec.Encode(name, payload)
	if err != nil {
		return nil, err
	}

	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	sock := c.handles[1]
	if err := sock.Send(frame); err != nil {
		return nil, transportError("send", HandleRequest, err)
	}
	c.metrics.RecordSend(ctx, c.role, name, len(frame))

	data, err := sock.Recv()
	if err != nil {
		return nil, transportError("recv", HandleRequest, err)
	}

	env, err := c.codec.Decode(data)
	if err != nil {
		c.drop(ctx, HandleRequest, len(data), err)
		return nil, err
	}
	c.metrics.RecordReceive(ctx, c.role, env.Event, len(data))
	return env.Payload, nil
}

// LastSubscribeDialError returns the last error recorded for the
// subscribe handle by the most recent Connect, or "" if it opened.
func (c *Client) LastSubscribeDialError() string {
	return c.lastDialErr(0)
}

// LastRequestDialError returns the last error recorded for the request
// handle by the most recent Connect, or "" if it opened.
func (c *Client) LastRequestDialError() string {
	return c.lastDialErr(1)
}

// Shutdown stops the receive loop and closes both handles. A blocked
// Emit returns with a transport error. It is safe to call more than once
// but must not be called from a listener running on this client.
func (c *Client) Shutdown() {
	c.shutdown()
}

// Close implements io.Closer.
func (c *Client) Close() error {
	c.Shutdown()
	return nil
}
