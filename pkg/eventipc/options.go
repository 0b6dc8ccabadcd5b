package eventipc

import (
	"log/slog"
	"time"

	"github.com/randalmurphal/eventipc/pkg/eventipc/codec"
	"github.com/randalmurphal/eventipc/pkg/eventipc/crypto"
	"github.com/randalmurphal/eventipc/pkg/eventipc/event"
	"github.com/randalmurphal/eventipc/pkg/eventipc/journal"
	"github.com/randalmurphal/eventipc/pkg/eventipc/transport"
)

// agentConfig holds construction-time configuration shared by Client and Server.
type agentConfig struct {
	logger         *slog.Logger
	metrics        bool
	tracing        bool
	transport      transport.Transport
	serializer     codec.Serializer
	strategy       crypto.Strategy
	journal        journal.Store
	ownsJournal    bool
	middleware     []event.MiddlewareFunc
	requestTimeout time.Duration
}

func defaultAgentConfig() agentConfig {
	return agentConfig{
		logger:     slog.Default(),
		transport:  transport.Mangos{},
		serializer: codec.JSON{},
	}
}

// Option configures a Client or Server.
type Option func(*agentConfig)

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *agentConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics enables OpenTelemetry metrics through the global meter provider.
func WithMetrics(enabled bool) Option {
	return func(c *agentConfig) {
		c.metrics = enabled
	}
}

// WithTracing enables OpenTelemetry spans through the global tracer provider.
func WithTracing(enabled bool) Option {
	return func(c *agentConfig) {
		c.tracing = enabled
	}
}

// WithTransport replaces the socket implementation. Default: transport.Mangos.
//
// Example:
//
//	mem := transport.NewMemory()
//	srv := eventipc.NewServer(eventipc.WithTransport(mem))
//	cli := eventipc.NewClient(eventipc.WithTransport(mem))
func WithTransport(t transport.Transport) Option {
	return func(c *agentConfig) {
		if t != nil {
			c.transport = t
		}
	}
}

// WithSerializer sets the envelope serializer. Peers must agree on it.
// Default: codec.JSON.
func WithSerializer(s codec.Serializer) Option {
	return func(c *agentConfig) {
		if s != nil {
			c.serializer = s
		}
	}
}

// WithEncryption sets the initial encryption strategy. It can be changed
// later with SetEncryptionStrategy.
func WithEncryption(s crypto.Strategy) Option {
	return func(c *agentConfig) {
		c.strategy = s
	}
}

// WithJournal records incidents (tampered or malformed frames, handler
// failures, failed connects) to store. The caller keeps ownership.
func WithJournal(store journal.Store) Option {
	return func(c *agentConfig) {
		c.journal = store
		c.ownsJournal = false
	}
}

// withOwnedJournal is WithJournal for stores the agent closes on shutdown.
func withOwnedJournal(store journal.Store) Option {
	return func(c *agentConfig) {
		c.journal = store
		c.ownsJournal = true
	}
}

// WithMiddleware wraps every handler registered on the agent.
func WithMiddleware(mw ...event.MiddlewareFunc) Option {
	return func(c *agentConfig) {
		c.middleware = append(c.middleware, mw...)
	}
}

// WithRequestTimeout bounds how long Client.Emit waits for a reply.
// Default: 0, wait indefinitely. A responder may deliberately send no
// reply, so a client talking to such handlers should set this. The bound
// also covers waiting for a responder still busy with an earlier request.
// Requests are never resent.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *agentConfig) {
		if d >= 0 {
			c.requestTimeout = d
		}
	}
}

// connectConfig holds retry configuration for Connect and Serve.
type connectConfig struct {
	maxRetries int
	retryDelay time.Duration
}

func defaultConnectConfig() connectConfig {
	return connectConfig{
		maxRetries: 5,
		retryDelay: time.Second,
	}
}

// ConnectOption configures Connect and Serve.
type ConnectOption func(*connectConfig)

// WithMaxRetries sets the number of attempts per handle.
// Default: 5
func WithMaxRetries(n int) ConnectOption {
	return func(c *connectConfig) {
		if n > 0 {
			c.maxRetries = n
		}
	}
}

// WithRetryDelay sets the fixed delay between attempts.
// Default: 1s
func WithRetryDelay(d time.Duration) ConnectOption {
	return func(c *connectConfig) {
		if d >= 0 {
			c.retryDelay = d
		}
	}
}
