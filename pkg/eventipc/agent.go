package eventipc

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/randalmurphal/eventipc/pkg/eventipc/codec"
	"github.com/randalmurphal/eventipc/pkg/eventipc/crypto"
	ipcerrors "github.com/randalmurphal/eventipc/pkg/eventipc/errors"
	"github.com/randalmurphal/eventipc/pkg/eventipc/event"
	"github.com/randalmurphal/eventipc/pkg/eventipc/journal"
	"github.com/randalmurphal/eventipc/pkg/eventipc/observability"
	"github.com/randalmurphal/eventipc/pkg/eventipc/transport"
)

const (
	roleClient = "client"
	roleServer = "server"
)

// agent is the state shared by Client and Server: the codec, the event
// registry, the handle pair and the lifecycle around them.
type agent struct {
	id             string
	role           string
	logger         *slog.Logger
	transport      transport.Transport
	codec          *codec.Codec
	router         *event.Router
	journal        journal.Store
	ownsJournal    bool
	metrics        observability.MetricsRecorder
	spans          observability.SpanManager
	requestTimeout time.Duration

	state   atomic.Int32
	running atomic.Bool

	// lifecycleMu serializes Connect/Serve against Shutdown.
	lifecycleMu sync.Mutex

	// handles[0] is the broadcast side, handles[1] the request side.
	// Written under lifecycleMu before the loop starts, never cleared.
	handles [2]transport.Socket

	dialMu   sync.Mutex
	lastErrs [2]string

	cbMu          sync.Mutex
	onCompromised func()

	loopCtx    context.Context
	cancelLoop context.CancelFunc
	wg         sync.WaitGroup
}

func newAgent(role string, opts []Option) *agent {
	cfg := defaultAgentConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	id := uuid.NewString()
	a := &agent{
		id:             id,
		role:           role,
		logger:         observability.EnrichLogger(cfg.logger, role, id),
		transport:      cfg.transport,
		codec:          codec.New(codec.WithSerializer(cfg.serializer), codec.WithStrategy(cfg.strategy)),
		router:         event.NewRouter(),
		journal:        cfg.journal,
		ownsJournal:    cfg.ownsJournal,
		metrics:        observability.NoopMetrics{},
		spans:          observability.NoopSpanManager{},
		requestTimeout: cfg.requestTimeout,
	}
	if cfg.metrics {
		a.metrics = observability.NewMetricsRecorder()
	}
	if cfg.tracing {
		a.spans = observability.NewSpanManager()
	}
	a.loopCtx, a.cancelLoop = context.WithCancel(context.Background())

	logger := a.logger
	a.router.Use(event.LoggingMiddleware(func(name string, d time.Duration, err error) {
		logger.Debug("handler finished",
			slog.String("event", name),
			slog.Float64("duration_ms", float64(d.Microseconds())/1000),
			slog.Bool("failed", err != nil),
		)
	}))
	a.router.Use(cfg.middleware...)
	a.router.Use(event.RecoveryMiddleware())
	return a
}

// ID returns the agent's instance identifier, used in logs and the journal.
func (a *agent) ID() string {
	return a.id
}

// State returns the current lifecycle state.
func (a *agent) State() State {
	return State(a.state.Load())
}

func (a *agent) setState(s State) {
	a.state.Store(int32(s))
}

// IsConnected reports whether both handles are open.
func (a *agent) IsConnected() bool {
	return a.State() == StateConnected
}

// Off removes the handler for an event.
func (a *agent) Off(name string) {
	a.router.Off(name)
}

// SetEncryptionStrategy replaces the strategy used for every subsequent
// send and receive. A nil strategy disables encryption. A callback set
// with SetOnCompromisedCallback carries over to the new strategy.
func (a *agent) SetEncryptionStrategy(s crypto.Strategy) {
	a.cbMu.Lock()
	defer a.cbMu.Unlock()
	if s != nil && a.onCompromised != nil {
		s.OnCompromised(a.onCompromised)
	}
	a.codec.SetStrategy(s)
}

// SetOnCompromisedCallback registers fn to run when an incoming frame
// fails authentication. Frames are dropped either way.
func (a *agent) SetOnCompromisedCallback(fn func()) {
	a.cbMu.Lock()
	defer a.cbMu.Unlock()
	a.onCompromised = fn
	if s := a.codec.Strategy(); s != nil {
		s.OnCompromised(fn)
	}
}

func (a *agent) lastDialErr(i int) string {
	a.dialMu.Lock()
	defer a.dialMu.Unlock()
	return a.lastErrs[i]
}

// handleDef describes one side of the handle pair.
type handleDef struct {
	name    string
	pattern transport.Pattern
	listen  bool
	opts    transport.Options
}

// open brings up both handles against the endpoints derived from url and
// port. Each handle gets its own retry budget and both are always
// attempted. On failure any handle that did open is closed again.
func (a *agent) open(ctx context.Context, url string, port uint16, defs [2]handleDef, cc connectConfig) ([2]transport.Socket, error) {
	var socks [2]transport.Socket

	broadcast, request, err := transport.Endpoints(url, port)
	if err != nil {
		return socks, err
	}
	addrs := [2]string{broadcast, request}

	var errStrs [2]string
	var errs []error
	for i, def := range defs {
		sock, err := a.openHandle(ctx, def, addrs[i], cc)
		if err != nil {
			errStrs[i] = err.Error()
			errs = append(errs, err)
			continue
		}
		socks[i] = sock
	}

	a.dialMu.Lock()
	a.lastErrs = errStrs
	a.dialMu.Unlock()

	if len(errs) == 0 {
		return socks, nil
	}

	for i, sock := range socks {
		if sock != nil {
			_ = sock.Close()
			socks[i] = nil
		}
	}
	return socks, &ipcerrors.ConnectError{
		Addr:         transport.Address(url, port),
		FirstHandle:  defs[0].name,
		SecondHandle: defs[1].name,
		FirstErr:     errStrs[0],
		SecondErr:    errStrs[1],
		Err:          errors.Join(errs...),
	}
}

// openHandle dials or listens once per attempt until the handle opens or
// the attempts run out. The returned error is the last raw transport
// error, or the context error if ctx was done before the first attempt.
func (a *agent) openHandle(ctx context.Context, def handleDef, addr string, cc connectConfig) (transport.Socket, error) {
	cfg := ipcerrors.FixedDelay(cc.maxRetries, cc.retryDelay)
	cfg.RetryableFunc = func(err error) bool {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		observability.LogDialRetry(a.logger, def.name, addr, attempt, err, delay)
	}

	result := ipcerrors.WithRetryContext(ctx, cfg, func(ctx context.Context) (transport.Socket, error) {
		var sock transport.Socket
		var err error
		if def.listen {
			sock, err = a.transport.Listen(ctx, def.pattern, addr, def.opts)
		} else {
			sock, err = a.transport.Dial(ctx, def.pattern, addr, def.opts)
		}
		a.metrics.RecordDialAttempt(ctx, def.name, err)
		if err != nil {
			return nil, &ipcerrors.DialError{Handle: def.name, Addr: addr, Err: err}
		}
		return sock, nil
	})
	if result.Err == nil {
		return result.Value, nil
	}

	last := result.LastErr
	var de *ipcerrors.DialError
	if errors.As(last, &de) {
		last = de.Err
	}
	return nil, last
}

// connect runs the shared Connect/Serve sequence and starts loop on the
// opened pair. The caller holds lifecycleMu.
func (a *agent) connect(ctx context.Context, url string, port uint16, defs [2]handleDef, opts []ConnectOption, loop func([2]transport.Socket)) error {
	cc := defaultConnectConfig()
	for _, opt := range opts {
		opt(&cc)
	}

	a.setState(StateConnecting)
	elapsed := observability.TimedOperation()

	socks, err := a.open(ctx, url, port, defs, cc)
	if err != nil {
		a.setState(StateDisconnected)
		observability.LogConnectFailed(a.logger, transport.Address(url, port), err, elapsed())
		a.recordIncident(ctx, journal.Incident{Kind: journal.KindConnectFailed, Detail: err.Error()})
		return err
	}

	a.handles = socks
	a.running.Store(true)
	a.setState(StateConnected)

	broadcast, request, _ := transport.Endpoints(url, port)
	observability.LogConnected(a.logger, broadcast, request, elapsed())

	if loop != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			loop(socks)
		}()
	}
	return nil
}

// shutdown stops the receive loop, closes both handles and releases an
// owned journal. Later calls return immediately.
func (a *agent) shutdown() {
	a.lifecycleMu.Lock()
	defer a.lifecycleMu.Unlock()

	if a.State() == StateClosed {
		return
	}
	elapsed := observability.TimedOperation()
	a.setState(StateShuttingDown)
	a.running.Store(false)
	a.cancelLoop()

	for _, sock := range a.handles {
		if sock != nil {
			_ = sock.Close()
		}
	}
	a.wg.Wait()

	if a.journal != nil && a.ownsJournal {
		if err := a.journal.Close(); err != nil {
			a.logger.Warn("closing journal", slog.String("error", err.Error()))
		}
	}
	a.setState(StateClosed)
	observability.LogShutdown(a.logger, elapsed())
}

// receive runs fn on every frame read from sock until the agent stops or
// the handle fails. Receive timeouts are not failures.
func (a *agent) receive(handle string, sock transport.Socket, fn func(ctx context.Context, data []byte) bool) {
	for a.running.Load() {
		data, err := sock.Recv()
		if err != nil {
			if errors.Is(err, transport.ErrTimeout) {
				continue
			}
			if a.running.Load() {
				a.logger.Error("receive loop stopped",
					slog.String("handle", handle),
					slog.String("error", err.Error()),
				)
			}
			return
		}
		if !fn(a.loopCtx, data) {
			return
		}
	}
}

// process decodes a frame and dispatches it. ok is false when the frame
// was dropped before dispatch.
func (a *agent) process(ctx context.Context, handle string, data []byte) (name string, reply event.Reply, ok bool) {
	env, err := a.codec.Decode(data)
	if err != nil {
		a.drop(ctx, handle, len(data), err)
		return "", event.NoReply, false
	}
	a.metrics.RecordReceive(ctx, a.role, env.Event, len(data))

	if !a.router.Handles(env.Event) {
		observability.LogUnhandled(a.logger, env.Event)
		a.metrics.RecordDropped(ctx, a.role, observability.DropUnhandled)
		return env.Event, event.NoReply, true
	}

	ctx, span := a.spans.StartDispatchSpan(ctx, a.role, env.Event)
	start := time.Now()
	reply, err = a.router.Dispatch(ctx, env.Event, env.Payload)
	a.metrics.RecordDispatch(ctx, a.role, env.Event, time.Since(start), err)
	a.spans.EndSpanWithError(span, err)

	if err != nil {
		observability.LogHandlerError(a.logger, env.Event, err)
		a.recordIncident(ctx, journal.Incident{
			Kind:   journal.KindHandlerFailed,
			Event:  env.Event,
			Detail: err.Error(),
		})
		return env.Event, event.NoReply, true
	}
	return env.Event, reply, true
}

func (a *agent) drop(ctx context.Context, handle string, size int, err error) {
	if ipcerrors.IsCompromised(err) {
		observability.LogTampered(a.logger, handle, size)
		a.metrics.RecordDropped(ctx, a.role, observability.DropTampered)
		a.recordIncident(ctx, journal.Incident{Kind: journal.KindTampered, Detail: err.Error(), Size: size})
		return
	}
	observability.LogMalformed(a.logger, handle, size, err)
	a.metrics.RecordDropped(ctx, a.role, observability.DropMalformed)
	a.recordIncident(ctx, journal.Incident{Kind: journal.KindMalformed, Detail: err.Error(), Size: size})
}

func (a *agent) recordIncident(ctx context.Context, inc journal.Incident) {
	if a.journal == nil {
		return
	}
	inc.Role = a.role
	inc.AgentID = a.id
	if err := a.journal.Record(context.WithoutCancel(ctx), inc); err != nil {
		observability.LogJournalError(a.logger, string(inc.Kind), err)
	}
}

func transportError(op, handle string, err error) error {
	return &ipcerrors.TransportError{
		Op:      op,
		Handle:  handle,
		Timeout: errors.Is(err, transport.ErrTimeout),
		Err:     err,
	}
}
