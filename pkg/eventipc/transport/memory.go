package transport

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// subscriberBuffer is the per-subscriber queue depth. Broadcasts beyond it
// are dropped for that subscriber.
const subscriberBuffer = 64

// Memory is a process-local Transport. Each Memory value is an isolated
// address space; peers must share the same instance to reach each other.
//
// Listen accepts Publisher and Responder; Dial accepts Subscriber and
// Requester.
type Memory struct {
	mu        sync.Mutex
	listeners map[string]any // *memPub or *memRep
}

// NewMemory creates an empty in-process transport.
func NewMemory() *Memory {
	return &Memory{listeners: make(map[string]any)}
}

// Compile-time interface check.
var _ Transport = (*Memory)(nil)

// Listen binds addr for a Publisher or Responder.
func (m *Memory) Listen(ctx context.Context, p Pattern, addr string, o Options) (Socket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.listeners[addr]; taken {
		return nil, fmt.Errorf("listen %s: %w", addr, ErrAddressInUse)
	}

	switch p {
	case Publisher:
		pub := &memPub{owner: m, addr: addr, subs: make(map[int]*memSub)}
		m.listeners[addr] = pub
		return pub, nil
	case Responder:
		rep := &memRep{
			owner:   m,
			addr:    addr,
			timeout: o.RecvTimeout,
			reqs:    make(chan memRequest),
			done:    make(chan struct{}),
		}
		m.listeners[addr] = rep
		return rep, nil
	default:
		return nil, fmt.Errorf("listen %s as %s: %w", addr, p, ErrUnsupported)
	}
}

// Dial connects a Subscriber or Requester to a listener at addr.
func (m *Memory) Dial(ctx context.Context, p Pattern, addr string, o Options) (Socket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	l := m.listeners[addr]
	m.mu.Unlock()

	switch p {
	case Subscriber:
		pub, ok := l.(*memPub)
		if !ok {
			return nil, fmt.Errorf("dial %s: %w", addr, ErrRefused)
		}
		return pub.subscribe(o.RecvTimeout)
	case Requester:
		rep, ok := l.(*memRep)
		if !ok {
			return nil, fmt.Errorf("dial %s: %w", addr, ErrRefused)
		}
		return &memReq{rep: rep, timeout: o.RecvTimeout, done: make(chan struct{})}, nil
	default:
		return nil, fmt.Errorf("dial %s as %s: %w", addr, p, ErrUnsupported)
	}
}

func (m *Memory) release(addr string, l any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listeners[addr] == l {
		delete(m.listeners, addr)
	}
}

// --- publish / subscribe ---

type memPub struct {
	owner *Memory
	addr  string

	mu     sync.RWMutex
	nextID int
	subs   map[int]*memSub
	closed bool
}

func (p *memPub) subscribe(timeout time.Duration) (*memSub, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, fmt.Errorf("dial %s: %w", p.addr, ErrRefused)
	}

	s := &memSub{
		pub:     p,
		id:      p.nextID,
		timeout: timeout,
		ch:      make(chan []byte, subscriberBuffer),
		done:    make(chan struct{}),
	}
	p.nextID++
	p.subs[s.id] = s
	return s, nil
}

func (p *memPub) unsubscribe(id int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.subs, id)
}

// Send delivers a copy of data to every current subscriber without blocking.
func (p *memPub) Send(data []byte) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	for _, s := range p.subs {
		select {
		case s.ch <- append([]byte(nil), data...):
		default:
		}
	}
	return nil
}

func (p *memPub) Recv() ([]byte, error) {
	return nil, fmt.Errorf("recv on %s: %w", Publisher, ErrUnsupported)
}

func (p *memPub) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.closed = true
	p.subs = make(map[int]*memSub)
	p.mu.Unlock()

	p.owner.release(p.addr, p)
	return nil
}

type memSub struct {
	pub     *memPub
	id      int
	timeout time.Duration
	ch      chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

func (s *memSub) Send([]byte) error {
	return fmt.Errorf("send on %s: %w", Subscriber, ErrUnsupported)
}

func (s *memSub) Recv() ([]byte, error) {
	// A closed socket wins over queued messages.
	select {
	case <-s.done:
		return nil, ErrClosed
	default:
	}

	timeout, stop := recvTimer(s.timeout)
	defer stop()

	select {
	case data := <-s.ch:
		return data, nil
	case <-s.done:
		return nil, ErrClosed
	case <-timeout:
		return nil, ErrTimeout
	}
}

func (s *memSub) Close() error {
	err := ErrClosed
	s.closeOnce.Do(func() {
		s.pub.unsubscribe(s.id)
		close(s.done)
		err = nil
	})
	return err
}

// --- request / reply ---

type memRequest struct {
	data  []byte
	reply chan []byte
}

type memRep struct {
	owner   *Memory
	addr    string
	timeout time.Duration
	reqs    chan memRequest

	mu      sync.Mutex
	pending *memRequest

	closeOnce sync.Once
	done      chan struct{}
}

// Recv waits for the next request. A request left unanswered when Recv is
// called again receives no reply.
func (r *memRep) Recv() ([]byte, error) {
	select {
	case <-r.done:
		return nil, ErrClosed
	default:
	}

	timeout, stop := recvTimer(r.timeout)
	defer stop()

	select {
	case req := <-r.reqs:
		r.mu.Lock()
		r.pending = &req
		r.mu.Unlock()
		return req.data, nil
	case <-r.done:
		return nil, ErrClosed
	case <-timeout:
		return nil, ErrTimeout
	}
}

// Send answers the request most recently returned by Recv.
func (r *memRep) Send(data []byte) error {
	select {
	case <-r.done:
		return ErrClosed
	default:
	}

	r.mu.Lock()
	req := r.pending
	r.pending = nil
	r.mu.Unlock()

	if req == nil {
		return fmt.Errorf("reply without request: %w", ErrProtocolState)
	}
	// reply is buffered by one and written only here.
	req.reply <- append([]byte(nil), data...)
	return nil
}

func (r *memRep) Close() error {
	err := ErrClosed
	r.closeOnce.Do(func() {
		close(r.done)
		r.owner.release(r.addr, r)
		err = nil
	})
	return err
}

type memReq struct {
	rep     *memRep
	timeout time.Duration

	mu       sync.Mutex
	awaiting chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

// Send issues a request. A new request abandons any earlier one still
// awaiting its reply. While the responder is busy, Send waits no longer
// than the receive timeout, so a request round trip stays bounded by it.
func (q *memReq) Send(data []byte) error {
	reply := make(chan []byte, 1)

	q.mu.Lock()
	q.awaiting = reply
	q.mu.Unlock()

	timeout, stop := recvTimer(q.timeout)
	defer stop()

	select {
	case q.rep.reqs <- memRequest{data: append([]byte(nil), data...), reply: reply}:
		return nil
	case <-q.done:
		return ErrClosed
	case <-q.rep.done:
		return fmt.Errorf("send to %s: %w", q.rep.addr, ErrClosed)
	case <-timeout:
		q.clear(reply)
		return ErrTimeout
	}
}

// Recv waits for the reply to the outstanding request.
func (q *memReq) Recv() ([]byte, error) {
	q.mu.Lock()
	reply := q.awaiting
	q.mu.Unlock()

	select {
	case <-q.done:
		return nil, ErrClosed
	default:
	}
	if reply == nil {
		return nil, fmt.Errorf("recv without request: %w", ErrProtocolState)
	}

	timeout, stop := recvTimer(q.timeout)
	defer stop()

	select {
	case data := <-reply:
		q.clear(reply)
		return data, nil
	case <-q.done:
		return nil, ErrClosed
	case <-q.rep.done:
		q.clear(reply)
		return nil, fmt.Errorf("recv from %s: %w", q.rep.addr, ErrClosed)
	case <-timeout:
		q.clear(reply)
		return nil, ErrTimeout
	}
}

func (q *memReq) clear(reply chan []byte) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.awaiting == reply {
		q.awaiting = nil
	}
}

func (q *memReq) Close() error {
	err := ErrClosed
	q.closeOnce.Do(func() {
		close(q.done)
		err = nil
	})
	return err
}

// recvTimer returns a channel that fires after d, or a nil channel when d
// is zero.
func recvTimer(d time.Duration) (<-chan time.Time, func()) {
	if d <= 0 {
		return nil, func() {}
	}
	t := time.NewTimer(d)
	return t.C, func() { t.Stop() }
}
