package event

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	ipcerrors "github.com/randalmurphal/eventipc/pkg/eventipc/errors"
)

// Router maps event names to handlers and dispatches payloads to them.
// The zero value is not usable; create one with NewRouter.
type Router struct {
	mu         sync.RWMutex
	handlers   map[string]HandlerFunc
	fallback   HandlerFunc
	middleware []MiddlewareFunc
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{handlers: make(map[string]HandlerFunc)}
}

// On registers h for event, replacing any existing handler. A nil h
// removes the registration.
func (r *Router) On(event string, h HandlerFunc) {
	if h == nil {
		r.Off(event)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[event] = ChainMiddleware(h, r.middleware...)
}

// Off removes the handler for event.
func (r *Router) Off(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, event)
}

// Fallback sets the handler for events with no registration. Nil clears it.
func (r *Router) Fallback(h HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h == nil {
		r.fallback = nil
		return
	}
	r.fallback = ChainMiddleware(h, r.middleware...)
}

// Use adds middleware that applies to subsequently registered handlers.
func (r *Router) Use(middleware ...MiddlewareFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middleware = append(r.middleware, middleware...)
}

// Handles reports whether event has a handler, counting the fallback.
func (r *Router) Handles(event string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[event]
	return ok || r.fallback != nil
}

// Events returns the registered event names, sorted.
func (r *Router) Events() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	r.mu.RUnlock()

	sort.Strings(names)
	return names
}

// Dispatch invokes the handler for event. An unhandled event yields
// NoReply and no error. A handler error or panic yields NoReply and a
// *errors.HandlerError.
func (r *Router) Dispatch(ctx context.Context, event string, payload any) (reply Reply, err error) {
	r.mu.RLock()
	h, ok := r.handlers[event]
	if !ok {
		h = r.fallback
	}
	r.mu.RUnlock()

	if h == nil {
		return NoReply, nil
	}

	defer func() {
		if p := recover(); p != nil {
			reply, err = NoReply, &ipcerrors.HandlerError{Event: event, Panic: p}
		}
	}()

	reply, err = h(WithEventName(ctx, event), payload)
	if err != nil {
		return NoReply, asHandlerError(event, err)
	}
	return reply, nil
}

func asHandlerError(event string, err error) error {
	var he *ipcerrors.HandlerError
	if errors.As(err, &he) {
		return err
	}
	return &ipcerrors.HandlerError{Event: event, Err: err}
}

// Common middleware implementations

// LoggingMiddleware reports every handler invocation.
func LoggingMiddleware(logFn func(event string, duration time.Duration, err error)) MiddlewareFunc {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, payload any) (Reply, error) {
			start := time.Now()
			reply, err := next(ctx, payload)
			logFn(EventName(ctx), time.Since(start), err)
			return reply, err
		}
	}
}

// RecoveryMiddleware converts a panic in the wrapped handler into a
// *errors.HandlerError. Dispatch already recovers at its boundary; this
// is for middleware that must observe the failure as an error.
func RecoveryMiddleware() MiddlewareFunc {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, payload any) (reply Reply, err error) {
			defer func() {
				if p := recover(); p != nil {
					reply = NoReply
					err = &ipcerrors.HandlerError{
						Event: EventName(ctx),
						Panic: p,
						Err:   fmt.Errorf("handler panic: %v", p),
					}
				}
			}()
			return next(ctx, payload)
		}
	}
}

// MetricsMiddleware records handler metrics.
func MetricsMiddleware(
	onStart func(event string),
	onComplete func(event string, duration time.Duration, err error),
) MiddlewareFunc {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, payload any) (Reply, error) {
			name := EventName(ctx)
			if onStart != nil {
				onStart(name)
			}
			start := time.Now()
			reply, err := next(ctx, payload)
			if onComplete != nil {
				onComplete(name, time.Since(start), err)
			}
			return reply, err
		}
	}
}
