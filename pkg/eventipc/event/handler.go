package event

import "context"

// Reply is the optional result of a handler.
type Reply struct {
	value any
	ok    bool
}

// NoReply is the empty Reply.
var NoReply = Reply{}

// Respond returns a Reply carrying v. A nil v is still a reply; it
// encodes as an empty object.
func Respond(v any) Reply {
	return Reply{value: v, ok: true}
}

// Value returns the reply payload and whether one is present.
func (r Reply) Value() (any, bool) {
	return r.value, r.ok
}

// Present reports whether the reply carries a payload.
func (r Reply) Present() bool {
	return r.ok
}

// HandlerFunc handles one event payload.
type HandlerFunc func(ctx context.Context, payload any) (Reply, error)

// Listener adapts a handler that never replies.
func Listener(fn func(ctx context.Context, payload any)) HandlerFunc {
	return func(ctx context.Context, payload any) (Reply, error) {
		fn(ctx, payload)
		return NoReply, nil
	}
}

// Replier adapts a handler that always replies with its return value.
func Replier(fn func(ctx context.Context, payload any) any) HandlerFunc {
	return func(ctx context.Context, payload any) (Reply, error) {
		return Respond(fn(ctx, payload)), nil
	}
}

// MiddlewareFunc wraps a handler with additional behavior.
type MiddlewareFunc func(next HandlerFunc) HandlerFunc

// ChainMiddleware applies middleware in order, with first middleware outermost.
func ChainMiddleware(handler HandlerFunc, middleware ...MiddlewareFunc) HandlerFunc {
	for i := len(middleware) - 1; i >= 0; i-- {
		handler = middleware[i](handler)
	}
	return handler
}

type contextKey string

const eventNameKey contextKey = "event_name"

// WithEventName returns a context carrying the dispatched event name.
func WithEventName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, eventNameKey, name)
}

// EventName returns the event being dispatched, or "" outside a dispatch.
func EventName(ctx context.Context) string {
	if v, ok := ctx.Value(eventNameKey).(string); ok {
		return v
	}
	return ""
}
