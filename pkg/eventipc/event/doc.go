// Package event provides the handler registry and dispatcher used by
// eventipc agents.
//
// # Handlers
//
// Every handler has the same shape: it receives the decoded payload and
// returns an optional Reply. Broadcast listeners never reply; request
// handlers on the responding side may:
//
//	router.On("greet", func(ctx context.Context, payload any) (event.Reply, error) {
//	    m, _ := payload.(map[string]any)
//	    return event.Respond(map[string]any{"greeting": "Hello, " + m["name"].(string)}), nil
//	})
//
//	router.On("update-value", event.Listener(func(ctx context.Context, payload any) {
//	    fmt.Println(payload)
//	}))
//
// Returning NoReply is a supported outcome, not an error. On the
// responding side it means no reply frame is sent for that request.
//
// # Registry
//
// A Router maps one event name to one handler; registering again replaces
// the previous handler. Registration takes a write lock and Dispatch copies
// the handler out under a read lock before invoking it, so handlers may
// themselves register or remove handlers without deadlocking and a
// registration is visible to the next Dispatch after On returns.
//
// # Failures
//
// Dispatch never lets a handler take down its caller. A returned error or
// a panic is reported as *errors.HandlerError alongside NoReply; agents
// log it and continue their receive loop.
//
// # Middleware
//
// Middleware wraps handlers registered after Use is called, first
// middleware outermost. The dispatched event name is available to
// middleware and handlers through EventName(ctx).
package event
