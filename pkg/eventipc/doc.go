/*
Package eventipc provides event messaging between a server process and any
number of client processes.

# Overview

A Server binds two endpoints: a publish endpoint it broadcasts events on,
and a reply endpoint it answers requests on. A Client subscribes to the
first and sends requests to the second. Every message is an envelope
{event, payload} routed by event name to a registered handler.

Given a URL and a port, the broadcast pair uses url:port and the
request/reply pair uses url:port+1.

# Basic Usage

	srv := eventipc.NewServer()
	srv.On("greet", event.Replier(func(ctx context.Context, p any) any {
	    return map[string]any{"hello": p}
	}))
	if err := srv.Serve(ctx, "tcp://127.0.0.1", 57239); err != nil {
	    log.Fatal(err)
	}
	defer srv.Shutdown()

	cli := eventipc.NewClient()
	cli.On("tick", func(ctx context.Context, p any) {
	    fmt.Println("tick", p)
	})
	if err := cli.Connect(ctx, "tcp://127.0.0.1", 57239); err != nil {
	    log.Fatal(err)
	}
	defer cli.Shutdown()

	reply, err := cli.Emit(ctx, "greet", "world")

	_ = srv.Emit(ctx, "tick", map[string]any{"seq": 1})

# Connecting

Connect and Serve open both handles with a fixed-delay retry budget per
handle (five attempts one second apart by default, see WithMaxRetries and
WithRetryDelay). Both handles are always attempted. When either fails the
call returns a *errors.ConnectError holding the last error of each
handle, and the agent stays disconnected.

# Encryption

Frames can be sealed with an AEAD cipher from package crypto. A frame
that fails authentication is dropped, the compromised callback fires, and
the receive loop continues:

	strategy, err := crypto.New(crypto.CipherAESGCM, hexKey)
	cli := eventipc.NewClient(eventipc.WithEncryption(strategy))
	cli.SetOnCompromisedCallback(func() { alert() })

Both peers must use the same cipher, key and serializer.

# Delivery

Broadcasts reach only clients subscribed at send time and may be dropped
for a slow subscriber. Requests are answered one at a time; a handler that
returns event.NoReply leaves the client waiting, so clients should use
WithRequestTimeout when the server has such handlers.

# Testing

transport.NewMemory is an in-process transport with the same semantics.
Pass the same instance to both agents:

	mem := transport.NewMemory()
	srv := eventipc.NewServer(eventipc.WithTransport(mem))
	cli := eventipc.NewClient(eventipc.WithTransport(mem))
*/
package eventipc
