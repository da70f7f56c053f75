package stream

import (
	"context"

	"github.com/pithecene-io/fleetview/sse"
)

// Conn is an open push connection delivering opaque text payloads.
// Next is called from a single goroutine; Close may race with it and must
// unblock it.
type Conn interface {
	Next() (string, error)
	Close() error
}

// Dialer opens push connections.
type Dialer interface {
	Dial(ctx context.Context, address string) (Conn, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, address string) (Conn, error)

// Dial implements Dialer.
func (f DialerFunc) Dial(ctx context.Context, address string) (Conn, error) {
	return f(ctx, address)
}

// SSEDialer opens server-sent event streams. Only default-type events are
// delivered.
type SSEDialer struct {
	Client *sse.Client
}

// Dial implements Dialer.
func (d SSEDialer) Dial(ctx context.Context, address string) (Conn, error) {
	client := d.Client
	if client == nil {
		client = sse.NewClient(nil, 0)
	}
	s, err := client.Dial(ctx, address)
	if err != nil {
		return nil, err
	}
	return sseConn{s}, nil
}

type sseConn struct {
	s *sse.Stream
}

func (c sseConn) Next() (string, error) { return c.s.NextMessage() }
func (c sseConn) Close() error          { return c.s.Close() }
