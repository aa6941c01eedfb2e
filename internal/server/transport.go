package server

import (
	"context"
	"time"
)

// Transport is the protocol collaborator driven by the serve loop. Bind
// acquires network resources, Poll handles at most timeout worth of
// requests and returns, Close releases everything Bind acquired.
type Transport interface {
	Bind(addr string) error
	Poll(ctx context.Context, timeout time.Duration) error
	Close() error
}

// IdleTransport serves nothing. Poll just waits out its timeout, which
// keeps the loop cadence when no transport is configured.
type IdleTransport struct{}

var _ Transport = IdleTransport{}

func (IdleTransport) Bind(string) error { return nil }

func (IdleTransport) Poll(ctx context.Context, timeout time.Duration) error {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (IdleTransport) Close() error { return nil }
