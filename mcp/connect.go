package mcp

import (
	"context"
	"fmt"
	"time"

	globalconfig "askthecity/config"
)

type connectResult struct {
	session Session
	err     error
}

// cancelSession ties the connection context to the session lifetime.
type cancelSession struct {
	Session
	cancel context.CancelFunc
}

func (s *cancelSession) Close() error {
	err := s.Session.Close()
	s.cancel()
	return err
}

// ConnectWithTimeout races Connect against a timer. When the timer wins the
// pending attempt is cancelled and any session that still arrives is closed
// in the background, so the caller can proceed without tools.
func ConnectWithTimeout(ctx context.Context, c Connector, timeout time.Duration) (Session, error) {
	connCtx, cancel := context.WithCancel(ctx)

	done := make(chan connectResult, 1)
	go func() {
		s, err := c.Connect(connCtx)
		done <- connectResult{session: s, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-done:
		if r.err != nil {
			cancel()
			return nil, r.err
		}
		if r.session == nil {
			cancel()
			return nil, ErrNoTools
		}
		return &cancelSession{Session: r.session, cancel: cancel}, nil
	case <-timer.C:
		abandon(done, cancel)
		return nil, fmt.Errorf("%w after %s", ErrConnectTimeout, timeout)
	case <-ctx.Done():
		abandon(done, cancel)
		return nil, ctx.Err()
	}
}

func abandon(done <-chan connectResult, cancel context.CancelFunc) {
	cancel()
	go func() {
		r := <-done
		if r.session != nil {
			if err := r.session.Close(); err != nil && globalconfig.DebugLog != nil {
				globalconfig.DebugLog.Printf("[MCP] Failed to close late session: %v", err)
			}
		}
	}()
}

// CloseWithTimeout closes s, giving up after timeout. A nil session is a no-op.
func CloseWithTimeout(s Session, timeout time.Duration) error {
	if s == nil {
		return nil
	}

	done := make(chan error, 1)
	go func() {
		done <- s.Close()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		return fmt.Errorf("tool proxy session did not close within %s", timeout)
	}
}
