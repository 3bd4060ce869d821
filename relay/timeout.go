package relay

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrGenerationTimeout is returned when the provider produces no delta
// within the generation timeout.
var ErrGenerationTimeout = errors.New("generation timed out waiting for a response")

// watchdog cancels a generation call that has not delivered anything in
// time. The first delta disarms it.
type watchdog struct {
	mu     sync.Mutex
	timer  *time.Timer
	cancel context.CancelCauseFunc
	fired  bool
	done   bool
}

func startWatchdog(parent context.Context, timeout time.Duration) (context.Context, *watchdog) {
	ctx, cancel := context.WithCancelCause(parent)
	wd := &watchdog{cancel: cancel}
	wd.timer = time.AfterFunc(timeout, wd.fire)
	return ctx, wd
}

func (w *watchdog) fire() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return
	}
	w.fired = true
	w.cancel(ErrGenerationTimeout)
}

// delivered disarms the watchdog. Safe to call for every delta.
func (w *watchdog) delivered() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return
	}
	w.done = true
	w.timer.Stop()
}

func (w *watchdog) timedOut() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fired
}

func (w *watchdog) stop() {
	w.mu.Lock()
	w.done = true
	w.timer.Stop()
	w.mu.Unlock()
	w.cancel(nil)
}
