// Package dispatch fans emote batches out to registered listeners.
package dispatch

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/john/emoterain/internal/emote"
	"github.com/john/emoterain/internal/metrics"
)

// Listener receives every dispatched batch. Listeners must not modify the batch.
type Listener func(batch emote.Batch) error

// Dispatcher delivers batches to listeners synchronously, in subscription order.
type Dispatcher struct {
	logger *slog.Logger

	mu        sync.RWMutex
	listeners []Listener
}

// New creates a dispatcher with no listeners.
func New(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{logger: logger}
}

// Subscribe appends l. The same listener may be subscribed more than once.
func (d *Dispatcher) Subscribe(l Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, l)
}

// Dispatch hands batch to every listener and returns how many of them failed.
// A listener that errors or panics does not stop delivery to the rest.
func (d *Dispatcher) Dispatch(batch emote.Batch) int {
	d.mu.RLock()
	listeners := d.listeners
	d.mu.RUnlock()

	failed := 0
	for i, l := range listeners {
		if err := d.deliver(l, batch); err != nil {
			failed++
			d.logger.Error("listener failed", "listener", i, "channel", batch.Channel, "error", err)
		}
	}
	return failed
}

func (d *Dispatcher) deliver(l Listener, batch emote.Batch) (err error) {
	defer func() {
		if r := recover(); r != nil {
			metrics.ListenerFailures.WithLabelValues("panic").Inc()
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if err := l(batch); err != nil {
		metrics.ListenerFailures.WithLabelValues("error").Inc()
		return err
	}
	return nil
}
