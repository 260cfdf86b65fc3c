package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/agentflow/core"
)

// ErrObserverClosed is returned by Emit after Close.
var ErrObserverClosed = errors.New("observer closed")

// Observer is the single-writer, single-reader event channel of one run.
// Events are delivered in emission order and never dropped; the channel is
// closed exactly once.
type Observer struct {
	ch     chan core.UpdateEvent
	once   sync.Once
	closed atomic.Bool
}

// NewObserver creates an Observer with the given channel buffer.
func NewObserver(buffer int) *Observer {
	if buffer < 0 {
		buffer = 0
	}
	return &Observer{ch: make(chan core.UpdateEvent, buffer)}
}

// Emit delivers ev, blocking until the reader accepts it or ctx is done.
// Emit must not be called concurrently with Close.
func (o *Observer) Emit(ctx context.Context, ev core.UpdateEvent) error {
	if o.closed.Load() {
		return ErrObserverClosed
	}
	select {
	case o.ch <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes the event channel. Subsequent calls are no-ops.
func (o *Observer) Close() {
	o.once.Do(func() {
		o.closed.Store(true)
		close(o.ch)
	})
}

// Events returns the receive side of the channel.
func (o *Observer) Events() <-chan core.UpdateEvent { return o.ch }

// Collect drains the channel until it is closed or ctx is done.
func (o *Observer) Collect(ctx context.Context) ([]core.UpdateEvent, error) {
	return collect(ctx, o.ch)
}

func collect(ctx context.Context, ch <-chan core.UpdateEvent) ([]core.UpdateEvent, error) {
	var events []core.UpdateEvent
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return events, nil
			}
			events = append(events, ev)
		case <-ctx.Done():
			return events, ctx.Err()
		}
	}
}
