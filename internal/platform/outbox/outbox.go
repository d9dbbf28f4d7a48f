// Package outbox decouples side effects from the state transition that caused
// them. Producers publish without blocking; one consumer goroutine fans each
// event out to the registered subscribers. Delivery is at-most-once: an event
// is dropped when the buffer is full, and a failing subscriber is logged and
// skipped, never retried.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

var ErrFull = errors.New("outbox: buffer full, event dropped")

// Handler consumes one event. Errors are logged and counted.
type Handler[E any] func(ctx context.Context, e E) error

// Metrics is satisfied by *metrics.Registry.
type Metrics interface {
	OutboxEvent(result string)
	OutboxHandlerError(handler string)
}

type nopMetrics struct{}

func (nopMetrics) OutboxEvent(string)        {}
func (nopMetrics) OutboxHandlerError(string) {}

type subscriber[E any] struct {
	name    string
	handler Handler[E]
}

type Outbox[E any] struct {
	ch      chan E
	mu      sync.RWMutex
	subs    []subscriber[E]
	logger  zerolog.Logger
	metrics Metrics
}

// New creates an outbox holding at most size undelivered events.
func New[E any](size int, logger zerolog.Logger, m Metrics) *Outbox[E] {
	if size <= 0 {
		size = 1
	}
	if m == nil {
		m = nopMetrics{}
	}
	return &Outbox[E]{
		ch:      make(chan E, size),
		logger:  logger.With().Str("component", "outbox").Logger(),
		metrics: m,
	}
}

// Subscribe registers handler under name. Subscribers run in registration
// order for every event.
func (o *Outbox[E]) Subscribe(name string, handler Handler[E]) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.subs = append(o.subs, subscriber[E]{name: name, handler: handler})
}

// Publish enqueues e without blocking.
func (o *Outbox[E]) Publish(ctx context.Context, e E) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case o.ch <- e:
		o.metrics.OutboxEvent("published")
		return nil
	default:
		o.metrics.OutboxEvent("dropped")
		return ErrFull
	}
}

// Len is the number of buffered, undelivered events.
func (o *Outbox[E]) Len() int {
	return len(o.ch)
}

// Run delivers events until ctx is cancelled, then flushes what is still
// buffered and returns.
func (o *Outbox[E]) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			o.flush(context.WithoutCancel(ctx))
			return
		case e := <-o.ch:
			o.deliver(ctx, e)
		}
	}
}

func (o *Outbox[E]) flush(ctx context.Context) {
	for {
		select {
		case e := <-o.ch:
			o.deliver(ctx, e)
		default:
			return
		}
	}
}

func (o *Outbox[E]) deliver(ctx context.Context, e E) {
	o.mu.RLock()
	subs := o.subs
	o.mu.RUnlock()

	for _, s := range subs {
		if err := o.call(ctx, s, e); err != nil {
			o.metrics.OutboxHandlerError(s.name)
			o.logger.Error().Err(err).Str("handler", s.name).Msg("outbox subscriber failed")
		}
	}
	o.metrics.OutboxEvent("delivered")
}

func (o *Outbox[E]) call(ctx context.Context, s subscriber[E], e E) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.handler(ctx, e)
}
