package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// DefaultQueueSize is the number of events buffered between publisher and
// dispatcher.
const DefaultQueueSize = 64

// Bus errors.
var (
	// ErrStopped is returned by Publish after Run has returned.
	ErrStopped = errors.New("event bus stopped")

	// ErrAlreadyRunning is returned by a second call to Run.
	ErrAlreadyRunning = errors.New("event bus already running")
)

// Handler processes one event. A returned error is logged; it does not
// unsubscribe the handler.
type Handler func(ctx context.Context, ev Event) error

type subscription struct {
	id      uint64
	handler Handler
}

// Bus is a typed publish/subscribe queue with one dispatch goroutine.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Kind][]subscription
	nextID   uint64

	queue   chan Event
	done    chan struct{}
	running atomic.Bool

	logger *slog.Logger
}

// Option configures a Bus.
type Option func(*Bus)

// WithQueueSize overrides DefaultQueueSize.
func WithQueueSize(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.queue = make(chan Event, n)
		}
	}
}

// WithLogger sets the logger for handler failures.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bus) { b.logger = l }
}

// New creates a bus. Call Run to start delivery.
func New(opts ...Option) *Bus {
	b := &Bus{
		handlers: make(map[Kind][]subscription),
		queue:    make(chan Event, DefaultQueueSize),
		done:     make(chan struct{}),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers h for events of kind. The returned function removes
// the subscription and is safe to call more than once.
func (b *Bus) Subscribe(kind Kind, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.handlers[kind] = append(b.handlers[kind], subscription{id: id, handler: h})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(kind, id) })
	}
}

func (b *Bus) remove(kind Kind, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.handlers[kind]
	for i, s := range subs {
		if s.id == id {
			// Copy so a dispatch holding the old slice is unaffected.
			next := make([]subscription, 0, len(subs)-1)
			next = append(next, subs[:i]...)
			b.handlers[kind] = append(next, subs[i+1:]...)
			return
		}
	}
}

// Publish enqueues ev, blocking while the queue is full. It returns
// ctx.Err() if ctx ends first and ErrStopped once the bus has stopped.
// A nil return means the event is delivered or, if Run ends first, logged
// as discarded.
func (b *Bus) Publish(ctx context.Context, ev Event) error {
	select {
	case <-b.done:
		return ErrStopped
	default:
	}
	select {
	case b.queue <- ev:
	case <-b.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	// Run may have stopped while the queue still had room.
	select {
	case <-b.done:
		return ErrStopped
	default:
		return nil
	}
}

// Run dispatches events until ctx ends. Events still queued at that point
// are discarded and logged.
func (b *Bus) Run(ctx context.Context) error {
	if b.running.Swap(true) {
		return ErrAlreadyRunning
	}
	defer b.drain()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-b.queue:
			b.dispatch(ctx, ev)
		}
	}
}

// drain marks the bus stopped, then empties the queue. Publish re-checks
// done after enqueueing, so nothing it accepted can be left behind silently.
func (b *Bus) drain() {
	close(b.done)
	for {
		select {
		case ev := <-b.queue:
			b.logger.Debug("event discarded, bus stopped", "event", ev.Kind().String())
		default:
			return
		}
	}
}

// Stopped returns a channel closed when Run returns.
func (b *Bus) Stopped() <-chan struct{} {
	return b.done
}

func (b *Bus) dispatch(ctx context.Context, ev Event) {
	b.mu.RLock()
	subs := b.handlers[ev.Kind()]
	b.mu.RUnlock()

	for _, s := range subs {
		if err := b.invoke(ctx, s.handler, ev); err != nil {
			b.logger.Warn("event handler failed",
				"event", ev.Kind().String(),
				"subscription", s.id,
				"error", err)
		}
	}
}

func (b *Bus) invoke(ctx context.Context, h Handler, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, ev)
}
