package transport

import (
	"context"
	"sync"
	"time"
)

// Heartbeat constants.
const (
	// DefaultHeartbeatInterval matches the node's idle timeout with margin.
	DefaultHeartbeatInterval = 5 * time.Minute

	// DefaultMaxHeartbeatFailures is how many consecutive send failures
	// mark the link as lost.
	DefaultMaxHeartbeatFailures = 2
)

// HeartbeatConfig configures heartbeat behaviour.
type HeartbeatConfig struct {
	Interval    time.Duration
	MaxFailures int
}

// DefaultHeartbeatConfig returns the default heartbeat configuration.
func DefaultHeartbeatConfig() HeartbeatConfig {
	return HeartbeatConfig{
		Interval:    DefaultHeartbeatInterval,
		MaxFailures: DefaultMaxHeartbeatFailures,
	}
}

// Heartbeat periodically sends a heartbeat message on an otherwise idle link.
type Heartbeat struct {
	config HeartbeatConfig

	send   func() error
	onLost func(err error)

	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	done     chan struct{}
	sent     int
	failures int
	lastSent time.Time
}

// NewHeartbeat creates a heartbeat. onLost is called once, from the
// heartbeat goroutine, after MaxFailures consecutive send errors.
func NewHeartbeat(config HeartbeatConfig, send func() error, onLost func(err error)) *Heartbeat {
	if config.Interval <= 0 {
		config.Interval = DefaultHeartbeatInterval
	}
	if config.MaxFailures <= 0 {
		config.MaxFailures = DefaultMaxHeartbeatFailures
	}
	return &Heartbeat{config: config, send: send, onLost: onLost}
}

// Start begins sending heartbeats until ctx ends or Stop is called.
func (h *Heartbeat) Start(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return
	}
	h.running = true
	h.stopCh = make(chan struct{})
	h.done = make(chan struct{})
	go h.loop(ctx, h.stopCh, h.done)
}

// Stop stops the heartbeat and waits for the goroutine to exit.
func (h *Heartbeat) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	close(h.stopCh)
	done := h.done
	h.mu.Unlock()
	<-done
}

// IsRunning reports whether the heartbeat goroutine is active.
func (h *Heartbeat) IsRunning() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

// HeartbeatStats contains heartbeat statistics.
type HeartbeatStats struct {
	Sent     int
	Failures int
	LastSent time.Time
}

// Stats returns current statistics.
func (h *Heartbeat) Stats() HeartbeatStats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return HeartbeatStats{Sent: h.sent, Failures: h.failures, LastSent: h.lastSent}
}

func (h *Heartbeat) loop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(h.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.markStopped()
			return
		case <-stop:
			return
		case <-ticker.C:
			if err := h.beat(); err != nil {
				h.markStopped()
				if h.onLost != nil {
					h.onLost(err)
				}
				return
			}
		}
	}
}

// beat sends one heartbeat and returns an error once the failure limit
// is reached.
func (h *Heartbeat) beat() error {
	err := h.send()

	h.mu.Lock()
	defer h.mu.Unlock()
	if err == nil {
		h.sent++
		h.failures = 0
		h.lastSent = time.Now()
		return nil
	}
	h.failures++
	if h.failures >= h.config.MaxFailures {
		return err
	}
	return nil
}

func (h *Heartbeat) markStopped() {
	h.mu.Lock()
	h.running = false
	h.mu.Unlock()
}
