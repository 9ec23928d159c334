package eventbus

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshnode/meshnode-go/pkg/wire"
)

func startBus(t *testing.T, opts ...Option) (*Bus, context.CancelFunc) {
	t.Helper()
	b := New(opts...)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = b.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-b.Stopped()
	})
	return b, cancel
}

func textEvent(s string) MessageReceived {
	return MessageReceived{Packet: &wire.MeshPacket{Decoded: &wire.Data{PortNum: wire.PortTextMessage, Payload: []byte(s)}}}
}

func TestDeliveryOrderAndKindFiltering(t *testing.T) {
	b, _ := startBus(t)

	got := make(chan string, 10)
	b.Subscribe(KindMessageReceived, func(_ context.Context, ev Event) error {
		got <- string(ev.(MessageReceived).Packet.Decoded.Payload)
		return nil
	})
	lost := make(chan struct{}, 1)
	b.Subscribe(KindConnectionLost, func(context.Context, Event) error {
		lost <- struct{}{}
		return nil
	})

	ctx := context.Background()
	for _, s := range []string{"a", "b", "c"} {
		require.NoError(t, b.Publish(ctx, textEvent(s)))
	}
	require.NoError(t, b.Publish(ctx, ConnectionLost{}))

	for _, want := range []string{"a", "b", "c"} {
		select {
		case s := <-got:
			assert.Equal(t, want, s)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
	select {
	case <-lost:
	case <-time.After(time.Second):
		t.Fatal("ConnectionLost not delivered")
	}
	assert.Empty(t, got, "message handler must not see other kinds")
}

func TestHandlerFailureIsContained(t *testing.T) {
	var logBuf syncBuffer
	logger := slog.New(slog.NewTextHandler(&logBuf, nil))
	b, _ := startBus(t, WithLogger(logger))

	var mu sync.Mutex
	calls := 0
	b.Subscribe(KindMessageReceived, func(context.Context, Event) error {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		switch n {
		case 1:
			return errors.New("boom")
		case 2:
			panic("kaboom")
		}
		return nil
	})
	second := make(chan struct{}, 3)
	b.Subscribe(KindMessageReceived, func(context.Context, Event) error {
		second <- struct{}{}
		return nil
	})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, b.Publish(ctx, textEvent("x")))
	}
	for i := 0; i < 3; i++ {
		select {
		case <-second:
		case <-time.After(time.Second):
			t.Fatalf("second handler missed event %d", i)
		}
	}

	mu.Lock()
	assert.Equal(t, 3, calls, "failing handler stays subscribed")
	mu.Unlock()
	out := logBuf.String()
	assert.Contains(t, out, "boom")
	assert.Contains(t, out, "kaboom")
}

func TestUnsubscribe(t *testing.T) {
	b, _ := startBus(t)

	first := make(chan struct{}, 2)
	unsub := b.Subscribe(KindConnectionEstablished, func(context.Context, Event) error {
		first <- struct{}{}
		return nil
	})
	sentinel := make(chan struct{}, 2)
	b.Subscribe(KindConnectionEstablished, func(context.Context, Event) error {
		sentinel <- struct{}{}
		return nil
	})

	unsub()
	unsub()
	require.NoError(t, b.Publish(context.Background(), ConnectionEstablished{}))

	select {
	case <-sentinel:
	case <-time.After(time.Second):
		t.Fatal("remaining handler not called")
	}
	assert.Empty(t, first)
}

func TestPublishBlocksWhenFull(t *testing.T) {
	b := New(WithQueueSize(1))

	require.NoError(t, b.Publish(context.Background(), ConnectionLost{}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := b.Publish(ctx, ConnectionLost{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPublishAfterStop(t *testing.T) {
	b := New()
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = b.Run(ctx) }()
	cancel()
	<-b.Stopped()

	assert.ErrorIs(t, b.Publish(context.Background(), ConnectionLost{}), ErrStopped)
	assert.ErrorIs(t, b.Run(context.Background()), ErrAlreadyRunning)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func TestPublishAfterStopWithRoomInQueue(t *testing.T) {
	b := New(WithQueueSize(128))
	close(b.done)

	// The enqueue case is ready too; select must never report it as success.
	for range 100 {
		assert.ErrorIs(t, b.Publish(context.Background(), ConnectionLost{}), ErrStopped)
	}
}

func TestRunLogsDiscardedEvents(t *testing.T) {
	var logs syncBuffer
	b := New(WithLogger(slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))))

	var delivered atomic.Int32
	b.Subscribe(KindConnectionLost, func(context.Context, Event) error {
		delivered.Add(1)
		return nil
	})
	for range 3 {
		require.NoError(t, b.Publish(context.Background(), ConnectionLost{}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, b.Run(ctx))

	discarded := strings.Count(logs.String(), "event discarded")
	assert.Equal(t, 3, int(delivered.Load())+discarded)
	assert.Empty(t, b.queue)
}
