package log

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/meshnode/meshnode-go/pkg/wire"
)

func writeCapture(t *testing.T, events ...Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sub", "session.mlog")

	fl, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}
	for _, e := range events {
		fl.Log(e)
	}
	if err := fl.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return path
}

func TestCaptureFileRoundTrip(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)
	port := wire.PortTextMessage
	ch := uint32(1)
	path := writeCapture(t,
		Event{Timestamp: ts, ConnectionID: "c1", Layer: LayerTransport, Category: CategoryMessage,
			Frame: &FrameEvent{Size: 12, Data: []byte{1, 2, 3}}},
		Event{Timestamp: ts, ConnectionID: "c1", Layer: LayerWire, Category: CategoryMessage, NodeNum: 0xabcd,
			Message: &MessageEvent{Variant: "packet", PortNum: &port, Channel: &ch, Text: "hi"}},
		Event{Timestamp: ts, ConnectionID: "c1", Layer: LayerTransport, Category: CategoryDebug,
			Debug: &DebugEvent{Line: "INFO | boot"}},
	)

	r, err := OpenReader(path, Filter{})
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer r.Close()

	events, err := r.All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	if !events[0].Timestamp.Equal(ts) {
		t.Errorf("timestamp = %v, want %v", events[0].Timestamp, ts)
	}
	if got := events[1].Message; got == nil || got.Text != "hi" || *got.PortNum != port || *got.Channel != 1 {
		t.Errorf("message event not preserved: %+v", got)
	}
	if events[2].Debug == nil || events[2].Debug.Line != "INFO | boot" {
		t.Errorf("debug event not preserved: %+v", events[2].Debug)
	}
}

func TestReaderFilter(t *testing.T) {
	base := time.Now().UTC()
	in, out := DirectionIn, DirectionOut
	path := writeCapture(t,
		Event{Timestamp: base, ConnectionID: "a", Direction: in, Category: CategoryMessage},
		Event{Timestamp: base.Add(time.Second), ConnectionID: "a", Direction: out, Category: CategoryMessage},
		Event{Timestamp: base.Add(2 * time.Second), ConnectionID: "b", Direction: in, Category: CategoryState, NodeNum: 7},
	)

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"all", Filter{}, 3},
		{"connection", Filter{ConnectionID: "a"}, 2},
		{"direction", Filter{Direction: &out}, 1},
		{"node", Filter{NodeNum: 7}, 1},
		{"until is exclusive", Filter{Until: ptr(base.Add(time.Second))}, 1},
		{"since", Filter{Since: ptr(base.Add(time.Second))}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := OpenReader(path, tt.filter)
			if err != nil {
				t.Fatalf("OpenReader: %v", err)
			}
			defer r.Close()
			got, err := r.All()
			if err != nil {
				t.Fatalf("All: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d events, want %d", len(got), tt.want)
			}
		})
	}
}

func TestReaderTruncatedFile(t *testing.T) {
	path := writeCapture(t,
		Event{ConnectionID: "a"},
		Event{ConnectionID: "b", Debug: &DebugEvent{Line: strings.Repeat("x", 64)}},
	)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data[:len(data)-10], 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := OpenReader(path, Filter{})
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	if _, err := r.Next(); err != nil {
		t.Fatalf("first event: %v", err)
	}
	if _, err := r.Next(); err != io.EOF {
		t.Errorf("truncated tail: got %v, want io.EOF", err)
	}
}

func TestFileLoggerConcurrentAndClosed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.mlog")
	fl, err := NewFileLogger(path)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				fl.Log(Event{ConnectionID: "x"})
			}
		}()
	}
	wg.Wait()
	fl.Close()
	fl.Log(Event{ConnectionID: "after-close"})
	if err := fl.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}

	r, err := OpenReader(path, Filter{})
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	got, err := r.All()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 200 {
		t.Errorf("got %d events, want 200", len(got))
	}
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Log(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func TestTeeSkipsNil(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	Tee{a, nil, b}.Log(Event{ConnectionID: "x"})
	if len(a.events) != 1 || len(b.events) != 1 {
		t.Errorf("tee delivered %d/%d events", len(a.events), len(b.events))
	}
	if _, ok := OrNoop(nil).(NoopLogger); !ok {
		t.Error("OrNoop(nil) should return NoopLogger")
	}
}

func TestSlogAdapter(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	admin := wire.PortAdmin

	NewSlogAdapter(logger).Log(Event{
		ConnectionID: "c1",
		Direction:    DirectionOut,
		Layer:        LayerWire,
		NodeNum:      0x1234abcd,
		Message:      &MessageEvent{Variant: "packet", PortNum: &admin, Admin: "set_config", RequestID: 5},
	})

	out := buf.String()
	for _, want := range []string{"node=!1234abcd", "port=ADMIN_APP", "admin=set_config", "request_id=5", "dir=OUT"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}

	buf.Reset()
	quiet := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	NewSlogAdapter(quiet).Log(Event{ConnectionID: "c1"})
	if buf.Len() != 0 {
		t.Errorf("expected no output above debug level, got %q", buf.String())
	}
}

func TestMessageFromRadio(t *testing.T) {
	payload := wire.EncodeAdmin(&wire.AdminMessage{CommitEditSettings: true})
	ev := MessageFromRadio(&wire.FromRadio{Packet: &wire.MeshPacket{
		From:    1,
		To:      2,
		Channel: 0,
		Decoded: &wire.Data{PortNum: wire.PortAdmin, Payload: payload, RequestID: 44},
	}})
	if ev.Variant != "packet" || ev.Admin != "commit_edit_settings" || ev.RequestID != 44 {
		t.Errorf("unexpected event %+v", ev)
	}

	if v := MessageFromRadio(&wire.FromRadio{ConfigCompleteID: 9}).Variant; v != "config_complete" {
		t.Errorf("variant = %q", v)
	}
	if v := MessageToRadio(&wire.ToRadio{Heartbeat: true}).Variant; v != "heartbeat" {
		t.Errorf("variant = %q", v)
	}
}

func ptr[T any](v T) *T { return &v }
