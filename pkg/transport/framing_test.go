package transport

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/meshnode/meshnode-go/pkg/log"
)

func TestFrameWriterReader(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{"empty", []byte{}},
		{"small", []byte("hello")},
		{"contains marker", []byte{Start1, Start2, 0x00, 0x01}},
		{"max size", bytes.Repeat([]byte{0x5a}, MaxPayloadSize)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := NewFrameWriter(&buf).WriteFrame(tt.payload); err != nil {
				t.Fatalf("WriteFrame: %v", err)
			}
			if buf.Len() != HeaderSize+len(tt.payload) {
				t.Errorf("frame size = %d, want %d", buf.Len(), HeaderSize+len(tt.payload))
			}

			got, err := NewFrameReader(&buf).ReadFrame()
			if err != nil {
				t.Fatalf("ReadFrame: %v", err)
			}
			if !bytes.Equal(got, tt.payload) {
				t.Errorf("payload mismatch: got %x, want %x", got, tt.payload)
			}
		})
	}
}

func TestFrameHeaderLayout(t *testing.T) {
	var buf bytes.Buffer
	if err := NewFrameWriter(&buf).WriteFrame(bytes.Repeat([]byte{1}, 300)); err != nil {
		t.Fatal(err)
	}
	want := []byte{0x94, 0xC3, 0x01, 0x2C}
	if !bytes.Equal(buf.Bytes()[:4], want) {
		t.Errorf("header = %x, want %x", buf.Bytes()[:4], want)
	}
}

func TestFrameWriterRejectsOversize(t *testing.T) {
	var buf bytes.Buffer
	err := NewFrameWriter(&buf).WriteFrame(make([]byte, MaxPayloadSize+1))
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("err = %v, want ErrFrameTooLarge", err)
	}
	if buf.Len() != 0 {
		t.Errorf("wrote %d bytes for rejected frame", buf.Len())
	}
}

func TestFrameReaderSeparatesConsoleOutput(t *testing.T) {
	var stream bytes.Buffer
	stream.WriteString("INFO | booting\r\n")
	stream.WriteByte(Start1) // stray marker byte followed by text
	stream.WriteString("x\n")
	_ = NewFrameWriter(&stream).WriteFrame([]byte("one"))
	stream.WriteString("DEBUG | between\n")
	_ = NewFrameWriter(&stream).WriteFrame([]byte("two"))

	var lines []string
	fr := NewFrameReader(&stream)
	fr.OnDebugLine(func(line string) { lines = append(lines, line) })

	for _, want := range []string{"one", "two"} {
		got, err := fr.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame: %v", err)
		}
		if string(got) != want {
			t.Errorf("frame = %q, want %q", got, want)
		}
	}
	if _, err := fr.ReadFrame(); err != io.EOF {
		t.Errorf("end of stream: got %v, want io.EOF", err)
	}

	if len(lines) != 3 {
		t.Fatalf("got %d console lines (%q), want 3", len(lines), lines)
	}
	if lines[0] != "INFO | booting" {
		t.Errorf("line 0 = %q", lines[0])
	}
	if lines[2] != "DEBUG | between" {
		t.Errorf("line 2 = %q", lines[2])
	}
}

func TestFrameReaderResyncsOnBadLength(t *testing.T) {
	var stream bytes.Buffer
	stream.Write([]byte{Start1, Start2, 0xFF, 0xFF}) // length 65535, invalid
	_ = NewFrameWriter(&stream).WriteFrame([]byte("ok"))

	rec := &captureRecorder{}
	fr := NewFrameReader(&stream)
	fr.SetLogger(rec, "c1")

	got, err := fr.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if string(got) != "ok" {
		t.Errorf("frame = %q, want ok", got)
	}

	var sawError bool
	for _, ev := range rec.events {
		if ev.Category == log.CategoryError && ev.Error != nil {
			sawError = true
		}
	}
	if !sawError {
		t.Error("expected an error capture event for the bad header")
	}
}

func TestFrameReaderTruncated(t *testing.T) {
	stream := bytes.NewReader([]byte{Start1, Start2, 0x00, 0x05, 'a', 'b'})
	_, err := NewFrameReader(stream).ReadFrame()
	if !errors.Is(err, ErrFrameTruncated) {
		t.Errorf("err = %v, want ErrFrameTruncated", err)
	}
}

func TestFramerLogsBothDirections(t *testing.T) {
	var buf bytes.Buffer
	rec := &captureRecorder{}
	f := NewFramer(&buf)
	f.SetLogger(rec, "conn-x")

	if err := f.WriteFrame([]byte("ping")); err != nil {
		t.Fatal(err)
	}
	if _, err := f.ReadFrame(); err != nil {
		t.Fatal(err)
	}

	if len(rec.events) != 2 {
		t.Fatalf("got %d events, want 2", len(rec.events))
	}
	if rec.events[0].Direction != log.DirectionOut || rec.events[1].Direction != log.DirectionIn {
		t.Errorf("directions = %v, %v", rec.events[0].Direction, rec.events[1].Direction)
	}
	for _, ev := range rec.events {
		if ev.ConnectionID != "conn-x" || ev.Frame == nil || ev.Frame.Size != HeaderSize+4 {
			t.Errorf("unexpected event %+v", ev)
		}
	}
}

func TestWakeSequence(t *testing.T) {
	var buf bytes.Buffer
	if err := NewFrameWriter(&buf).Wake(); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 32 || bytes.Count(buf.Bytes(), []byte{Start2}) != 32 {
		t.Errorf("wake sequence = %x", buf.Bytes())
	}
}

type captureRecorder struct {
	mu     sync.Mutex
	events []log.Event
}

func (r *captureRecorder) Log(e log.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}
