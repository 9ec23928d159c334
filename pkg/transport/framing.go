package transport

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/meshnode/meshnode-go/pkg/log"
)

// Framing constants.
const (
	Start1 byte = 0x94
	Start2 byte = 0xC3

	// HeaderSize is the marker plus the 16-bit length.
	HeaderSize = 4

	// MaxPayloadSize is the largest payload a node accepts.
	MaxPayloadSize = 512

	// maxDebugLine bounds a console line that never sees a newline.
	maxDebugLine = 1024
)

// Framing errors.
var (
	// ErrFrameTooLarge indicates an outgoing payload above MaxPayloadSize.
	ErrFrameTooLarge = errors.New("frame too large")

	// ErrFrameTruncated indicates the stream ended inside a frame.
	ErrFrameTruncated = errors.New("frame truncated")
)

// WakeSequence puts a serial node into protocol mode.
var WakeSequence = func() []byte {
	b := make([]byte, 32)
	for i := range b {
		b[i] = Start2
	}
	return b
}()

// FrameWriter writes framed payloads. Safe for concurrent use.
type FrameWriter struct {
	w  io.Writer
	mu sync.Mutex

	logger log.Logger
	connID string
}

// NewFrameWriter creates a frame writer on w.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: w, logger: log.NoopLogger{}}
}

// SetLogger configures capture for this writer. Pass nil to disable.
func (fw *FrameWriter) SetLogger(logger log.Logger, connID string) {
	fw.logger = log.OrNoop(logger)
	fw.connID = connID
}

// WriteFrame writes one frame as a single Write call.
func (fw *FrameWriter) WriteFrame(payload []byte) error {
	if len(payload) > MaxPayloadSize {
		return fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, len(payload), MaxPayloadSize)
	}

	buf := make([]byte, HeaderSize+len(payload))
	buf[0], buf[1] = Start1, Start2
	binary.BigEndian.PutUint16(buf[2:4], uint16(len(payload)))
	copy(buf[HeaderSize:], payload)

	fw.mu.Lock()
	defer fw.mu.Unlock()
	if _, err := fw.w.Write(buf); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	fw.logger.Log(frameEvent(fw.connID, log.DirectionOut, payload))
	return nil
}

// Wake writes the wake sequence.
func (fw *FrameWriter) Wake() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if _, err := fw.w.Write(WakeSequence); err != nil {
		return fmt.Errorf("write wake sequence: %w", err)
	}
	return nil
}

// FrameReader extracts frames from a byte stream.
// Not safe for concurrent use; one goroutine owns the read side.
type FrameReader struct {
	r *bufio.Reader

	line    []byte
	onDebug func(line string)

	logger log.Logger
	connID string
}

// NewFrameReader creates a frame reader on r.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: bufio.NewReader(r), logger: log.NoopLogger{}}
}

// SetLogger configures capture for this reader. Pass nil to disable.
func (fr *FrameReader) SetLogger(logger log.Logger, connID string) {
	fr.logger = log.OrNoop(logger)
	fr.connID = connID
}

// OnDebugLine registers a callback for console lines found between frames.
func (fr *FrameReader) OnDebugLine(fn func(line string)) {
	fr.onDebug = fn
}

// ReadFrame returns the next frame payload. A header announcing more than
// MaxPayloadSize bytes is treated as noise and scanning resumes after the
// marker.
func (fr *FrameReader) ReadFrame() ([]byte, error) {
	for {
		b, err := fr.r.ReadByte()
		if err != nil {
			return nil, err
		}
		if b != Start1 {
			fr.consoleByte(b)
			continue
		}

		b, err = fr.r.ReadByte()
		if err != nil {
			return nil, truncated(err)
		}
		if b != Start2 {
			fr.consoleByte(Start1)
			_ = fr.r.UnreadByte()
			continue
		}

		var lenBuf [2]byte
		if _, err := io.ReadFull(fr.r, lenBuf[:]); err != nil {
			return nil, truncated(err)
		}
		n := binary.BigEndian.Uint16(lenBuf[:])
		if n > MaxPayloadSize {
			fr.logger.Log(log.Event{
				Timestamp:    time.Now(),
				ConnectionID: fr.connID,
				Direction:    log.DirectionIn,
				Layer:        log.LayerTransport,
				Category:     log.CategoryError,
				Error: &log.ErrorEventData{
					Layer:   log.LayerTransport,
					Message: fmt.Sprintf("frame length %d exceeds %d", n, MaxPayloadSize),
					Context: "resync",
				},
			})
			continue
		}

		payload := make([]byte, n)
		if _, err := io.ReadFull(fr.r, payload); err != nil {
			return nil, truncated(err)
		}
		fr.logger.Log(frameEvent(fr.connID, log.DirectionIn, payload))
		return payload, nil
	}
}

func (fr *FrameReader) consoleByte(b byte) {
	if b == '\n' {
		fr.emitLine()
		return
	}
	fr.line = append(fr.line, b)
	if len(fr.line) >= maxDebugLine {
		fr.emitLine()
	}
}

func (fr *FrameReader) emitLine() {
	line := strings.TrimRight(string(fr.line), "\r")
	fr.line = fr.line[:0]
	if line == "" {
		return
	}
	fr.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: fr.connID,
		Direction:    log.DirectionIn,
		Layer:        log.LayerTransport,
		Category:     log.CategoryDebug,
		Debug:        &log.DebugEvent{Line: line},
	})
	if fr.onDebug != nil {
		fr.onDebug(line)
	}
}

func truncated(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrFrameTruncated
	}
	return err
}

func frameEvent(connID string, dir log.Direction, payload []byte) log.Event {
	return log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    dir,
		Layer:        log.LayerTransport,
		Category:     log.CategoryMessage,
		Frame: &log.FrameEvent{
			Size: HeaderSize + len(payload),
			Data: append([]byte(nil), payload...),
		},
	}
}

// Framer combines frame reading and writing over one link.
type Framer struct {
	*FrameReader
	*FrameWriter
}

// NewFramer creates a framer for rw.
func NewFramer(rw io.ReadWriter) *Framer {
	return &Framer{
		FrameReader: NewFrameReader(rw),
		FrameWriter: NewFrameWriter(rw),
	}
}

// SetLogger configures capture for both directions.
func (f *Framer) SetLogger(logger log.Logger, connID string) {
	f.FrameReader.SetLogger(logger, connID)
	f.FrameWriter.SetLogger(logger, connID)
}
