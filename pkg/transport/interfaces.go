package transport

// FrameReadWriter provides framed payload I/O.
// Implemented by Framer.
type FrameReadWriter interface {
	// ReadFrame reads the next frame payload.
	ReadFrame() ([]byte, error)

	// WriteFrame writes one frame.
	WriteFrame(payload []byte) error
}

// Compile-time interface satisfaction checks.
var (
	_ FrameReadWriter = (*Framer)(nil)
	_ Link            = (*connLink)(nil)
	_ Link            = (*serialLink)(nil)
	_ Waker           = (*serialLink)(nil)
)
