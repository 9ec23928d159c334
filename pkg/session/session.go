package session

import "sync"

const (
	// HistoryCapacity is the number of messages kept before the oldest is
	// evicted.
	HistoryCapacity = 200

	// DefaultChannel is the channel reference of a new session.
	DefaultChannel = "Unnamed channel 0"
)

// History is a bounded, ordered list of received messages. It is safe for
// concurrent use.
type History struct {
	mu    sync.Mutex
	items []ReceivedMessage
	start int
	size  int
}

// NewHistory returns a history holding at most capacity messages.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = HistoryCapacity
	}
	return &History{items: make([]ReceivedMessage, capacity)}
}

// Add appends m, evicting the oldest message when full.
func (h *History) Add(m ReceivedMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	i := (h.start + h.size) % len(h.items)
	h.items[i] = m
	if h.size < len(h.items) {
		h.size++
	} else {
		h.start = (h.start + 1) % len(h.items)
	}
}

// Len returns the number of stored messages.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.size
}

// Cap returns the capacity.
func (h *History) Cap() int { return len(h.items) }

// Snapshot returns the stored messages, oldest first.
func (h *History) Snapshot() []ReceivedMessage {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]ReceivedMessage, h.size)
	for i := range out {
		out[i] = h.items[(h.start+i)%len(h.items)]
	}
	return out
}

// Session is the state of one interactive session.
type Session struct {
	mu      sync.Mutex
	channel string
	history *History
}

// New returns a session on DefaultChannel with an empty history.
func New() *Session {
	return &Session{channel: DefaultChannel, history: NewHistory(HistoryCapacity)}
}

// CurrentChannel returns the channel reference text is sent to.
func (s *Session) CurrentChannel() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channel
}

// SetCurrentChannel changes the channel reference. It is not validated
// until the next send.
func (s *Session) SetCurrentChannel(ref string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channel = ref
}

// History returns the message history.
func (s *Session) History() *History { return s.history }

// Record adds m to the history.
func (s *Session) Record(m ReceivedMessage) { s.history.Add(m) }
