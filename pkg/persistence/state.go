package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/meshnode/meshnode-go/pkg/session"
)

// StateVersion is the current version of the state file format.
const StateVersion = 1

// SessionState is the persisted part of an interactive session.
type SessionState struct {
	// Version is the state file format version.
	Version int `json:"version"`

	// SavedAt is when the state was last saved.
	SavedAt time.Time `json:"saved_at"`

	// NodeID is the node the session was connected to, e.g. "!1234abcd".
	NodeID string `json:"node_id"`

	// CurrentChannel is the channel reference text was sent to.
	CurrentChannel string `json:"current_channel,omitempty"`

	// History holds received messages, oldest first.
	History []session.ReceivedMessage `json:"history,omitempty"`
}

// Capture copies the persistent state of s.
func Capture(nodeID string, s *session.Session) *SessionState {
	return &SessionState{
		NodeID:         nodeID,
		CurrentChannel: s.CurrentChannel(),
		History:        s.History().Snapshot(),
	}
}

// Restore applies state to s. Older messages beyond the history capacity
// are dropped.
func (st *SessionState) Restore(s *session.Session) {
	if st.CurrentChannel != "" {
		s.SetCurrentChannel(st.CurrentChannel)
	}
	for _, m := range st.History {
		s.Record(m)
	}
}

// SessionStore manages session state files in a directory.
type SessionStore struct {
	mu  sync.Mutex
	dir string
}

// NewSessionStore creates a store rooted at dir.
func NewSessionStore(dir string) *SessionStore {
	return &SessionStore{dir: dir}
}

// Path returns the state file for nodeID.
func (s *SessionStore) Path(nodeID string) string {
	name := strings.TrimPrefix(nodeID, "!")
	return filepath.Join(s.dir, "session-"+name+".json")
}

// Save persists state to its node's file.
func (s *SessionStore) Save(state *SessionState) error {
	if state.NodeID == "" {
		return fmt.Errorf("save session: node id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}

	state.Version = StateVersion
	if state.SavedAt.IsZero() {
		state.SavedAt = time.Now()
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	// Replace atomically.
	path := s.Path(state.NodeID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Load reads the state for nodeID.
// Returns nil, nil if the file doesn't exist (empty state).
func (s *SessionStore) Load(nodeID string) (*SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.Path(nodeID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	state := &SessionState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("load session %s: %w", nodeID, err)
	}
	if state.Version > StateVersion {
		return nil, fmt.Errorf("load session %s: unsupported version %d", nodeID, state.Version)
	}
	return state, nil
}

// Clear removes the state file for nodeID.
func (s *SessionStore) Clear(nodeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.Path(nodeID))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
