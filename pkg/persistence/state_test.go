package persistence

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/meshnode/meshnode-go/pkg/session"
)

func TestSessionStore(t *testing.T) {
	t.Run("Path", func(t *testing.T) {
		store := NewSessionStore("/var/lib/meshnode")
		if got, want := store.Path("!1234abcd"), "/var/lib/meshnode/session-1234abcd.json"; got != want {
			t.Errorf("Path() = %q, want %q", got, want)
		}
	})

	t.Run("LoadNonExistent", func(t *testing.T) {
		store := NewSessionStore(t.TempDir())

		got, err := store.Load("!1234abcd")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if got != nil {
			t.Errorf("Load() = %v, want nil for non-existent file", got)
		}
	})

	t.Run("SaveAndRestore", func(t *testing.T) {
		store := NewSessionStore(filepath.Join(t.TempDir(), "state"))

		s := session.New()
		s.SetCurrentChannel("Ops")
		at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		s.Record(session.ReceivedMessage{Timestamp: at, SenderID: "!deadbeef", ChannelName: "Ops", Text: "hi"})
		s.Record(session.ReceivedMessage{Timestamp: at.Add(time.Minute), SenderID: "!deadbeef", ChannelName: "Ops", Text: "there"})

		if err := store.Save(Capture("!1234abcd", s)); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		got, err := store.Load("!1234abcd")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if got.Version != StateVersion {
			t.Errorf("Version = %d, want %d", got.Version, StateVersion)
		}
		if got.SavedAt.IsZero() {
			t.Error("SavedAt not set")
		}

		restored := session.New()
		got.Restore(restored)
		if restored.CurrentChannel() != "Ops" {
			t.Errorf("CurrentChannel() = %q, want Ops", restored.CurrentChannel())
		}
		h := restored.History().Snapshot()
		if len(h) != 2 || h[0].Text != "hi" || h[1].Text != "there" {
			t.Errorf("History = %+v", h)
		}
		if !h[0].Timestamp.Equal(at) {
			t.Errorf("Timestamp = %v, want %v", h[0].Timestamp, at)
		}
	})

	t.Run("SaveRequiresNodeID", func(t *testing.T) {
		store := NewSessionStore(t.TempDir())
		if err := store.Save(&SessionState{}); err == nil {
			t.Error("Save() without node id succeeded")
		}
	})

	t.Run("LoadCorrupt", func(t *testing.T) {
		dir := t.TempDir()
		store := NewSessionStore(dir)
		if err := os.WriteFile(store.Path("!1"), []byte("{not json"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := store.Load("!1"); err == nil {
			t.Error("Load() of corrupt file succeeded")
		}
	})

	t.Run("LoadFutureVersion", func(t *testing.T) {
		dir := t.TempDir()
		store := NewSessionStore(dir)
		if err := os.WriteFile(store.Path("!1"), []byte(`{"version": 99}`), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := store.Load("!1"); err == nil {
			t.Error("Load() of future version succeeded")
		}
	})

	t.Run("Clear", func(t *testing.T) {
		store := NewSessionStore(t.TempDir())
		if err := store.Save(&SessionState{NodeID: "!1"}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		if err := store.Clear("!1"); err != nil {
			t.Fatalf("Clear() error = %v", err)
		}
		if err := store.Clear("!1"); err != nil {
			t.Errorf("Clear() of missing file error = %v", err)
		}
		got, _ := store.Load("!1")
		if got != nil {
			t.Error("state still present after Clear()")
		}
	})
}
