package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/meshnode/meshnode-go/pkg/node"
	"github.com/meshnode/meshnode-go/pkg/wire"
)

var (
	// ErrChannelNotFound is returned when a name or index matches no slot.
	ErrChannelNotFound = errors.New("channel not found")

	// ErrNoFreeSlot is returned when every slot is in use.
	ErrNoFreeSlot = errors.New("no free channel slot")
)

// ChannelWriteError reports a failed channel write. Partial is set when an
// earlier write of the same change already altered the node.
type ChannelWriteError struct {
	Index   int
	Partial bool
	Err     error
}

func (e *ChannelWriteError) Error() string {
	if e.Partial {
		return fmt.Sprintf("channel %d partially configured: %v", e.Index, e.Err)
	}
	return fmt.Sprintf("channel %d: %v", e.Index, e.Err)
}

func (e *ChannelWriteError) Unwrap() error { return e.Err }

// Device is the part of the node the manager needs.
type Device interface {
	Channel(ctx context.Context, index int) (*wire.Channel, error)
	Channels(ctx context.Context) ([]*wire.Channel, error)
	WriteSection(ctx context.Context, v node.SectionValue) error
}

// Manager resolves and edits channel slots. It keeps no state between
// calls; every operation reads the slots it needs from the node.
type Manager struct {
	dev    Device
	logger *slog.Logger
}

// NewManager returns a manager for dev. A nil logger discards output.
func NewManager(dev Device, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{dev: dev, logger: logger}
}

// List returns every slot in index order.
func (m *Manager) List(ctx context.Context) ([]Slot, error) {
	chans, err := m.dev.Channels(ctx)
	if err != nil {
		return nil, err
	}
	slots := make([]Slot, len(chans))
	for i, ch := range chans {
		slots[i] = SlotFromWire(ch)
	}
	return slots, nil
}

// ResolveIndex maps ref to a slot index. A decimal index in range is used
// as is; otherwise ref is matched against the display names of enabled
// slots and the lowest index wins.
func (m *Manager) ResolveIndex(ctx context.Context, ref string) (int, error) {
	ref = strings.TrimSpace(ref)
	if i, err := strconv.Atoi(ref); err == nil {
		if i < 0 || i >= MaxSlots {
			return 0, fmt.Errorf("%w: index %d out of range", ErrChannelNotFound, i)
		}
		return i, nil
	}
	slots, err := m.List(ctx)
	if err != nil {
		return 0, err
	}
	if i, ok := findByName(slots, ref, true); ok {
		return i, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrChannelNotFound, ref)
}

// Upsert configures the channel called name, creating it in the first free
// slot when no enabled slot has that name. Creation and the settings write
// are separate requests; if the second fails after the first succeeded the
// error is a ChannelWriteError with Partial set.
func (m *Manager) Upsert(ctx context.Context, name string, pass Passphrase, uplink, downlink bool) (Slot, error) {
	if name == "" {
		return Slot{}, errors.New("channel name is required")
	}
	slots, err := m.List(ctx)
	if err != nil {
		return Slot{}, err
	}

	idx, found := findByName(slots, name, false)
	created := false
	if !found {
		idx, found = firstFree(slots)
		if !found {
			return Slot{}, ErrNoFreeSlot
		}
		ch := apply(&wire.Channel{Index: int32(idx)}, Spec{Name: name})
		if err := m.write(ctx, ch); err != nil {
			return Slot{}, &ChannelWriteError{Index: idx, Err: err}
		}
		created = true
		m.logger.Debug("channel slot allocated", "index", idx, "name", name)
	}

	current, err := m.dev.Channel(ctx, idx)
	if err != nil {
		return Slot{}, &ChannelWriteError{Index: idx, Partial: created, Err: err}
	}
	ch := apply(current, Spec{Name: name, Passphrase: pass, Uplink: &uplink, Downlink: &downlink})
	if err := m.write(ctx, ch); err != nil {
		return Slot{}, &ChannelWriteError{Index: idx, Partial: created, Err: err}
	}
	m.logger.Info("channel configured", "index", idx, "name", name, "psk", pass)
	return SlotFromWire(ch), nil
}

// Configure applies spec to the slot at index with a single write. It
// reports whether a write was needed.
func (m *Manager) Configure(ctx context.Context, index int, spec Spec) (bool, error) {
	if index < 0 || index >= MaxSlots {
		return false, fmt.Errorf("%w: index %d out of range", ErrChannelNotFound, index)
	}
	current, err := m.dev.Channel(ctx, index)
	if err != nil {
		return false, err
	}
	if SlotFromWire(current).Satisfied(spec) {
		return false, nil
	}
	if err := m.write(ctx, apply(current, spec)); err != nil {
		return false, &ChannelWriteError{Index: index, Err: err}
	}
	return true, nil
}

func (m *Manager) write(ctx context.Context, ch *wire.Channel) error {
	return m.dev.WriteSection(ctx, node.SectionValue{Section: node.SectionChannel, Channel: ch})
}

// findByName returns the lowest enabled slot whose name matches. With
// display set, unnamed slots match "Unnamed channel N".
func findByName(slots []Slot, name string, display bool) (int, bool) {
	for _, s := range slots {
		if !s.Enabled() {
			continue
		}
		n := s.Name
		if display {
			n = s.DisplayName()
		}
		if n == name {
			return s.Index, true
		}
	}
	return 0, false
}

func firstFree(slots []Slot) (int, bool) {
	for _, s := range slots {
		if !s.Enabled() {
			return s.Index, true
		}
	}
	return 0, false
}
