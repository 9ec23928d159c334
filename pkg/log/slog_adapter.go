package log

import (
	"context"
	"log/slog"

	"github.com/meshnode/meshnode-go/pkg/wire"
)

// SlogAdapter renders capture events as debug-level slog records.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter returns an adapter writing to logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event.
func (a *SlogAdapter) Log(event Event) {
	ctx := context.Background()
	if !a.logger.Enabled(ctx, slog.LevelDebug) {
		return
	}

	attrs := []slog.Attr{
		slog.String("conn", event.ConnectionID),
		slog.String("dir", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
	}
	if event.NodeNum != 0 {
		attrs = append(attrs, slog.String("node", wire.NodeID(event.NodeNum)))
	}

	switch {
	case event.Frame != nil:
		attrs = append(attrs, slog.Int("size", event.Frame.Size))
	case event.Message != nil:
		m := event.Message
		attrs = append(attrs, slog.String("variant", m.Variant))
		if m.PortNum != nil {
			attrs = append(attrs, slog.String("port", m.PortNum.String()))
		}
		if m.Admin != "" {
			attrs = append(attrs, slog.String("admin", m.Admin))
		}
		if m.RequestID != 0 {
			attrs = append(attrs, slog.Uint64("request_id", uint64(m.RequestID)))
		}
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("entity", event.StateChange.Entity.String()),
			slog.String("state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Debug != nil:
		attrs = append(attrs, slog.String("line", event.Debug.Line))
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error", event.Error.Message),
			slog.String("context", event.Error.Context),
		)
	}

	a.logger.LogAttrs(ctx, slog.LevelDebug, "capture "+event.Category.String(), attrs...)
}

var _ Logger = (*SlogAdapter)(nil)
