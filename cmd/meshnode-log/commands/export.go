package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/meshnode/meshnode-go/pkg/log"
	"github.com/meshnode/meshnode-go/pkg/wire"
)

// RunExport writes the events of path in format to output, or to stdout
// when output is empty.
func RunExport(path, format, output string, filter log.Filter) error {
	var write func(io.Writer) error
	switch format {
	case "jsonl":
		write = func(w io.Writer) error { return exportJSONL(path, filter, w) }
	case "csv":
		write = func(w io.Writer) error { return exportCSV(path, filter, w) }
	case "yaml":
		write = func(w io.Writer) error { return exportYAML(path, filter, w) }
	default:
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv, yaml)", format)
	}

	if output == "" {
		return write(os.Stdout)
	}
	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func exportJSONL(path string, filter log.Filter, w io.Writer) error {
	encoder := json.NewEncoder(w)
	return each(path, filter, func(e log.Event) error {
		if err := encoder.Encode(e); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
		return nil
	})
}

// yamlEvent is the flattened form of an event in YAML exports.
type yamlEvent struct {
	Timestamp    string `yaml:"timestamp"`
	ConnectionID string `yaml:"connection_id,omitempty"`
	Direction    string `yaml:"direction"`
	Layer        string `yaml:"layer"`
	Category     string `yaml:"category"`
	Type         string `yaml:"type"`
	Node         string `yaml:"node,omitempty"`
	Link         string `yaml:"link,omitempty"`
	From         string `yaml:"from,omitempty"`
	To           string `yaml:"to,omitempty"`
	Port         string `yaml:"port,omitempty"`
	Admin        string `yaml:"admin,omitempty"`
	Text         string `yaml:"text,omitempty"`
	Size         int    `yaml:"size,omitempty"`
	State        string `yaml:"state,omitempty"`
	Detail       string `yaml:"detail,omitempty"`
}

func toYAMLEvent(e log.Event) yamlEvent {
	out := yamlEvent{
		Timestamp:    e.Timestamp.UTC().Format(timeFormat),
		ConnectionID: e.ConnectionID,
		Direction:    e.Direction.String(),
		Layer:        e.Layer.String(),
		Category:     e.Category.String(),
		Type:         typeLabel(e),
		Link:         e.Link,
	}
	if e.NodeNum != 0 {
		out.Node = wire.NodeID(e.NodeNum)
	}
	switch {
	case e.Frame != nil:
		out.Size = e.Frame.Size
	case e.Message != nil && e.Message.Variant == "packet":
		m := e.Message
		out.From, out.To = wire.NodeID(m.From), wire.NodeID(m.To)
		if m.PortNum != nil {
			out.Port = m.PortNum.String()
		}
		out.Admin, out.Text = m.Admin, m.Text
	case e.StateChange != nil:
		out.State = e.StateChange.NewState
		out.Detail = e.StateChange.Reason
	case e.Debug != nil:
		out.Detail = e.Debug.Line
	case e.Error != nil:
		out.Detail = e.Error.Message
	}
	return out
}

func exportYAML(path string, filter log.Filter, w io.Writer) error {
	var events []yamlEvent
	err := each(path, filter, func(e log.Event) error {
		events = append(events, toYAMLEvent(e))
		return nil
	})
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(map[string]any{"events": events}); err != nil {
		return fmt.Errorf("failed to encode events: %w", err)
	}
	return enc.Close()
}

func exportCSV(path string, filter log.Filter, w io.Writer) error {
	cw := csv.NewWriter(w)

	header := []string{"timestamp", "connection_id", "direction", "layer", "category", "node", "type", "packet_id", "text"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	err := each(path, filter, func(e log.Event) error {
		node, packetID, text := "", "", ""
		if e.NodeNum != 0 {
			node = wire.NodeID(e.NodeNum)
		}
		if e.Message != nil && e.Message.PacketID != 0 {
			packetID = strconv.FormatUint(uint64(e.Message.PacketID), 10)
			text = e.Message.Text
		}
		row := []string{
			e.Timestamp.UTC().Format(timeFormat),
			e.ConnectionID,
			e.Direction.String(),
			e.Layer.String(),
			e.Category.String(),
			node,
			typeLabel(e),
			packetID,
			text,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
		return nil
	})
	cw.Flush()
	if err != nil {
		return err
	}
	return cw.Error()
}
