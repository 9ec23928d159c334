package interactive

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/meshnode/meshnode-go/pkg/channel"
	"github.com/meshnode/meshnode-go/pkg/reconcile"
)

// Commands lists the command names, used for tab completion.
var Commands = []string{
	"send", "list", "set_channel", "add_channel", "set_region",
	"list_regions", "history", "help", "exit", "quit",
}

const (
	usageSend       = "send <message>"
	usageSetChannel = "set_channel <channel_name>"
	usageAddChannel = "add_channel <name> <psk> <uplink_on|off> <downlink_on|off>"
	usageSetRegion  = "set_region <region_code>"
)

// usageError reports a malformed command line.
type usageError struct{ usage string }

func (e *usageError) Error() string { return "Usage: " + e.usage }
func (e *usageError) Unwrap() error { return ErrInvalidInput }

func usage(u string) error { return &usageError{usage: u} }

// dispatch runs one command line. It returns errExit for exit and quit.
// Every other error has already been reported on the console.
func (c *Client) dispatch(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	args := strings.Fields(rest)

	var err error
	switch strings.ToLower(cmd) {
	case "send":
		err = c.cmdSend(ctx, rest)
	case "list":
		err = c.cmdList(ctx)
	case "set_channel":
		err = c.cmdSetChannel(rest)
	case "add_channel":
		err = c.cmdAddChannel(ctx, args)
	case "set_region":
		err = c.cmdSetRegion(ctx, args)
	case "list_regions":
		c.cmdListRegions()
	case "history":
		c.cmdHistory()
	case "help":
		c.printHelp()
	case "exit", "quit":
		return errExit
	default:
		c.con.Printf("Unknown command: %s (type 'help' for commands)\n", cmd)
		return nil
	}

	var (
		ue  *usageError
		rep *reported
	)
	switch {
	case err == nil, errors.As(err, &rep):
	case errors.As(err, &ue):
		c.con.Println(ue.Error())
	default:
		c.con.Printf("Error: %v\n", err)
	}
	return err
}

func (c *Client) cmdSend(ctx context.Context, text string) error {
	if text == "" {
		return usage(usageSend)
	}
	ref := c.sess.CurrentChannel()
	idx, err := c.channels.ResolveIndex(ctx, ref)
	if errors.Is(err, channel.ErrChannelNotFound) {
		c.con.Printf("Channel '%s' not found\n", ref)
		return &reported{err}
	}
	if err != nil {
		return err
	}
	if err := c.node.SendText(ctx, text, idx); err != nil {
		return err
	}
	c.con.Printf("Message sent on channel %s: %s\n", ref, text)
	return nil
}

func (c *Client) cmdList(ctx context.Context) error {
	slots, err := c.channels.List(ctx)
	if err != nil {
		return err
	}
	c.cacheNames(slots)
	c.con.Println("Available channels:")
	for _, s := range slots {
		if s.Enabled() {
			c.con.Printf("  Index %d: %s\n", s.Index, s.DisplayName())
		}
	}
	return nil
}

// cmdSetChannel only records the reference; send resolves it.
func (c *Client) cmdSetChannel(ref string) error {
	if ref == "" {
		return usage(usageSetChannel)
	}
	c.sess.SetCurrentChannel(ref)
	c.con.Printf("Default channel set to '%s'\n", ref)
	return nil
}

func (c *Client) cmdAddChannel(ctx context.Context, args []string) error {
	if len(args) != 4 {
		return usage(usageAddChannel)
	}
	uplink, ok1 := parseSwitch(args[2])
	downlink, ok2 := parseSwitch(args[3])
	if !ok1 || !ok2 {
		return usage(usageAddChannel)
	}
	pass, err := channel.ResolvePassphrase(args[1])
	if err != nil {
		return err
	}

	name := args[0]
	c.con.Printf("Configuring channel '%s'...\n", name)
	slot, err := c.channels.Upsert(ctx, name, pass, uplink, downlink)
	var cwe *channel.ChannelWriteError
	if errors.As(err, &cwe) && cwe.Partial {
		c.con.Printf("Channel '%s' was created at index %d but its settings were not applied: %v\n", name, cwe.Index, cwe.Err)
		return &reported{err}
	}
	if errors.Is(err, channel.ErrNoFreeSlot) {
		c.con.Println("No free channel slot available.")
		return &reported{err}
	}
	if err != nil {
		return err
	}

	if slots, lerr := c.channels.List(ctx); lerr == nil {
		c.cacheNames(slots)
	}
	c.con.Printf("Successfully configured channel '%s' at index %d.\n", slot.Name, slot.Index)
	c.con.Printf("  PSK: %s\n", pass.Masked())
	c.con.Printf("  Uplink: %s\n", enabled(slot.Uplink))
	c.con.Printf("  Downlink: %s\n", enabled(slot.Downlink))
	return nil
}

func (c *Client) cmdSetRegion(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage(usageSetRegion)
	}
	code, err := reconcile.NormalizeRegion(args[0])
	if err != nil {
		c.con.Printf("Invalid region code '%s'. Use 'list_regions' to see available codes.\n", args[0])
		return &reported{err}
	}
	c.con.Printf("Setting region to %s...\n", code)
	res, err := c.rec.SetRegion(ctx, args[0])
	if err != nil {
		return err
	}
	if res.Outcome == reconcile.OutcomeSkipped {
		c.con.Printf("Region is already %s.\n", code)
		return nil
	}
	c.con.Printf("Region successfully set to %s. The device may reboot.\n", code)
	return nil
}

func (c *Client) cmdListRegions() {
	c.con.Println("Available region codes:")
	for _, r := range reconcile.Regions() {
		c.con.Printf("  %s\n", r)
	}
	aliases := reconcile.Aliases()
	names := make([]string, 0, len(aliases))
	for a := range aliases {
		names = append(names, a)
	}
	slices.Sort(names)
	c.con.Println("Aliases:")
	for _, a := range names {
		c.con.Printf("  %s -> %s\n", a, aliases[a])
	}
}

func (c *Client) cmdHistory() {
	msgs := c.sess.History().Snapshot()
	if len(msgs) == 0 {
		c.con.Println("No messages received yet.")
		return
	}
	for _, m := range msgs {
		c.con.Println(m.HistoryLine())
	}
}

func (c *Client) banner(ctx context.Context) {
	info := c.node.Info()
	c.con.Printf("Connected to %s\n", info.Link)
	if err := c.cmdList(ctx); err != nil {
		c.con.Printf("Could not list channels: %v\n", err)
	}
	c.printHelp()
	c.con.Printf("Default channel is currently '%s'\n", c.sess.CurrentChannel())
}

func (c *Client) printHelp() {
	c.con.Println("Meshtastic Client Commands:")
	c.con.Println("  send <message>                - Send a message on the current channel")
	c.con.Println("  list                          - List available channels")
	c.con.Println("  set_channel <channel_name>    - Set the default channel for sending")
	c.con.Println("  add_channel <name> <psk> <uplink_on|off> <downlink_on|off>")
	c.con.Println("                                - Add or update a channel ('random' generates a key)")
	c.con.Println("  set_region <region_code>      - Set the LoRa region")
	c.con.Println("  list_regions                  - List region codes")
	c.con.Println("  history                       - Show received messages")
	c.con.Println("  help                          - Show this help")
	c.con.Println("  exit | quit                   - Exit the client")
}

// parseSwitch accepts on/off and the uplink_on/downlink_off forms.
func parseSwitch(s string) (bool, bool) {
	s = strings.ToLower(s)
	if i := strings.LastIndexByte(s, '_'); i >= 0 {
		s = s[i+1:]
	}
	switch s {
	case "on", "true", "yes", "1", "enabled":
		return true, true
	case "off", "false", "no", "0", "disabled":
		return false, true
	}
	return false, false
}

func enabled(b bool) string {
	if b {
		return "Enabled"
	}
	return "Disabled"
}

// reported marks an error whose message the command already printed.
type reported struct{ err error }

func (e *reported) Error() string { return e.err.Error() }
func (e *reported) Unwrap() error { return e.err }
