package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/meshnode/meshnode-go/pkg/channel"
	"github.com/meshnode/meshnode-go/pkg/config"
	"github.com/meshnode/meshnode-go/pkg/node"
)

// PositionBroadcastSecs is the broadcast interval written when position
// broadcast is switched on.
const PositionBroadcastSecs = 900

// Device is the part of the node the reconciler reads and writes.
type Device interface {
	channel.Device
	GetSection(ctx context.Context, s node.Section) (node.SectionValue, error)
}

// Reconciler applies desired configuration to one node.
type Reconciler struct {
	dev      Device
	channels *channel.Manager
	logger   *slog.Logger
}

// New returns a reconciler for dev. A nil logger discards output.
func New(dev Device, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Reconciler{
		dev:      dev,
		channels: channel.NewManager(dev, logger),
		logger:   logger,
	}
}

// Reconcile visits every populated section of d in order and returns one
// result per section. The error joins the failures; it is nil when every
// section was applied, skipped or invalid.
func (r *Reconciler) Reconcile(ctx context.Context, d config.Desired) ([]Result, error) {
	var results []Result
	add := func(res Result) {
		r.log(res)
		results = append(results, res)
	}

	if d.Owner != nil {
		add(r.identity(ctx, *d.Owner))
	}
	if d.Region != "" {
		add(r.region(ctx, d.Region))
	}
	if d.Role != "" {
		add(r.role(ctx, d.Role))
	}
	if d.PositionBroadcast != nil {
		add(r.position(ctx, *d.PositionBroadcast))
	}
	if d.Network != nil {
		add(r.network(ctx, *d.Network))
	}
	if d.Channel != nil {
		add(r.channel(ctx, *d.Channel))
	}
	return results, Err(results)
}

// SetRegion runs the region section alone. The error is the result's error
// for every outcome other than applied and skipped.
func (r *Reconciler) SetRegion(ctx context.Context, token string) (Result, error) {
	res := r.region(ctx, token)
	r.log(res)
	return res, res.Err
}

func (r *Reconciler) identity(ctx context.Context, want config.Owner) Result {
	s := node.SectionIdentity
	v, err := r.dev.GetSection(ctx, s)
	if err != nil {
		return unavailable(s, err)
	}
	cur := v.Owner
	if (want.Long == "" || want.Long == cur.LongName) && (want.Short == "" || want.Short == cur.ShortName) {
		return skipped(s, fmt.Sprintf("owner %q/%q", cur.LongName, cur.ShortName))
	}
	next := *cur
	if want.Long != "" {
		next.LongName = want.Long
	}
	if want.Short != "" {
		next.ShortName = want.Short
	}
	return r.write(ctx, node.SectionValue{Section: s, Owner: &next},
		fmt.Sprintf("owner %q/%q", next.LongName, next.ShortName))
}

func (r *Reconciler) region(ctx context.Context, token string) Result {
	s := node.SectionRegion
	code, err := NormalizeRegion(token)
	if err != nil {
		return invalid(s, err)
	}
	v, err := r.dev.GetSection(ctx, s)
	if err != nil {
		return unavailable(s, err)
	}
	if v.LoRa.Region == code {
		return skipped(s, "region "+code.String())
	}
	next := *v.LoRa
	next.Region = code
	return r.write(ctx, node.SectionValue{Section: s, LoRa: &next}, "region "+code.String())
}

func (r *Reconciler) role(ctx context.Context, name string) Result {
	s := node.SectionRole
	role, err := ParseRole(name)
	if err != nil {
		return invalid(s, err)
	}
	v, err := r.dev.GetSection(ctx, s)
	if err != nil {
		return unavailable(s, err)
	}
	if v.Device.Role == role {
		return skipped(s, "role "+role.String())
	}
	next := *v.Device
	next.Role = role
	return r.write(ctx, node.SectionValue{Section: s, Device: &next}, "role "+role.String())
}

func (r *Reconciler) position(ctx context.Context, on bool) Result {
	s := node.SectionPosition
	detail := "position broadcast off"
	if on {
		detail = "position broadcast on"
	}
	v, err := r.dev.GetSection(ctx, s)
	if err != nil {
		return unavailable(s, err)
	}
	if (v.Position.PositionBroadcastSecs > 0) == on {
		return skipped(s, detail)
	}
	next := *v.Position
	next.PositionBroadcastSecs = 0
	if on {
		next.PositionBroadcastSecs = PositionBroadcastSecs
	}
	return r.write(ctx, node.SectionValue{Section: s, Position: &next}, detail)
}

func (r *Reconciler) network(ctx context.Context, want config.Network) Result {
	s := node.SectionNetwork
	detail := fmt.Sprintf("wifi %q", want.SSID)
	v, err := r.dev.GetSection(ctx, s)
	if err != nil {
		return unavailable(s, err)
	}
	cur := v.Network
	if cur.WifiEnabled && cur.WifiSSID == want.SSID && cur.WifiPSK == want.PSK {
		return skipped(s, detail)
	}
	next := *cur
	next.WifiEnabled = true
	next.WifiSSID = want.SSID
	next.WifiPSK = want.PSK
	return r.write(ctx, node.SectionValue{Section: s, Network: &next}, detail)
}

func (r *Reconciler) channel(ctx context.Context, want config.Channel) Result {
	s := node.SectionChannel
	detail := fmt.Sprintf("channel %d %q psk %s", want.Index, want.Spec.Name, want.Spec.Passphrase)
	wrote, err := r.channels.Configure(ctx, want.Index, want.Spec)
	var cwe *channel.ChannelWriteError
	switch {
	case errors.As(err, &cwe):
		return Result{Section: s, Outcome: OutcomeFailed, Detail: detail, Err: &WriteFailed{Section: s, Cause: err}}
	case errors.Is(err, channel.ErrChannelNotFound):
		return invalid(s, err)
	case err != nil:
		return unavailable(s, err)
	case !wrote:
		return skipped(s, detail)
	}
	return Result{Section: s, Outcome: OutcomeApplied, Detail: detail}
}

func (r *Reconciler) write(ctx context.Context, v node.SectionValue, detail string) Result {
	if err := r.dev.WriteSection(ctx, v); err != nil {
		return Result{Section: v.Section, Outcome: OutcomeFailed, Detail: detail, Err: &WriteFailed{Section: v.Section, Cause: err}}
	}
	return Result{Section: v.Section, Outcome: OutcomeApplied, Detail: detail}
}

// log writes the single line that reports res.
func (r *Reconciler) log(res Result) {
	attrs := []any{"section", res.Section.String(), "detail", res.Detail}
	switch res.Outcome {
	case OutcomeApplied:
		r.logger.Info("section applied", attrs...)
	case OutcomeSkipped:
		r.logger.Info("section already set", attrs...)
	case OutcomeInvalid:
		r.logger.Warn("section skipped", append(attrs, "error", res.Err)...)
	default:
		r.logger.Error("section "+res.Outcome.String(), append(attrs, "error", res.Err)...)
	}
}

func skipped(s node.Section, detail string) Result {
	return Result{Section: s, Outcome: OutcomeSkipped, Detail: detail}
}

func invalid(s node.Section, err error) Result {
	return Result{Section: s, Outcome: OutcomeInvalid, Err: err}
}

func unavailable(s node.Section, err error) Result {
	return Result{Section: s, Outcome: OutcomeUnavailable, Err: fmt.Errorf("%w: %s: %w", ErrObservationUnavailable, s, err)}
}
