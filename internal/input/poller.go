package input

import (
	"context"
	"fmt"
	"time"

	"github.com/snowball-labs/teleop/internal/control"
	"github.com/snowball-labs/teleop/internal/util"
)

// DefaultPollRate is the sample rate used when the config leaves it unset.
const DefaultPollRate = 60

// Options configures axis mapping and the poll loop.
type Options struct {
	PollRate       int     // samples per second, DefaultPollRate if <= 0
	Deadzone       float64 // applied to both axes before encoding
	ThrottleAxis   int     // index into State.Axes, default 0
	SteeringAxis   int     // index into State.Axes, default 1
	InvertThrottle bool
	InvertSteering bool
}

// SendFunc delivers one encoded frame to the transport. It reports whether
// the frame was accepted; a false return is expected while the channel is
// still negotiating and is counted, not treated as an error.
type SendFunc func(frame []byte) bool

// Poller samples a Source at a fixed rate, applies deadzone and inversion,
// and pushes encoded control frames to a send function.
type Poller struct {
	src  Source
	send SendFunc
	opts Options
	seq  uint32
}

// NewPoller wires a source to a send function. Axis defaults are filled in
// here so Run can assume a valid config.
func NewPoller(src Source, send SendFunc, opts Options) *Poller {
	if opts.PollRate <= 0 {
		opts.PollRate = DefaultPollRate
	}
	if opts.SteeringAxis == 0 && opts.ThrottleAxis == 0 {
		opts.SteeringAxis = 1
	}
	return &Poller{src: src, send: send, opts: opts}
}

// Run polls until ctx is cancelled or the source fails. Send rejections are
// counted and retried on the next tick; a sampling error is terminal since
// it means the device went away.
func (p *Poller) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(p.opts.PollRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	start := time.Now()
	for {
		select {
		case <-ticker.C:
			state, err := p.src.Sample()
			if err != nil {
				return fmt.Errorf("input source: %w", err)
			}

			frame := p.frameFrom(state, uint32(time.Since(start).Milliseconds()))
			if p.send(control.Encode(frame)) {
				util.Stats.AddFrameSent()
			} else {
				util.Stats.AddFrameFailed()
			}

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// frameFrom maps one raw sample onto a control frame, advancing the
// sequence counter.
func (p *Poller) frameFrom(state State, timestampMS uint32) control.Frame {
	f := control.Frame{
		Seq:       p.seq,
		Timestamp: timestampMS,
		Throttle:  Deadzone(axisValue(state.Axes, p.opts.ThrottleAxis, p.opts.InvertThrottle), p.opts.Deadzone),
		Steering:  Deadzone(axisValue(state.Axes, p.opts.SteeringAxis, p.opts.InvertSteering), p.opts.Deadzone),
		Buttons:   state.Buttons,
	}
	p.seq++ // wraps mod 2^32 by uint32 arithmetic
	return f
}

// axisValue reads one axis, treating a missing index as centered.
func axisValue(axes []float64, idx int, invert bool) float64 {
	if idx < 0 || idx >= len(axes) {
		return 0
	}
	v := axes[idx]
	if invert {
		v = -v
	}
	return v
}
