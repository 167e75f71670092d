package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/snowball-labs/teleop/internal/input"
	"github.com/snowball-labs/teleop/internal/session"
	"github.com/snowball-labs/teleop/internal/util"
)

var (
	flagRate           int
	flagDeadzone       float64
	flagThrottleAxis   int
	flagSteeringAxis   int
	flagInvertThrottle bool
	flagInvertSteering bool
)

var driveCmd = &cobra.Command{
	Use:   "drive",
	Short: "Pilot side: stream control frames to the vehicle",
	Long: `Drive joins the rendezvous room as the pilot, negotiates a direct
WebRTC connection to the vehicle, and streams input samples as control
frames at a fixed rate. Frames are dropped while the channel is down and
the link heals itself; the vehicle simply sees the freshest state.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDrive(cmd.Context())
	},
}

func init() {
	f := driveCmd.Flags()
	f.IntVar(&flagRate, "rate", input.DefaultPollRate, "input samples per second")
	f.Float64Var(&flagDeadzone, "deadzone", 0.05, "axis deadzone in [0,1)")
	f.IntVar(&flagThrottleAxis, "throttle-axis", 0, "input axis index for throttle")
	f.IntVar(&flagSteeringAxis, "steering-axis", 1, "input axis index for steering")
	f.BoolVar(&flagInvertThrottle, "invert-throttle", false, "invert the throttle axis")
	f.BoolVar(&flagInvertSteering, "invert-steering", false, "invert the steering axis")
}

func runDrive(ctx context.Context) error {
	cfg := clientConfig()
	cfg.PollRate = flagRate
	cfg.Deadzone = flagDeadzone
	cfg.ThrottleAxis = flagThrottleAxis
	cfg.SteeringAxis = flagSteeringAxis
	cfg.InvertThrottle = flagInvertThrottle
	cfg.InvertSteering = flagInvertSteering

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sess, err := openSession(ctx, cfg, session.Options{
		ChannelLabel: cfg.ChannelLabel,
		OnError: func(err error) {
			if errors.Is(err, session.ErrRoomFull) {
				cancel()
			}
		},
	})
	if err != nil {
		return err
	}
	defer sess.Close()

	util.StartStatsReporter(ctx)
	util.LogInfo("driving room %q at %d Hz", cfg.Room, cfg.PollRate)

	// TODO: replace the synthetic sweep with a gamepad-backed Source once
	// the HID sampling lands.
	poller := input.NewPoller(&input.SyntheticSource{}, sess.Send, input.Options{
		PollRate:       cfg.PollRate,
		Deadzone:       cfg.Deadzone,
		ThrottleAxis:   cfg.ThrottleAxis,
		SteeringAxis:   cfg.SteeringAxis,
		InvertThrottle: cfg.InvertThrottle,
		InvertSteering: cfg.InvertSteering,
	})

	if err := poller.Run(ctx); !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
