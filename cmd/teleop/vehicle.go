package main

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/spf13/cobra"

	"github.com/snowball-labs/teleop/internal/drive"
	"github.com/snowball-labs/teleop/internal/session"
	"github.com/snowball-labs/teleop/internal/util"
)

var vehicleCmd = &cobra.Command{
	Use:   "vehicle",
	Short: "Vehicle side: apply incoming control frames to the actuators",
	Long: `Vehicle joins the rendezvous room, waits for the pilot's offer, and
applies every control frame arriving on the data channel to the throttle
and steering actuators. Each applied frame is acknowledged with a single
byte so the pilot can measure round-trip latency.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runVehicle(cmd.Context())
	},
}

func runVehicle(ctx context.Context) error {
	cfg := clientConfig()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	controller := drive.NewController(drive.LogActuator{})
	defer controller.Stop()

	// Frames can arrive the moment signaling starts, before openSession
	// returns, so the ack path reads the session through a pointer that is
	// published after it exists.
	var sessRef atomic.Pointer[session.Session]

	sess, err := openSession(ctx, cfg, session.Options{
		ChannelLabel: cfg.ChannelLabel,
		OnError: func(err error) {
			if errors.Is(err, session.ErrRoomFull) {
				cancel()
			}
		},
		OnFrame: func(data []byte) {
			ack, err := controller.HandleFrame(data)
			if err != nil {
				util.LogWarning("bad control frame: %v", err)
				return
			}
			if ack == nil {
				return // stale frame, dropped
			}
			if s := sessRef.Load(); s != nil {
				s.Send(ack)
			}
		},
	})
	if err != nil {
		return err
	}
	sessRef.Store(sess)
	defer sess.Close()

	util.StartStatsReporter(ctx)
	util.LogInfo("vehicle ready in room %q", cfg.Room)

	select {
	case <-ctx.Done():
	case <-sess.Done():
	}
	return nil
}
