package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/snowball-labs/teleop/internal/config"
	"github.com/snowball-labs/teleop/internal/rtc"
	"github.com/snowball-labs/teleop/internal/session"
	"github.com/snowball-labs/teleop/internal/signaling"
	"github.com/snowball-labs/teleop/internal/util"
)

var version = "dev"

// Flags shared by the drive and vehicle commands.
var (
	flagURL   string
	flagRoom  string
	flagLabel string
	flagMedia bool
	flagDebug bool
)

var rootCmd = &cobra.Command{
	Use:     "teleop",
	Short:   "Low-latency P2P vehicle teleoperation over WebRTC",
	Long: `Teleop links a pilot to a remote vehicle over a direct WebRTC
connection. Control frames travel on a data channel; an optional
audio/video feed rides the same connection. A lightweight relay is
used only for rendezvous and SDP/ICE exchange.`,
	Version: version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if flagDebug {
			util.EnableDebug()
		}
		pterm.Info.Println(fmt.Sprintf("Teleop — v%s", version))
		pterm.Println()
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagURL, "url", "http://localhost:8080", "relay base URL")
	pf.StringVar(&flagRoom, "room", "default", "rendezvous room id")
	pf.StringVar(&flagLabel, "label", "control", "control data channel label")
	pf.BoolVar(&flagMedia, "media", false, "publish local audio/video tracks")
	pf.BoolVar(&flagDebug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(driveCmd, vehicleCmd)
}

// Execute runs the CLI under a Ctrl+C-cancelled context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}
}

// clientConfig collects the shared flags.
func clientConfig() config.Client {
	return config.Client{
		BaseURL:      flagURL,
		Room:         flagRoom,
		ChannelLabel: flagLabel,
		Media:        flagMedia,
	}
}

// openSession builds the peer connection, binds a session to the relay link,
// and starts signaling. The caller owns the returned session.
func openSession(ctx context.Context, cfg config.Client, opts session.Options) (*session.Session, error) {
	peer, err := rtc.NewPeer()
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}
	if cfg.Media {
		opts.Media = rtc.NewMedia(peer)
	}

	client, err := signaling.NewClient(cfg.BaseURL, cfg.Room)
	if err != nil {
		peer.Close()
		return nil, err
	}

	sess := session.New(ctx, peer, client, opts)
	if err := client.Start(ctx, sess); err != nil {
		sess.Close()
		return nil, err
	}
	return sess, nil
}
