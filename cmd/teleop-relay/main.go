// Teleop-relay — rendezvous relay entry point.
//
// The relay pairs exactly two peers per room over WebSocket, assigns
// initiator/polite roles from join order, and forwards SDP and ICE messages
// between them. It carries no media and no control traffic; once the WebRTC
// link is up the peers talk directly.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/pterm/pterm"

	"github.com/snowball-labs/teleop/internal/config"
	"github.com/snowball-labs/teleop/internal/relay"
	"github.com/snowball-labs/teleop/internal/util"
)

var version = "dev"

func main() {
	// Root context — cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	addr := flag.String("addr", ":8080", "listen address")
	debugMode := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *debugMode {
		util.EnableDebug()
	}

	pterm.Info.Println(fmt.Sprintf("Teleop relay — v%s", version))
	pterm.Println()

	cfg := config.Relay{Addr: *addr}
	if err := run(ctx, cfg); err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Relay) error {
	coord := relay.NewCoordinator()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", relay.ServeWS(coord))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	srv := &http.Server{Addr: cfg.Addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		util.LogInfo("relay listening on %s", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("relay server: %w", err)
	case <-ctx.Done():
	}

	util.LogInfo("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
