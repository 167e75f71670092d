package util

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pterm/pterm"
)

// Stats is the process-wide link counter.
var Stats = &stats{}

type stats struct {
	FramesSent   atomic.Int64 // control frames accepted by the data channel
	FramesFailed atomic.Int64 // send attempts rejected (channel absent/not open)
	FramesRecv   atomic.Int64 // control frames received from the peer
	OffersSent   atomic.Int64 // SDP offers produced locally
	OffersRecv   atomic.Int64 // SDP offers received (including ignored ones)
	ICERestarts  atomic.Int64 // recoveries triggered by a failed/stuck transport
}

func (s *stats) AddFrameSent()   { s.FramesSent.Add(1) }
func (s *stats) AddFrameFailed() { s.FramesFailed.Add(1) }
func (s *stats) AddFrameRecv()   { s.FramesRecv.Add(1) }
func (s *stats) AddOfferSent()   { s.OffersSent.Add(1) }
func (s *stats) AddOfferRecv()   { s.OffersRecv.Add(1) }
func (s *stats) AddICERestart()  { s.ICERestarts.Add(1) }

// reportInterval is how often the background reporter logs a summary line.
const reportInterval = 10 * time.Second

// StartStatsReporter launches a goroutine that logs link statistics every
// 10 seconds while there is activity. It stops when ctx is cancelled.
func StartStatsReporter(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(reportInterval)
		defer ticker.Stop()

		var prevSent, prevFailed, prevRecv int64
		for {
			select {
			case <-ticker.C:
				sent := Stats.FramesSent.Load()
				failed := Stats.FramesFailed.Load()
				recv := Stats.FramesRecv.Load()

				dSent := sent - prevSent
				dFailed := failed - prevFailed
				dRecv := recv - prevRecv

				if dSent > 0 || dFailed > 0 || dRecv > 0 {
					pterm.DefaultLogger.Info(formatStats(dSent, dFailed, dRecv))
				}

				prevSent = sent
				prevFailed = failed
				prevRecv = recv

			case <-ctx.Done():
				return
			}
		}
	}()
}

// formatStats returns a one-line summary of frame activity over the last
// reporting window.
func formatStats(sent, failed, recv int64) string {
	secs := reportInterval.Seconds()
	return fmt.Sprintf("Frames: %5.1f/s out | %5.1f/s in | %d dropped | restarts: %d",
		float64(sent)/secs,
		float64(recv)/secs,
		failed,
		Stats.ICERestarts.Load(),
	)
}
