package session

import (
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/snowball-labs/teleop/internal/util"
)

// channelManager owns the control data channel. Creation and rebinding run
// on the session loop; send runs on the caller's goroutine (the input
// poller), so the active channel pointer sits behind its own lock.
type channelManager struct {
	session *Session

	mu sync.RWMutex
	dc DataChannel
}

// current returns the active channel, if any.
func (m *channelManager) current() DataChannel {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dc
}

// send transmits one frame if the channel is open. Any failure schedules
// an ensureChannel pass on the loop and reports false — never an error —
// so the producer can simply try again next tick.
func (m *channelManager) send(frame []byte) bool {
	dc := m.current()
	if dc != nil && dc.ReadyState() == webrtc.DataChannelStateOpen {
		if err := dc.Send(frame); err == nil {
			return true
		}
	}
	m.requestEnsure()
	return false
}

// requestEnsure schedules channel recovery without blocking the send path.
// A full queue means recovery is already pending.
func (m *channelManager) requestEnsure() {
	if m.session.closed.Load() {
		return
	}
	select {
	case m.session.events <- func() { m.session.ensureChannel() }:
	default:
	}
}

// shutdown closes the active channel during session teardown.
func (m *channelManager) shutdown() {
	m.mu.Lock()
	dc := m.dc
	m.dc = nil
	m.mu.Unlock()
	if dc != nil {
		dc.Close()
	}
}

// ---------------------------------------------------------------------------
// Loop-side lifecycle (methods on Session, running on the event loop)
// ---------------------------------------------------------------------------

// ensureChannel creates the control channel when this side owns it and the
// existing one is missing or terminally closed, then renegotiates. No-op
// everywhere else, so it is safe to call opportunistically.
func (s *Session) ensureChannel() {
	if s.closed.Load() || !s.initiator || s.opts.ChannelLabel == "" {
		return
	}
	if cur := s.channel.current(); cur != nil {
		switch cur.ReadyState() {
		case webrtc.DataChannelStateClosing, webrtc.DataChannelStateClosed:
			// fall through to recreate
		default:
			return
		}
	}

	dc, err := s.pc.CreateDataChannel(s.opts.ChannelLabel)
	if err != nil {
		s.reportError(fmt.Errorf("create data channel: %w", err))
		return
	}
	util.LogInfo("control channel %q created", dc.Label())
	s.bindChannel(dc)
	s.negotiate(false)
}

// adoptChannel binds a remotely created channel as the active one,
// replacing whatever was there (the peer may have recreated it).
func (s *Session) adoptChannel(dc DataChannel) {
	if s.closed.Load() {
		dc.Close()
		return
	}
	util.LogInfo("control channel %q adopted from peer", dc.Label())
	s.bindChannel(dc)
}

// bindChannel installs dc as the active channel and wires its callbacks.
func (s *Session) bindChannel(dc DataChannel) {
	s.channel.mu.Lock()
	s.channel.dc = dc
	s.channel.mu.Unlock()

	dc.OnOpen(func() {
		util.LogInfo("control channel %q open", dc.Label())
		if s.opts.OnChannelOpen != nil {
			s.opts.OnChannelOpen()
		}
	})
	dc.OnClose(func() {
		s.enqueue(func() { s.channelClosed(dc) })
	})
	dc.OnMessage(func(data []byte) {
		util.Stats.AddFrameRecv()
		if s.opts.OnFrame != nil {
			s.opts.OnFrame(data)
		}
	})
}

// channelClosed self-heals: an initiator whose live channel died recreates
// it and renegotiates, without surfacing anything to senders beyond the
// transient false returns.
func (s *Session) channelClosed(dc DataChannel) {
	if s.closed.Load() || s.channel.current() != dc {
		return // session teardown, or an already-replaced channel
	}
	util.LogWarning("control channel %q closed", dc.Label())
	if s.initiator {
		s.ensureChannel()
	}
}
