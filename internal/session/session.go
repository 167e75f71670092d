package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/snowball-labs/teleop/internal/signaling"
	"github.com/snowball-labs/teleop/internal/util"
)

// Session implements signaling.Handler.
var _ signaling.Handler = (*Session)(nil)

// ErrRoomFull is reported through OnError when the relay rejects the join.
var ErrRoomFull = errors.New("room already has two members")

// DefaultReconnectDelay is the grace period after the transport reports
// disconnected before recovery treats it as failed.
const DefaultReconnectDelay = 1500 * time.Millisecond

// eventQueueSize bounds the per-session event queue. Events are tiny and
// handlers are fast; this only needs to absorb bursts from pion callbacks.
const eventQueueSize = 64

// Options configures a Session.
type Options struct {
	// ChannelLabel names the control data channel. Empty disables local
	// channel creation (the session can still adopt a remote channel).
	ChannelLabel string

	// Media, when non-nil, is acquired once before the first offer or
	// answer is produced.
	Media LocalMedia

	// ReconnectDelay overrides DefaultReconnectDelay when positive.
	ReconnectDelay time.Duration

	// OnError receives session-level errors (media acquisition, room
	// full). The session stays alive and retryable after every one.
	OnError func(error)

	// OnFrame receives every payload arriving on the control channel.
	OnFrame func(data []byte)

	// OnChannelOpen fires whenever a control channel reaches open.
	OnChannelOpen func()
}

// Session drives one peer connection through negotiation and recovery. All
// state below the mutex-free line is owned by the single event-loop
// goroutine; external surfaces only enqueue.
type Session struct {
	pc      PeerLink
	signals SignalSender
	opts    Options

	events chan func()
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	closed    atomic.Bool
	closeOnce sync.Once

	channel channelManager

	// Event-loop-owned negotiation state.
	initiator     bool
	polite        bool
	makingOffer   bool
	ignoreOffer   bool
	mediaAcquired bool
	connState     webrtc.PeerConnectionState
	reconnect     *time.Timer
}

// New wires a session to its peer link and relay sender and starts the
// event loop. The session begins negotiating when the relay assigns a role.
func New(ctx context.Context, pc PeerLink, signals SignalSender, opts Options) *Session {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}

	sCtx, cancel := context.WithCancel(ctx)
	s := &Session{
		pc:      pc,
		signals: signals,
		opts:    opts,
		events:  make(chan func(), eventQueueSize),
		ctx:     sCtx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	s.channel.session = s

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		s.enqueue(func() { s.handleConnectionState(state) })
	})
	pc.OnNegotiationNeeded(func() {
		s.enqueue(func() { s.negotiate(false) })
	})
	pc.OnDataChannel(func(dc DataChannel) {
		s.enqueue(func() { s.adoptChannel(dc) })
	})
	// Candidates go straight out: they touch no session state, and the
	// relay send path has its own lock.
	pc.OnICECandidate(func(candidate webrtc.ICECandidateInit) {
		if s.closed.Load() {
			return
		}
		if err := signals.SendCandidate(candidate); err != nil {
			util.LogDebug("candidate relay failed: %v", err)
		}
	})

	go s.loop()
	return s
}

// Send transmits one encoded control frame. It reports false when the
// channel is absent or not yet open, after opportunistically scheduling a
// channel (re)creation, so a later attempt can succeed. Safe from any
// goroutine.
func (s *Session) Send(frame []byte) bool {
	return s.channel.send(frame)
}

// Done is closed once the session has fully torn down.
func (s *Session) Done() <-chan struct{} { return s.done }

// Close tears down the session: relay link, data channel, local media, and
// the peer connection. Idempotent and safe to call concurrently with any
// in-flight negotiation step.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.cancel()
	})
	<-s.done
	return nil
}

// ---------------------------------------------------------------------------
// signaling.Handler — relay events enter the loop here
// ---------------------------------------------------------------------------

// HandleRole stores the assigned role. The initiator creates the control
// channel and opens negotiation immediately.
func (s *Session) HandleRole(initiator, polite bool) {
	s.enqueue(func() {
		s.initiator = initiator
		s.polite = polite
		util.LogInfo("role assigned: initiator=%t polite=%t", initiator, polite)
		if initiator {
			if s.opts.ChannelLabel != "" {
				s.ensureChannel() // creates the channel and negotiates
			} else {
				s.negotiate(false)
			}
		}
	})
}

// HandlePeerReady re-offers from the initiator side once both members are
// present, covering the window where the first offer had no recipient.
func (s *Session) HandlePeerReady() {
	s.enqueue(func() {
		util.LogInfo("peer ready")
		if s.initiator {
			s.negotiate(false)
		}
	})
}

// HandleRoomFull surfaces the rejection to the caller.
func (s *Session) HandleRoomFull() {
	s.enqueue(func() { s.reportError(ErrRoomFull) })
}

// HandlePeerLeft notes the departure. The peer connection is left in place:
// a rejoining peer renegotiates over it or the connectivity machinery
// recovers/fails it.
func (s *Session) HandlePeerLeft() {
	s.enqueue(func() { util.LogInfo("peer left the room") })
}

// HandleOffer runs the glare-resolution core. A collision exists when we
// are mid-offer ourselves or our signaling state is not stable; the
// non-polite side drops the colliding remote offer, the polite side yields
// and answers it.
func (s *Session) HandleOffer(sdp webrtc.SessionDescription, polite bool) {
	s.enqueue(func() {
		util.Stats.AddOfferRecv()
		s.polite = polite

		collision := s.makingOffer || s.pc.SignalingState() != webrtc.SignalingStateStable
		s.ignoreOffer = !s.polite && collision
		if s.ignoreOffer {
			util.LogInfo("ignoring colliding offer (non-polite side wins)")
			return
		}

		if err := s.pc.SetRemoteDescription(sdp); err != nil {
			util.LogWarning("remote offer rejected: %v", err)
			return
		}
		if err := s.acquireMedia(); err != nil {
			s.reportError(err)
			return
		}
		answer, err := s.pc.CreateAnswer()
		if err != nil {
			s.reportError(fmt.Errorf("create answer: %w", err))
			return
		}
		if err := s.pc.SetLocalDescription(answer); err != nil {
			s.reportError(fmt.Errorf("set local answer: %w", err))
			return
		}
		if err := s.signals.SendAnswer(s.localDescription(answer)); err != nil {
			s.reportError(fmt.Errorf("send answer: %w", err))
		}
	})
}

// HandleAnswer applies an answer only while our own offer is outstanding;
// stale or duplicate answers are dropped.
func (s *Session) HandleAnswer(sdp webrtc.SessionDescription) {
	s.enqueue(func() {
		if s.pc.SignalingState() != webrtc.SignalingStateHaveLocalOffer {
			util.LogDebug("dropping answer in state %s", s.pc.SignalingState())
			return
		}
		if err := s.pc.SetRemoteDescription(sdp); err != nil {
			util.LogWarning("remote answer rejected: %v", err)
		}
	})
}

// HandleCandidate adds a relayed ICE candidate. Failures are swallowed
// while the most recent offer was ignored — a dropped offer invalidates the
// candidates that followed it — and reported otherwise.
func (s *Session) HandleCandidate(candidate webrtc.ICECandidateInit) {
	s.enqueue(func() {
		if err := s.pc.AddICECandidate(candidate); err != nil {
			if s.ignoreOffer {
				util.LogDebug("candidate for ignored offer dropped: %v", err)
				return
			}
			s.reportError(fmt.Errorf("add candidate: %w", err))
		}
	})
}

// ---------------------------------------------------------------------------
// Event loop
// ---------------------------------------------------------------------------

// enqueue schedules fn on the session loop, giving up once the session is
// shutting down.
func (s *Session) enqueue(fn func()) {
	select {
	case s.events <- fn:
	case <-s.ctx.Done():
	}
}

func (s *Session) loop() {
	defer s.teardown()
	for {
		select {
		case fn := <-s.events:
			if s.closed.Load() {
				return
			}
			fn()
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Session) teardown() {
	if s.reconnect != nil {
		s.reconnect.Stop()
		s.reconnect = nil
	}
	s.channel.shutdown()
	if s.opts.Media != nil && s.mediaAcquired {
		if err := s.opts.Media.Release(); err != nil {
			util.LogWarning("media release: %v", err)
		}
	}
	if err := s.pc.Close(); err != nil {
		util.LogDebug("peer close: %v", err)
	}
	if closer, ok := s.signals.(io.Closer); ok {
		closer.Close()
	}
	close(s.done)
}

// ---------------------------------------------------------------------------
// Negotiation
// ---------------------------------------------------------------------------

// negotiate produces and sends an offer. makingOffer marks the critical
// section for glare detection and is cleared on every exit path.
func (s *Session) negotiate(iceRestart bool) {
	if s.closed.Load() {
		return
	}
	s.makingOffer = true
	defer func() { s.makingOffer = false }()

	if err := s.acquireMedia(); err != nil {
		s.reportError(err)
		return
	}
	offer, err := s.pc.CreateOffer(iceRestart)
	if err != nil {
		s.reportError(fmt.Errorf("create offer: %w", err))
		return
	}
	if err := s.pc.SetLocalDescription(offer); err != nil {
		s.reportError(fmt.Errorf("set local offer: %w", err))
		return
	}
	if err := s.signals.SendOffer(s.localDescription(offer)); err != nil {
		s.reportError(fmt.Errorf("send offer: %w", err))
		return
	}
	util.Stats.AddOfferSent()
	util.LogDebug("offer sent (iceRestart=%t)", iceRestart)
}

// acquireMedia acquires the local track set at most once per session.
func (s *Session) acquireMedia() error {
	if s.opts.Media == nil || s.mediaAcquired {
		return nil
	}
	if err := s.opts.Media.Acquire(); err != nil {
		return fmt.Errorf("acquire media: %w", err)
	}
	s.mediaAcquired = true
	return nil
}

// localDescription prefers the peer's current local description (which may
// have candidates folded in) over the bare created one.
func (s *Session) localDescription(fallback webrtc.SessionDescription) webrtc.SessionDescription {
	if local := s.pc.LocalDescription(); local != nil {
		return *local
	}
	return fallback
}

// handleConnectionState drives recovery. failed restarts ICE immediately;
// disconnected arms a single grace timer that escalates to failed when the
// link does not come back on its own.
func (s *Session) handleConnectionState(state webrtc.PeerConnectionState) {
	util.LogInfo("connection state: %s", state)
	s.connState = state

	switch state {
	case webrtc.PeerConnectionStateFailed:
		s.stopReconnectTimer()
		s.restartICE()

	case webrtc.PeerConnectionStateDisconnected:
		if s.reconnect == nil {
			s.reconnect = time.AfterFunc(s.opts.ReconnectDelay, func() {
				s.enqueue(s.reconnectExpired)
			})
		}

	case webrtc.PeerConnectionStateConnected:
		s.stopReconnectTimer()
		s.ignoreOffer = false
	}
}

// reconnectExpired escalates a lingering disconnect to a full recovery.
func (s *Session) reconnectExpired() {
	s.reconnect = nil
	if s.connState == webrtc.PeerConnectionStateDisconnected {
		util.LogWarning("still disconnected after %s, restarting ICE", s.opts.ReconnectDelay)
		s.restartICE()
	}
}

func (s *Session) restartICE() {
	util.Stats.AddICERestart()
	s.negotiate(true)
}

func (s *Session) stopReconnectTimer() {
	if s.reconnect != nil {
		s.reconnect.Stop()
		s.reconnect = nil
	}
}

// reportError logs and forwards a session-level error. The session is
// never torn down by an error; Close stays the only exit.
func (s *Session) reportError(err error) {
	util.LogError("session: %v", err)
	if s.opts.OnError != nil {
		s.opts.OnError(err)
	}
}
