package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
)

// fakePeer implements PeerLink with just enough signaling-state tracking to
// exercise the negotiation machine.
type fakePeer struct {
	mu         sync.Mutex
	state      webrtc.SignalingState
	local      *webrtc.SessionDescription
	remote     *webrtc.SessionDescription
	offers     int
	restarts   int
	channels   []*fakeChannel
	candidates []webrtc.ICECandidateInit

	candidateErr error
	closed       bool

	onConnState   func(webrtc.PeerConnectionState)
	onNegotiation func()
	onICE         func(webrtc.ICECandidateInit)
	onDataChannel func(DataChannel)
}

func newFakePeer() *fakePeer {
	return &fakePeer{state: webrtc.SignalingStateStable}
}

func (p *fakePeer) CreateOffer(iceRestart bool) (webrtc.SessionDescription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.offers++
	if iceRestart {
		p.restarts++
	}
	return webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  fmt.Sprintf("offer-%d", p.offers),
	}, nil
}

func (p *fakePeer) CreateAnswer() (webrtc.SessionDescription, error) {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "answer"}, nil
}

func (p *fakePeer) SetLocalDescription(sdp webrtc.SessionDescription) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.local = &sdp
	if sdp.Type == webrtc.SDPTypeOffer {
		p.state = webrtc.SignalingStateHaveLocalOffer
	} else {
		p.state = webrtc.SignalingStateStable
	}
	return nil
}

func (p *fakePeer) LocalDescription() *webrtc.SessionDescription {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.local
}

func (p *fakePeer) SetRemoteDescription(sdp webrtc.SessionDescription) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.remote = &sdp
	if sdp.Type == webrtc.SDPTypeOffer {
		p.state = webrtc.SignalingStateHaveRemoteOffer
	} else {
		p.state = webrtc.SignalingStateStable
	}
	return nil
}

func (p *fakePeer) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.candidateErr != nil {
		return p.candidateErr
	}
	p.candidates = append(p.candidates, candidate)
	return nil
}

func (p *fakePeer) SignalingState() webrtc.SignalingState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *fakePeer) CreateDataChannel(label string) (DataChannel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch := &fakeChannel{label: label, state: webrtc.DataChannelStateConnecting}
	p.channels = append(p.channels, ch)
	return ch, nil
}

func (p *fakePeer) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onConnState = fn
}

func (p *fakePeer) OnNegotiationNeeded(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onNegotiation = fn
}

func (p *fakePeer) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onICE = fn
}

func (p *fakePeer) OnDataChannel(fn func(DataChannel)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onDataChannel = fn
}

func (p *fakePeer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePeer) fireConnState(state webrtc.PeerConnectionState) {
	p.mu.Lock()
	fn := p.onConnState
	p.mu.Unlock()
	fn(state)
}

func (p *fakePeer) fireNegotiationNeeded() {
	p.mu.Lock()
	fn := p.onNegotiation
	p.mu.Unlock()
	fn()
}

func (p *fakePeer) fireDataChannel(ch *fakeChannel) {
	p.mu.Lock()
	fn := p.onDataChannel
	p.mu.Unlock()
	fn(ch)
}

func (p *fakePeer) offerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.offers
}

func (p *fakePeer) restartCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.restarts
}

func (p *fakePeer) remoteDesc() *webrtc.SessionDescription {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.remote
}

func (p *fakePeer) channelCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.channels)
}

func (p *fakePeer) channelAt(i int) *fakeChannel {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.channels[i]
}

func (p *fakePeer) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// fakeChannel implements DataChannel.
type fakeChannel struct {
	mu      sync.Mutex
	label   string
	state   webrtc.DataChannelState
	sent    [][]byte
	sendErr error

	onOpen    func()
	onClose   func()
	onMessage func([]byte)
}

func (c *fakeChannel) Label() string { return c.label }

func (c *fakeChannel) ReadyState() webrtc.DataChannelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *fakeChannel) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, data)
	return nil
}

func (c *fakeChannel) OnOpen(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onOpen = fn
}

func (c *fakeChannel) OnClose(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onClose = fn
}

func (c *fakeChannel) OnMessage(fn func([]byte)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onMessage = fn
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = webrtc.DataChannelStateClosed
	return nil
}

func (c *fakeChannel) open() {
	c.mu.Lock()
	c.state = webrtc.DataChannelStateOpen
	fn := c.onOpen
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (c *fakeChannel) remoteClose() {
	c.mu.Lock()
	c.state = webrtc.DataChannelStateClosed
	fn := c.onClose
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (c *fakeChannel) message(data []byte) {
	c.mu.Lock()
	fn := c.onMessage
	c.mu.Unlock()
	if fn != nil {
		fn(data)
	}
}

func (c *fakeChannel) sentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

// fakeSignals records outbound signals and, via Close, lets tests verify the
// session tears down its relay link.
type fakeSignals struct {
	mu         sync.Mutex
	offers     []webrtc.SessionDescription
	answers    []webrtc.SessionDescription
	candidates []webrtc.ICECandidateInit
	closed     bool
}

func (f *fakeSignals) SendOffer(sdp webrtc.SessionDescription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offers = append(f.offers, sdp)
	return nil
}

func (f *fakeSignals) SendAnswer(sdp webrtc.SessionDescription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, sdp)
	return nil
}

func (f *fakeSignals) SendCandidate(candidate webrtc.ICECandidateInit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.candidates = append(f.candidates, candidate)
	return nil
}

func (f *fakeSignals) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSignals) offerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.offers)
}

func (f *fakeSignals) answerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.answers)
}

func (f *fakeSignals) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type fakeMedia struct {
	mu       sync.Mutex
	acquires int
	releases int
	err      error
}

func (m *fakeMedia) Acquire() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.acquires++
	return nil
}

func (m *fakeMedia) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releases++
	return nil
}

type errRecorder struct {
	mu   sync.Mutex
	errs []error
}

func (r *errRecorder) record(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *errRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errs)
}

func (r *errRecorder) last() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.errs) == 0 {
		return nil
	}
	return r.errs[len(r.errs)-1]
}

func newTestSession(t *testing.T, opts Options) (*Session, *fakePeer, *fakeSignals) {
	t.Helper()
	fp := newFakePeer()
	fs := &fakeSignals{}
	s := New(context.Background(), fp, fs, opts)
	t.Cleanup(func() { s.Close() })
	return s, fp, fs
}

// settle waits until every previously enqueued event has run.
func settle(t *testing.T, s *Session) {
	t.Helper()
	done := make(chan struct{})
	s.enqueue(func() { close(done) })
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("session loop stalled")
	}
}

// loopState snapshots loop-owned flags from inside the loop.
func loopState(t *testing.T, s *Session) (makingOffer, ignoreOffer bool) {
	t.Helper()
	done := make(chan struct{})
	s.enqueue(func() {
		makingOffer = s.makingOffer
		ignoreOffer = s.ignoreOffer
		close(done)
	})
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("session loop stalled")
	}
	return makingOffer, ignoreOffer
}

func remoteOffer(sdp string) webrtc.SessionDescription {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}
}

func remoteAnswer(sdp string) webrtc.SessionDescription {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp}
}

func TestInitiatorCreatesChannelAndOffers(t *testing.T) {
	s, fp, fs := newTestSession(t, Options{ChannelLabel: "control"})

	s.HandleRole(true, false)
	settle(t, s)

	if got := fp.channelCount(); got != 1 {
		t.Fatalf("channels = %d, want 1", got)
	}
	if got := fp.channelAt(0).Label(); got != "control" {
		t.Errorf("channel label = %q, want %q", got, "control")
	}
	if got := fs.offerCount(); got != 1 {
		t.Errorf("offers sent = %d, want 1", got)
	}
	if got := fp.SignalingState(); got != webrtc.SignalingStateHaveLocalOffer {
		t.Errorf("signaling state = %s, want have-local-offer", got)
	}
}

func TestInitiatorWithoutChannelStillOffers(t *testing.T) {
	s, fp, fs := newTestSession(t, Options{})

	s.HandleRole(true, false)
	settle(t, s)

	if got := fp.channelCount(); got != 0 {
		t.Errorf("channels = %d, want 0", got)
	}
	if got := fs.offerCount(); got != 1 {
		t.Errorf("offers sent = %d, want 1", got)
	}
}

func TestFollowerWaitsThenAnswers(t *testing.T) {
	s, fp, fs := newTestSession(t, Options{ChannelLabel: "control"})

	s.HandleRole(false, true)
	settle(t, s)

	if got := fs.offerCount(); got != 0 {
		t.Fatalf("follower sent %d offers, want 0", got)
	}
	if got := fp.channelCount(); got != 0 {
		t.Fatalf("follower created %d channels, want 0", got)
	}

	s.HandleOffer(remoteOffer("o1"), true)
	settle(t, s)

	if fp.remoteDesc() == nil || fp.remoteDesc().SDP != "o1" {
		t.Error("remote offer was not applied")
	}
	if got := fs.answerCount(); got != 1 {
		t.Errorf("answers sent = %d, want 1", got)
	}
	if got := fp.SignalingState(); got != webrtc.SignalingStateStable {
		t.Errorf("signaling state = %s, want stable", got)
	}
}

func TestPeerReadyReoffersFromInitiator(t *testing.T) {
	s, _, fs := newTestSession(t, Options{ChannelLabel: "control"})

	s.HandleRole(true, false)
	s.HandlePeerReady()
	settle(t, s)

	if got := fs.offerCount(); got != 2 {
		t.Errorf("offers sent = %d, want 2", got)
	}
}

func TestPeerReadyIgnoredByFollower(t *testing.T) {
	s, _, fs := newTestSession(t, Options{ChannelLabel: "control"})

	s.HandleRole(false, true)
	s.HandlePeerReady()
	settle(t, s)

	if got := fs.offerCount(); got != 0 {
		t.Errorf("offers sent = %d, want 0", got)
	}
}

func TestPoliteSideYieldsOnGlare(t *testing.T) {
	s, fp, fs := newTestSession(t, Options{})

	// Our own offer is outstanding when the remote one arrives.
	fp.fireNegotiationNeeded()
	settle(t, s)
	if got := fp.SignalingState(); got != webrtc.SignalingStateHaveLocalOffer {
		t.Fatalf("signaling state = %s, want have-local-offer", got)
	}

	s.HandleOffer(remoteOffer("glare"), true)
	settle(t, s)

	if fp.remoteDesc() == nil || fp.remoteDesc().SDP != "glare" {
		t.Error("polite side did not accept the colliding offer")
	}
	if got := fs.answerCount(); got != 1 {
		t.Errorf("answers sent = %d, want 1", got)
	}
	if _, ignore := loopState(t, s); ignore {
		t.Error("polite side must not set ignoreOffer")
	}
}

func TestNonPoliteSideIgnoresGlareOffer(t *testing.T) {
	s, fp, fs := newTestSession(t, Options{})

	fp.fireNegotiationNeeded()
	settle(t, s)

	s.HandleOffer(remoteOffer("glare"), false)
	settle(t, s)

	if fp.remoteDesc() != nil {
		t.Error("non-polite side applied the colliding offer")
	}
	if got := fs.answerCount(); got != 0 {
		t.Errorf("answers sent = %d, want 0", got)
	}
	if _, ignore := loopState(t, s); !ignore {
		t.Error("ignoreOffer not set after dropping a colliding offer")
	}
}

func TestOfferAcceptedWhenStable(t *testing.T) {
	s, fp, fs := newTestSession(t, Options{})

	// No collision: impoliteness is irrelevant in stable state.
	s.HandleOffer(remoteOffer("o1"), false)
	settle(t, s)

	if fp.remoteDesc() == nil {
		t.Fatal("offer in stable state was not applied")
	}
	if got := fs.answerCount(); got != 1 {
		t.Errorf("answers sent = %d, want 1", got)
	}
}

func TestCandidateErrorSwallowedAfterIgnoredOffer(t *testing.T) {
	rec := &errRecorder{}
	s, fp, _ := newTestSession(t, Options{OnError: rec.record})

	fp.fireNegotiationNeeded()
	settle(t, s)
	s.HandleOffer(remoteOffer("glare"), false)
	settle(t, s)

	fp.mu.Lock()
	fp.candidateErr = errors.New("no pending remote description")
	fp.mu.Unlock()

	s.HandleCandidate(webrtc.ICECandidateInit{Candidate: "c1"})
	settle(t, s)

	if got := rec.count(); got != 0 {
		t.Errorf("errors reported = %d, want 0 while ignoring an offer", got)
	}
}

func TestCandidateErrorReportedOtherwise(t *testing.T) {
	rec := &errRecorder{}
	s, fp, _ := newTestSession(t, Options{OnError: rec.record})

	fp.mu.Lock()
	fp.candidateErr = errors.New("bad candidate")
	fp.mu.Unlock()

	s.HandleCandidate(webrtc.ICECandidateInit{Candidate: "c1"})
	settle(t, s)

	if got := rec.count(); got != 1 {
		t.Errorf("errors reported = %d, want 1", got)
	}
}

func TestStaleAnswerDropped(t *testing.T) {
	s, fp, _ := newTestSession(t, Options{})

	// No outstanding local offer: the answer must be discarded.
	s.HandleAnswer(remoteAnswer("stale"))
	settle(t, s)
	if fp.remoteDesc() != nil {
		t.Fatal("stale answer was applied")
	}

	s.HandleRole(true, false)
	settle(t, s)
	s.HandleAnswer(remoteAnswer("fresh"))
	settle(t, s)

	if fp.remoteDesc() == nil || fp.remoteDesc().SDP != "fresh" {
		t.Error("valid answer was not applied")
	}
	if got := fp.SignalingState(); got != webrtc.SignalingStateStable {
		t.Errorf("signaling state = %s, want stable", got)
	}
}

func TestFailedRestartsICEImmediately(t *testing.T) {
	s, fp, fs := newTestSession(t, Options{})

	fp.fireConnState(webrtc.PeerConnectionStateFailed)
	settle(t, s)

	if got := fp.restartCount(); got != 1 {
		t.Errorf("ICE restarts = %d, want 1", got)
	}
	if got := fs.offerCount(); got != 1 {
		t.Errorf("offers sent = %d, want 1", got)
	}
}

func TestDisconnectedEscalatesAfterGracePeriod(t *testing.T) {
	s, fp, _ := newTestSession(t, Options{ReconnectDelay: 20 * time.Millisecond})

	// A second disconnect while the timer is armed must not add another.
	fp.fireConnState(webrtc.PeerConnectionStateDisconnected)
	fp.fireConnState(webrtc.PeerConnectionStateDisconnected)

	deadline := time.Now().Add(time.Second)
	for fp.restartCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	settle(t, s)

	if got := fp.restartCount(); got != 1 {
		t.Errorf("ICE restarts = %d, want 1", got)
	}
}

func TestReconnectTimerCancelledOnRecovery(t *testing.T) {
	s, fp, _ := newTestSession(t, Options{ReconnectDelay: 30 * time.Millisecond})

	fp.fireConnState(webrtc.PeerConnectionStateDisconnected)
	fp.fireConnState(webrtc.PeerConnectionStateConnected)
	settle(t, s)

	time.Sleep(100 * time.Millisecond)
	if got := fp.restartCount(); got != 0 {
		t.Errorf("ICE restarts = %d, want 0 after self-recovery", got)
	}
}

func TestConnectedClearsIgnoreOffer(t *testing.T) {
	s, fp, _ := newTestSession(t, Options{})

	fp.fireNegotiationNeeded()
	settle(t, s)
	s.HandleOffer(remoteOffer("glare"), false)
	settle(t, s)
	if _, ignore := loopState(t, s); !ignore {
		t.Fatal("ignoreOffer not set")
	}

	fp.fireConnState(webrtc.PeerConnectionStateConnected)
	settle(t, s)
	if _, ignore := loopState(t, s); ignore {
		t.Error("ignoreOffer not cleared on connected")
	}
}

func TestRoomFullReported(t *testing.T) {
	rec := &errRecorder{}
	s, _, _ := newTestSession(t, Options{OnError: rec.record})

	s.HandleRoomFull()
	settle(t, s)

	if !errors.Is(rec.last(), ErrRoomFull) {
		t.Errorf("last error = %v, want ErrRoomFull", rec.last())
	}
}

func TestCloseIsIdempotentAndTearsDown(t *testing.T) {
	fp := newFakePeer()
	fs := &fakeSignals{}
	s := New(context.Background(), fp, fs, Options{ChannelLabel: "control"})

	s.HandleRole(true, false)
	settle(t, s)
	ch := fp.channelAt(0)

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	if !fp.isClosed() {
		t.Error("peer connection not closed")
	}
	if !fs.isClosed() {
		t.Error("relay link not closed")
	}
	if got := ch.ReadyState(); got != webrtc.DataChannelStateClosed {
		t.Error("control channel not closed")
	}
	select {
	case <-s.Done():
	default:
		t.Error("Done not closed after Close")
	}
}

func TestSendBeforeOpenFailsThenSucceeds(t *testing.T) {
	opened := make(chan struct{}, 1)
	s, fp, _ := newTestSession(t, Options{
		ChannelLabel:  "control",
		OnChannelOpen: func() { opened <- struct{}{} },
	})

	s.HandleRole(true, false)
	settle(t, s)
	ch := fp.channelAt(0)

	if s.Send([]byte{1}) {
		t.Fatal("Send succeeded on a connecting channel")
	}

	ch.open()
	select {
	case <-opened:
	case <-time.After(time.Second):
		t.Fatal("OnChannelOpen never fired")
	}

	if !s.Send([]byte{2}) {
		t.Fatal("Send failed on an open channel")
	}
	if got := ch.sentCount(); got != 1 {
		t.Errorf("frames on channel = %d, want 1", got)
	}
}

func TestInitiatorRecreatesClosedChannel(t *testing.T) {
	s, fp, fs := newTestSession(t, Options{ChannelLabel: "control"})

	s.HandleRole(true, false)
	settle(t, s)
	fp.channelAt(0).open()

	fp.channelAt(0).remoteClose()
	settle(t, s)

	if got := fp.channelCount(); got != 2 {
		t.Fatalf("channels = %d, want 2 after self-heal", got)
	}
	if got := fs.offerCount(); got != 2 {
		t.Errorf("offers sent = %d, want 2 after renegotiation", got)
	}
}

func TestFollowerDoesNotRecreateClosedChannel(t *testing.T) {
	s, fp, _ := newTestSession(t, Options{ChannelLabel: "control"})

	s.HandleRole(false, true)
	settle(t, s)

	ch := &fakeChannel{label: "control", state: webrtc.DataChannelStateConnecting}
	fp.fireDataChannel(ch)
	settle(t, s)
	ch.open()

	ch.remoteClose()
	settle(t, s)

	if got := fp.channelCount(); got != 0 {
		t.Errorf("follower created %d channels, want 0", got)
	}
}

func TestAdoptedChannelDeliversFrames(t *testing.T) {
	frames := make(chan []byte, 1)
	s, fp, _ := newTestSession(t, Options{
		OnFrame: func(data []byte) { frames <- data },
	})

	s.HandleRole(false, true)
	settle(t, s)

	ch := &fakeChannel{label: "control", state: webrtc.DataChannelStateConnecting}
	fp.fireDataChannel(ch)
	settle(t, s)
	ch.open()

	ch.message([]byte{0xAB})
	select {
	case got := <-frames:
		if len(got) != 1 || got[0] != 0xAB {
			t.Errorf("frame = %v, want [0xAB]", got)
		}
	case <-time.After(time.Second):
		t.Fatal("frame never delivered")
	}

	if !s.Send([]byte{1}) {
		t.Error("Send failed on the adopted channel")
	}
}

func TestSendFailureSchedulesRecovery(t *testing.T) {
	s, fp, _ := newTestSession(t, Options{ChannelLabel: "control"})

	s.HandleRole(true, false)
	settle(t, s)
	ch := fp.channelAt(0)
	ch.open()

	ch.mu.Lock()
	ch.sendErr = errors.New("stream closed")
	ch.state = webrtc.DataChannelStateClosed
	ch.mu.Unlock()

	if s.Send([]byte{1}) {
		t.Fatal("Send succeeded on a dead channel")
	}
	settle(t, s)

	if got := fp.channelCount(); got != 2 {
		t.Errorf("channels = %d, want 2 after send-triggered recovery", got)
	}
}

func TestMediaAcquiredOncePerSession(t *testing.T) {
	media := &fakeMedia{}
	fp := newFakePeer()
	fs := &fakeSignals{}
	s := New(context.Background(), fp, fs, Options{Media: media})

	s.HandleRole(true, false)
	s.HandlePeerReady()
	settle(t, s)

	media.mu.Lock()
	acquires := media.acquires
	media.mu.Unlock()
	if acquires != 1 {
		t.Errorf("acquires = %d, want 1 across repeated negotiation", acquires)
	}

	s.Close()
	media.mu.Lock()
	releases := media.releases
	media.mu.Unlock()
	if releases != 1 {
		t.Errorf("releases = %d, want 1 after Close", releases)
	}
}

func TestMediaErrorKeepsSessionAlive(t *testing.T) {
	rec := &errRecorder{}
	media := &fakeMedia{err: errors.New("camera busy")}
	s, _, fs := newTestSession(t, Options{Media: media, OnError: rec.record})

	s.HandleRole(true, false)
	settle(t, s)

	if got := rec.count(); got != 1 {
		t.Fatalf("errors reported = %d, want 1", got)
	}
	if got := fs.offerCount(); got != 0 {
		t.Errorf("offers sent = %d, want 0 after media failure", got)
	}

	// The failure clears and the next negotiation succeeds.
	media.mu.Lock()
	media.err = nil
	media.mu.Unlock()
	s.HandlePeerReady()
	settle(t, s)

	if got := fs.offerCount(); got != 1 {
		t.Errorf("offers sent = %d, want 1 after retry", got)
	}
}
