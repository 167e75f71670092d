// Package rtc backs the session interfaces with pion/webrtc.
package rtc

import (
	"github.com/pion/webrtc/v4"

	"github.com/snowball-labs/teleop/internal/session"
)

var (
	_ session.PeerLink    = (*Peer)(nil)
	_ session.DataChannel = (*Channel)(nil)
)

// STUN servers for ICE candidate gathering. No TURN — the link is designed
// for direct P2P connectivity with zero infrastructure cost.
var stunServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
}

// Peer adapts a pion PeerConnection to session.PeerLink.
type Peer struct {
	pc *webrtc.PeerConnection
}

// NewPeer creates a PeerConnection configured with Google STUN servers.
func NewPeer() (*Peer, error) {
	config := webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{URLs: stunServers},
		},
	}
	pc, err := webrtc.NewPeerConnection(config)
	if err != nil {
		return nil, err
	}
	return &Peer{pc: pc}, nil
}

func (p *Peer) CreateOffer(iceRestart bool) (webrtc.SessionDescription, error) {
	var opts *webrtc.OfferOptions
	if iceRestart {
		opts = &webrtc.OfferOptions{ICERestart: true}
	}
	return p.pc.CreateOffer(opts)
}

func (p *Peer) CreateAnswer() (webrtc.SessionDescription, error) {
	return p.pc.CreateAnswer(nil)
}

func (p *Peer) SetLocalDescription(sdp webrtc.SessionDescription) error {
	return p.pc.SetLocalDescription(sdp)
}

func (p *Peer) LocalDescription() *webrtc.SessionDescription {
	return p.pc.LocalDescription()
}

func (p *Peer) SetRemoteDescription(sdp webrtc.SessionDescription) error {
	return p.pc.SetRemoteDescription(sdp)
}

func (p *Peer) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	return p.pc.AddICECandidate(candidate)
}

func (p *Peer) SignalingState() webrtc.SignalingState {
	return p.pc.SignalingState()
}

// CreateDataChannel creates an ordered channel. Control frames are tiny,
// sequenced, and all belong to one stream, so ordering costs nothing here.
func (p *Peer) CreateDataChannel(label string) (session.DataChannel, error) {
	dc, err := p.pc.CreateDataChannel(label, nil)
	if err != nil {
		return nil, err
	}
	return &Channel{raw: dc}, nil
}

func (p *Peer) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) {
	p.pc.OnConnectionStateChange(fn)
}

func (p *Peer) OnNegotiationNeeded(fn func()) {
	p.pc.OnNegotiationNeeded(fn)
}

// OnICECandidate surfaces gathered candidates in their wire form. The nil
// end-of-gathering marker is filtered out.
func (p *Peer) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	p.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c != nil {
			fn(c.ToJSON())
		}
	})
}

func (p *Peer) OnDataChannel(fn func(session.DataChannel)) {
	p.pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		fn(&Channel{raw: dc})
	})
}

func (p *Peer) Close() error {
	return p.pc.Close()
}

// Channel adapts a pion DataChannel to session.DataChannel.
type Channel struct {
	raw *webrtc.DataChannel
}

func (c *Channel) Label() string                       { return c.raw.Label() }
func (c *Channel) ReadyState() webrtc.DataChannelState { return c.raw.ReadyState() }
func (c *Channel) Send(data []byte) error              { return c.raw.Send(data) }
func (c *Channel) OnOpen(fn func())                    { c.raw.OnOpen(fn) }
func (c *Channel) OnClose(fn func())                   { c.raw.OnClose(fn) }
func (c *Channel) Close() error                        { return c.raw.Close() }

func (c *Channel) OnMessage(fn func(data []byte)) {
	c.raw.OnMessage(func(msg webrtc.DataChannelMessage) {
		fn(msg.Data)
	})
}
