// Package session implements the client-side negotiation state machine:
// perfect negotiation with deterministic glare resolution, ICE-restart
// recovery, and the control data-channel lifecycle.
//
// The WebRTC engine is consumed behind the PeerLink/DataChannel interfaces
// (implemented by internal/rtc, faked in tests), so the state machine owns
// only the sequencing, never the transport.
package session

import "github.com/pion/webrtc/v4"

// PeerLink is the capability the session needs from a peer connection.
type PeerLink interface {
	CreateOffer(iceRestart bool) (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(sdp webrtc.SessionDescription) error
	LocalDescription() *webrtc.SessionDescription
	SetRemoteDescription(sdp webrtc.SessionDescription) error
	AddICECandidate(candidate webrtc.ICECandidateInit) error
	SignalingState() webrtc.SignalingState
	CreateDataChannel(label string) (DataChannel, error)

	OnConnectionStateChange(fn func(webrtc.PeerConnectionState))
	OnNegotiationNeeded(fn func())
	OnICECandidate(fn func(webrtc.ICECandidateInit))
	OnDataChannel(fn func(DataChannel))

	Close() error
}

// DataChannel is the capability the session needs from a data channel.
type DataChannel interface {
	Label() string
	ReadyState() webrtc.DataChannelState
	Send(data []byte) error
	OnOpen(fn func())
	OnClose(fn func())
	OnMessage(fn func(data []byte))
	Close() error
}

// SignalSender is the outbound half of the relay link.
type SignalSender interface {
	SendOffer(sdp webrtc.SessionDescription) error
	SendAnswer(sdp webrtc.SessionDescription) error
	SendCandidate(candidate webrtc.ICECandidateInit) error
}

// LocalMedia acquires and releases the local track set. Acquire is called
// at most once per session; rendering and capture devices live behind it.
type LocalMedia interface {
	Acquire() error
	Release() error
}
