// Package signaling defines the relay wire protocol and the client side of
// it: joining a room, receiving a role, and exchanging SDP/ICE through the
// relay until the peer link stands on its own.
package signaling

import "github.com/pion/webrtc/v4"

// Event identifies the kind of signaling message.
type Event string

// Client → server events.
const (
	EventRoomJoin        Event = "room:join"
	EventSignalOffer     Event = "signal:offer"
	EventSignalAnswer    Event = "signal:answer"
	EventSignalCandidate Event = "signal:candidate"
)

// Server → client events. EventSignalOffer/Answer/Candidate are reused for
// relayed signals; the relay strips roomId and, for offers, attaches the
// recipient's polite flag.
const (
	EventRoomRole  Event = "room:role"
	EventRoomFull  Event = "room:full"
	EventPeerReady Event = "peer:ready"
	EventPeerLeft  Event = "peer:left"
)

// Message is the JSON envelope exchanged with the relay. Only the fields
// relevant to the event are set.
type Message struct {
	Event     Event                      `json:"event"`
	RoomID    string                     `json:"roomId,omitempty"`
	SDP       *webrtc.SessionDescription `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit   `json:"candidate,omitempty"`
	Initiator bool                       `json:"initiator,omitempty"`
	Polite    bool                       `json:"polite,omitempty"`
}
