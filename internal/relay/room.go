package relay

import (
	"sync"

	"github.com/snowball-labs/teleop/internal/signaling"
)

// MaxRoomSize is the hard membership cap; rendezvous is strictly two-party.
const MaxRoomSize = 2

// Member is the outbound side of a connected participant. Deliver must not
// block: the websocket client implementation enqueues onto a buffered
// channel drained by its write pump.
type Member interface {
	ID() string
	Deliver(msg signaling.Message)
}

// room holds up to two members in join order. The order is load-bearing:
// the first-joined member is the initiator and stays non-polite for every
// offer relayed while it remains first.
type room struct {
	mu      sync.Mutex
	id      string
	members []Member
	dead    bool // set when the last member left; the room must not be reused
}

// memberIndex returns the position of id in join order, or -1.
func (r *room) memberIndex(id string) int {
	for i, m := range r.members {
		if m.ID() == id {
			return i
		}
	}
	return -1
}

// removeMember deletes id preserving join order and reports whether it was
// present.
func (r *room) removeMember(id string) bool {
	i := r.memberIndex(id)
	if i < 0 {
		return false
	}
	r.members = append(r.members[:i], r.members[i+1:]...)
	return true
}

// roleMessage builds the room:role assignment for a member by join
// position: first is initiator/non-polite, second is non-initiator/polite.
func roleMessage(first bool) signaling.Message {
	return signaling.Message{
		Event:     signaling.EventRoomRole,
		Initiator: first,
		Polite:    !first,
	}
}
