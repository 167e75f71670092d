// Package relay implements the rendezvous coordinator: two-party rooms with
// deterministic role assignment and signal forwarding between the members.
package relay

import (
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/snowball-labs/teleop/internal/signaling"
	"github.com/snowball-labs/teleop/internal/util"
)

// Coordinator owns the roomID → room map. It is injected into connection
// handlers rather than accessed as a package global, so tests drive it
// directly with fake members.
//
// Locking: the coordinator mutex guards only the map; each room carries its
// own mutex serializing every membership mutation and relay for that room.
// Operations on different rooms proceed in parallel. Nothing performs
// network I/O under either lock — Deliver is a buffered enqueue.
type Coordinator struct {
	mu    sync.Mutex
	rooms map[string]*room
}

// NewCoordinator returns an empty coordinator.
func NewCoordinator() *Coordinator {
	return &Coordinator{rooms: make(map[string]*room)}
}

// Join adds m to roomID, creating the room on first join.
//
//   - duplicate join by an existing member: membership unchanged, the
//     member's current role is re-sent
//   - room already has two members: room:full, no other action
//   - first member: assigned initiator/non-polite immediately
//   - second member: both roles are (re-)sent, then peer:ready broadcast
func (c *Coordinator) Join(roomID string, m Member) {
	for {
		r := c.roomFor(roomID)
		r.mu.Lock()
		if r.dead {
			// Lost a race with the final Leave; the map entry is gone,
			// so fetch-or-create again.
			r.mu.Unlock()
			continue
		}

		if i := r.memberIndex(m.ID()); i >= 0 {
			m.Deliver(roleMessage(i == 0))
			r.mu.Unlock()
			return
		}

		if len(r.members) >= MaxRoomSize {
			r.mu.Unlock()
			m.Deliver(signaling.Message{Event: signaling.EventRoomFull})
			util.LogDebug("room %q full, rejected %s", roomID, m.ID())
			return
		}

		r.members = append(r.members, m)
		util.LogInfo("member %s joined room %q (%d/%d)", m.ID(), roomID, len(r.members), MaxRoomSize)

		if len(r.members) == MaxRoomSize {
			for i, member := range r.members {
				member.Deliver(roleMessage(i == 0))
			}
			for _, member := range r.members {
				member.Deliver(signaling.Message{Event: signaling.EventPeerReady})
			}
		} else {
			m.Deliver(roleMessage(true))
		}
		r.mu.Unlock()
		return
	}
}

// RelayOffer forwards an SDP offer to every other member, recomputing the
// recipient's polite flag from the current join order: the first-joined
// member is never polite. No-op for unknown rooms or non-member senders.
func (c *Coordinator) RelayOffer(roomID, senderID string, sdp webrtc.SessionDescription) {
	c.withRoom(roomID, senderID, func(r *room) {
		firstID := r.members[0].ID()
		for _, member := range r.members {
			if member.ID() == senderID {
				continue
			}
			member.Deliver(signaling.Message{
				Event:  signaling.EventSignalOffer,
				SDP:    &sdp,
				Polite: member.ID() != firstID,
			})
		}
	})
}

// RelayAnswer forwards an SDP answer verbatim to every other member.
func (c *Coordinator) RelayAnswer(roomID, senderID string, sdp webrtc.SessionDescription) {
	c.withRoom(roomID, senderID, func(r *room) {
		for _, member := range r.members {
			if member.ID() != senderID {
				member.Deliver(signaling.Message{Event: signaling.EventSignalAnswer, SDP: &sdp})
			}
		}
	})
}

// RelayCandidate forwards an ICE candidate verbatim to every other member.
func (c *Coordinator) RelayCandidate(roomID, senderID string, candidate webrtc.ICECandidateInit) {
	c.withRoom(roomID, senderID, func(r *room) {
		for _, member := range r.members {
			if member.ID() != senderID {
				member.Deliver(signaling.Message{Event: signaling.EventSignalCandidate, Candidate: &candidate})
			}
		}
	})
}

// Leave removes memberID from roomID. An emptied room is destroyed;
// otherwise the remaining member is told peer:left. No-op when the room or
// member is unknown.
func (c *Coordinator) Leave(roomID, memberID string) {
	c.mu.Lock()
	r, ok := c.rooms[roomID]
	if !ok {
		c.mu.Unlock()
		return
	}

	r.mu.Lock()
	if !r.removeMember(memberID) {
		r.mu.Unlock()
		c.mu.Unlock()
		return
	}
	util.LogInfo("member %s left room %q", memberID, roomID)

	if len(r.members) == 0 {
		r.dead = true
		delete(c.rooms, roomID)
		util.LogDebug("room %q destroyed", roomID)
		r.mu.Unlock()
		c.mu.Unlock()
		return
	}

	remaining := append([]Member(nil), r.members...)
	r.mu.Unlock()
	c.mu.Unlock()

	for _, member := range remaining {
		member.Deliver(signaling.Message{Event: signaling.EventPeerLeft})
	}
}

// RoomSize reports the current membership of a room; 0 for unknown rooms.
func (c *Coordinator) RoomSize(roomID string) int {
	c.mu.Lock()
	r, ok := c.rooms[roomID]
	c.mu.Unlock()
	if !ok {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// roomFor fetches or creates the room under the map lock.
func (c *Coordinator) roomFor(roomID string) *room {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.rooms[roomID]
	if !ok {
		r = &room{id: roomID}
		c.rooms[roomID] = r
	}
	return r
}

// withRoom runs fn under the room lock if the room exists, has members, and
// the sender is one of them. Relays from outsiders are dropped.
func (c *Coordinator) withRoom(roomID, senderID string, fn func(*room)) {
	c.mu.Lock()
	r, ok := c.rooms[roomID]
	c.mu.Unlock()
	if !ok {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.members) == 0 || r.memberIndex(senderID) < 0 {
		return
	}
	fn(r)
}
