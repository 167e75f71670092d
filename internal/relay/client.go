package relay

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/snowball-labs/teleop/internal/signaling"
	"github.com/snowball-labs/teleop/internal/util"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum inbound message size. SDP payloads dominate; 64 KB is ample.
	maxMessageSize = 64 * 1024

	// Outbound queue depth per connection. Signaling traffic is a handful
	// of messages per negotiation, so overflow means a dead reader.
	sendQueueSize = 64
)

// Client wraps one websocket connection to the relay. It implements Member:
// the coordinator hands it messages via Deliver and the write pump drains
// them, so no coordinator lock is ever held across a network write.
type Client struct {
	id    string
	coord *Coordinator
	conn  *websocket.Conn

	send chan signaling.Message
	done chan struct{}

	mu     sync.Mutex
	roomID string // set by the first room:join
}

// NewClient wraps an upgraded connection. Call Run to start the pumps.
func NewClient(id string, coord *Coordinator, conn *websocket.Conn) *Client {
	return &Client{
		id:    id,
		coord: coord,
		conn:  conn,
		send:  make(chan signaling.Message, sendQueueSize),
		done:  make(chan struct{}),
	}
}

// ID implements Member.
func (c *Client) ID() string { return c.id }

// Deliver implements Member. It never blocks: a full queue (dead reader)
// drops the message and the keepalive machinery will reap the connection.
func (c *Client) Deliver(msg signaling.Message) {
	select {
	case <-c.done:
	case c.send <- msg:
	default:
		util.LogWarning("member %s send queue full, dropping %s", c.id, msg.Event)
	}
}

// Run starts the write pump and blocks in the read pump until the
// connection drops, then removes the member from its room.
func (c *Client) Run() {
	go c.writePump()
	c.readPump()
}

// readPump reads and routes client messages. Exit means disconnect: the
// member leaves its room (which may notify or destroy it) and the write
// pump is stopped.
func (c *Client) readPump() {
	defer func() {
		if roomID := c.room(); roomID != "" {
			c.coord.Leave(roomID, c.id)
		}
		close(c.done)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg signaling.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				util.LogDebug("member %s read error: %v", c.id, err)
			}
			return
		}
		c.route(msg)
	}
}

// route applies one inbound message to the coordinator. Malformed or
// out-of-place messages are dropped and logged, never fatal.
func (c *Client) route(msg signaling.Message) {
	switch msg.Event {
	case signaling.EventRoomJoin:
		if msg.RoomID == "" {
			util.LogWarning("member %s join without roomId, dropping", c.id)
			return
		}
		if current := c.room(); current != "" && current != msg.RoomID {
			util.LogWarning("member %s already in room %q, ignoring join to %q", c.id, current, msg.RoomID)
			return
		}
		c.setRoom(msg.RoomID)
		c.coord.Join(msg.RoomID, c)

	case signaling.EventSignalOffer:
		if msg.SDP == nil {
			util.LogWarning("member %s offer without SDP, dropping", c.id)
			return
		}
		c.coord.RelayOffer(c.signalRoom(msg), c.id, *msg.SDP)

	case signaling.EventSignalAnswer:
		if msg.SDP == nil {
			util.LogWarning("member %s answer without SDP, dropping", c.id)
			return
		}
		c.coord.RelayAnswer(c.signalRoom(msg), c.id, *msg.SDP)

	case signaling.EventSignalCandidate:
		if msg.Candidate == nil {
			util.LogWarning("member %s candidate without payload, dropping", c.id)
			return
		}
		c.coord.RelayCandidate(c.signalRoom(msg), c.id, *msg.Candidate)

	default:
		util.LogDebug("member %s sent unknown event %q, dropping", c.id, msg.Event)
	}
}

// signalRoom resolves the room a signal targets: the message's roomId when
// present, else the room the member joined.
func (c *Client) signalRoom(msg signaling.Message) string {
	if msg.RoomID != "" {
		return msg.RoomID
	}
	return c.room()
}

// writePump drains the send queue onto the socket and keeps the connection
// alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}

func (c *Client) room() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomID
}

func (c *Client) setRoom(roomID string) {
	c.mu.Lock()
	c.roomID = roomID
	c.mu.Unlock()
}
