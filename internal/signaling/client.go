package signaling

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"

	"github.com/snowball-labs/teleop/internal/util"
)

// Reconnect backoff bounds. The client retries indefinitely; room state on
// the relay is rebuilt by re-sending room:join after every reconnect, so a
// returning client holds no claim on its previous role.
const (
	backoffInitial = 500 * time.Millisecond
	backoffMax     = 10 * time.Second
)

// Handler receives dispatched server events. Implementations must not
// block; the session enqueues and returns.
type Handler interface {
	HandleRole(initiator, polite bool)
	HandleRoomFull()
	HandlePeerReady()
	HandlePeerLeft()
	HandleOffer(sdp webrtc.SessionDescription, polite bool)
	HandleAnswer(sdp webrtc.SessionDescription)
	HandleCandidate(candidate webrtc.ICECandidateInit)
}

// Client maintains the WebSocket link to the relay, rejoining its room
// after every reconnect and dispatching inbound events to a Handler.
type Client struct {
	wsURL   string
	roomID  string
	handler Handler

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex // serializes writes and guards conn swaps
	conn *websocket.Conn

	closeOnce sync.Once
}

// NewClient validates the relay URL and prepares a client. No I/O happens
// until Start; this lets the caller hand the client to its handler's
// constructor first (the session sends through the client it is handled by).
func NewClient(baseURL, roomID string) (*Client, error) {
	wsURL, err := normalizeWSURL(baseURL)
	if err != nil {
		return nil, err
	}
	return &Client{wsURL: wsURL, roomID: roomID}, nil
}

// Start binds the handler, connects, joins the room, and launches the
// reconnect loop. The client keeps reconnecting until Close or ctx
// cancellation.
func (c *Client) Start(ctx context.Context, h Handler) error {
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.handler = h

	conn, err := c.connect()
	if err != nil {
		c.cancel()
		return err
	}

	go c.run(conn)
	return nil
}

// Dial is the one-step form of NewClient+Start for callers whose handler
// already exists.
func Dial(ctx context.Context, baseURL, roomID string, h Handler) (*Client, error) {
	c, err := NewClient(baseURL, roomID)
	if err != nil {
		return nil, err
	}
	if err := c.Start(ctx, h); err != nil {
		return nil, err
	}
	return c, nil
}

// connect dials the relay and joins the room on the fresh connection.
func (c *Client) connect() (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(c.ctx, c.wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial relay: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	if err := c.send(Message{Event: EventRoomJoin, RoomID: c.roomID}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("join room: %w", err)
	}
	return conn, nil
}

// run reads until the connection drops, then reconnects with backoff. It
// exits when the client context is cancelled.
func (c *Client) run(conn *websocket.Conn) {
	for {
		c.readLoop(conn)

		if c.ctx.Err() != nil {
			return
		}
		util.LogWarning("relay link lost, reconnecting")

		backoff := backoffInitial
		for {
			select {
			case <-time.After(backoff):
			case <-c.ctx.Done():
				return
			}

			next, err := c.connect()
			if err == nil {
				conn = next
				util.LogInfo("relay link restored, rejoined room %q", c.roomID)
				break
			}
			util.LogDebug("relay reconnect failed: %v", err)
			backoff *= 2
			if backoff > backoffMax {
				backoff = backoffMax
			}
		}
	}
}

// readLoop dispatches inbound messages until a read error.
func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			conn.Close()
			return
		}
		c.dispatch(msg)
	}
}

// dispatch routes one server event to the handler. Malformed messages are
// dropped and logged; they never kill the link.
func (c *Client) dispatch(msg Message) {
	switch msg.Event {
	case EventRoomRole:
		c.handler.HandleRole(msg.Initiator, msg.Polite)
	case EventRoomFull:
		c.handler.HandleRoomFull()
	case EventPeerReady:
		c.handler.HandlePeerReady()
	case EventPeerLeft:
		c.handler.HandlePeerLeft()
	case EventSignalOffer:
		if msg.SDP == nil {
			util.LogWarning("offer without SDP, dropping")
			return
		}
		c.handler.HandleOffer(*msg.SDP, msg.Polite)
	case EventSignalAnswer:
		if msg.SDP == nil {
			util.LogWarning("answer without SDP, dropping")
			return
		}
		c.handler.HandleAnswer(*msg.SDP)
	case EventSignalCandidate:
		if msg.Candidate == nil {
			util.LogWarning("candidate message without candidate, dropping")
			return
		}
		c.handler.HandleCandidate(*msg.Candidate)
	default:
		util.LogDebug("unknown relay event %q, dropping", msg.Event)
	}
}

// send writes one message, guarded by the client mutex.
func (c *Client) send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("relay link down")
	}
	return c.conn.WriteJSON(msg)
}

// SendOffer relays a local SDP offer to the peer.
func (c *Client) SendOffer(sdp webrtc.SessionDescription) error {
	return c.send(Message{Event: EventSignalOffer, RoomID: c.roomID, SDP: &sdp})
}

// SendAnswer relays a local SDP answer to the peer.
func (c *Client) SendAnswer(sdp webrtc.SessionDescription) error {
	return c.send(Message{Event: EventSignalAnswer, RoomID: c.roomID, SDP: &sdp})
}

// SendCandidate relays a gathered ICE candidate to the peer.
func (c *Client) SendCandidate(candidate webrtc.ICECandidateInit) error {
	return c.send(Message{Event: EventSignalCandidate, RoomID: c.roomID, Candidate: &candidate})
}

// Close tears down the relay link. Idempotent.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		c.mu.Lock()
		if c.conn != nil {
			c.conn.Close()
		}
		c.mu.Unlock()
	})
	return nil
}

// normalizeWSURL validates a relay base URL and rewrites it to the /ws
// WebSocket endpoint. http(s) schemes are mapped to ws(s).
func normalizeWSURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid relay URL: %q", raw)
	}
	scheme := "wss"
	switch u.Scheme {
	case "ws", "wss":
		scheme = u.Scheme
	case "http":
		scheme = "ws"
	case "https":
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s/ws", scheme, u.Host), nil
}
