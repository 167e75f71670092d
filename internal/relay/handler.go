package relay

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/snowball-labs/teleop/internal/util"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  maxMessageSize,
	WriteBufferSize: maxMessageSize,
	// The relay carries no secrets and room ids are opaque; origin checks
	// belong to a fronting proxy in deployments that need them.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS returns the /ws handler: upgrade, assign a connection id, and run
// the client pumps until disconnect.
func ServeWS(coord *Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			util.LogWarning("upgrade failed: %v", err)
			return
		}

		client := NewClient(uuid.NewString(), coord, conn)
		util.LogDebug("member %s connected from %s", client.ID(), conn.RemoteAddr())
		go client.Run()
	}
}
