package ws

import (
	"time"

	"github.com/gofiber/contrib/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Handler returns the WebSocket connection handler for the live status
// endpoint. The connection must have been authenticated by middleware that
// stored the tenant id in the "tenantID" local. The subscription lives for
// the lifetime of the connection and is torn down when it closes.
func Handler(hub *Hub) func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		tenantID, _ := conn.Locals("tenantID").(string)
		if tenantID == "" {
			conn.Close()
			return
		}

		sub := hub.Join(tenantID)
		defer hub.Leave(sub)

		// Read pump: we never act on client messages, but reading drives
		// pong handling and detects the close.
		done := make(chan struct{})
		go func() {
			defer close(done)
			conn.SetReadDeadline(time.Now().Add(pongWait))
			conn.SetPongHandler(func(string) error {
				conn.SetReadDeadline(time.Now().Add(pongWait))
				return nil
			})
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case msg, ok := <-sub.C:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if !ok {
					conn.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := conn.WriteJSON(msg); err != nil {
					return
				}
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}
}
