package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

const writeTimeout = 10 * time.Second

// ackMessage confirms a join or leave back to the client.
type ackMessage struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	Room   string `json:"room"`
}

// ServeWS upgrades the request and runs the connection until either side
// closes. One goroutine writes, the request goroutine reads.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // origin policy is the proxy's job
	})
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("websocket accept failed", zap.Error(err))
		}
		return
	}

	c, ok := h.register()
	if !ok {
		_ = conn.Close(websocket.StatusGoingAway, "shutting down")
		return
	}
	defer h.unregister(c)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go h.writeLoop(ctx, cancel, conn, c)
	h.readLoop(ctx, conn, c)
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
}

func (h *Hub) writeLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, c *client) {
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-c.send:
			if !ok {
				_ = conn.Close(websocket.StatusGoingAway, "dropped")
				return
			}
			writeCtx, done := context.WithTimeout(ctx, writeTimeout)
			err := conn.Write(writeCtx, websocket.MessageText, frame)
			done()
			if err != nil {
				return
			}
		}
	}
}

func (h *Hub) readLoop(ctx context.Context, conn *websocket.Conn, c *client) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue // garbage frames are ignored, not fatal
		}
		switch msg.Action {
		case "join":
			h.join(c, msg.Room)
		case "leave":
			h.leave(c, msg.Room)
		default:
			continue
		}
		ack, err := json.Marshal(ackMessage{Type: "ack", Action: msg.Action, Room: msg.Room})
		if err != nil {
			continue
		}
		select {
		case c.send <- ack:
		default:
		}
	}
}
