package rpcserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	pingPeriod = 20 * time.Second
	pongWait   = 45 * time.Second
	writeWait  = 5 * time.Second
)

// wsClient is one subscribed WS connection: a send-side buffered channel
// decouples the hub's broadcast fan-out from a single slow socket.
type wsClient struct {
	conn *websocket.Conn
	out  chan wireMessage
	hub  *hub
}

// send enqueues msg without blocking the hub; a client whose buffer is full
// is disconnected rather than allowed to stall every other subscriber.
func (c *wsClient) send(msg wireMessage) {
	select {
	case c.out <- msg:
	default:
		go func() { c.hub.unregister(c); c.conn.Close() }()
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.out:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			blob, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, blob); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		// The protocol is server-push only; incoming frames are drained and
		// discarded, a read error (including the deadline firing with no
		// pong) is the sole signal to disconnect.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true }, // validated by handleWS before upgrade
}

// handleWS validates the token/Host/Origin before ever calling Upgrade, so
// a rejected handshake never reaches a 101 response, matching the
// "403, socket closed before accept" requirement for WS auth failures.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if !validHost(r.Host) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if !validOrigin(r.Header.Get("Origin"), s.trustedOrigins) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if !tokensEqual(tokenFromRequest(r), s.token) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("ws upgrade failed: %v", err)
		return
	}

	client := &wsClient{conn: conn, out: make(chan wireMessage, 32), hub: s.hub}
	baseline := s.hub.register(client)

	client.out <- snapshotMessage(baseline)

	go client.writePump()
	go client.readPump()
}
