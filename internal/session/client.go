package session

import (
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"

	"parley/internal/observability"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum frame size allowed from peer. The largest legal request is
	// an opcode plus two full str8s, far below this.
	maxFrameSize = 2048

	// Outbound buffer slots per client. A full buffer drops the frame for
	// that client only.
	sendBufferSize = 256
)

// Client is one admitted connection: the middleman between the websocket
// transport and the session manager. Its identity is fixed at admit time,
// so per-frame sender resolution is a field read, not a registry scan.
type Client struct {
	manager *Manager

	// The websocket connection. Nil in tests that only exercise the
	// dispatch and fan-out paths through the send channel.
	conn *websocket.Conn

	// Buffered channel of outbound frames.
	send chan []byte

	username  string
	remoteIP  string
	closeOnce sync.Once
}

func newClient(m *Manager, conn *websocket.Conn, remoteIP string) *Client {
	return &Client{
		manager:  m,
		conn:     conn,
		remoteIP: remoteIP,
		send:     make(chan []byte, sendBufferSize),
	}
}

// Username returns the name attached at admit time.
func (c *Client) Username() string { return c.username }

// TrySend queues one frame without blocking. A full buffer or an already
// closed channel drops the frame; one slow client never stalls a fan-out.
func (c *Client) TrySend(frame []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			observability.BackpressureDrops.WithLabelValues("closed").Inc()
		}
	}()

	select {
	case c.send <- frame:
		return true
	default:
		observability.BackpressureDrops.WithLabelValues("full").Inc()
		return false
	}
}

// ReadPump pumps frames from the websocket connection into the dispatcher.
// It runs in the connection's handler goroutine and returns when the peer
// goes away; the deferred close releases the session.
func (c *Client) ReadPump() {
	defer func() {
		c.manager.OnClose(c, "read loop ended")
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		msgType, frame, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.manager.HandleFrame(c, frame, msgType == websocket.BinaryMessage)
	}
}

// WritePump pumps frames from the send channel to the websocket connection
// and keeps the connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// closeWithReason sends a close control frame and tears the connection down.
// Safe to call more than once.
func (c *Client) closeWithReason(reason string) {
	c.closeOnce.Do(func() {
		if c.conn == nil {
			return
		}
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason),
			time.Now().Add(writeWait),
		)
		_ = c.conn.Close()
	})
}
