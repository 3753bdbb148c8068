package ws

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait     = 10 * time.Second
	sendQueueSize = 64
)

// ErrSlowConsumer is returned by Send when a subscriber's outbound queue is
// full. The hub disconnects such subscribers.
var ErrSlowConsumer = errors.New("ws: subscriber send queue full")

// Client represents a websocket client connection. Frames are queued by Send
// and written by a per-connection goroutine, so a slow peer never blocks the
// broadcaster.
type Client struct {
	id   string
	conn *websocket.Conn
	log  *slog.Logger

	out  chan []byte
	done chan struct{}
	once sync.Once
}

// NewClient constructs a client wrapper and starts its writer.
func NewClient(conn *websocket.Conn, logger *slog.Logger) *Client {
	id := uuid.NewString()
	c := &Client{
		id:   id,
		conn: conn,
		log:  logger.With("client_id", id),
		out:  make(chan []byte, sendQueueSize),
		done: make(chan struct{}),
	}
	go c.writeLoop()
	return c
}

// ID returns the connection identifier used in logs.
func (c *Client) ID() string {
	return c.id
}

// Send queues a message for the connection without blocking.
func (c *Client) Send(payload []byte) error {
	select {
	case <-c.done:
		return websocket.ErrCloseSent
	default:
	}
	select {
	case c.out <- payload:
		return nil
	default:
		return ErrSlowConsumer
	}
}

func (c *Client) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case payload := <-c.out:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.log.Warn("websocket send failed", "error", err)
				c.Close()
				return
			}
		}
	}
}

// Ping sends a keepalive control frame.
func (c *Client) Ping() error {
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// Close terminates the connection.
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}
