package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const sseRetry = 3 * time.Second

// SSEClient streams realtime frames as Server-Sent Events. Send only queues
// the frame; Serve, running on the request goroutine, is the sole writer.
type SSEClient struct {
	w    http.ResponseWriter
	rc   *http.ResponseController
	log  *slog.Logger
	seq  uint64
	out  chan []byte
	done chan struct{}
	once sync.Once
}

// NewSSEClient builds an SSE client for w.
func NewSSEClient(w http.ResponseWriter, logger *slog.Logger) *SSEClient {
	return &SSEClient{
		w:    w,
		rc:   http.NewResponseController(w),
		log:  logger,
		out:  make(chan []byte, sendQueueSize),
		done: make(chan struct{}),
	}
}

// Send queues a frame. It never blocks; a full queue means the viewer
// stopped reading and ErrSlowConsumer is returned.
func (c *SSEClient) Send(payload []byte) error {
	select {
	case <-c.done:
		return io.EOF
	default:
	}
	select {
	case c.out <- payload:
		return nil
	default:
		return ErrSlowConsumer
	}
}

// Serve writes the reconnect hint, then queued frames and heartbeat comments
// until ctx ends, the client is closed or a write fails.
func (c *SSEClient) Serve(ctx context.Context, heartbeat time.Duration) error {
	defer c.Close()
	if err := c.write(fmt.Sprintf("retry: %d\n\n", sseRetry.Milliseconds())); err != nil {
		return err
	}
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.done:
			return nil
		case payload := <-c.out:
			if err := c.write(c.event(payload)); err != nil {
				return err
			}
		case <-ticker.C:
			if err := c.write(": ping\n\n"); err != nil {
				return err
			}
		}
	}
}

func (c *SSEClient) event(payload []byte) string {
	event, data := EventMessage, json.RawMessage(payload)
	var frame Frame
	if err := json.Unmarshal(payload, &frame); err == nil && frame.Event != "" {
		event, data = frame.Event, frame.Data
	}
	c.seq++
	return fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", c.seq, event, data)
}

func (c *SSEClient) write(chunk string) error {
	if err := c.rc.SetWriteDeadline(time.Now().Add(writeWait)); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	if _, err := io.WriteString(c.w, chunk); err != nil {
		c.log.Warn("sse write failed", "error", err)
		return err
	}
	if err := c.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	return nil
}

// Close stops the stream. Frames still queued are dropped.
func (c *SSEClient) Close() {
	c.once.Do(func() { close(c.done) })
}
