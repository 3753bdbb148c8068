package ws

import (
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultPingInterval = 30 * time.Second
	maxFrameSize        = 4096
)

// Gateway implements the realtime protocol on top of a Hub.
type Gateway struct {
	hub          *Hub
	logger       *slog.Logger
	prefix       string
	pingInterval time.Duration
}

// NewGateway returns a gateway. prefix is the broker channel prefix that is
// stripped from channel names to form room keys.
func NewGateway(hub *Hub, logger *slog.Logger, prefix string, pingInterval time.Duration) *Gateway {
	if pingInterval <= 0 {
		pingInterval = defaultPingInterval
	}
	return &Gateway{
		hub:          hub,
		logger:       logger.With("component", "realtime_gateway"),
		prefix:       prefix,
		pingInterval: pingInterval,
	}
}

// Hub returns the membership table backing the gateway.
func (g *Gateway) Hub() *Hub {
	return g.hub
}

// Join adds client to the room named by channel and confirms to that client
// alone. Joining twice only repeats the confirmation.
func (g *Gateway) Join(client Subscriber, channel string) string {
	room := RoomForChannel(channel, g.prefix)
	if g.hub.Join(client, room) {
		g.logger.Debug("client joined room", "room", room)
	}
	if err := client.Send(EncodeText(EventMessage, "Joined "+room)); err != nil {
		g.hub.Disconnect(client)
	}
	return room
}

// Leave removes client from the room named by channel.
func (g *Gateway) Leave(client Subscriber, channel string) string {
	room := RoomForChannel(channel, g.prefix)
	g.hub.Leave(client, room)
	if err := client.Send(EncodeText(EventMessage, "Left "+room)); err != nil {
		g.hub.Disconnect(client)
	}
	return room
}

// Handle processes one inbound client frame.
func (g *Gateway) Handle(client Subscriber, data []byte) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		_ = client.Send(EncodeText(EventError, "invalid frame"))
		return
	}
	channel := strings.TrimSpace(frame.Channel)
	switch frame.Event {
	case EventSubscribe, EventUnsubscribe:
		if channel == "" {
			_ = client.Send(EncodeText(EventError, "channel is required"))
			return
		}
		if frame.Event == EventSubscribe {
			g.Join(client, channel)
		} else {
			g.Leave(client, channel)
		}
	default:
		_ = client.Send(EncodeText(EventError, "unknown event "+frame.Event))
	}
}

// Serve runs the read loop of a websocket client until the connection ends,
// then removes it from every room.
func (g *Gateway) Serve(client *Client) {
	g.hub.Connect(client)
	g.logger.Info("client connected", "client_id", client.ID())

	done := make(chan struct{})
	defer func() {
		close(done)
		g.hub.Disconnect(client)
		client.Close()
		g.logger.Info("client disconnected", "client_id", client.ID())
	}()

	conn := client.conn
	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(2 * g.pingInterval))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(2 * g.pingInterval))
	})
	go g.keepalive(client, done)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				g.logger.Debug("websocket read failed", "client_id", client.ID(), "error", err)
			}
			return
		}
		g.Handle(client, data)
	}
}

func (g *Gateway) keepalive(client *Client, done <-chan struct{}) {
	ticker := time.NewTicker(g.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := client.Ping(); err != nil {
				return
			}
		}
	}
}
