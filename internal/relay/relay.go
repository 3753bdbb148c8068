// Package relay forwards broker log messages into realtime rooms.
package relay

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/hemanthhhhhh/API-Server/internal/broker"
	"github.com/hemanthhhhhh/API-Server/internal/domain"
	"github.com/hemanthhhhhh/API-Server/internal/ws"
)

// DefaultPattern matches every project log channel.
const DefaultPattern = "logs:*"

// Broadcaster delivers an encoded frame to every member of a room.
type Broadcaster interface {
	Broadcast(room string, payload []byte) int
}

// Options tune reconnect behaviour.
type Options struct {
	Pattern        string
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Relay subscribes to the log channel pattern and fans every message out to
// the room named after the channel.
type Relay struct {
	source  broker.Source
	hub     Broadcaster
	pattern string
	prefix  string
	opts    Options
	logger  *slog.Logger
	metrics *metrics
}

// New constructs a relay.
func New(source broker.Source, hub Broadcaster, opts Options, logger *slog.Logger) *Relay {
	if opts.Pattern == "" {
		opts.Pattern = DefaultPattern
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = 500 * time.Millisecond
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 30 * time.Second
	}
	return &Relay{
		source:  source,
		hub:     hub,
		pattern: opts.Pattern,
		prefix:  strings.TrimSuffix(opts.Pattern, "*"),
		opts:    opts,
		logger:  logger.With("component", "log_relay", "pattern", opts.Pattern),
		metrics: loadMetrics(),
	}
}

// Prefix returns the channel prefix stripped to form room keys.
func (r *Relay) Prefix() string {
	return r.prefix
}

// Run keeps the pattern subscription alive until ctx ends. Connection loss
// is logged and followed by a resubscribe after a capped exponential wait.
func (r *Relay) Run(ctx context.Context) {
	wait := backoff.NewExponentialBackOff()
	wait.InitialInterval = r.opts.InitialBackoff
	wait.MaxInterval = r.opts.MaxBackoff
	wait.MaxElapsedTime = 0
	wait.Reset()

	for {
		if ctx.Err() != nil {
			return
		}

		stream, err := r.source.PSubscribe(ctx, r.pattern)
		if err == nil {
			r.logger.Info("subscribed to log channels")
			wait.Reset()
			err = r.consume(ctx, stream)
			_ = stream.Close()
		}
		if ctx.Err() != nil {
			return
		}

		delay := wait.NextBackOff()
		r.metrics.reconnects.Inc()
		r.logger.Error("broker connection lost", "error", err, "retry_in", delay)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (r *Relay) consume(ctx context.Context, stream broker.Stream) error {
	for {
		msg, err := stream.Receive(ctx)
		if err != nil {
			return err
		}
		r.Handle(msg)
	}
}

// Handle forwards one broker message to its room and returns the number of
// viewers reached. Malformed payloads are wrapped, never dropped.
func (r *Relay) Handle(msg domain.LogMessage) int {
	room := ws.RoomForChannel(msg.Channel, r.prefix)
	data, ok := msg.Decode()
	if ok {
		r.metrics.messages.WithLabelValues(outcomeJSON).Inc()
	} else {
		r.metrics.messages.WithLabelValues(outcomeMalformed).Inc()
		r.logger.Warn("non-JSON log payload", "channel", msg.Channel, "bytes", len(msg.Payload))
	}
	delivered := r.hub.Broadcast(room, ws.EncodeFrame(ws.EventMessage, data))
	r.logger.Debug("log relayed", "room", room, "viewers", delivered)
	return delivered
}
