// Package broker adapts the message broker to the relay's subscription model.
package broker

import (
	"context"

	"github.com/hemanthhhhhh/API-Server/internal/domain"
)

// Stream yields messages from an established subscription.
type Stream interface {
	// Receive blocks until the next message arrives, the context ends or the
	// connection fails.
	Receive(ctx context.Context) (domain.LogMessage, error)
	Close() error
}

// Source establishes pattern subscriptions.
type Source interface {
	PSubscribe(ctx context.Context, pattern string) (Stream, error)
}
