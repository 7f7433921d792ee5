// Package queue decouples webhook ingestion from message processing.
package queue

import (
	"FunnelRouter/entity"
	"context"
	"time"
)

// Result tells the broker what to do with a delivered message.
type Result int

const (
	Ack Result = iota
	Nack
)

func (r Result) String() string {
	if r == Ack {
		return "ack"
	}
	return "nack"
}

type Handler func(ctx context.Context, msg entity.QueueMessage) Result

type Publisher interface {
	Publish(ctx context.Context, payload []byte, attributes map[string]string) (string, error)
}

type Consumer interface {
	// Consume blocks, dispatching messages to h until ctx is done.
	Consume(ctx context.Context, h Handler) error
}

// Backoff is an exponential redelivery delay capped at Max.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
}

func (b Backoff) NextDelay(attempt int) time.Duration {
	initial := b.Initial
	if initial <= 0 {
		initial = time.Second
	}
	maximum := b.Max
	if maximum <= 0 {
		maximum = time.Minute
	}
	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maximum {
			return maximum
		}
	}
	if delay > maximum {
		return maximum
	}
	return delay
}
