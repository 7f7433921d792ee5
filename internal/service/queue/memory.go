package queue

import (
	"FunnelRouter/entity"
	"FunnelRouter/internal/lib/sl"
	"context"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"log/slog"
	"sync"
	"time"
)

const defaultBufferSize = 100

// Memory is an in-process at-least-once queue: a nacked or timed-out message is
// redelivered after a backoff delay.
type Memory struct {
	messages chan entity.QueueMessage
	workers  int
	lease    time.Duration
	backoff  Backoff
	log      *slog.Logger

	done      chan struct{}
	closeOnce sync.Once
}

func NewMemory(workers int, lease time.Duration, backoff Backoff, log *slog.Logger) *Memory {
	if workers <= 0 {
		workers = 1
	}
	return &Memory{
		messages: make(chan entity.QueueMessage, defaultBufferSize),
		workers:  workers,
		lease:    lease,
		backoff:  backoff,
		log:      log.With(sl.Module("queue.memory")),
		done:     make(chan struct{}),
	}
}

func (m *Memory) Publish(ctx context.Context, payload []byte, attributes map[string]string) (string, error) {
	msg := entity.QueueMessage{
		ID:         uuid.NewString(),
		Payload:    append([]byte(nil), payload...),
		Attributes: attributes,
		Attempt:    1,
	}
	if err := m.enqueue(ctx, msg); err != nil {
		return "", err
	}
	return msg.ID, nil
}

func (m *Memory) enqueue(ctx context.Context, msg entity.QueueMessage) error {
	select {
	case <-m.done:
		return context.Canceled
	default:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-m.done:
		return context.Canceled
	case m.messages <- msg:
		return nil
	}
}

func (m *Memory) Consume(ctx context.Context, h Handler) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < m.workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-m.done:
					return nil
				case msg := <-m.messages:
					m.dispatch(gctx, h, msg)
				}
			}
		})
	}
	return g.Wait()
}

func (m *Memory) dispatch(ctx context.Context, h Handler, msg entity.QueueMessage) {
	hctx := ctx
	if m.lease > 0 {
		var cancel context.CancelFunc
		hctx, cancel = context.WithTimeout(ctx, m.lease)
		defer cancel()
	}

	if h(hctx, msg) == Ack {
		return
	}

	delay := m.backoff.NextDelay(msg.Attempt)
	m.log.With(
		slog.String("message_id", msg.ID),
		slog.Int("attempt", msg.Attempt),
		slog.Duration("delay", delay),
	).Debug("redelivery scheduled")

	msg.Attempt++
	time.AfterFunc(delay, func() {
		if err := m.enqueue(context.Background(), msg); err != nil {
			m.log.With(slog.String("message_id", msg.ID)).Warn("redelivery dropped", sl.Err(err))
		}
	})
}

func (m *Memory) Close() {
	m.closeOnce.Do(func() {
		close(m.done)
	})
}
