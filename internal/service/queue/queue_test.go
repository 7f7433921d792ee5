package queue

import (
	"FunnelRouter/entity"
	"context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBackoffNextDelay(t *testing.T) {
	b := Backoff{Initial: time.Second, Max: 10 * time.Second}
	assert.Equal(t, time.Second, b.NextDelay(1))
	assert.Equal(t, 2*time.Second, b.NextDelay(2))
	assert.Equal(t, 4*time.Second, b.NextDelay(3))
	assert.Equal(t, 8*time.Second, b.NextDelay(4))
	assert.Equal(t, 10*time.Second, b.NextDelay(5))
	assert.Equal(t, 10*time.Second, b.NextDelay(50))
	assert.Equal(t, time.Second, Backoff{}.NextDelay(0))
}

func TestMemoryDeliversPublishedMessage(t *testing.T) {
	q := NewMemory(2, time.Second, Backoff{}, discardLogger())
	defer q.Close()

	got := make(chan entity.QueueMessage, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = q.Consume(ctx, func(_ context.Context, msg entity.QueueMessage) Result {
			got <- msg
			return Ack
		})
	}()

	id, err := q.Publish(context.Background(), []byte(`{"entry":[]}`), map[string]string{"platform": "instagram"})
	require.NoError(t, err)

	select {
	case msg := <-got:
		assert.Equal(t, id, msg.ID)
		assert.Equal(t, 1, msg.Attempt)
		assert.Equal(t, "instagram", msg.Platform())
		assert.JSONEq(t, `{"entry":[]}`, string(msg.Payload))
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}
}

func TestMemoryRedeliversAfterNack(t *testing.T) {
	q := NewMemory(1, time.Second, Backoff{Initial: time.Millisecond, Max: 5 * time.Millisecond}, discardLogger())
	defer q.Close()

	var mu sync.Mutex
	var attempts []int
	done := make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = q.Consume(ctx, func(_ context.Context, msg entity.QueueMessage) Result {
			mu.Lock()
			defer mu.Unlock()
			attempts = append(attempts, msg.Attempt)
			if msg.Attempt < 3 {
				return Nack
			}
			close(done)
			return Ack
		})
	}()

	_, err := q.Publish(context.Background(), []byte("x"), nil)
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("message not redelivered")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2, 3}, attempts)
}

func TestMemoryHandlerContextBoundedByLease(t *testing.T) {
	q := NewMemory(1, 20*time.Millisecond, Backoff{Initial: time.Hour}, discardLogger())
	defer q.Close()

	hasDeadline := make(chan bool, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = q.Consume(ctx, func(hctx context.Context, _ entity.QueueMessage) Result {
			_, ok := hctx.Deadline()
			hasDeadline <- ok
			return Ack
		})
	}()

	_, _ = q.Publish(context.Background(), []byte("x"), nil)
	select {
	case ok := <-hasDeadline:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("not delivered")
	}
}

func TestMemoryPublishAfterClose(t *testing.T) {
	q := NewMemory(1, 0, Backoff{}, discardLogger())
	q.Close()
	_, err := q.Publish(context.Background(), []byte("x"), nil)
	assert.Error(t, err)
}
