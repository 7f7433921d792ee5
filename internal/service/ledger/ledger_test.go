package ledger

import (
	"context"
	"fmt"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// clocked is a ledger whose lease clock can be moved forward.
type clocked struct {
	Ledger
	advance func(d time.Duration)
}

func ledgers(t *testing.T) map[string]clocked {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	mem := NewMemory(time.Hour, 0)
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	mem.Now = func() time.Time { return now }

	return map[string]clocked{
		"memory": {Ledger: mem, advance: func(d time.Duration) { now = now.Add(d) }},
		"redis":  {Ledger: NewRedis(client, "test:", time.Hour), advance: mr.FastForward},
	}
}

func TestLedgerLifecycle(t *testing.T) {
	for name, l := range ledgers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			claim, err := l.Begin(ctx, "wamid.1", time.Minute)
			require.NoError(t, err)
			assert.Equal(t, Acquired, claim.Status)
			assert.NotEmpty(t, claim.Token)
			assert.Equal(t, 1, claim.Attempts)

			other, err := l.Begin(ctx, "wamid.1", time.Minute)
			require.NoError(t, err)
			assert.Equal(t, InFlight, other.Status)
			assert.Empty(t, other.Token)

			require.NoError(t, l.Complete(ctx, "wamid.1", claim.Token))

			again, err := l.Begin(ctx, "wamid.1", time.Minute)
			require.NoError(t, err)
			assert.Equal(t, Done, again.Status)

			require.NoError(t, l.Release(ctx, "wamid.1", claim.Token))
			again, _ = l.Begin(ctx, "wamid.1", time.Minute)
			assert.Equal(t, Done, again.Status, "release must not drop a delivered record")
		})
	}
}

func TestLedgerReleaseAllowsRetry(t *testing.T) {
	for name, l := range ledgers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			claim, _ := l.Begin(ctx, "k", time.Minute)
			require.Equal(t, Acquired, claim.Status)

			require.NoError(t, l.Release(ctx, "k", claim.Token))

			next, err := l.Begin(ctx, "k", time.Minute)
			require.NoError(t, err)
			assert.Equal(t, Acquired, next.Status)
			assert.NotEqual(t, claim.Token, next.Token)
			assert.Equal(t, 2, next.Attempts, "attempts survive a release")
		})
	}
}

func TestLedgerStaleHolderCannotTouchNewLease(t *testing.T) {
	for name, l := range ledgers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			a, _ := l.Begin(ctx, "k", time.Minute)
			require.Equal(t, Acquired, a.Status)

			l.advance(2 * time.Minute)
			b, _ := l.Begin(ctx, "k", time.Minute)
			require.Equal(t, Acquired, b.Status, "abandoned lease is reclaimed")

			// the first worker wakes up after losing its lease
			require.NoError(t, l.Release(ctx, "k", a.Token))
			c, err := l.Begin(ctx, "k", time.Minute)
			require.NoError(t, err)
			assert.Equal(t, InFlight, c.Status)

			assert.ErrorIs(t, l.Complete(ctx, "k", a.Token), ErrLeaseLost)
			c, _ = l.Begin(ctx, "k", time.Minute)
			assert.Equal(t, InFlight, c.Status)

			require.NoError(t, l.Complete(ctx, "k", b.Token))
			c, _ = l.Begin(ctx, "k", time.Minute)
			assert.Equal(t, Done, c.Status)
		})
	}
}

func TestLedgerCompleteAfterLeaseExpiry(t *testing.T) {
	for name, l := range ledgers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a, _ := l.Begin(ctx, "k", time.Minute)
			l.advance(2 * time.Minute)

			// nobody reclaimed the key, so the slow holder still settles it
			require.NoError(t, l.Complete(ctx, "k", a.Token))
			c, _ := l.Begin(ctx, "k", time.Minute)
			assert.Equal(t, Done, c.Status)
		})
	}
}

func TestLedgerSingleWinnerUnderContention(t *testing.T) {
	for name, l := range ledgers(t) {
		t.Run(name, func(t *testing.T) {
			var winners atomic.Int32
			var wg sync.WaitGroup
			for i := 0; i < 32; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					claim, err := l.Begin(context.Background(), "same", time.Minute)
					assert.NoError(t, err)
					if claim.Status == Acquired {
						winners.Add(1)
					}
				}()
			}
			wg.Wait()
			assert.EqualValues(t, 1, winners.Load())
		})
	}
}

func TestMemoryBounded(t *testing.T) {
	m := NewMemory(time.Hour, 10)
	for i := 0; i < 50; i++ {
		_, err := m.Begin(context.Background(), fmt.Sprintf("k%d", i), time.Minute)
		require.NoError(t, err)
	}
	assert.LessOrEqual(t, m.Len(), 10)
}

func TestMemoryRejectsEmptyKey(t *testing.T) {
	_, err := NewMemory(0, 0).Begin(context.Background(), " ", time.Minute)
	assert.Error(t, err)
}
