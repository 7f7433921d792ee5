package ledger

import (
	"context"
	"errors"
	"fmt"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"time"
)

const (
	valueDone     = "delivered"
	attemptsField = ":attempts"
)

// KEYS[1] is the claim key; ARGV[1] the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// KEYS[1] is the claim key; ARGV[1] the caller's token, ARGV[2] the settled value and
// ARGV[3] the retention in milliseconds.
var completeScript = redis.NewScript(`
local v = redis.call("GET", KEYS[1])
if v == false or v == ARGV[1] or v == ARGV[2] then
	redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
	return 1
end
return 0
`)

// Redis shares the ledger between every consumer instance. The claim key holds the
// holder's token while in flight and a settled marker afterwards; a sibling key counts
// acquisitions.
type Redis struct {
	client    *redis.Client
	prefix    string
	retention time.Duration
}

func NewRedis(client *redis.Client, prefix string, retention time.Duration) *Redis {
	if retention <= 0 {
		retention = defaultRetention
	}
	return &Redis{client: client, prefix: prefix, retention: retention}
}

func (r *Redis) Begin(ctx context.Context, key string, lease time.Duration) (Claim, error) {
	if key == "" {
		return Claim{Status: InFlight}, fmt.Errorf("ledger: key is required")
	}
	k := r.prefix + key

	// one retry covers a key that expires between SETNX and GET
	for i := 0; i < 2; i++ {
		token := uuid.NewString()
		ok, err := r.client.SetNX(ctx, k, token, lease).Result()
		if err != nil {
			return Claim{Status: InFlight}, fmt.Errorf("ledger setnx: %w", err)
		}
		if ok {
			attempts, err := r.countAttempt(ctx, k)
			if err != nil {
				return Claim{Status: InFlight}, err
			}
			return Claim{Status: Acquired, Token: token, Attempts: attempts}, nil
		}

		v, err := r.client.Get(ctx, k).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return Claim{Status: InFlight}, fmt.Errorf("ledger get: %w", err)
		}
		if v == valueDone {
			return Claim{Status: Done}, nil
		}
		return Claim{Status: InFlight}, nil
	}
	return Claim{Status: InFlight}, nil
}

func (r *Redis) countAttempt(ctx context.Context, k string) (int, error) {
	var incr *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k+attemptsField)
		pipe.Expire(ctx, k+attemptsField, r.retention)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("ledger attempts: %w", err)
	}
	return int(incr.Val()), nil
}

func (r *Redis) Complete(ctx context.Context, key, token string) error {
	ok, err := completeScript.Run(ctx, r.client, []string{r.prefix + key}, token, valueDone, r.retention.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("ledger complete: %w", err)
	}
	if ok == 0 {
		return ErrLeaseLost
	}
	return nil
}

func (r *Redis) Release(ctx context.Context, key, token string) error {
	if err := releaseScript.Run(ctx, r.client, []string{r.prefix + key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("ledger release: %w", err)
	}
	return nil
}

var _ Ledger = (*Redis)(nil)
