// Package ledger records which inbound messages were processed so broker redeliveries
// never produce a second reply.
package ledger

import (
	"context"
	"errors"
	"time"
)

// ErrLeaseLost is returned when another worker holds a live claim on the key.
var ErrLeaseLost = errors.New("ledger: lease held by another worker")

type Status int

const (
	// Acquired means the caller now owns the key until the lease expires.
	Acquired Status = iota
	// InFlight means another worker holds an unexpired lease on the key.
	InFlight
	// Done means a reply was already delivered for the key.
	Done
)

func (s Status) String() string {
	switch s {
	case Acquired:
		return "acquired"
	case InFlight:
		return "in_flight"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// Claim is the result of Begin. Token identifies the holder and Attempts counts every
// acquisition of the key within the retention period, the current one included.
type Claim struct {
	Status   Status
	Token    string
	Attempts int
}

type Ledger interface {
	// Begin claims key for lease. An expired or released lease can be claimed again.
	Begin(ctx context.Context, key string, lease time.Duration) (Claim, error)
	// Complete marks key as settled for the retention period. It fails with ErrLeaseLost
	// when a different token holds a live lease.
	Complete(ctx context.Context, key, token string) error
	// Release drops the caller's claim so a redelivery can retry immediately. A claim
	// held by a different token is left untouched.
	Release(ctx context.Context, key, token string) error
}
