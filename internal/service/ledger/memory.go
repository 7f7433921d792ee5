package ledger

import (
	"context"
	"fmt"
	"github.com/google/uuid"
	"strings"
	"sync"
	"time"
)

const (
	defaultRetention  = 24 * time.Hour
	defaultMaxEntries = 100000
)

type memoryEntry struct {
	done       bool
	token      string
	attempts   int
	leaseUntil time.Time
	expiresAt  time.Time
}

func (e memoryEntry) heldBy(now time.Time) string {
	if e.done || !now.Before(e.leaseUntil) {
		return ""
	}
	return e.token
}

// Memory is a bounded in-process ledger. It is only shared by workers of one process.
type Memory struct {
	mu         sync.Mutex
	retention  time.Duration
	maxEntries int
	entries    map[string]memoryEntry
	Now        func() time.Time
}

func NewMemory(retention time.Duration, maxEntries int) *Memory {
	if retention <= 0 {
		retention = defaultRetention
	}
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	return &Memory{
		retention:  retention,
		maxEntries: maxEntries,
		entries:    make(map[string]memoryEntry),
		Now:        time.Now,
	}
}

func (m *Memory) Begin(_ context.Context, key string, lease time.Duration) (Claim, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return Claim{Status: InFlight}, fmt.Errorf("ledger: key is required")
	}
	now := m.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if ok && !now.Before(e.expiresAt) {
		ok = false
	}
	if ok {
		if e.done {
			return Claim{Status: Done, Attempts: e.attempts}, nil
		}
		if e.heldBy(now) != "" {
			return Claim{Status: InFlight, Attempts: e.attempts}, nil
		}
	} else {
		m.enforceCapacityLocked(now)
		e = memoryEntry{expiresAt: now.Add(m.retention)}
	}

	e.token = uuid.NewString()
	e.attempts++
	e.leaseUntil = now.Add(lease)
	m.entries[key] = e
	return Claim{Status: Acquired, Token: e.token, Attempts: e.attempts}, nil
}

func (m *Memory) Complete(_ context.Context, key, token string) error {
	now := m.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.entries[key]
	if holder := e.heldBy(now); holder != "" && holder != token {
		return ErrLeaseLost
	}
	m.entries[key] = memoryEntry{done: true, attempts: e.attempts, expiresAt: now.Add(m.retention)}
	return nil
}

func (m *Memory) Release(_ context.Context, key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok || e.done || e.token != token {
		return nil
	}
	// the attempt count survives the release
	e.token = ""
	e.leaseUntil = time.Time{}
	m.entries[key] = e
	return nil
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Memory) enforceCapacityLocked(now time.Time) {
	if len(m.entries) < m.maxEntries {
		return
	}
	for key, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, key)
		}
	}
	for len(m.entries) >= m.maxEntries {
		var oldestKey string
		var oldest time.Time
		for key, e := range m.entries {
			if oldestKey == "" || e.expiresAt.Before(oldest) {
				oldestKey, oldest = key, e.expiresAt
			}
		}
		delete(m.entries, oldestKey)
	}
}

var _ Ledger = (*Memory)(nil)
