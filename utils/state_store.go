package utils

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const oauthStatePrefix = "agroph:oauth:state:"

// StateStore issues single-use OAuth state values. Redis backs it when available,
// otherwise an in-process map (single instance only).
type StateStore struct {
	rc  *redis.Client
	ttl time.Duration

	mu      sync.Mutex
	entries map[string]time.Time
}

// NewStateStore creates a store; rc may be nil.
func NewStateStore(rc *redis.Client, ttl time.Duration) *StateStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &StateStore{rc: rc, ttl: ttl, entries: map[string]time.Time{}}
}

// Issue creates and records a fresh state value.
func (s *StateStore) Issue(ctx context.Context) (string, error) {
	state := uuid.NewString()
	if s.rc != nil {
		if err := s.rc.Set(ctx, oauthStatePrefix+state, "1", s.ttl).Err(); err != nil {
			return "", err
		}
		return state, nil
	}

	now := time.Now()
	s.mu.Lock()
	for k, exp := range s.entries {
		if now.After(exp) {
			delete(s.entries, k)
		}
	}
	s.entries[state] = now.Add(s.ttl)
	s.mu.Unlock()
	return state, nil
}

// Consume validates and removes a state value. A second call with the same value fails.
func (s *StateStore) Consume(ctx context.Context, state string) bool {
	if state == "" {
		return false
	}
	if s.rc != nil {
		v, err := s.rc.GetDel(ctx, oauthStatePrefix+state).Result()
		return err == nil && v != ""
	}

	s.mu.Lock()
	exp, ok := s.entries[state]
	delete(s.entries, state)
	s.mu.Unlock()
	return ok && time.Now().Before(exp)
}
