package automation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DedupWindow is how long a (automation, event payload) pair suppresses
// repeated executions.
const DedupWindow = 5 * time.Second

const sweepInterval = 1000

// DedupStore suppresses duplicate automation executions. CheckAndMark
// atomically records the key and reports whether it was already marked
// inside the window.
type DedupStore interface {
	CheckAndMark(ctx context.Context, key string) (bool, error)
}

// MemoryDedupStore keeps dedup marks in a process-local map. Entries are
// expired lazily on access and swept in bulk every sweepInterval checks.
type MemoryDedupStore struct {
	mu      sync.Mutex
	window  time.Duration
	marks   map[string]time.Time
	checks  int
	nowFunc func() time.Time
}

// NewMemoryDedupStore creates a process-local dedup store.
func NewMemoryDedupStore(window time.Duration) *MemoryDedupStore {
	return &MemoryDedupStore{
		window:  window,
		marks:   make(map[string]time.Time),
		nowFunc: time.Now,
	}
}

func (s *MemoryDedupStore) CheckAndMark(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFunc()

	s.checks++
	if s.checks%sweepInterval == 0 {
		for mark, at := range s.marks {
			if now.Sub(at) >= s.window {
				delete(s.marks, mark)
			}
		}
	}

	at, ok := s.marks[key]
	if ok && now.Sub(at) < s.window {
		return true, nil
	}

	s.marks[key] = now

	return false, nil
}

// RedisDedupStore shares dedup marks across engine instances using
// SET NX PX, so the check and the mark are a single round trip.
type RedisDedupStore struct {
	client *redis.Client
	window time.Duration
}

// NewRedisDedupStore creates a dedup store over the given Redis client.
func NewRedisDedupStore(client *redis.Client, window time.Duration) *RedisDedupStore {
	return &RedisDedupStore{client: client, window: window}
}

func (s *RedisDedupStore) CheckAndMark(ctx context.Context, key string) (bool, error) {
	set, err := s.client.SetNX(ctx, "automation:dedup:"+key, 1, s.window).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark dedup key: %w", err)
	}

	return !set, nil
}
