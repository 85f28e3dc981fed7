package session

import (
	"context"
	"sync"
	"time"

	"github.com/hyperjump/recall/internal/models"
	"github.com/patrickmn/go-cache"
)

type memorySession struct {
	mu      sync.Mutex
	queries []string
	terms   []string
	seen    map[string]struct{}
}

// MemoryStore keeps sessions in process memory. go-cache tracks expiry;
// writeMu makes lookup, mutation and the TTL refresh one step so a writer
// never re-installs a session another writer has already replaced.
type MemoryStore struct {
	cache   *cache.Cache
	ttl     time.Duration
	writeMu sync.Mutex
}

// NewMemoryStore returns a store whose sessions expire after ttl without
// writes. A ttl of 0 keeps sessions for the life of the process.
func NewMemoryStore(ttl, cleanupInterval time.Duration) *MemoryStore {
	expiration := ttl
	if ttl <= 0 {
		expiration = cache.NoExpiration
		cleanupInterval = 0
	} else if cleanupInterval <= 0 {
		cleanupInterval = ttl
	}
	return &MemoryStore{
		cache: cache.New(expiration, cleanupInterval),
		ttl:   expiration,
	}
}

// write applies fn to the live session for id, creating it when absent or
// expired, and restarts its TTL.
func (m *MemoryStore) write(id string, fn func(s *memorySession)) {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	var s *memorySession
	if x, found := m.cache.Get(id); found {
		s = x.(*memorySession)
	} else {
		s = &memorySession{seen: map[string]struct{}{}}
	}
	s.mu.Lock()
	fn(s)
	s.mu.Unlock()
	m.cache.Set(id, s, m.ttl)
}

// peek returns the session for id without creating it.
func (m *MemoryStore) peek(id string) (*memorySession, bool) {
	x, found := m.cache.Get(id)
	if !found {
		return nil, false
	}
	return x.(*memorySession), true
}

// StoreQuery implements Store.
func (m *MemoryStore) StoreQuery(ctx context.Context, sessionID, query string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.write(orDefault(sessionID), func(s *memorySession) {
		s.queries = append(s.queries, query)
	})
	return nil
}

// StoreTerms implements Store.
func (m *MemoryStore) StoreTerms(ctx context.Context, sessionID string, terms []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.write(orDefault(sessionID), func(s *memorySession) {
		for _, t := range terms {
			if t == "" {
				continue
			}
			if _, dup := s.seen[t]; dup {
				continue
			}
			s.seen[t] = struct{}{}
			s.terms = append(s.terms, t)
		}
	})
	return nil
}

// Terms implements Store.
func (m *MemoryStore) Terms(ctx context.Context, sessionID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s, ok := m.peek(orDefault(sessionID))
	if !ok {
		return []string{}, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.terms...), nil
}

// Queries implements Store.
func (m *MemoryStore) Queries(ctx context.Context, sessionID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s, ok := m.peek(orDefault(sessionID))
	if !ok {
		return []string{}, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.queries...), nil
}

// BuildEnhancedQuery implements Store.
func (m *MemoryStore) BuildEnhancedQuery(ctx context.Context, sessionID, current string) (string, error) {
	terms, err := m.Terms(ctx, sessionID)
	if err != nil {
		return "", err
	}
	return EnhanceTerms(current, terms), nil
}

// Snapshot implements Store.
func (m *MemoryStore) Snapshot(ctx context.Context, sessionID string) (models.SessionSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return models.SessionSnapshot{}, err
	}
	id := orDefault(sessionID)
	snap := models.SessionSnapshot{ID: id, Queries: []string{}, Terms: []string{}}
	s, ok := m.peek(id)
	if !ok {
		return snap, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snap.Queries = append(snap.Queries, s.queries...)
	snap.Terms = append(snap.Terms, s.terms...)
	return snap, nil
}

// Len returns the number of live sessions.
func (m *MemoryStore) Len() int {
	return m.cache.ItemCount()
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.cache.Flush()
	return nil
}
