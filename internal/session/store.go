package session

import (
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Store keeps sessions in memory with a TTL. Expired sessions are purged by
// the cache's janitor. The mutex serializes read-modify-write cycles so two
// concurrent requests for the same session cannot interleave updates. The
// live session object never leaves the lock: every exported method returns a
// snapshot, so callers can encode or inspect it while other requests mutate
// the original.
type Store struct {
	mu    sync.Mutex
	cache *gocache.Cache
	ttl   time.Duration
}

// NewStore creates a session store with the given TTL.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		cache: gocache.New(ttl, ttl/2),
		ttl:   ttl,
	}
}

// Create makes a new empty session and stores it.
func (s *Store) Create() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := New()
	s.cache.Set(sess.ID, sess, s.ttl)
	return sess.Snapshot()
}

// Get returns a snapshot of the session by ID.
func (s *Store) Get(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return sess.Snapshot(), nil
}

// Update applies fn to the session under the store lock and refreshes its
// TTL. Errors from fn are returned unchanged. The returned session is a
// snapshot taken after fn ran.
func (s *Store) Update(id string, fn func(*Session) error) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}
	if err := fn(sess); err != nil {
		return nil, err
	}
	s.cache.Set(sess.ID, sess, s.ttl)
	return sess.Snapshot(), nil
}

// Delete removes a session.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Delete(id)
}

func (s *Store) get(id string) (*Session, error) {
	v, ok := s.cache.Get(id)
	if !ok {
		return nil, fmt.Errorf("session %s not found", id)
	}
	return v.(*Session), nil
}
