package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// ErrSessionNotFound is returned for unknown or expired session ids.
var ErrSessionNotFound = errors.New("session not found")

// Store persists sessions between requests.
type Store interface {
	Create(s *Session) error
	Get(id string) (*Session, error)
	Delete(id string) error
	List() []*Session
	Len() int
	Close()
}

// EvictFunc is called for every session removed by expiry or capacity.
type EvictFunc func(s *Session, reason string)

// StoreOptions configures a MemoryStore.
type StoreOptions struct {
	TTL             time.Duration
	JanitorInterval time.Duration
	MaxSessions     int
	OnEvict         EvictFunc
	Logger          *slog.Logger
}

// MemoryStore is an in-memory implementation of Store
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	opts     StoreOptions
	now      func() time.Time
	logger   *slog.Logger

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewMemoryStore creates a store and starts its janitor when both TTL and
// JanitorInterval are positive.
func NewMemoryStore(opts StoreOptions) *MemoryStore {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &MemoryStore{
		sessions: make(map[string]*Session),
		opts:     opts,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "session_store")),
		stop:     make(chan struct{}),
	}
	if opts.TTL > 0 && opts.JanitorInterval > 0 {
		s.wg.Add(1)
		go s.janitor()
	}
	return s
}

// Create adds a session, evicting the least recently used one when the
// store is full.
func (s *MemoryStore) Create(sess *Session) error {
	s.mu.Lock()
	if _, exists := s.sessions[sess.ID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("session %s already exists", sess.ID)
	}

	var evicted []*Session
	if s.opts.MaxSessions > 0 {
		for len(s.sessions) >= s.opts.MaxSessions {
			victim := s.oldestLocked()
			delete(s.sessions, victim.ID)
			evicted = append(evicted, victim)
		}
	}
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	s.notify(evicted, "capacity")
	return nil
}

// Get retrieves a session by ID and marks it as used. A session found
// expired is removed on the spot.
func (s *MemoryStore) Get(id string) (*Session, error) {
	s.mu.Lock()
	sess, exists := s.sessions[id]
	if !exists {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if s.expiredLocked(sess) {
		delete(s.sessions, id)
		s.mu.Unlock()
		s.notify([]*Session{sess}, "expired")
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	sess.LastAccess = s.now()
	sessCopy := *sess
	s.mu.Unlock()

	return &sessCopy, nil
}

// Delete removes a session from the store. An expired session is reported
// as not found, like Get does, and is evicted as expired.
func (s *MemoryStore) Delete(id string) error {
	s.mu.Lock()
	sess, exists := s.sessions[id]
	if !exists {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(s.sessions, id)
	expired := s.expiredLocked(sess)
	s.mu.Unlock()

	if expired {
		s.notify([]*Session{sess}, "expired")
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}

// List returns every live session, most recently created first.
func (s *MemoryStore) List() []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		if s.expiredLocked(sess) {
			continue
		}
		sessCopy := *sess
		result = append(result, &sessCopy)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

// Len returns the number of stored sessions, expired ones included until
// the janitor collects them.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// CleanupExpired removes sessions idle for longer than the TTL.
func (s *MemoryStore) CleanupExpired() int {
	if s.opts.TTL <= 0 {
		return 0
	}

	s.mu.Lock()
	var evicted []*Session
	for id, sess := range s.sessions {
		if s.expiredLocked(sess) {
			delete(s.sessions, id)
			evicted = append(evicted, sess)
		}
	}
	s.mu.Unlock()

	s.notify(evicted, "expired")
	return len(evicted)
}

// Close stops the janitor. It is safe to call more than once.
func (s *MemoryStore) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()
}

func (s *MemoryStore) janitor() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.opts.JanitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if n := s.CleanupExpired(); n > 0 {
				s.logger.Info("expired sessions removed", slog.Int("count", n))
			}
		}
	}
}

func (s *MemoryStore) expiredLocked(sess *Session) bool {
	return s.opts.TTL > 0 && s.now().Sub(sess.LastAccess) > s.opts.TTL
}

func (s *MemoryStore) oldestLocked() *Session {
	var oldest *Session
	for _, sess := range s.sessions {
		if oldest == nil || sess.LastAccess.Before(oldest.LastAccess) {
			oldest = sess
		}
	}
	return oldest
}

func (s *MemoryStore) notify(evicted []*Session, reason string) {
	for _, sess := range evicted {
		s.logger.Debug("session evicted",
			slog.String("session_id", sess.ID),
			slog.String("reason", reason))
		if s.opts.OnEvict != nil {
			s.opts.OnEvict(sess, reason)
		}
	}
}
