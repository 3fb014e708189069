package state

import "sync"

// Store holds at most one session of type T per user. T should be a value
// type; Get and Set copy it so callers never share a session.
// Store is safe for concurrent use.
type Store[T any] struct {
	mu       sync.RWMutex
	sessions map[int64]T

	locksMu sync.Mutex
	locks   map[int64]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

// NewStore returns an empty Store.
func NewStore[T any]() *Store[T] {
	return &Store[T]{
		sessions: make(map[int64]T),
		locks:    make(map[int64]*userLock),
	}
}

// Get returns the session of userID and whether one exists.
func (s *Store[T]) Get(userID int64) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.sessions[userID]
	return v, ok
}

// Set replaces the session of userID.
func (s *Store[T]) Set(userID int64, v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[userID] = v
}

// Clear removes the session of userID; absent sessions are ignored.
func (s *Store[T]) Clear(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
}

// Len returns the number of live sessions.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Lock serializes work for one user and returns the unlock function.
// Lock entries are dropped once no goroutine holds or waits for them.
func (s *Store[T]) Lock(userID int64) (unlock func()) {
	s.locksMu.Lock()
	l, ok := s.locks[userID]
	if !ok {
		l = &userLock{}
		s.locks[userID] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Unlock()
			s.locksMu.Lock()
			l.refs--
			if l.refs == 0 {
				delete(s.locks, userID)
			}
			s.locksMu.Unlock()
		})
	}
}

func (s *Store[T]) lockCount() int {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	return len(s.locks)
}
