package services

import (
	"sort"
	"sync"

	"github.com/evalIA/property-import-service/internal/models"
)

// SessionStore keeps import sessions in memory. Once more than max are held the
// oldest completed or failed sessions are evicted; sessions awaiting review are
// never dropped, so the store may run over max until they are finalized.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.ImportSession
	order    []string
	max      int
}

// NewSessionStore creates a store; max <= 0 means unbounded
func NewSessionStore(max int) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*models.ImportSession),
		max:      max,
	}
}

// Put adds or replaces a session and returns snapshots of the sessions it evicted
func (s *SessionStore) Put(session *models.ImportSession) []*models.ImportSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.ID]; !exists {
		s.order = append(s.order, session.ID)
	}
	s.sessions[session.ID] = session
	return s.evictLocked()
}

func evictable(status models.SessionStatus) bool {
	return status == models.StatusCompleted || status == models.StatusFailed
}

func (s *SessionStore) evictLocked() []*models.ImportSession {
	if s.max <= 0 {
		return nil
	}
	var evicted []*models.ImportSession
	for i := 0; len(s.sessions) > s.max && i < len(s.order); {
		id := s.order[i]
		snap := s.sessions[id].Snapshot()
		if !evictable(snap.Status) {
			i++
			continue
		}
		delete(s.sessions, id)
		s.order = append(s.order[:i], s.order[i+1:]...)
		evicted = append(evicted, snap)
	}
	return evicted
}

// Get returns the live session. Callers must Lock it before mutating.
func (s *SessionStore) Get(id string) (*models.ImportSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	return session, ok
}

// ListByUser returns snapshots of a user's sessions, newest first
func (s *SessionStore) ListByUser(userID string) []*models.ImportSession {
	s.mu.RLock()
	live := make([]*models.ImportSession, 0)
	for _, id := range s.order {
		if session := s.sessions[id]; session.UserID == userID {
			live = append(live, session)
		}
	}
	s.mu.RUnlock()

	out := make([]*models.ImportSession, len(live))
	for i, session := range live {
		out[i] = session.Snapshot()
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Delete removes a session
func (s *SessionStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return
	}
	delete(s.sessions, id)
	for i, o := range s.order {
		if o == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Len is the number of sessions held
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
