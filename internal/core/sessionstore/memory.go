// Package sessionstore holds the non-SQL SessionStore implementations.
package sessionstore

import (
	"context"
	"sync"
	"time"

	"github.com/markdave123-py/supplement-advisor/internal/core"
	"github.com/markdave123-py/supplement-advisor/internal/models"
)

var _ core.SessionStore = (*MemoryStore)(nil)

// MemoryStore keeps sessions in a process-local map.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.SurveySession
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*models.SurveySession)}
}

func (s *MemoryStore) GetOrCreate(_ context.Context, userID string, now time.Time) (*models.SurveySession, error) {
	s.mu.RLock()
	sess, ok := s.sessions[userID]
	s.mu.RUnlock()
	if ok {
		return sess.Clone(), nil
	}
	return models.NewSurveySession(userID, now), nil
}

func (s *MemoryStore) Put(_ context.Context, session *models.SurveySession) error {
	s.mu.Lock()
	s.sessions[session.UserID] = session.Clone()
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) SweepExpired(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, sess := range s.sessions {
		if sess.LastActivity.Before(cutoff) {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Close() error { return nil }

// Len reports how many sessions are held.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
