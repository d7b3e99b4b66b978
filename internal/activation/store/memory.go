package store

import (
	"context"
	"sync"

	"lendgate/internal/activation"
	"lendgate/pkg/requestcontext"
	"lendgate/pkg/sentinel"
)

// InMemory is a mutex-guarded profile store for tests and single-instance
// development. The lock serializes per-step writes the same way the row lock
// does in PostgreSQL.
type InMemory struct {
	mu       sync.RWMutex
	profiles map[string]*activation.Profile
}

func NewInMemory() *InMemory {
	return &InMemory{profiles: make(map[string]*activation.Profile)}
}

func (s *InMemory) Get(_ context.Context, userID string) (*activation.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	profile, ok := s.profiles[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return profile.Clone(), nil
}

func (s *InMemory) UpsertStep(ctx context.Context, userID string, payload activation.StepPayload) (*activation.Profile, error) {
	now := requestcontext.Now(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	profile, ok := s.profiles[userID]
	if !ok {
		profile = NewProfile(userID, now)
		s.profiles[userID] = profile
	}
	RecordStep(profile, payload, now)
	return profile.Clone(), nil
}
