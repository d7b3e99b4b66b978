package store

import (
	"context"
	"sort"
	"sync"

	"lendgate/internal/document"
	"lendgate/pkg/sentinel"
)

// InMemoryRecords is a mutex-guarded record store for tests and
// single-instance development.
type InMemoryRecords struct {
	mu   sync.RWMutex
	docs map[string]*document.Document
}

func NewInMemoryRecords() *InMemoryRecords {
	return &InMemoryRecords{docs: make(map[string]*document.Document)}
}

func (s *InMemoryRecords) Create(_ context.Context, doc *document.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.docs[doc.ID]; exists {
		return sentinel.ErrConflict
	}
	s.docs[doc.ID] = doc.Clone()
	return nil
}

func (s *InMemoryRecords) Get(_ context.Context, documentID string) (*document.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[documentID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return doc.Clone(), nil
}

func (s *InMemoryRecords) Update(_ context.Context, doc *document.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[doc.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.docs[doc.ID] = doc.Clone()
	return nil
}

func (s *InMemoryRecords) Delete(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[documentID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.docs, documentID)
	return nil
}

func (s *InMemoryRecords) ListForUser(_ context.Context, userID string) ([]*document.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var docs []*document.Document
	for _, doc := range s.docs {
		if doc.UserID == userID {
			docs = append(docs, doc.Clone())
		}
	}
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].ID > docs[j].ID
		}
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})
	return docs, nil
}
