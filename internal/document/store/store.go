// Package store persists document records and their binary content. Record
// stores hold metadata rows; the ContentStore holds bytes and is selected
// once at construction from configuration, never per call.
package store

import (
	"context"

	"lendgate/internal/document"
)

// RecordStore is the document metadata repository. Lookups that miss return
// sentinel.ErrNotFound wrapped with operation context.
type RecordStore interface {
	Create(ctx context.Context, doc *document.Document) error
	// Get returns the record regardless of owner; ownership is enforced by
	// the service so "missing" and "not yours" stay indistinguishable
	// externally.
	Get(ctx context.Context, documentID string) (*document.Document, error)
	Update(ctx context.Context, doc *document.Document) error
	Delete(ctx context.Context, documentID string) error
	// ListForUser returns the user's documents ordered newest first.
	ListForUser(ctx context.Context, userID string) ([]*document.Document, error)
}

// ContentStore is the binary content backend behind the record store.
type ContentStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}
