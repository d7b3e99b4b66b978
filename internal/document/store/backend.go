package store

import (
	"context"
	"encoding/base64"
	"fmt"

	"lendgate/internal/document"
)

// Backend places document content either on the record itself (inline
// base64) or into a ContentStore behind a storage key. The deployment picks
// one backend at construction; callers never branch on encoding.
type Backend interface {
	// Store attaches data to doc, setting exactly one of InlineData and
	// StorageKey.
	Store(ctx context.Context, doc *document.Document, data []byte) error
	// Load returns the raw bytes for doc.
	Load(ctx context.Context, doc *document.Document) ([]byte, error)
	// Remove discards physical content that lives outside the record. For
	// inline documents the content dies with the row and Remove is a no-op.
	Remove(ctx context.Context, doc *document.Document) error
}

// InlineBackend keeps content as a base64 payload on the document record.
// It is the fallback engine for deployments without blob storage.
type InlineBackend struct{}

func NewInlineBackend() *InlineBackend { return &InlineBackend{} }

func (b *InlineBackend) Store(_ context.Context, doc *document.Document, data []byte) error {
	doc.InlineData = base64.StdEncoding.EncodeToString(data)
	doc.StorageKey = ""
	return nil
}

func (b *InlineBackend) Load(_ context.Context, doc *document.Document) ([]byte, error) {
	if doc.InlineData == "" {
		return nil, fmt.Errorf("document %s has no inline payload", doc.ID)
	}
	data, err := base64.StdEncoding.DecodeString(doc.InlineData)
	if err != nil {
		return nil, fmt.Errorf("decode inline payload for %s: %w", doc.ID, err)
	}
	return data, nil
}

func (b *InlineBackend) Remove(_ context.Context, _ *document.Document) error { return nil }

// ContentBackend stores content in a ContentStore keyed by user and
// document, keeping only the key on the record.
type ContentBackend struct {
	content ContentStore
}

func NewContentBackend(content ContentStore) *ContentBackend {
	return &ContentBackend{content: content}
}

func (b *ContentBackend) Store(ctx context.Context, doc *document.Document, data []byte) error {
	key := ContentKey(doc)
	if err := b.content.Put(ctx, key, data); err != nil {
		return err
	}
	doc.StorageKey = key
	doc.InlineData = ""
	return nil
}

func (b *ContentBackend) Load(ctx context.Context, doc *document.Document) ([]byte, error) {
	if doc.StorageKey == "" {
		return nil, fmt.Errorf("document %s has no storage key", doc.ID)
	}
	return b.content.Get(ctx, doc.StorageKey)
}

func (b *ContentBackend) Remove(ctx context.Context, doc *document.Document) error {
	if doc.StorageKey == "" {
		return nil
	}
	return b.content.Delete(ctx, doc.StorageKey)
}

// ContentKey derives the storage key for a document revision. UpdatedAt is
// folded in so a replace writes a fresh key instead of overwriting the old
// blob before the record commits.
func ContentKey(doc *document.Document) string {
	return fmt.Sprintf("%s/%s-%d", doc.UserID, doc.ID, doc.UpdatedAt.UnixNano())
}
