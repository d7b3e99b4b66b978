// Package service implements the document operations: upload with content
// validation, ownership-checked reads bounded by a deadline, atomic replace,
// and deletion.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"lendgate/internal/audit"
	"lendgate/internal/document"
	"lendgate/internal/document/store"
	"lendgate/internal/platform/metrics"
	domainerrors "lendgate/pkg/domain-errors"
	"lendgate/pkg/requestcontext"
	"lendgate/pkg/sentinel"
)

const defaultReadTimeout = 3 * time.Second

// DefaultMaxBytes is the standard upload ceiling; the admin replace path may
// be configured higher.
const DefaultMaxBytes = 5 << 20

var allowedMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

// Upload describes one incoming document payload.
type Upload struct {
	Data                []byte
	MimeType            string
	DocumentType        document.Type
	Filename            string
	ActivationProfileID string
}

// Content is a document's raw bytes together with the mime type recorded at
// upload time.
type Content struct {
	Data     []byte
	MimeType string
}

// Service owns the document lifecycle against one record store and one
// content backend chosen at construction.
type Service struct {
	records     store.RecordStore
	backend     store.Backend
	maxBytes    int64
	readTimeout time.Duration
	publisher   *audit.Publisher
	metrics     *metrics.Metrics
	logger      *slog.Logger
	tracer      trace.Tracer
}

type Option func(*Service)

func WithMaxBytes(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

func WithReadTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.readTimeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAudit(p *audit.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func New(records store.RecordStore, backend store.Backend, opts ...Option) (*Service, error) {
	if records == nil {
		return nil, fmt.Errorf("record store is required")
	}
	if backend == nil {
		return nil, fmt.Errorf("content backend is required")
	}
	svc := &Service{
		records:     records,
		backend:     backend,
		maxBytes:    DefaultMaxBytes,
		readTimeout: defaultReadTimeout,
		logger:      slog.Default(),
		tracer:      otel.Tracer("lendgate/document"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// UploadDocument validates and stores a new document. Validation rejects the
// payload before any write happens.
func (s *Service) UploadDocument(ctx context.Context, userID string, upload Upload) (*document.Document, error) {
	ctx, span := s.tracer.Start(ctx, "document.upload",
		trace.WithAttributes(attribute.String("document.type", string(upload.DocumentType))))
	defer span.End()

	if err := s.validateUpload(upload); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	doc := &document.Document{
		ID:                  uuid.NewString(),
		UserID:              userID,
		ActivationProfileID: upload.ActivationProfileID,
		DocumentType:        upload.DocumentType,
		OriginalFilename:    upload.Filename,
		FileSize:            int64(len(upload.Data)),
		MimeType:            upload.MimeType,
		Checksum:            checksum(upload.Data),
		VerificationStatus:  document.VerificationPending,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := s.backend.Store(ctx, doc, upload.Data); err != nil {
		s.logStorage(ctx, "UploadDocument", userID, doc.ID, err)
		return nil, domainerrors.Wrap(domainerrors.CodeStorage, "store document content", err)
	}
	if err := s.records.Create(ctx, doc); err != nil {
		// The content write succeeded but the record did not; remove the
		// artifact so nothing orphaned stays reachable.
		if cleanupErr := s.backend.Remove(ctx, doc); cleanupErr != nil {
			s.logger.ErrorContext(ctx, "orphan cleanup failed",
				"operation", "UploadDocument",
				"user_id", userID,
				"document_id", doc.ID,
				"error", cleanupErr,
			)
		}
		s.logStorage(ctx, "UploadDocument", userID, doc.ID, err)
		return nil, domainerrors.Wrap(domainerrors.CodeStorage, "create document record", err)
	}

	s.metrics.RecordDocumentUpload(string(doc.DocumentType), doc.FileSize)
	s.emit(ctx, audit.Event{
		Action:   audit.ActionDocumentUploaded,
		UserID:   userID,
		EntityID: doc.ID,
		Detail:   string(doc.DocumentType),
	})
	return doc, nil
}

// Data returns the raw content of an owned document with its recorded mime
// type. Missing documents and documents owned by someone else produce the
// same not-found signal. The read is bounded; a deadline overrun is reported
// as a distinct timeout so the client can offer a retry.
func (s *Service) Data(ctx context.Context, documentID, userID string) (*Content, error) {
	ctx, span := s.tracer.Start(ctx, "document.data")
	defer span.End()

	doc, err := s.owned(ctx, documentID, userID)
	if err != nil {
		return nil, err
	}

	type loadResult struct {
		data []byte
		err  error
	}
	// Fire and forget: the backend read is not cancelled at the deadline,
	// its result is simply discarded.
	resultCh := make(chan loadResult, 1)
	go func() {
		data, loadErr := s.backend.Load(context.WithoutCancel(ctx), doc)
		resultCh <- loadResult{data: data, err: loadErr}
	}()

	timer := time.NewTimer(s.readTimeout)
	defer timer.Stop()
	select {
	case r := <-resultCh:
		if r.err != nil {
			if errors.Is(r.err, sentinel.ErrNotFound) {
				return nil, domainerrors.Wrap(domainerrors.CodeNotFound, "document not found", r.err)
			}
			s.logStorage(ctx, "Data", userID, documentID, r.err)
			return nil, domainerrors.Wrap(domainerrors.CodeStorage, "load document content", r.err)
		}
		return &Content{Data: r.data, MimeType: doc.MimeType}, nil
	case <-timer.C:
		s.metrics.RecordDocumentReadTimeout()
		span.SetAttributes(attribute.Bool("document.read_timeout", true))
		s.logger.WarnContext(ctx, "document read timed out",
			"operation", "Data",
			"user_id", userID,
			"document_id", documentID,
			"timeout", s.readTimeout.String(),
		)
		return nil, domainerrors.Wrap(domainerrors.CodeTimeout, "document read timed out", sentinel.ErrTimeout)
	}
}

// Replace swaps a document's content atomically: the new content is durably
// stored first, then the record is updated, and only then is the old
// artifact discarded. A failed record update removes the new artifact so the
// original stays the only reachable revision. Verification resets to pending.
func (s *Service) Replace(ctx context.Context, documentID, userID string, upload Upload) (*document.Document, error) {
	ctx, span := s.tracer.Start(ctx, "document.replace")
	defer span.End()

	if err := s.validateUpload(upload); err != nil {
		return nil, err
	}

	current, err := s.owned(ctx, documentID, userID)
	if err != nil {
		return nil, err
	}

	updated := current.Clone()
	updated.OriginalFilename = upload.Filename
	updated.FileSize = int64(len(upload.Data))
	updated.MimeType = upload.MimeType
	updated.Checksum = checksum(upload.Data)
	updated.VerificationStatus = document.VerificationPending
	updated.VerificationNotes = ""
	updated.UpdatedAt = requestcontext.Now(ctx)
	if upload.DocumentType != "" {
		updated.DocumentType = upload.DocumentType
	}

	if err := s.backend.Store(ctx, updated, upload.Data); err != nil {
		s.logStorage(ctx, "Replace", userID, documentID, err)
		return nil, domainerrors.Wrap(domainerrors.CodeStorage, "store replacement content", err)
	}

	if err := s.records.Update(ctx, updated); err != nil {
		if cleanupErr := s.backend.Remove(ctx, updated); cleanupErr != nil {
			s.logger.ErrorContext(ctx, "replacement cleanup failed",
				"operation", "Replace",
				"user_id", userID,
				"document_id", documentID,
				"error", cleanupErr,
			)
		}
		s.logStorage(ctx, "Replace", userID, documentID, err)
		return nil, domainerrors.Wrap(domainerrors.CodeStorage, "update document record", err)
	}

	// Record committed; the old physical artifact can go. Failure here
	// leaks a blob but never an inconsistent record, so log and continue.
	if current.StorageKey != "" && current.StorageKey != updated.StorageKey {
		if err := s.backend.Remove(ctx, current); err != nil {
			s.logger.WarnContext(ctx, "old artifact removal failed",
				"operation", "Replace",
				"user_id", userID,
				"document_id", documentID,
				"error", err,
			)
		}
	}

	s.emit(ctx, audit.Event{
		Action:   audit.ActionDocumentReplaced,
		UserID:   userID,
		EntityID: documentID,
	})
	return updated, nil
}

// Delete removes an owned document record and its content.
func (s *Service) Delete(ctx context.Context, documentID, userID string) error {
	doc, err := s.owned(ctx, documentID, userID)
	if err != nil {
		return err
	}
	if err := s.records.Delete(ctx, documentID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return domainerrors.Wrap(domainerrors.CodeNotFound, "document not found", err)
		}
		s.logStorage(ctx, "Delete", userID, documentID, err)
		return domainerrors.Wrap(domainerrors.CodeStorage, "delete document record", err)
	}
	if err := s.backend.Remove(ctx, doc); err != nil {
		s.logger.WarnContext(ctx, "artifact removal failed",
			"operation", "Delete",
			"user_id", userID,
			"document_id", documentID,
			"error", err,
		)
	}
	s.emit(ctx, audit.Event{
		Action:   audit.ActionDocumentDeleted,
		UserID:   userID,
		EntityID: documentID,
	})
	return nil
}

// ListForUser returns the user's documents newest first.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]*document.Document, error) {
	docs, err := s.records.ListForUser(ctx, userID)
	if err != nil {
		s.logStorage(ctx, "ListForUser", userID, "", err)
		return nil, domainerrors.Wrap(domainerrors.CodeStorage, "list documents", err)
	}
	return docs, nil
}

// owned fetches the record and verifies ownership. "Missing" and "not
// yours" are indistinguishable to the caller so document existence never
// leaks across users.
func (s *Service) owned(ctx context.Context, documentID, userID string) (*document.Document, error) {
	doc, err := s.records.Get(ctx, documentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, domainerrors.Wrap(domainerrors.CodeNotFound, "document not found", err)
		}
		s.logStorage(ctx, "Get", userID, documentID, err)
		return nil, domainerrors.Wrap(domainerrors.CodeStorage, "load document record", err)
	}
	if doc.UserID != userID {
		return nil, domainerrors.Wrap(domainerrors.CodeNotFound, "document not found", sentinel.ErrNotFound)
	}
	return doc, nil
}

func (s *Service) validateUpload(upload Upload) error {
	ve := &domainerrors.ValidationError{}
	if len(upload.Data) == 0 {
		ve.Add("file", "is required")
	}
	if int64(len(upload.Data)) > s.maxBytes {
		ve.Add("file", fmt.Sprintf("exceeds the maximum size of %d bytes", s.maxBytes))
	}
	if !allowedMimeTypes[upload.MimeType] {
		ve.Add("mimeType", "must be one of image/jpeg, image/png, image/webp, image/gif")
	}
	if !document.KnownTypes[upload.DocumentType] {
		ve.Add("documentType", "is not a known document type")
	}
	if upload.Filename == "" {
		ve.Add("filename", "is required")
	}
	return ve.ErrOrNil()
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.publisher == nil {
		return
	}
	s.publisher.Emit(ctx, event)
}

func (s *Service) logStorage(ctx context.Context, operation, userID, entityID string, err error) {
	s.logger.ErrorContext(ctx, "document storage failure",
		"operation", operation,
		"user_id", userID,
		"document_id", entityID,
		"error", err,
	)
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
