// Package handler exposes the document endpoints: multipart upload, raw
// content download, replace, delete, and listing.
package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"lendgate/internal/activation/batch"
	"lendgate/internal/document"
	"lendgate/internal/document/service"
	"lendgate/pkg/cache"
	domainerrors "lendgate/pkg/domain-errors"
	"lendgate/pkg/platform/httputil"
	"lendgate/pkg/requestcontext"
)

// multipart form memory ceiling; larger parts spill to temp files.
const maxFormMemory = 8 << 20

// Request body ceiling for multipart writes. Slightly above the largest
// service-level size ceiling so the form overhead fits; the service still
// enforces the real per-document limit.
const maxRequestBytes = 12 << 20

// Service defines the document operations the handler depends on.
type Service interface {
	UploadDocument(ctx context.Context, userID string, upload service.Upload) (*document.Document, error)
	Data(ctx context.Context, documentID, userID string) (*service.Content, error)
	Replace(ctx context.Context, documentID, userID string, upload service.Upload) (*document.Document, error)
	Delete(ctx context.Context, documentID, userID string) error
	ListForUser(ctx context.Context, userID string) ([]*document.Document, error)
}

// Handler handles document endpoints.
type Handler struct {
	service Service
	cache   cache.Cache
	logger  *slog.Logger
}

type Option func(*Handler)

// WithBatchCache makes every document mutation invalidate the user's cached
// batch aggregate, so the next batch read sees the change.
func WithBatchCache(c cache.Cache) Option {
	return func(h *Handler) { h.cache = c }
}

// New constructs a document handler.
func New(service Service, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{service: service, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts document endpoints on the router. The router applies
// authentication before these run.
func (h *Handler) Register(r chi.Router) {
	r.Post("/documents", h.HandleUpload)
	r.Get("/documents", h.HandleList)
	r.Get("/documents/{documentID}/data", h.HandleData)
	r.Put("/documents/{documentID}", h.HandleReplace)
	r.Delete("/documents/{documentID}", h.HandleDelete)
}

// HandleUpload handles POST /documents multipart requests.
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)

	upload, err := parseUpload(w, r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	doc, err := h.service.UploadDocument(ctx, userID, upload)
	if err != nil {
		if _, ok := domainerrors.AsValidation(err); !ok {
			h.logFailure(ctx, "upload failed", err)
		}
		httputil.WriteError(w, err)
		return
	}

	h.invalidateBatch(ctx, userID)
	httputil.WriteJSON(w, http.StatusCreated, doc)
}

// HandleList handles GET /documents requests.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)

	docs, err := h.service.ListForUser(ctx, userID)
	if err != nil {
		h.logFailure(ctx, "list failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, docs)
}

// HandleData handles GET /documents/{documentID}/data requests, streaming
// the raw content back with its stored content type.
func (h *Handler) HandleData(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)
	documentID := chi.URLParam(r, "documentID")

	content, err := h.service.Data(ctx, documentID, userID)
	if err != nil {
		if !domainerrors.Is(err, domainerrors.CodeNotFound) {
			h.logFailure(ctx, "data read failed", err)
		}
		httputil.WriteError(w, err)
		return
	}

	mimeType := content.MimeType
	if mimeType == "" {
		mimeType = http.DetectContentType(content.Data)
	}
	w.Header().Set("Content-Type", mimeType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content.Data)
}

// HandleReplace handles PUT /documents/{documentID} multipart requests.
func (h *Handler) HandleReplace(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)
	documentID := chi.URLParam(r, "documentID")

	upload, err := parseUpload(w, r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	doc, err := h.service.Replace(ctx, documentID, userID, upload)
	if err != nil {
		_, isValidation := domainerrors.AsValidation(err)
		if !isValidation && !domainerrors.Is(err, domainerrors.CodeNotFound) {
			h.logFailure(ctx, "replace failed", err)
		}
		httputil.WriteError(w, err)
		return
	}

	h.invalidateBatch(ctx, userID)
	httputil.WriteJSON(w, http.StatusOK, doc)
}

// HandleDelete handles DELETE /documents/{documentID} requests.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)
	documentID := chi.URLParam(r, "documentID")

	if err := h.service.Delete(ctx, documentID, userID); err != nil {
		if !domainerrors.Is(err, domainerrors.CodeNotFound) {
			h.logFailure(ctx, "delete failed", err)
		}
		httputil.WriteError(w, err)
		return
	}

	h.invalidateBatch(ctx, userID)
	w.WriteHeader(http.StatusNoContent)
}

// parseUpload extracts the file part and its metadata fields from a
// multipart form. The body is capped before parsing so an oversized upload
// is cut off on the wire instead of being buffered in full.
func parseUpload(w http.ResponseWriter, r *http.Request) (service.Upload, error) {
	var upload service.Upload
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return upload, domainerrors.New(domainerrors.CodeBadRequest, "request body exceeds the upload limit")
		}
		return upload, domainerrors.New(domainerrors.CodeBadRequest, "expected a multipart form")
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return upload, domainerrors.New(domainerrors.CodeBadRequest, "file part is required")
		}
		return upload, domainerrors.New(domainerrors.CodeBadRequest, "unreadable file part")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return upload, domainerrors.New(domainerrors.CodeBadRequest, "unreadable file part")
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}

	upload = service.Upload{
		Data:                data,
		MimeType:            mimeType,
		DocumentType:        document.Type(r.FormValue("documentType")),
		Filename:            header.Filename,
		ActivationProfileID: r.FormValue("activationProfileId"),
	}
	return upload, nil
}

// invalidateBatch drops the user's cached batch aggregate after a mutation
// so a following batch read reflects the new document set.
func (h *Handler) invalidateBatch(ctx context.Context, userID string) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Invalidate(ctx, batch.CacheKey(userID)); err != nil {
		h.logger.WarnContext(ctx, "batch cache invalidation failed",
			"user_id", userID,
			"error", err.Error(),
		)
	}
}

func (h *Handler) logFailure(ctx context.Context, msg string, err error) {
	h.logger.ErrorContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err.Error(),
	)
}
