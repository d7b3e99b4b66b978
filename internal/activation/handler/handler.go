// Package handler wires the activation endpoints: step submission, the
// consolidated activation view, and the cached batch aggregate.
package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"lendgate/internal/activation"
	"lendgate/internal/activation/batch"
	"lendgate/internal/activation/service"
	"lendgate/internal/platform/metrics"
	"lendgate/pkg/cache"
	domainerrors "lendgate/pkg/domain-errors"
	"lendgate/pkg/platform/httputil"
	"lendgate/pkg/requestcontext"
)

const defaultBatchTTL = 30 * time.Second

// Service defines the activation operations the handler depends on.
type Service interface {
	SaveStepData(ctx context.Context, userID string, step int, raw json.RawMessage) (*activation.Profile, error)
	ActivationData(ctx context.Context, userID string) (*service.Data, error)
}

// BatchSource produces the combined profile-plus-documents aggregate.
type BatchSource interface {
	Batch(ctx context.Context, userID string) (*batch.Aggregate, error)
}

// Handler handles activation endpoints.
type Handler struct {
	service  Service
	batch    BatchSource
	cache    cache.Cache
	batchTTL time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Handler)

// WithBatchCache enables short-TTL caching of the batch aggregate. A zero
// ttl keeps the default.
func WithBatchCache(c cache.Cache, ttl time.Duration) Option {
	return func(h *Handler) {
		h.cache = c
		if ttl > 0 {
			h.batchTTL = ttl
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// New constructs an activation handler with its dependencies.
func New(service Service, batchSource BatchSource, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		service:  service,
		batch:    batchSource,
		batchTTL: defaultBatchTTL,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts activation endpoints on the router. The router applies
// authentication before these run.
func (h *Handler) Register(r chi.Router) {
	r.Post("/activation/steps/{step}", h.HandleSaveStep)
	r.Get("/activation", h.HandleActivationData)
	r.Get("/activation/batch", h.HandleBatch)
}

// HandleSaveStep handles POST /activation/steps/{step} requests.
func (h *Handler) HandleSaveStep(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID := requestcontext.UserID(ctx)

	step, err := strconv.Atoi(chi.URLParam(r, "step"))
	if err != nil {
		httputil.WriteError(w, domainerrors.New(domainerrors.CodeBadRequest, "step must be a number"))
		return
	}

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.WriteError(w, domainerrors.New(domainerrors.CodeBadRequest, "unreadable request body"))
		return
	}

	profile, err := h.service.SaveStepData(ctx, userID, step, raw)
	if err != nil {
		if _, ok := domainerrors.AsValidation(err); !ok && !domainerrors.Is(err, domainerrors.CodeBadRequest) {
			h.logger.ErrorContext(ctx, "step save failed",
				"request_id", requestID,
				"step", step,
				"error", err.Error(),
			)
		}
		httputil.WriteError(w, err)
		return
	}

	// A successful write stales the cached aggregate.
	h.invalidateBatch(ctx, userID)

	httputil.WriteJSON(w, http.StatusOK, profile)
}

// HandleActivationData handles GET /activation requests.
func (h *Handler) HandleActivationData(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)

	data, err := h.service.ActivationData(ctx, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "activation data failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, data)
}

// HandleBatch handles GET /activation/batch requests. The aggregate is
// cached briefly per user; a degraded aggregate is served but never cached.
func (h *Handler) HandleBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)

	if cached, ok := h.cachedBatch(ctx, userID); ok {
		h.metrics.RecordCacheHit()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(cached)
		return
	}
	h.metrics.RecordCacheMiss()

	aggregate, err := h.batch.Batch(ctx, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "batch aggregate failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	if !aggregate.Degraded {
		h.storeBatch(ctx, userID, aggregate)
	}
	httputil.WriteJSON(w, http.StatusOK, aggregate)
}

func (h *Handler) cachedBatch(ctx context.Context, userID string) ([]byte, bool) {
	if h.cache == nil {
		return nil, false
	}
	body, err := h.cache.Get(ctx, batch.CacheKey(userID))
	if err != nil {
		return nil, false
	}
	return body, true
}

func (h *Handler) storeBatch(ctx context.Context, userID string, aggregate *batch.Aggregate) {
	if h.cache == nil {
		return
	}
	body, err := json.Marshal(aggregate)
	if err != nil {
		return
	}
	if err := h.cache.Set(ctx, batch.CacheKey(userID), body, h.batchTTL); err != nil {
		h.logger.WarnContext(ctx, "batch cache store failed",
			"user_id", userID,
			"error", err.Error(),
		)
	}
}

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
