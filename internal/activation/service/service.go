// Package service orchestrates the activation workflow: validation before
// any write, step upserts, and the derived progress/completion view.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"lendgate/internal/activation"
	"lendgate/internal/activation/validator"
	"lendgate/internal/audit"
	"lendgate/internal/document"
	"lendgate/internal/platform/metrics"
	domainerrors "lendgate/pkg/domain-errors"
	"lendgate/pkg/sentinel"
)

// ProfileStore is the repository dependency of the orchestrator.
type ProfileStore interface {
	Get(ctx context.Context, userID string) (*activation.Profile, error)
	UpsertStep(ctx context.Context, userID string, payload activation.StepPayload) (*activation.Profile, error)
}

// DocumentSource lists a user's uploaded documents for the combined view.
type DocumentSource interface {
	ListForUser(ctx context.Context, userID string) ([]*document.Document, error)
}

// Data is the consolidated activation view for one user.
type Data struct {
	Profile    *activation.Profile  `json:"profile"`
	Progress   int                  `json:"progress"`
	IsComplete bool                 `json:"isComplete"`
	Documents  []*document.Document `json:"documents"`
}

// Service coordinates step validation, persistence, and derived state.
type Service struct {
	store     ProfileStore
	documents DocumentSource
	publisher *audit.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAudit(p *audit.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func New(store ProfileStore, documents DocumentSource, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("profile store is required")
	}
	if documents == nil {
		return nil, fmt.Errorf("document source is required")
	}
	svc := &Service{
		store:     store,
		documents: documents,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// SaveStepData validates the raw payload for the given step and, only when
// valid, upserts it. Validation failures carry the full violation list and
// cause no write at all.
func (s *Service) SaveStepData(ctx context.Context, userID string, step int, raw json.RawMessage) (*activation.Profile, error) {
	payload, err := validator.DecodeStep(step, raw)
	if err != nil {
		return nil, err
	}
	if err := validator.Validate(payload); err != nil {
		return nil, err
	}

	profile, err := s.store.UpsertStep(ctx, userID, payload)
	if err != nil {
		s.logger.ErrorContext(ctx, "step upsert failed",
			"operation", "SaveStepData",
			"user_id", userID,
			"step", step,
			"error", err,
		)
		return nil, domainerrors.Wrap(domainerrors.CodeStorage, "save step data", err)
	}

	s.metrics.RecordStepWrite(strconv.Itoa(step))
	s.emit(ctx, audit.Event{
		Action:   audit.ActionStepSaved,
		UserID:   userID,
		EntityID: strconv.Itoa(step),
	})

	// CompletedAt and UpdatedAt share the same clock reading when the
	// completing write stamps them, so equality detects the transition.
	if profile.CompletedAt != nil && profile.CompletedAt.Equal(profile.UpdatedAt) {
		s.metrics.RecordActivationCompleted()
		s.emit(ctx, audit.Event{
			Action: audit.ActionActivationCompleted,
			UserID: userID,
		})
	}
	return profile, nil
}

// ActivationData returns the combined profile, progress, and document view.
// A user who has not started gets the default state, not an error.
func (s *Service) ActivationData(ctx context.Context, userID string) (*Data, error) {
	profile, err := s.Profile(ctx, userID)
	if err != nil {
		s.logger.ErrorContext(ctx, "profile read failed",
			"operation", "ActivationData",
			"user_id", userID,
			"error", err,
		)
		return nil, err
	}

	documents, err := s.documents.ListForUser(ctx, userID)
	if err != nil {
		s.logger.ErrorContext(ctx, "document list failed",
			"operation", "ActivationData",
			"user_id", userID,
			"error", err,
		)
		return nil, domainerrors.Wrap(domainerrors.CodeStorage, "list documents", err)
	}

	return &Data{
		Profile:    profile,
		Progress:   profile.Progress(),
		IsComplete: profile != nil && profile.Status == activation.StatusCompleted,
		Documents:  documents,
	}, nil
}

// Profile returns the stored profile, nil when the user has not started.
func (s *Service) Profile(ctx context.Context, userID string) (*activation.Profile, error) {
	profile, err := s.store.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, domainerrors.Wrap(domainerrors.CodeStorage, "load activation profile", err)
	}
	return profile, nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.publisher == nil {
		return
	}
	s.publisher.Emit(ctx, event)
}
