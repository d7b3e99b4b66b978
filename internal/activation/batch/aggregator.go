// Package batch assembles the consolidated profile-plus-documents read the
// activation UI renders from. Availability wins over consistency here: a
// slow store degrades the response, it never blocks the page.
package batch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"lendgate/internal/activation"
	"lendgate/internal/document"
	"lendgate/internal/platform/metrics"
	"lendgate/pkg/sentinel"
)

const defaultDeadline = 3 * time.Second

// ProfileStore provides the profile read half of the aggregate.
type ProfileStore interface {
	Get(ctx context.Context, userID string) (*activation.Profile, error)
}

// DocumentSource provides the documents half of the aggregate.
type DocumentSource interface {
	ListForUser(ctx context.Context, userID string) ([]*document.Document, error)
}

// Stats counts the returned document set by verification state. Rejected
// documents get their own bucket rather than disappearing into the total.
type Stats struct {
	Total    int `json:"total"`
	Verified int `json:"verified"`
	Pending  int `json:"pending"`
	Rejected int `json:"rejected"`
}

// Aggregate is the batch response: profile, grouped documents, and derived
// progress. Degraded marks the fallback shape produced when the deadline
// fired before both reads returned.
type Aggregate struct {
	Profile         *activation.Profile                  `json:"profile"`
	Documents       []*document.Document                 `json:"documents"`
	DocumentsByType map[document.Type][]*document.Document `json:"documentsByType"`
	Progress        int                                  `json:"progress"`
	IsComplete      bool                                 `json:"isComplete"`
	Stats           Stats                                `json:"stats"`
	Degraded        bool                                 `json:"degraded,omitempty"`
}

// CacheKey is the per-user cache key for a batch aggregate. Every write
// that changes the aggregate must invalidate this key, whether it came
// through the activation or the document endpoints.
func CacheKey(userID string) string {
	return "batch:" + userID
}

// Aggregator runs both reads concurrently under a shared deadline.
type Aggregator struct {
	profiles  ProfileStore
	documents DocumentSource
	deadline  time.Duration
	group     singleflight.Group
	metrics   *metrics.Metrics
	logger    *slog.Logger
	tracer    trace.Tracer
}

type Option func(*Aggregator)

func WithDeadline(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.deadline = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) { a.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Aggregator) { a.metrics = m }
}

func New(profiles ProfileStore, documents DocumentSource, opts ...Option) *Aggregator {
	a := &Aggregator{
		profiles:  profiles,
		documents: documents,
		deadline:  defaultDeadline,
		logger:    slog.Default(),
		tracer:    otel.Tracer("lendgate/activation/batch"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type profileResult struct {
	profile *activation.Profile
	err     error
}

type documentsResult struct {
	documents []*document.Document
	err       error
}

// Batch returns the consolidated aggregate for one user. Concurrent calls
// for the same user share a single underlying aggregation. Timeouts and
// store failures produce the degraded fallback, never an error; the caller
// may cache the result for a short TTL.
func (a *Aggregator) Batch(ctx context.Context, userID string) (*Aggregate, error) {
	result, err, _ := a.group.Do(userID, func() (any, error) {
		return a.aggregate(ctx, userID), nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*Aggregate), nil
}

func (a *Aggregator) aggregate(ctx context.Context, userID string) *Aggregate {
	ctx, span := a.tracer.Start(ctx, "batch.aggregate",
		trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	start := time.Now()

	// The store calls run on an uncancellable context: when the deadline
	// fires we abandon waiting, not the operations themselves, since the
	// backends may not support cancellation.
	storeCtx := context.WithoutCancel(ctx)

	profileCh := make(chan profileResult, 1)
	documentsCh := make(chan documentsResult, 1)
	go func() {
		profile, err := a.profiles.Get(storeCtx, userID)
		profileCh <- profileResult{profile: profile, err: err}
	}()
	go func() {
		documents, err := a.documents.ListForUser(storeCtx, userID)
		documentsCh <- documentsResult{documents: documents, err: err}
	}()

	timer := time.NewTimer(a.deadline)
	defer timer.Stop()

	var (
		profile   *activation.Profile
		documents []*document.Document
	)
	for pending := 2; pending > 0; pending-- {
		select {
		case r := <-profileCh:
			if r.err != nil && !errors.Is(r.err, sentinel.ErrNotFound) {
				a.logger.WarnContext(ctx, "batch profile read failed, degrading",
					"user_id", userID,
					"error", r.err,
				)
				return a.fallback(span, start)
			}
			profile = r.profile
		case r := <-documentsCh:
			if r.err != nil {
				a.logger.WarnContext(ctx, "batch document read failed, degrading",
					"user_id", userID,
					"error", r.err,
				)
				return a.fallback(span, start)
			}
			documents = r.documents
		case <-timer.C:
			a.logger.WarnContext(ctx, "batch aggregation deadline exceeded",
				"user_id", userID,
				"deadline", a.deadline.String(),
			)
			return a.fallback(span, start)
		}
	}

	aggregate := build(profile, documents)
	span.SetAttributes(attribute.Bool("batch.degraded", false))
	a.metrics.ObserveBatchDuration(time.Since(start))
	return aggregate
}

func (a *Aggregator) fallback(span trace.Span, start time.Time) *Aggregate {
	span.SetAttributes(attribute.Bool("batch.degraded", true))
	a.metrics.RecordBatchFallback()
	a.metrics.ObserveBatchDuration(time.Since(start))
	return &Aggregate{
		Documents:       []*document.Document{},
		DocumentsByType: map[document.Type][]*document.Document{},
		Degraded:        true,
	}
}

func build(profile *activation.Profile, documents []*document.Document) *Aggregate {
	if documents == nil {
		documents = []*document.Document{}
	}
	byType := make(map[document.Type][]*document.Document)
	var stats Stats
	for _, doc := range documents {
		byType[doc.DocumentType] = append(byType[doc.DocumentType], doc)
		stats.Total++
		switch doc.VerificationStatus {
		case document.VerificationVerified:
			stats.Verified++
		case document.VerificationRejected:
			stats.Rejected++
		default:
			stats.Pending++
		}
	}
	return &Aggregate{
		Profile:         profile,
		Documents:       documents,
		DocumentsByType: byType,
		Progress:        profile.Progress(),
		IsComplete:      profile != nil && profile.Status == activation.StatusCompleted,
		Stats:           stats,
	}
}
