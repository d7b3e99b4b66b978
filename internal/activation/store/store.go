// Package store persists activation profiles. Both implementations share the
// mutation rules in RecordStep so upsert semantics cannot drift between the
// in-memory and PostgreSQL backends.
package store

import (
	"context"
	"time"

	"lendgate/internal/activation"
)

// Store is the activation profile repository. Get returns
// sentinel.ErrNotFound for absent profiles; the service layer treats absence
// as a valid state (the user simply has not started).
type Store interface {
	Get(ctx context.Context, userID string) (*activation.Profile, error)
	// UpsertStep atomically writes one step's field group and the derived
	// lifecycle metadata. The profile record is created on the first write.
	UpsertStep(ctx context.Context, userID string, payload activation.StepPayload) (*activation.Profile, error)
}

// NewProfile returns the default state a profile starts in before any step
// has been accepted.
func NewProfile(userID string, now time.Time) *activation.Profile {
	return &activation.Profile{
		UserID:      userID,
		CurrentStep: activation.MinStep,
		Status:      activation.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// RecordStep applies one accepted step payload to the profile:
//   - only that step's field group is overwritten
//   - CurrentStep advances to max(CurrentStep, step), never regresses
//   - status moves pending -> in_progress on the first accepted write
//   - when all six groups are populated, status becomes completed and
//     CompletedAt is stamped exactly once; later edits never re-stamp
//
// Step jumps ahead of CurrentStep are accepted here; ordering policy belongs
// to the product layer, not the repository.
func RecordStep(p *activation.Profile, payload activation.StepPayload, now time.Time) {
	p.ApplyStep(payload)
	if step := payload.Step(); step > p.CurrentStep {
		p.CurrentStep = step
	}
	p.UpdatedAt = now
	if p.Status == activation.StatusPending {
		p.Status = activation.StatusInProgress
	}
	// A rejected profile keeps its status; re-completion is an admin decision.
	if p.CompletedAt == nil && p.Status != activation.StatusRejected && p.AllStepsPopulated() {
		stamp := now
		p.CompletedAt = &stamp
		p.Status = activation.StatusCompleted
	}
}
