package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"lendgate/internal/activation"
	"lendgate/pkg/requestcontext"
	"lendgate/pkg/sentinel"
	txcontext "lendgate/pkg/tx"
)

// Schema creates the activation profile table. Step groups are JSONB so a
// step write replaces exactly one column.
const Schema = `
CREATE TABLE IF NOT EXISTS activation_profiles (
    user_id        TEXT PRIMARY KEY,
    identity       JSONB,
    reference_list JSONB,
    residence      JSONB,
    identification JSONB,
    banking        JSONB,
    signature      JSONB,
    current_step   INT NOT NULL DEFAULT 1,
    status         TEXT NOT NULL DEFAULT 'pending',
    completed_at   TIMESTAMPTZ,
    created_at     TIMESTAMPTZ NOT NULL,
    updated_at     TIMESTAMPTZ NOT NULL
)`

// Postgres stores one activation profile row per user.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) Get(ctx context.Context, userID string) (*activation.Profile, error) {
	var q queryRower = s.db
	if tx, ok := txcontext.From(ctx); ok {
		q = tx
	}
	profile, err := scanProfile(q.QueryRowContext(ctx, selectProfile+" WHERE user_id = $1", userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get activation profile: %w", err)
	}
	return profile, nil
}

// UpsertStep locks the user's row, applies the step in Go via RecordStep, and
// writes the whole row back. The default row is inserted first so the FOR
// UPDATE lock always has a row to take; without that, two first writes could
// each build a fresh profile and the later commit would erase the earlier
// step group.
func (s *Postgres) UpsertStep(ctx context.Context, userID string, payload activation.StepPayload) (*activation.Profile, error) {
	now := requestcontext.Now(ctx)

	tx, owned, err := s.begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("upsert step: begin: %w", err)
	}
	if owned {
		defer func() { _ = tx.Rollback() }()
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO activation_profiles (user_id, current_step, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $4)
ON CONFLICT (user_id) DO NOTHING`,
		userID, activation.MinStep, string(activation.StatusPending), now); err != nil {
		return nil, fmt.Errorf("upsert step: ensure row: %w", err)
	}

	profile, err := scanProfile(tx.QueryRowContext(ctx,
		selectProfile+" WHERE user_id = $1 FOR UPDATE", userID))
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("upsert step: lock row: %w", err)
		}
		profile = NewProfile(userID, now)
	}

	RecordStep(profile, payload, now)

	if err := writeProfile(ctx, tx, profile); err != nil {
		return nil, fmt.Errorf("upsert step: %w", err)
	}
	if owned {
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("upsert step: commit: %w", err)
		}
	}
	return profile, nil
}

// begin reuses an ambient transaction from context when one exists.
func (s *Postgres) begin(ctx context.Context) (*sql.Tx, bool, error) {
	if tx, ok := txcontext.From(ctx); ok {
		return tx, false, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	return tx, true, nil
}

const selectProfile = `
SELECT user_id, identity, reference_list, residence, identification, banking,
       signature, current_step, status, completed_at, created_at, updated_at
FROM activation_profiles`

func writeProfile(ctx context.Context, tx *sql.Tx, p *activation.Profile) error {
	identity, err := marshalGroup(p.Identity)
	if err != nil {
		return err
	}
	references, err := marshalGroup(p.References)
	if err != nil {
		return err
	}
	residence, err := marshalGroup(p.Residence)
	if err != nil {
		return err
	}
	identification, err := marshalGroup(p.Identification)
	if err != nil {
		return err
	}
	banking, err := marshalGroup(p.Banking)
	if err != nil {
		return err
	}
	signature, err := marshalGroup(p.Signature)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO activation_profiles (
    user_id, identity, reference_list, residence, identification, banking,
    signature, current_step, status, completed_at, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (user_id) DO UPDATE SET
    identity       = EXCLUDED.identity,
    reference_list = EXCLUDED.reference_list,
    residence      = EXCLUDED.residence,
    identification = EXCLUDED.identification,
    banking        = EXCLUDED.banking,
    signature      = EXCLUDED.signature,
    current_step   = EXCLUDED.current_step,
    status         = EXCLUDED.status,
    completed_at   = EXCLUDED.completed_at,
    updated_at     = EXCLUDED.updated_at`,
		p.UserID, identity, references, residence, identification, banking,
		signature, p.CurrentStep, string(p.Status), p.CompletedAt,
		p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("write profile: %w", err)
	}
	return nil
}

func scanProfile(row *sql.Row) (*activation.Profile, error) {
	var (
		p              activation.Profile
		status         string
		identity       []byte
		references     []byte
		residence      []byte
		identification []byte
		banking        []byte
		signature      []byte
		completedAt    sql.NullTime
	)
	err := row.Scan(&p.UserID, &identity, &references, &residence,
		&identification, &banking, &signature, &p.CurrentStep, &status,
		&completedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Status = activation.Status(status)
	if completedAt.Valid {
		t := completedAt.Time
		p.CompletedAt = &t
	}
	if err := unmarshalGroup(identity, &p.Identity); err != nil {
		return nil, err
	}
	if err := unmarshalGroup(references, &p.References); err != nil {
		return nil, err
	}
	if err := unmarshalGroup(residence, &p.Residence); err != nil {
		return nil, err
	}
	if err := unmarshalGroup(identification, &p.Identification); err != nil {
		return nil, err
	}
	if err := unmarshalGroup(banking, &p.Banking); err != nil {
		return nil, err
	}
	if err := unmarshalGroup(signature, &p.Signature); err != nil {
		return nil, err
	}
	return &p, nil
}

func marshalGroup(group any) ([]byte, error) {
	if isNilPointer(group) {
		return nil, nil
	}
	data, err := json.Marshal(group)
	if err != nil {
		return nil, fmt.Errorf("marshal step group: %w", err)
	}
	return data, nil
}

func unmarshalGroup[T any](data []byte, target **T) error {
	if len(data) == 0 {
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal step group: %w", err)
	}
	*target = &v
	return nil
}

func isNilPointer(v any) bool {
	switch g := v.(type) {
	case *activation.Step1Identity:
		return g == nil
	case *activation.Step2References:
		return g == nil
	case *activation.Step3Residence:
		return g == nil
	case *activation.Step4Identification:
		return g == nil
	case *activation.Step5Banking:
		return g == nil
	case *activation.Step6Signature:
		return g == nil
	default:
		return v == nil
	}
}
