//go:build integration

package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"lendgate/internal/activation"
	"lendgate/internal/activation/store"
	"lendgate/pkg/requestcontext"
	"lendgate/pkg/sentinel"
	"lendgate/pkg/testutil/containers"
	"lendgate/pkg/tx"
)

type PostgresProfileSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.Postgres
}

func TestPostgresProfileSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresProfileSuite))
}

func (s *PostgresProfileSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T(), store.Schema)
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresProfileSuite) TearDownSuite() {
	_ = s.postgres.DB.Close()
	_ = s.postgres.Container.Terminate(context.Background())
}

func (s *PostgresProfileSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "activation_profiles"))
}

func (s *PostgresProfileSuite) ctxAt(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}

func identityPayload() activation.Step1Identity {
	return activation.Step1Identity{
		FullName:      "Ama Mensah",
		Gender:        "female",
		DateOfBirth:   "1990-04-12",
		MaritalStatus: "single",
		Nationality:   "GH",
		TermsAgreed:   true,
	}
}

// TestUpsertRoundTrip verifies step groups survive the JSONB round trip.
func (s *PostgresProfileSuite) TestUpsertRoundTrip() {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	ctx := s.ctxAt(now)

	_, err := s.store.UpsertStep(ctx, "user-1", identityPayload())
	s.Require().NoError(err)
	_, err = s.store.UpsertStep(ctx, "user-1", activation.Step2References{
		References: []activation.Reference{
			{Name: "Kofi", Relationship: "brother", Phone: "+233200000000"},
		},
	})
	s.Require().NoError(err)

	profile, err := s.store.Get(ctx, "user-1")
	s.Require().NoError(err)

	s.Equal(2, profile.CurrentStep)
	s.Equal(activation.StatusInProgress, profile.Status)
	s.Require().NotNil(profile.Identity)
	s.Equal("Ama Mensah", profile.Identity.FullName)
	s.Require().NotNil(profile.References)
	s.Require().Len(profile.References.References, 1)
	s.Equal("Kofi", profile.References.References[0].Name)
	s.Nil(profile.Residence)
	s.Nil(profile.CompletedAt)
}

// TestMissingProfile verifies the not-found sentinel.
func (s *PostgresProfileSuite) TestMissingProfile() {
	_, err := s.store.Get(context.Background(), "nobody")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

// TestCompletionStamp verifies CompletedAt persists and is stamped once.
func (s *PostgresProfileSuite) TestCompletionStamp() {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	ctx := s.ctxAt(now)

	payloads := []activation.StepPayload{
		identityPayload(),
		activation.Step2References{References: []activation.Reference{
			{Name: "Kofi", Relationship: "brother", Phone: "+233200000000"},
		}},
		activation.Step3Residence{Country: "GH", Region: "Greater Accra", City: "Accra"},
		activation.Step4Identification{Type: "passport", Number: "GHA-123"},
		activation.Step5Banking{
			AccountType: "savings", BankName: "GCB",
			AccountNumber: "0012345678", AccountHolderName: "Ama Mensah",
		},
		activation.Step6Signature{Signature: "data:image/png;base64,AA=="},
	}
	for _, payload := range payloads {
		_, err := s.store.UpsertStep(ctx, "user-1", payload)
		s.Require().NoError(err)
	}

	profile, err := s.store.Get(ctx, "user-1")
	s.Require().NoError(err)
	s.Equal(activation.StatusCompleted, profile.Status)
	s.Require().NotNil(profile.CompletedAt)
	s.True(profile.CompletedAt.Equal(now))

	later := s.ctxAt(now.Add(48 * time.Hour))
	_, err = s.store.UpsertStep(later, "user-1", identityPayload())
	s.Require().NoError(err)

	profile, err = s.store.Get(later, "user-1")
	s.Require().NoError(err)
	s.Require().NotNil(profile.CompletedAt)
	s.True(profile.CompletedAt.Equal(now), "CompletedAt must not be re-stamped")
}

// TestAmbientTransaction verifies the store joins a transaction carried in
// context and that rolling it back discards the write.
func (s *PostgresProfileSuite) TestAmbientTransaction() {
	ctx := context.Background()

	sqlTx, err := s.postgres.DB.BeginTx(ctx, nil)
	s.Require().NoError(err)
	txCtx := tx.WithTx(ctx, sqlTx)

	_, err = s.store.UpsertStep(txCtx, "user-1", identityPayload())
	s.Require().NoError(err)

	// Visible inside the transaction, invisible outside it.
	profile, err := s.store.Get(txCtx, "user-1")
	s.Require().NoError(err)
	s.NotNil(profile.Identity)
	_, err = s.store.Get(ctx, "user-1")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	s.Require().NoError(sqlTx.Rollback())

	_, err = s.store.Get(ctx, "user-1")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

// TestConcurrentWrites verifies the row lock keeps concurrent step writes
// consistent: every group lands and CurrentStep ends at the maximum.
func (s *PostgresProfileSuite) TestConcurrentWrites() {
	ctx := context.Background()
	payloads := []activation.StepPayload{
		identityPayload(),
		activation.Step3Residence{Country: "GH", Region: "Ashanti", City: "Kumasi"},
		activation.Step4Identification{Type: "passport", Number: "GHA-123"},
		activation.Step5Banking{
			AccountType: "savings", BankName: "GCB",
			AccountNumber: "0012345678", AccountHolderName: "Ama Mensah",
		},
	}

	var wg sync.WaitGroup
	for _, payload := range payloads {
		wg.Add(1)
		go func(p activation.StepPayload) {
			defer wg.Done()
			_, err := s.store.UpsertStep(ctx, "user-1", p)
			s.NoError(err)
		}(payload)
	}
	wg.Wait()

	profile, err := s.store.Get(ctx, "user-1")
	s.Require().NoError(err)
	s.Equal(5, profile.CurrentStep)
	s.NotNil(profile.Identity)
	s.NotNil(profile.Residence)
	s.NotNil(profile.Identification)
	s.NotNil(profile.Banking)
}
