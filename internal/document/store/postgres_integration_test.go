//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"lendgate/internal/document"
	"lendgate/internal/document/store"
	"lendgate/pkg/sentinel"
	"lendgate/pkg/testutil/containers"
)

type PostgresRecordsSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresRecords
}

func TestPostgresRecordsSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresRecordsSuite))
}

func (s *PostgresRecordsSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T(), store.Schema)
	s.store = store.NewPostgresRecords(s.postgres.DB)
}

func (s *PostgresRecordsSuite) TearDownSuite() {
	_ = s.postgres.DB.Close()
	_ = s.postgres.Container.Terminate(context.Background())
}

func (s *PostgresRecordsSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "documents"))
}

func (s *PostgresRecordsSuite) newDocument(userID string, createdAt time.Time) *document.Document {
	return &document.Document{
		ID:                 uuid.NewString(),
		UserID:             userID,
		DocumentType:       document.TypeIDFront,
		OriginalFilename:   "front.png",
		FileSize:           1024,
		MimeType:           "image/png",
		Checksum:           "deadbeef",
		InlineData:         "aGVsbG8=",
		VerificationStatus: document.VerificationPending,
		CreatedAt:          createdAt,
		UpdatedAt:          createdAt,
	}
}

// TestCRUD covers the full record lifecycle.
func (s *PostgresRecordsSuite) TestCRUD() {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	doc := s.newDocument("user-1", now)
	s.Require().NoError(s.store.Create(ctx, doc))

	s.Run("reads the row back", func() {
		got, err := s.store.Get(ctx, doc.ID)
		s.Require().NoError(err)
		s.Equal(doc.ID, got.ID)
		s.Equal("aGVsbG8=", got.InlineData)
		s.Empty(got.StorageKey)
		s.Empty(got.ActivationProfileID)
	})

	s.Run("updates the row", func() {
		doc.VerificationStatus = document.VerificationVerified
		doc.VerificationNotes = "looks good"
		doc.UpdatedAt = now.Add(time.Hour)
		s.Require().NoError(s.store.Update(ctx, doc))

		got, err := s.store.Get(ctx, doc.ID)
		s.Require().NoError(err)
		s.Equal(document.VerificationVerified, got.VerificationStatus)
		s.Equal("looks good", got.VerificationNotes)
	})

	s.Run("deletes the row", func() {
		s.Require().NoError(s.store.Delete(ctx, doc.ID))
		_, err := s.store.Get(ctx, doc.ID)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

// TestNotFound covers the sentinel paths.
func (s *PostgresRecordsSuite) TestNotFound() {
	ctx := context.Background()

	_, err := s.store.Get(ctx, "no-such-id")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	s.Require().ErrorIs(s.store.Delete(ctx, "no-such-id"), sentinel.ErrNotFound)

	missing := s.newDocument("user-1", time.Now().UTC())
	s.Require().ErrorIs(s.store.Update(ctx, missing), sentinel.ErrNotFound)
}

// TestListOrdering verifies newest-first ordering per user.
func (s *PostgresRecordsSuite) TestListOrdering() {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	older := s.newDocument("user-1", base)
	newer := s.newDocument("user-1", base.Add(time.Minute))
	foreign := s.newDocument("user-2", base)
	for _, doc := range []*document.Document{older, newer, foreign} {
		s.Require().NoError(s.store.Create(ctx, doc))
	}

	docs, err := s.store.ListForUser(ctx, "user-1")
	s.Require().NoError(err)
	s.Require().Len(docs, 2)
	s.Equal(newer.ID, docs[0].ID)
	s.Equal(older.ID, docs[1].ID)
}

// TestExclusiveContentColumns verifies the storage_key/inline_data check.
func (s *PostgresRecordsSuite) TestExclusiveContentColumns() {
	ctx := context.Background()
	doc := s.newDocument("user-1", time.Now().UTC())
	doc.StorageKey = "user-1/key"

	err := s.store.Create(ctx, doc)
	s.Require().Error(err, "a row with both content columns set must be rejected")
}
