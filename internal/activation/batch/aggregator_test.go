package batch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"lendgate/internal/activation"
	"lendgate/internal/document"
	"lendgate/pkg/sentinel"
)

type stubProfiles struct {
	profile *activation.Profile
	err     error
	delay   time.Duration

	mu    sync.Mutex
	calls int
}

func (s *stubProfiles) Get(ctx context.Context, userID string) (*activation.Profile, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return s.profile, s.err
}

func (s *stubProfiles) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubDocuments struct {
	documents []*document.Document
	err       error
	delay     time.Duration
}

func (s *stubDocuments) ListForUser(ctx context.Context, userID string) ([]*document.Document, error) {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return s.documents, s.err
}

type AggregatorSuite struct {
	suite.Suite
	ctx context.Context
}

func (s *AggregatorSuite) SetupTest() {
	s.ctx = context.Background()
}

func TestAggregatorSuite(t *testing.T) {
	suite.Run(t, new(AggregatorSuite))
}

func completedProfile() *activation.Profile {
	return &activation.Profile{
		UserID:         "user-1",
		Status:         activation.StatusCompleted,
		Identity:       &activation.Step1Identity{FullName: "Ama"},
		References:     &activation.Step2References{},
		Residence:      &activation.Step3Residence{},
		Identification: &activation.Step4Identification{},
		Banking:        &activation.Step5Banking{},
		Signature:      &activation.Step6Signature{},
	}
}

// TestHappyPath verifies grouping and verification stats.
func (s *AggregatorSuite) TestHappyPath() {
	docs := []*document.Document{
		{ID: "d1", DocumentType: document.TypeIDFront, VerificationStatus: document.VerificationVerified},
		{ID: "d2", DocumentType: document.TypeIDBack, VerificationStatus: document.VerificationPending},
		{ID: "d3", DocumentType: document.TypeIDFront, VerificationStatus: document.VerificationRejected},
	}
	aggregator := New(&stubProfiles{profile: completedProfile()}, &stubDocuments{documents: docs})

	aggregate, err := aggregator.Batch(s.ctx, "user-1")
	s.Require().NoError(err)

	s.False(aggregate.Degraded)
	s.True(aggregate.IsComplete)
	s.Equal(100, aggregate.Progress)
	s.Len(aggregate.Documents, 3)
	s.Len(aggregate.DocumentsByType[document.TypeIDFront], 2)
	s.Len(aggregate.DocumentsByType[document.TypeIDBack], 1)
	s.Equal(Stats{Total: 3, Verified: 1, Pending: 1, Rejected: 1}, aggregate.Stats)
}

// TestAbsentProfile verifies a user with no profile still gets an aggregate.
func (s *AggregatorSuite) TestAbsentProfile() {
	aggregator := New(&stubProfiles{err: sentinel.ErrNotFound}, &stubDocuments{})

	aggregate, err := aggregator.Batch(s.ctx, "user-1")
	s.Require().NoError(err)

	s.False(aggregate.Degraded)
	s.Nil(aggregate.Profile)
	s.Zero(aggregate.Progress)
	s.False(aggregate.IsComplete)
	s.NotNil(aggregate.Documents)
	s.Empty(aggregate.Documents)
}

// TestDegradation verifies the fallback aggregate on slow or failing reads.
func (s *AggregatorSuite) TestDegradation() {
	s.Run("deadline overrun degrades instead of failing", func() {
		aggregator := New(
			&stubProfiles{profile: completedProfile(), delay: 200 * time.Millisecond},
			&stubDocuments{},
			WithDeadline(20*time.Millisecond),
		)

		aggregate, err := aggregator.Batch(s.ctx, "user-1")
		s.Require().NoError(err)

		s.True(aggregate.Degraded)
		s.Nil(aggregate.Profile)
		s.NotNil(aggregate.Documents)
		s.Empty(aggregate.Documents)
		s.NotNil(aggregate.DocumentsByType)
	})

	s.Run("profile store failure degrades", func() {
		aggregator := New(
			&stubProfiles{err: errors.New("connection reset")},
			&stubDocuments{},
		)

		aggregate, err := aggregator.Batch(s.ctx, "user-1")
		s.Require().NoError(err)
		s.True(aggregate.Degraded)
	})

	s.Run("document store failure degrades", func() {
		aggregator := New(
			&stubProfiles{profile: completedProfile()},
			&stubDocuments{err: errors.New("connection reset")},
		)

		aggregate, err := aggregator.Batch(s.ctx, "user-1")
		s.Require().NoError(err)
		s.True(aggregate.Degraded)
	})
}

// TestSingleflight verifies concurrent callers share one aggregation.
func (s *AggregatorSuite) TestSingleflight() {
	profiles := &stubProfiles{profile: completedProfile(), delay: 50 * time.Millisecond}
	aggregator := New(profiles, &stubDocuments{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			aggregate, err := aggregator.Batch(s.ctx, "user-1")
			s.NoError(err)
			s.False(aggregate.Degraded)
		}()
	}
	wg.Wait()

	s.Equal(1, profiles.callCount())
}
