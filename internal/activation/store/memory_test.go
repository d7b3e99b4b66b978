package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"lendgate/internal/activation"
	"lendgate/pkg/requestcontext"
	"lendgate/pkg/sentinel"
)

type ProfileStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
	now   time.Time
}

func (s *ProfileStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.now = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func TestProfileStoreSuite(t *testing.T) {
	suite.Run(t, new(ProfileStoreSuite))
}

func (s *ProfileStoreSuite) at(t time.Time) context.Context {
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

func allPayloads() []activation.StepPayload {
	return []activation.StepPayload{
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
}

// TestFirstWrite verifies profile creation on the first accepted step.
func (s *ProfileStoreSuite) TestFirstWrite() {
	s.Run("creates the profile with lifecycle metadata", func() {
		profile, err := s.store.UpsertStep(s.ctx, "user-1", identityPayload())
		s.Require().NoError(err)

		s.Equal("user-1", profile.UserID)
		s.Equal(1, profile.CurrentStep)
		s.Equal(activation.StatusInProgress, profile.Status)
		s.NotNil(profile.Identity)
		s.Nil(profile.References)
		s.Equal(s.now, profile.CreatedAt)
		s.Equal(s.now, profile.UpdatedAt)
	})

	s.Run("missing profile reads as ErrNotFound", func() {
		_, err := s.store.Get(s.ctx, "nobody")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

// TestStepProgression verifies CurrentStep advancement rules.
func (s *ProfileStoreSuite) TestStepProgression() {
	s.Run("advances to the highest accepted step", func() {
		_, err := s.store.UpsertStep(s.ctx, "user-1", identityPayload())
		s.Require().NoError(err)

		profile, err := s.store.UpsertStep(s.ctx, "user-1",
			activation.Step3Residence{Country: "GH", Region: "Ashanti", City: "Kumasi"})
		s.Require().NoError(err)
		s.Equal(3, profile.CurrentStep)
	})

	s.Run("never regresses on a lower step edit", func() {
		_, err := s.store.UpsertStep(s.ctx, "user-2",
			activation.Step4Identification{Type: "passport", Number: "GHA-1"})
		s.Require().NoError(err)

		profile, err := s.store.UpsertStep(s.ctx, "user-2", identityPayload())
		s.Require().NoError(err)
		s.Equal(4, profile.CurrentStep)
	})

	s.Run("re-submitting a step overwrites only that group", func() {
		_, err := s.store.UpsertStep(s.ctx, "user-3", identityPayload())
		s.Require().NoError(err)
		_, err = s.store.UpsertStep(s.ctx, "user-3",
			activation.Step3Residence{Country: "GH", Region: "Ashanti", City: "Kumasi"})
		s.Require().NoError(err)

		edited := identityPayload()
		edited.FullName = "Ama A. Mensah"
		profile, err := s.store.UpsertStep(s.ctx, "user-3", edited)
		s.Require().NoError(err)

		s.Equal("Ama A. Mensah", profile.Identity.FullName)
		s.Require().NotNil(profile.Residence)
		s.Equal("Kumasi", profile.Residence.City)
	})
}

// TestCompletion verifies the exactly-once CompletedAt stamp.
func (s *ProfileStoreSuite) TestCompletion() {
	s.Run("completes when the sixth group lands", func() {
		var profile *activation.Profile
		var err error
		for _, payload := range allPayloads() {
			profile, err = s.store.UpsertStep(s.ctx, "user-1", payload)
			s.Require().NoError(err)
		}

		s.Equal(activation.StatusCompleted, profile.Status)
		s.Require().NotNil(profile.CompletedAt)
		s.Equal(s.now, *profile.CompletedAt)
	})

	s.Run("later edits never re-stamp CompletedAt", func() {
		for _, payload := range allPayloads() {
			_, err := s.store.UpsertStep(s.ctx, "user-2", payload)
			s.Require().NoError(err)
		}

		later := s.at(s.now.Add(48 * time.Hour))
		profile, err := s.store.UpsertStep(later, "user-2", identityPayload())
		s.Require().NoError(err)

		s.Equal(activation.StatusCompleted, profile.Status)
		s.Require().NotNil(profile.CompletedAt)
		s.Equal(s.now, *profile.CompletedAt)
		s.Equal(s.now.Add(48*time.Hour), profile.UpdatedAt)
	})

	s.Run("a rejected profile stays rejected after edits", func() {
		for _, payload := range allPayloads()[:5] {
			_, err := s.store.UpsertStep(s.ctx, "user-3", payload)
			s.Require().NoError(err)
		}
		// Simulate an admin rejection between submissions.
		s.store.mu.Lock()
		s.store.profiles["user-3"].Status = activation.StatusRejected
		s.store.mu.Unlock()

		profile, err := s.store.UpsertStep(s.ctx, "user-3",
			activation.Step6Signature{Signature: "sig"})
		s.Require().NoError(err)
		s.Equal(activation.StatusRejected, profile.Status)
		s.Nil(profile.CompletedAt)
	})
}

// TestIsolation verifies returned profiles do not alias store state.
func (s *ProfileStoreSuite) TestIsolation() {
	first, err := s.store.UpsertStep(s.ctx, "user-1", identityPayload())
	s.Require().NoError(err)

	first.Identity.FullName = "mutated"

	stored, err := s.store.Get(s.ctx, "user-1")
	s.Require().NoError(err)
	s.Equal("Ama Mensah", stored.Identity.FullName)
}
