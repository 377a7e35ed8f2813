// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package provision_test

import (
	"context"
	"testing"
	"time"

	"codeberg.org/oliverandrich/votemail/internal/codes"
	"codeberg.org/oliverandrich/votemail/internal/models"
	"codeberg.org/oliverandrich/votemail/internal/repository"
	"codeberg.org/oliverandrich/votemail/internal/services/provision"
	"codeberg.org/oliverandrich/votemail/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingTrigger struct {
	calls int
}

func (c *countingTrigger) Trigger() {
	c.calls++
}

func TestParseEmails(t *testing.T) {
	input := "a@example.com\n b@example.com ,not-an-email,\n\nc@example\na@example.com"

	emails := provision.ParseEmails(input)

	assert.Equal(t, []string{"a@example.com", "b@example.com", "c@example"}, emails)
}

func TestValidEmail(t *testing.T) {
	tests := []struct {
		email string
		valid bool
	}{
		{"voter@example.com", true},
		{"first.last+tag@mail.example.am", true},
		{"c@example", false},
		{"@example.com", false},
		{"voter@@example.com", false},
		{"voter@example.c", false},
		{"vo ter@example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			assert.Equal(t, tt.valid, provision.ValidEmail(tt.email))
		})
	}
}

func TestRegisterEmails(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	testutil.NewTestEmailCode(t, repo, "AAA-AAA", "old@example.com", models.EmailSent)
	trigger := &countingTrigger{}
	svc := provision.NewService(repo, trigger)

	reg, err := svc.RegisterEmails(ctx, "new1@example.com\nnew2@example.com,old@example.com\nbroken@example")

	require.NoError(t, err)
	assert.Equal(t, []string{"new1@example.com", "new2@example.com"}, reg.Queued)
	assert.Equal(t, []string{"old@example.com"}, reg.Duplicates)
	assert.Equal(t, []string{"broken@example"}, reg.Invalid)
	assert.Equal(t, 1, trigger.calls)

	stats, err := repo.GetEmailStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.EmailStats{Pending: 2, Failed: 2, Total: 4}, *stats)

	failed, err := repo.ListFailedEmails(ctx)
	require.NoError(t, err)
	reasons := map[string]string{}
	for _, row := range failed {
		reasons[*row.Email] = *row.EmailError
	}
	assert.Equal(t, provision.ReasonDuplicate, reasons["old@example.com"])
	assert.Equal(t, provision.ReasonInvalid, reasons["broken@example"])

	pending, err := repo.ListPendingEmails(ctx, 10)
	require.NoError(t, err)
	for _, row := range pending {
		assert.True(t, codes.IsValidFormat(row.Code))
	}
}

// racingStore registers email through another path right before the
// service inserts its batch.
type racingStore struct {
	*repository.Repository
	email string
}

func (s *racingStore) InsertEmailCodes(ctx context.Context, entries []repository.EmailCode, createdAt time.Time) ([]repository.EmailCode, error) {
	if _, err := s.Repository.InsertEmailCodes(ctx, []repository.EmailCode{
		{Email: s.email, Code: "ZZZ-ZZZ", Status: models.EmailPending},
	}, createdAt); err != nil {
		return nil, err
	}
	return s.Repository.InsertEmailCodes(ctx, entries, createdAt)
}

func TestRegisterEmails_ConcurrentRegistrationNotQueued(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	trigger := &countingTrigger{}
	svc := provision.NewService(&racingStore{Repository: repo, email: "b@example.com"}, trigger)

	reg, err := svc.RegisterEmails(ctx, "a@example.com\nb@example.com")

	require.NoError(t, err)
	assert.Equal(t, []string{"a@example.com"}, reg.Queued)
	assert.Equal(t, []string{"b@example.com"}, reg.Duplicates)
	assert.Equal(t, 1, trigger.calls)

	stats, err := repo.GetEmailStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.EmailStats{Pending: 1, Failed: 1, Total: 2}, *stats)
}

func TestRegisterEmails_NothingQueuedDoesNotTrigger(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	trigger := &countingTrigger{}
	svc := provision.NewService(repo, trigger)

	reg, err := svc.RegisterEmails(context.Background(), "broken@example")

	require.NoError(t, err)
	assert.Empty(t, reg.Queued)
	assert.Zero(t, trigger.calls)
}

func TestRegisterEmails_NoAddresses(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	svc := provision.NewService(repo, nil)

	_, err := svc.RegisterEmails(context.Background(), "nothing here\n,")

	assert.ErrorIs(t, err, provision.ErrNoEmails)
}

func TestRegisterEmails_NilTrigger(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	svc := provision.NewService(repo, nil)

	reg, err := svc.RegisterEmails(context.Background(), "voter@example.com")

	require.NoError(t, err)
	assert.Len(t, reg.Queued, 1)
}

func TestGenerateCodes(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	svc := provision.NewService(repo, nil)

	generated, err := svc.GenerateCodes(ctx, 25)

	require.NoError(t, err)
	assert.Len(t, generated, 25)

	unused, err := repo.ListUnusedCodes(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, generated, unused)

	stats, err := repo.GetEmailStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
}

func TestGenerateCodes_InvalidCount(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	svc := provision.NewService(repo, nil)

	for _, n := range []int{-1, 0, provision.MaxCodes + 1} {
		_, err := svc.GenerateCodes(context.Background(), n)
		assert.ErrorIs(t, err, provision.ErrInvalidCount, "count %d", n)
	}
}

func TestGenerateCodes_Max(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	svc := provision.NewService(repo, nil)

	generated, err := svc.GenerateCodes(context.Background(), provision.MaxCodes)

	require.NoError(t, err)
	assert.Len(t, generated, provision.MaxCodes)
}
