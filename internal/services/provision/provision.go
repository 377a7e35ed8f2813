// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package provision creates voting codes, either bare or bound to
// registered email addresses.
package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"codeberg.org/oliverandrich/votemail/internal/codes"
	"codeberg.org/oliverandrich/votemail/internal/models"
	"codeberg.org/oliverandrich/votemail/internal/repository"
	"github.com/samber/lo"
)

const (
	// MaxCodes is the largest batch GenerateCodes accepts.
	MaxCodes = 1000

	// ReasonDuplicate is recorded on codes whose address was registered again.
	ReasonDuplicate = "email already registered"
	// ReasonInvalid is recorded on codes created for malformed addresses.
	ReasonInvalid = "invalid email format"
)

var (
	// ErrInvalidCount is returned for a batch size outside 1..MaxCodes.
	ErrInvalidCount = errors.New("count must be between 1 and 1000")
	// ErrNoEmails is returned when the input holds no address.
	ErrNoEmails = errors.New("no email addresses found")
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Store is the part of the repository provisioning writes to.
type Store interface {
	ExistingCodes(ctx context.Context) (map[string]struct{}, error)
	ExistingEmails(ctx context.Context) (map[string]struct{}, error)
	CreateCodes(ctx context.Context, codes []string, createdAt time.Time) error
	InsertEmailCodes(ctx context.Context, entries []repository.EmailCode, createdAt time.Time) ([]repository.EmailCode, error)
	MarkEmailsFailed(ctx context.Context, emails []string, reason string) error
}

// Trigger starts email dispatch.
type Trigger interface {
	Trigger()
}

// Service provisions voting codes.
type Service struct {
	store   Store
	trigger Trigger
	now     func() time.Time
}

// NewService creates a provisioning service. trigger may be nil.
func NewService(store Store, trigger Trigger) *Service {
	return &Service{store: store, trigger: trigger, now: time.Now}
}

// Registration reports what RegisterEmails did with each address.
type Registration struct {
	Queued     []string `json:"queued"`
	Duplicates []string `json:"duplicates"`
	Invalid    []string `json:"invalid"`
}

// ParseEmails splits input on newlines and commas and keeps the trimmed
// entries containing "@", without repeats.
func ParseEmails(input string) []string {
	fields := strings.FieldsFunc(input, func(r rune) bool {
		return r == '\n' || r == ','
	})
	emails := lo.FilterMap(fields, func(f string, _ int) (string, bool) {
		f = strings.TrimSpace(f)
		return f, strings.Contains(f, "@")
	})
	return lo.Uniq(emails)
}

// ValidEmail reports whether address is well-formed.
func ValidEmail(address string) bool {
	return emailPattern.MatchString(address)
}

// RegisterEmails creates a pending code for every new valid address in
// input. Addresses already registered are marked failed, malformed ones
// are stored as failed so they show up for review. Dispatch is triggered
// when anything was queued.
func (s *Service) RegisterEmails(ctx context.Context, input string) (*Registration, error) {
	emails := ParseEmails(input)
	if len(emails) == 0 {
		return nil, ErrNoEmails
	}

	valid, invalid := lo.FilterReject(emails, func(e string, _ int) bool {
		return ValidEmail(e)
	})

	existing, err := s.store.ExistingEmails(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading registered emails: %w", err)
	}
	duplicates, fresh := lo.FilterReject(valid, func(e string, _ int) bool {
		_, ok := existing[e]
		return ok
	})

	stored, err := s.store.ExistingCodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading codes: %w", err)
	}
	newCodes, err := codes.GenerateUnique(len(fresh)+len(invalid), stored)
	if err != nil {
		return nil, err
	}

	reason := ReasonInvalid
	entries := make([]repository.EmailCode, 0, len(newCodes))
	for i, email := range fresh {
		entries = append(entries, repository.EmailCode{Email: email, Code: newCodes[i], Status: models.EmailPending})
	}
	for i, email := range invalid {
		entries = append(entries, repository.EmailCode{
			Email:  email,
			Code:   newCodes[len(fresh)+i],
			Status: models.EmailFailed,
			Error:  &reason,
		})
	}

	inserted, err := s.store.InsertEmailCodes(ctx, entries, s.now())
	if err != nil {
		return nil, fmt.Errorf("storing codes: %w", err)
	}
	// Addresses registered concurrently were skipped by the insert.
	queued := lo.FilterMap(inserted, func(e repository.EmailCode, _ int) (string, bool) {
		return e.Email, e.Status == models.EmailPending
	})
	if len(queued) < len(fresh) {
		duplicates = append(duplicates, lo.Without(fresh, queued...)...)
	}
	if len(duplicates) > 0 {
		if err := s.store.MarkEmailsFailed(ctx, duplicates, ReasonDuplicate); err != nil {
			return nil, fmt.Errorf("marking duplicates: %w", err)
		}
	}

	slog.Info("emails registered",
		"queued", len(queued),
		"duplicates", len(duplicates),
		"invalid", len(invalid),
	)

	if len(queued) > 0 && s.trigger != nil {
		s.trigger.Trigger()
	}

	return &Registration{Queued: queued, Duplicates: duplicates, Invalid: invalid}, nil
}

// GenerateCodes creates count codes without recipients.
func (s *Service) GenerateCodes(ctx context.Context, count int) ([]string, error) {
	if count < 1 || count > MaxCodes {
		return nil, ErrInvalidCount
	}

	stored, err := s.store.ExistingCodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading codes: %w", err)
	}
	newCodes, err := codes.GenerateUnique(count, stored)
	if err != nil {
		return nil, err
	}

	if err := s.store.CreateCodes(ctx, newCodes, s.now()); err != nil {
		return nil, fmt.Errorf("storing codes: %w", err)
	}

	slog.Info("codes generated", "count", count)
	return newCodes, nil
}
