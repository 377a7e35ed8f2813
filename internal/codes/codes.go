// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package codes generates and validates single-use voting codes.
package codes

import (
	"crypto/rand"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	// GroupLength is the number of symbols on each side of the dash.
	GroupLength = 3
	// Length is the full length of a code including the dash.
	Length = 2*GroupLength + 1
)

// Alphabet holds the symbols a code is drawn from; 0, O, 1 and I are excluded.
const Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// SpaceSize is the number of distinct codes the alphabet can form (32^6).
const SpaceSize = 1 << 30

// ErrExhaustedSpace is returned when more unique codes are requested than
// the code space has left.
var ErrExhaustedSpace = errors.New("code space exhausted")

var formatRe = regexp.MustCompile(`^[A-Z0-9]{3}-[A-Z0-9]{3}$`)

// Generate returns a random code in the form XXX-XXX.
func Generate() (string, error) {
	buf := make([]byte, 2*GroupLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}

	// len(Alphabet) divides 256, so the modulo keeps the draw uniform.
	var sb strings.Builder
	sb.Grow(Length)
	for i, b := range buf {
		if i == GroupLength {
			sb.WriteByte('-')
		}
		sb.WriteByte(Alphabet[int(b)%len(Alphabet)])
	}
	return sb.String(), nil
}

// GenerateUnique returns count distinct codes, none of which appear in
// existing.
func GenerateUnique(count int, existing map[string]struct{}) ([]string, error) {
	if count <= 0 {
		return []string{}, nil
	}
	if count > SpaceSize-len(existing) {
		return nil, fmt.Errorf("%w: %d requested, %d stored", ErrExhaustedSpace, count, len(existing))
	}

	drawn := make(map[string]struct{}, count)
	result := make([]string, 0, count)
	for len(result) < count {
		code, err := Generate()
		if err != nil {
			return nil, err
		}
		if _, ok := existing[code]; ok {
			continue
		}
		if _, ok := drawn[code]; ok {
			continue
		}
		drawn[code] = struct{}{}
		result = append(result, code)
	}
	return result, nil
}

// IsValidFormat reports whether s has the XXX-XXX shape. Input is not
// normalized; pass it through Normalize first when it comes from a user.
func IsValidFormat(s string) bool {
	return formatRe.MatchString(s)
}

// Normalize trims surrounding whitespace and upper-cases a code.
func Normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
