// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package auth guards the admin API with a bearer token whose bcrypt hash
// is configured.
package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const (
	// MinTokenLength is the shortest token HashToken accepts.
	MinTokenLength = 24
	// TokenLength is the length of tokens created by GenerateToken.
	TokenLength = 32
)

// alphabet for generated tokens (lowercase + digits, excluding confusing chars: 0, o, l, 1).
const alphabet = "23456789abcdefghjkmnpqrstuvwxyz"

var (
	ErrWeakToken    = errors.New("token does not meet requirements")
	ErrInvalidToken = errors.New("invalid token")
	ErrInvalidHash  = errors.New("invalid token hash")
)

// dummyHash keeps rejection of malformed tokens as slow as a real comparison.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy-token-for-timing"), bcrypt.DefaultCost)

// ValidateToken checks that token is long enough and not trivially guessable.
func ValidateToken(token string) error {
	if len(token) < MinTokenLength {
		return fmt.Errorf("%w: must be at least %d characters long", ErrWeakToken, MinTokenLength)
	}
	if isEntirelyNumeric(token) {
		return fmt.Errorf("%w: cannot be entirely numeric", ErrWeakToken)
	}
	if isSingleCharacter(token) {
		return fmt.Errorf("%w: cannot repeat a single character", ErrWeakToken)
	}
	return nil
}

// HashToken validates token and returns its bcrypt hash for the
// admin-token-hash setting.
func HashToken(token string) (string, error) {
	if err := ValidateToken(token); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash token: %w", err)
	}
	return string(hash), nil
}

// GenerateToken returns a random token of TokenLength characters.
func GenerateToken() (string, error) {
	return generateToken(rand.Reader)
}

// acceptBelow is the largest multiple of len(alphabet) that fits in a byte.
// Bytes at or above it are discarded so every symbol is equally likely.
const acceptBelow = 256 - 256%len(alphabet)

func generateToken(src io.Reader) (string, error) {
	token := make([]byte, 0, TokenLength)
	buf := make([]byte, TokenLength)
	for len(token) < TokenLength {
		if _, err := io.ReadFull(src, buf); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= acceptBelow || len(token) == TokenLength {
				continue
			}
			token = append(token, alphabet[int(b)%len(alphabet)])
		}
	}
	return string(token), nil
}

// Verifier checks presented tokens against a configured hash.
type Verifier struct {
	hash []byte
}

// NewVerifier creates a Verifier. An empty hash yields a nil Verifier,
// meaning the admin API is disabled.
func NewVerifier(hash string) (*Verifier, error) {
	hash = strings.TrimSpace(hash)
	if hash == "" {
		return nil, nil //nolint:nilnil // nil verifier disables admin access
	}
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidHash, err)
	}
	return &Verifier{hash: []byte(hash)}, nil
}

// Verify reports whether token matches the configured hash.
func (v *Verifier) Verify(token string) error {
	if v == nil {
		return ErrInvalidToken
	}
	if token == "" || len(token) > 72 {
		// Constant-time: always perform bcrypt comparison to prevent timing attacks
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(token))
		slog.Warn("admin_auth_failed", "reason", "malformed_token")
		return ErrInvalidToken
	}
	if err := bcrypt.CompareHashAndPassword(v.hash, []byte(token)); err != nil {
		slog.Warn("admin_auth_failed", "reason", "token_mismatch")
		return ErrInvalidToken
	}
	return nil
}

func isEntirelyNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return len(s) > 0
}

func isSingleCharacter(s string) bool {
	return strings.Count(s, s[:1]) == len(s)
}
