// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goodToken = "correct-horse-battery-staple-42"

func TestValidateToken(t *testing.T) {
	tests := []struct {
		name  string
		token string
		ok    bool
	}{
		{"long enough", goodToken, true},
		{"too short", "short-token", false},
		{"numeric", strings.Repeat("1234", 8), false},
		{"single character", strings.Repeat("a", 30), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateToken(tt.token)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrWeakToken)
			}
		})
	}
}

func TestHashToken(t *testing.T) {
	hash, err := HashToken(goodToken)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$2a$"))

	_, err = HashToken("short")
	assert.ErrorIs(t, err, ErrWeakToken)
}

func TestGenerateToken(t *testing.T) {
	token, err := GenerateToken()
	require.NoError(t, err)
	assert.Len(t, token, TokenLength)
	for _, r := range token {
		assert.Contains(t, alphabet, string(r))
	}
	require.NoError(t, ValidateToken(token))

	other, err := GenerateToken()
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}

func TestGenerateToken_DiscardsBiasedBytes(t *testing.T) {
	// 248..255 would favour the first eight symbols and must be skipped.
	src := make([]byte, 0, 2*TokenLength)
	for i := 0; i < TokenLength; i++ {
		src = append(src, byte(248+i%8))
	}
	for i := 0; i < TokenLength; i++ {
		src = append(src, byte(30+31*(i%8)))
	}

	token, err := generateToken(bytes.NewReader(src))
	require.NoError(t, err)
	assert.Len(t, token, TokenLength)
	assert.Equal(t, strings.Repeat(alphabet[30:31], TokenLength), token)
}

func TestGenerateToken_ReadError(t *testing.T) {
	_, err := generateToken(bytes.NewReader(nil))
	assert.Error(t, err)
}

func TestNewVerifier(t *testing.T) {
	v, err := NewVerifier("")
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = NewVerifier("not-a-bcrypt-hash")
	assert.ErrorIs(t, err, ErrInvalidHash)
}

func TestVerifier_Verify(t *testing.T) {
	hash, err := HashToken(goodToken)
	require.NoError(t, err)
	v, err := NewVerifier(hash + "\n")
	require.NoError(t, err)

	assert.NoError(t, v.Verify(goodToken))
	assert.ErrorIs(t, v.Verify("wrong-token-wrong-token-wrong"), ErrInvalidToken)
	assert.ErrorIs(t, v.Verify(""), ErrInvalidToken)
	assert.ErrorIs(t, v.Verify(strings.Repeat("x", 100)), ErrInvalidToken)
}

func TestVerifier_NilRejectsEverything(t *testing.T) {
	var v *Verifier
	assert.ErrorIs(t, v.Verify(goodToken), ErrInvalidToken)
}
