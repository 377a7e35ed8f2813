// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package i18n_test

import (
	"context"
	"testing"

	"codeberg.org/oliverandrich/votemail/internal/i18n"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestInit(t *testing.T) {
	err := i18n.Init()
	require.NoError(t, err)
}

func TestT(t *testing.T) {
	require.NoError(t, i18n.Init())

	ctx := i18n.WithLocale(context.Background(), language.English)

	assert.Equal(t, "This code has already been used.", i18n.T(ctx, "error_code_used"))
}

func TestT_Armenian(t *testing.T) {
	require.NoError(t, i18n.Init())

	ctx := i18n.WithLocale(context.Background(), language.Armenian)

	assert.Equal(t, "Ձեր քվեարկության կոդը", i18n.T(ctx, "email_subject"))
	assert.Equal(t, "hy", i18n.GetLocale(ctx))
}

func TestT_UnknownKey(t *testing.T) {
	require.NoError(t, i18n.Init())

	ctx := i18n.WithLocale(context.Background(), language.English)

	// Should return the key itself for unknown messages
	result := i18n.T(ctx, "unknown_key_that_does_not_exist")
	assert.Equal(t, "unknown_key_that_does_not_exist", result)
}

func TestT_NoLocaleContext(t *testing.T) {
	require.NoError(t, i18n.Init())

	ctx := context.Background()

	assert.Equal(t, "Voting is closed.", i18n.T(ctx, "error_voting_closed"))
	assert.Equal(t, "en", i18n.GetLocale(ctx))
}

func TestTData(t *testing.T) {
	require.NoError(t, i18n.Init())

	ctx := i18n.WithLocale(context.Background(), language.English)

	result := i18n.TData(ctx, "email_text", map[string]any{
		"Code":      "ABC-234",
		"VotingURL": "https://vote.example.com?code=ABC-234",
		"Support":   "it@example.com",
	})
	assert.Contains(t, result, "ABC-234")
	assert.Contains(t, result, "https://vote.example.com?code=ABC-234")
	assert.Contains(t, result, "it@example.com")
}

func TestEveryKeyTranslated(t *testing.T) {
	require.NoError(t, i18n.Init())

	keys := []string{
		"email_subject", "email_title", "email_heading", "email_greeting", "email_intro",
		"email_code_label", "email_button", "email_keep_private", "email_questions",
		"email_contact", "email_ignore", "code_valid", "vote_recorded",
		"error_invalid_format", "error_code_not_found", "error_code_used",
		"error_voting_closed", "error_nominee_not_found", "error_server",
		"error_bad_request", "error_not_found", "error_results_hidden", "error_results_public",
		"error_closing_time_past", "error_invalid_count", "error_invalid_status",
		"error_nominee_invalid", "error_no_emails", "error_unauthorized",
	}

	for _, tag := range i18n.Supported {
		ctx := i18n.WithLocale(context.Background(), tag)
		for _, key := range keys {
			assert.NotEqual(t, key, i18n.T(ctx, key), "%s missing in %s", key, tag)
		}
	}
}

func TestMatchLanguage(t *testing.T) {
	tests := []struct {
		input    string
		expected language.Tag
	}{
		{"en-US,en;q=0.9", language.English},
		{"hy-AM,hy;q=0.9", language.Armenian},
		{"hy", language.Armenian},
		{"fr-FR,fr;q=0.9", language.English}, // Fallback to English
		{"", language.English},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, i18n.MatchLanguage(tt.input))
		})
	}
}
