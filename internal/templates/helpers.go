// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package templates renders the HTML parts of outgoing mail. Components are
// written in .templ files; regenerate the _templ.go files after editing.
package templates

//go:generate go run github.com/a-h/templ/cmd/templ@v0.3.977 generate

import (
	"context"

	"codeberg.org/oliverandrich/votemail/internal/i18n"
)

// T translates a message by ID.
func T(ctx context.Context, messageID string) string {
	return i18n.T(ctx, messageID)
}

// Locale returns the current locale.
func Locale(ctx context.Context) string {
	return i18n.GetLocale(ctx)
}
