// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package testutil provides test helpers and fixtures.
package testutil

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/oliverandrich/votemail/internal/database"
	"codeberg.org/oliverandrich/votemail/internal/models"
	"codeberg.org/oliverandrich/votemail/internal/repository"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"github.com/vinovest/sqlx"
)

// NewTestDB creates a file-backed SQLite database in a temporary directory,
// so concurrent connections share one database.
// Returns both the database connection and the repository for convenience.
func NewTestDB(t *testing.T) (*sqlx.DB, *repository.Repository) {
	t.Helper()
	db, err := database.Open(database.DriverSQLite, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	repo := repository.New(db)
	return db, repo
}

// NewTestNominee creates a nominee.
func NewTestNominee(t *testing.T, repo *repository.Repository, name string) *models.Nominee {
	t.Helper()
	n := &models.Nominee{Name: name}
	require.NoError(t, repo.CreateNominee(context.Background(), n))
	return n
}

// NewTestCode creates a code without a recipient.
func NewTestCode(t *testing.T, repo *repository.Repository, code string) *models.VotingCode {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, repo.CreateCodes(ctx, []string{code}, time.Now()))
	row, err := repo.GetCode(ctx, code)
	require.NoError(t, err)
	return row
}

// NewTestEmailCode creates a code bound to email with the given status.
func NewTestEmailCode(t *testing.T, repo *repository.Repository, code, email string, status models.EmailStatus) *models.VotingCode {
	t.Helper()
	ctx := context.Background()
	inserted, err := repo.InsertEmailCodes(ctx, []repository.EmailCode{{Email: email, Code: code, Status: status}}, time.Now())
	require.NoError(t, err)
	require.Len(t, inserted, 1)
	row, err := repo.GetCode(ctx, code)
	require.NoError(t, err)
	return row
}

// NewEchoContext creates an Echo context for handler tests.
func NewEchoContext(e *echo.Echo, method, path string, body io.Reader) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return c, rec
}

// NewRequest creates an HTTP request for testing.
func NewRequest(method, path string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}
