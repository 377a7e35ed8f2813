// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"codeberg.org/oliverandrich/votemail/internal/handlers"
	"codeberg.org/oliverandrich/votemail/internal/i18n"
	"codeberg.org/oliverandrich/votemail/internal/repository"
	"codeberg.org/oliverandrich/votemail/internal/services/provision"
	"codeberg.org/oliverandrich/votemail/internal/sse"
	"codeberg.org/oliverandrich/votemail/internal/testutil"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func init() {
	// Initialize i18n for translated messages
	_ = i18n.Init()
}

type fakeDispatcher struct {
	triggers   int
	processing bool
}

func (f *fakeDispatcher) Trigger()         { f.triggers++ }
func (f *fakeDispatcher) Processing() bool { return f.processing }

type env struct {
	h          *handlers.Handlers
	repo       *repository.Repository
	dispatcher *fakeDispatcher
	hub        *sse.Hub
	e          *echo.Echo
}

func newEnv(t *testing.T) *env {
	t.Helper()
	_, repo := testutil.NewTestDB(t)
	d := &fakeDispatcher{}
	hub := sse.NewHub()
	return &env{
		h:          handlers.New(repo, d, provision.NewService(repo, d), hub),
		repo:       repo,
		dispatcher: d,
		hub:        hub,
		e:          echo.New(),
	}
}

// call runs handler with an English locale and optional :id parameter.
func (env *env) call(handler echo.HandlerFunc, method, body string, id ...int64) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	c, rec := testutil.NewEchoContext(env.e, method, "/", reader)
	req := c.Request()
	c.SetRequest(req.WithContext(i18n.WithLocale(req.Context(), language.English)))
	if len(id) > 0 {
		c.SetParamNames("id")
		c.SetParamValues(strconv.FormatInt(id[0], 10))
	}
	if err := handler(c); err != nil {
		env.e.HTTPErrorHandler(err, c)
	}
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	env := newEnv(t)
	env.dispatcher.processing = true

	rec := env.call(env.h.Health, http.MethodGet, "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["processing"])
	_, err := time.Parse(time.RFC3339, body["timestamp"].(string))
	assert.NoError(t, err)
}

func TestTriggerProcess(t *testing.T) {
	env := newEnv(t)

	rec := env.call(env.h.TriggerProcess, http.MethodPost, "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"message":"Worker triggered"}`, rec.Body.String())
	assert.Equal(t, 1, env.dispatcher.triggers)
}

func TestNominees_HidesVoteCounts(t *testing.T) {
	env := newEnv(t)
	testutil.NewTestNominee(t, env.repo, "Ani")

	rec := env.call(env.h.Nominees, http.MethodGet, "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"Ani"`)
	assert.NotContains(t, rec.Body.String(), "vote_count")
}

func TestNominees_EmptyList(t *testing.T) {
	env := newEnv(t)

	rec := env.call(env.h.Nominees, http.MethodGet, "")

	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestVotingConfig(t *testing.T) {
	env := newEnv(t)

	rec := env.call(env.h.VotingConfig, http.MethodGet, "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "active", body["status"])
	assert.Equal(t, false, body["results_public"])
}

func TestCheckCode(t *testing.T) {
	env := newEnv(t)
	testutil.NewTestCode(t, env.repo, "ABC-234")

	rec := env.call(env.h.CheckCode, http.MethodPost, `{"code":"abc-234"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Code accepted. Choose your nominee.", body["message"])
}

func TestVote(t *testing.T) {
	env := newEnv(t)
	n := testutil.NewTestNominee(t, env.repo, "Ani")
	testutil.NewTestCode(t, env.repo, "ABC-234")

	rec := env.call(env.h.Vote, http.MethodPost, `{"code":"ABC-234","nominee_id":`+strconv.FormatInt(n.ID, 10)+`}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Thank you! Your vote has been recorded.", decode(t, rec)["message"])

	got, err := env.repo.GetNominee(context.Background(), n.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.VoteCount)
}

func TestVote_Failures(t *testing.T) {
	env := newEnv(t)
	n := testutil.NewTestNominee(t, env.repo, "Ani")
	nominee := strconv.FormatInt(n.ID, 10)
	testutil.NewTestCode(t, env.repo, "ABC-234")
	testutil.NewTestCode(t, env.repo, "XYZ-789")
	env.call(env.h.Vote, http.MethodPost, `{"code":"XYZ-789","nominee_id":`+nominee+`}`)

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"malformed body", `{"code":`, http.StatusBadRequest, "error_bad_request"},
		{"invalid format", `{"code":"ABC234","nominee_id":` + nominee + `}`, http.StatusBadRequest, "error_invalid_format"},
		{"unknown code", `{"code":"AAA-AAA","nominee_id":` + nominee + `}`, http.StatusNotFound, "error_code_not_found"},
		{"used code", `{"code":"XYZ-789","nominee_id":` + nominee + `}`, http.StatusConflict, "error_code_used"},
		{"unknown nominee", `{"code":"ABC-234","nominee_id":999}`, http.StatusNotFound, "error_nominee_not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.call(env.h.Vote, http.MethodPost, tt.body)

			assert.Equal(t, tt.status, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.code, body["code"])
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestVote_VotingClosed(t *testing.T) {
	env := newEnv(t)
	n := testutil.NewTestNominee(t, env.repo, "Ani")
	testutil.NewTestCode(t, env.repo, "ABC-234")
	rec := env.call(env.h.SetVotingStatus, http.MethodPut, `{"status":"closed"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.call(env.h.Vote, http.MethodPost, `{"code":"ABC-234","nominee_id":`+strconv.FormatInt(n.ID, 10)+`}`)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Voting is closed.", decode(t, rec)["error"])
}

func TestVote_ArmenianMessage(t *testing.T) {
	env := newEnv(t)
	c, rec := testutil.NewEchoContext(env.e, http.MethodPost, "/", strings.NewReader(`{"code":"bad"}`))
	c.SetRequest(c.Request().WithContext(i18n.WithLocale(context.Background(), language.Armenian)))

	require.NoError(t, env.h.Vote(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	msg := decode(t, rec)["error"].(string)
	assert.NotEqual(t, "The code format is invalid. Use XXX-XXX.", msg)
	assert.NotEmpty(t, msg)
}

func TestResults(t *testing.T) {
	env := newEnv(t)
	n := testutil.NewTestNominee(t, env.repo, "Ani")
	testutil.NewTestCode(t, env.repo, "ABC-234")
	env.call(env.h.Vote, http.MethodPost, `{"code":"ABC-234","nominee_id":`+strconv.FormatInt(n.ID, 10)+`}`)

	rec := env.call(env.h.Results, http.MethodGet, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "error_results_hidden", decode(t, rec)["code"])

	rec = env.call(env.h.AdminResults, http.MethodGet, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.call(env.h.SetResultsPublic, http.MethodPut, `{"public":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "closed", decode(t, rec)["status"])

	rec = env.call(env.h.Results, http.MethodGet, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var results handlers.ResultsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	assert.Equal(t, int64(1), results.TotalVotes)
	require.Len(t, results.Nominees, 1)
	assert.Equal(t, int64(1), results.Nominees[0].VoteCount)
}
