// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"codeberg.org/oliverandrich/votemail/internal/i18n"
	"codeberg.org/oliverandrich/votemail/internal/repository"
	"github.com/labstack/echo/v4"
)

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

// RenderError writes a translated error message with the given status.
func RenderError(c echo.Context, status int, messageID string) error {
	return c.JSON(status, ErrorResponse{
		Error: i18n.T(c.Request().Context(), messageID),
		Code:  messageID,
	})
}

// BadRequest writes a 400 response.
func BadRequest(c echo.Context) error {
	return RenderError(c, http.StatusBadRequest, "error_bad_request")
}

// NotFound writes a 404 response.
func NotFound(c echo.Context) error {
	return RenderError(c, http.StatusNotFound, "error_not_found")
}

// InternalServerError logs err and writes a 500 response.
func InternalServerError(c echo.Context, msg string, err error) error {
	slog.Error(msg, "error", err, "path", c.Path())
	return RenderError(c, http.StatusInternalServerError, "error_server")
}

// storeError maps repository errors to responses.
func storeError(c echo.Context, msg string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return NotFound(c)
	case errors.Is(err, repository.ErrResultsPublic):
		return RenderError(c, http.StatusConflict, "error_results_public")
	default:
		return InternalServerError(c, msg, err)
	}
}

// outcomeError maps a failed redemption to a status and message.
func outcomeError(c echo.Context, outcome repository.RedeemOutcome) error {
	switch outcome {
	case repository.RedeemInvalidFormat:
		return RenderError(c, http.StatusBadRequest, "error_invalid_format")
	case repository.RedeemCodeNotFound:
		return RenderError(c, http.StatusNotFound, "error_code_not_found")
	case repository.RedeemCodeUsed:
		return RenderError(c, http.StatusConflict, "error_code_used")
	case repository.RedeemVotingClosed:
		return RenderError(c, http.StatusForbidden, "error_voting_closed")
	case repository.RedeemNomineeNotFound:
		return RenderError(c, http.StatusNotFound, "error_nominee_not_found")
	default:
		return RenderError(c, http.StatusInternalServerError, "error_server")
	}
}
