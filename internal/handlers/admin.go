// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"codeberg.org/oliverandrich/votemail/internal/models"
	"codeberg.org/oliverandrich/votemail/internal/services/provision"
	"github.com/labstack/echo/v4"
	"github.com/samber/lo"
)

// StatsResponse summarizes codes, emails and the worker.
type StatsResponse struct {
	Codes      CodeStats         `json:"codes"`
	Emails     models.EmailStats `json:"emails"`
	Processing bool              `json:"processing"`
	Listeners  int               `json:"listeners"`
}

// CodeStats counts codes by redemption.
type CodeStats struct {
	Total int `json:"total"`
	Used  int `json:"used"`
}

// GenerateRequest is the body of a bulk code request.
type GenerateRequest struct {
	Count int `json:"count"`
}

// RegisterRequest carries addresses separated by newlines or commas.
type RegisterRequest struct {
	Emails string `json:"emails"`
}

// StatusRequest opens or closes voting.
type StatusRequest struct {
	Status models.VotingStatus `json:"status"`
}

// ResultsRequest shows or hides results.
type ResultsRequest struct {
	Public bool `json:"public"`
}

// ClosingTimeRequest sets or, with a null value, clears the closing time.
type ClosingTimeRequest struct {
	ClosingTime *time.Time `json:"closing_time"`
}

// NomineeRequest is the body for creating or updating a nominee.
type NomineeRequest struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	DetailedInfo string `json:"detailed_info"`
	ImageURL     string `json:"image_url"`
}

func (r *NomineeRequest) valid() bool {
	r.Name = strings.TrimSpace(r.Name)
	return r.Name != "" &&
		utf8.RuneCountInString(r.Description) <= models.MaxDescriptionLength &&
		utf8.RuneCountInString(r.DetailedInfo) <= models.MaxDetailedInfoLength
}

func success(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"success": true})
}

// Stats returns code and email counters.
func (h *Handlers) Stats(c echo.Context) error {
	ctx := c.Request().Context()
	rows, err := h.repo.ListCodes(ctx)
	if err != nil {
		return InternalServerError(c, "failed to list codes", err)
	}
	emails, err := h.repo.GetEmailStats(ctx)
	if err != nil {
		return InternalServerError(c, "failed to load email stats", err)
	}

	return c.JSON(http.StatusOK, StatsResponse{
		Codes: CodeStats{
			Total: len(rows),
			Used:  lo.CountBy(rows, func(r models.VotingCode) bool { return r.IsUsed }),
		},
		Emails:     *emails,
		Processing: h.dispatcher.Processing(),
		Listeners:  h.hub.ClientCount(),
	})
}

// ListCodes returns every code.
func (h *Handlers) ListCodes(c echo.Context) error {
	rows, err := h.repo.ListCodes(c.Request().Context())
	if err != nil {
		return InternalServerError(c, "failed to list codes", err)
	}
	return c.JSON(http.StatusOK, rows)
}

// ExportCodes downloads unused codes as plain text, one per line.
func (h *Handlers) ExportCodes(c echo.Context) error {
	values, err := h.repo.ListUnusedCodes(c.Request().Context())
	if err != nil {
		return InternalServerError(c, "failed to list unused codes", err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="voting-codes.txt"`)
	body := strings.Join(values, "\n")
	if body != "" {
		body += "\n"
	}
	return c.String(http.StatusOK, body)
}

// GenerateCodes creates codes without recipients.
func (h *Handlers) GenerateCodes(c echo.Context) error {
	var req GenerateRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest(c)
	}

	generated, err := h.provision.GenerateCodes(c.Request().Context(), req.Count)
	if errors.Is(err, provision.ErrInvalidCount) {
		return RenderError(c, http.StatusBadRequest, "error_invalid_count")
	}
	if err != nil {
		return InternalServerError(c, "failed to generate codes", err)
	}

	return c.JSON(http.StatusCreated, map[string]any{
		"success": true,
		"codes":   generated,
	})
}

// DeleteCode removes a code.
func (h *Handlers) DeleteCode(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return BadRequest(c)
	}
	if err := h.repo.DeleteCode(c.Request().Context(), id); err != nil {
		return storeError(c, "failed to delete code", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// RegisterEmails creates codes for a list of addresses and queues them.
func (h *Handlers) RegisterEmails(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest(c)
	}

	reg, err := h.provision.RegisterEmails(c.Request().Context(), req.Emails)
	if errors.Is(err, provision.ErrNoEmails) {
		return RenderError(c, http.StatusBadRequest, "error_no_emails")
	}
	if err != nil {
		return InternalServerError(c, "failed to register emails", err)
	}
	return c.JSON(http.StatusOK, reg)
}

// FailedEmails lists codes whose email could not be delivered.
func (h *Handlers) FailedEmails(c echo.Context) error {
	rows, err := h.repo.ListFailedEmails(c.Request().Context())
	if err != nil {
		return InternalServerError(c, "failed to list failed emails", err)
	}
	return c.JSON(http.StatusOK, rows)
}

// RequeueEmail puts a failed email back into the queue and wakes the worker.
func (h *Handlers) RequeueEmail(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return BadRequest(c)
	}
	if err := h.repo.RequeueEmail(c.Request().Context(), id); err != nil {
		return storeError(c, "failed to requeue email", err)
	}
	h.dispatcher.Trigger()
	return success(c)
}

// IgnoreEmail marks a failed email as handled.
func (h *Handlers) IgnoreEmail(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return BadRequest(c)
	}
	if err := h.repo.IgnoreFailedEmail(c.Request().Context(), id, h.now()); err != nil {
		return storeError(c, "failed to ignore email", err)
	}
	return success(c)
}

// AdminVotingConfig returns the election state.
func (h *Handlers) AdminVotingConfig(c echo.Context) error {
	return h.VotingConfig(c)
}

// AdminResults returns tallies regardless of visibility.
func (h *Handlers) AdminResults(c echo.Context) error {
	return h.renderResults(c)
}

// SetVotingStatus opens or closes voting.
func (h *Handlers) SetVotingStatus(c echo.Context) error {
	var req StatusRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest(c)
	}
	if !req.Status.Valid() {
		return RenderError(c, http.StatusBadRequest, "error_invalid_status")
	}
	if err := h.repo.SetVotingStatus(c.Request().Context(), req.Status, h.now()); err != nil {
		return storeError(c, "failed to set voting status", err)
	}
	return h.VotingConfig(c)
}

// SetResultsPublic shows or hides results. Showing them closes voting.
func (h *Handlers) SetResultsPublic(c echo.Context) error {
	var req ResultsRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest(c)
	}
	if err := h.repo.SetResultsPublic(c.Request().Context(), req.Public, h.now()); err != nil {
		return storeError(c, "failed to set results visibility", err)
	}
	return h.VotingConfig(c)
}

// SetClosingTime schedules automatic closing. The time must lie ahead.
func (h *Handlers) SetClosingTime(c echo.Context) error {
	var req ClosingTimeRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest(c)
	}
	now := h.now()
	if req.ClosingTime != nil && !req.ClosingTime.After(now) {
		return RenderError(c, http.StatusBadRequest, "error_closing_time_past")
	}
	if err := h.repo.SetClosingTime(c.Request().Context(), req.ClosingTime, now); err != nil {
		return storeError(c, "failed to set closing time", err)
	}
	return h.VotingConfig(c)
}

// CreateNominee adds a nominee.
func (h *Handlers) CreateNominee(c echo.Context) error {
	var req NomineeRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest(c)
	}
	if !req.valid() {
		return RenderError(c, http.StatusBadRequest, "error_nominee_invalid")
	}

	n := &models.Nominee{
		Name:         req.Name,
		Description:  req.Description,
		DetailedInfo: req.DetailedInfo,
		ImageURL:     req.ImageURL,
	}
	if err := h.repo.CreateNominee(c.Request().Context(), n); err != nil {
		return InternalServerError(c, "failed to create nominee", err)
	}
	return c.JSON(http.StatusCreated, n)
}

// UpdateNominee changes a nominee's descriptive fields.
func (h *Handlers) UpdateNominee(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return BadRequest(c)
	}
	var req NomineeRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest(c)
	}
	if !req.valid() {
		return RenderError(c, http.StatusBadRequest, "error_nominee_invalid")
	}

	ctx := c.Request().Context()
	n := &models.Nominee{
		ID:           id,
		Name:         req.Name,
		Description:  req.Description,
		DetailedInfo: req.DetailedInfo,
		ImageURL:     req.ImageURL,
	}
	if err := h.repo.UpdateNominee(ctx, n); err != nil {
		return storeError(c, "failed to update nominee", err)
	}
	updated, err := h.repo.GetNominee(ctx, id)
	if err != nil {
		return storeError(c, "failed to load nominee", err)
	}
	return c.JSON(http.StatusOK, updated)
}

// DeleteNominee removes a nominee. Codes that voted for it keep their state.
func (h *Handlers) DeleteNominee(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return BadRequest(c)
	}
	if err := h.repo.DeleteNominee(c.Request().Context(), id); err != nil {
		return storeError(c, "failed to delete nominee", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Reset deletes all codes and votes and reopens voting.
func (h *Handlers) Reset(c echo.Context) error {
	if err := h.repo.ResetVotingData(c.Request().Context(), h.now()); err != nil {
		return InternalServerError(c, "failed to reset voting data", err)
	}
	return success(c)
}
