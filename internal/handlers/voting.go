// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"

	"codeberg.org/oliverandrich/votemail/internal/i18n"
	"codeberg.org/oliverandrich/votemail/internal/models"
	"github.com/labstack/echo/v4"
	"github.com/samber/lo"
)

// NomineeView is a nominee without its tally.
type NomineeView struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	DetailedInfo string `json:"detailed_info"`
	ImageURL     string `json:"image_url"`
}

func nomineeView(n models.Nominee, _ int) NomineeView {
	return NomineeView{
		ID:           n.ID,
		Name:         n.Name,
		Description:  n.Description,
		DetailedInfo: n.DetailedInfo,
		ImageURL:     n.ImageURL,
	}
}

// CodeRequest is the body of a code check.
type CodeRequest struct {
	Code string `json:"code"`
}

// VoteRequest is the body of a vote.
type VoteRequest struct {
	Code      string `json:"code"`
	NomineeID int64  `json:"nominee_id"`
}

// ResultsResponse lists nominees with their tallies.
type ResultsResponse struct {
	Nominees   []models.Nominee `json:"nominees"`
	TotalVotes int64            `json:"total_votes"`
}

// VotingConfig returns the election state.
func (h *Handlers) VotingConfig(c echo.Context) error {
	cfg, err := h.repo.GetVotingConfig(c.Request().Context())
	if err != nil {
		return InternalServerError(c, "failed to load voting config", err)
	}
	return c.JSON(http.StatusOK, cfg)
}

// Nominees lists nominees without vote counts.
func (h *Handlers) Nominees(c echo.Context) error {
	nominees, err := h.repo.ListNominees(c.Request().Context())
	if err != nil {
		return InternalServerError(c, "failed to list nominees", err)
	}
	return c.JSON(http.StatusOK, lo.Map(nominees, nomineeView))
}

// CheckCode reports whether a code may still vote.
func (h *Handlers) CheckCode(c echo.Context) error {
	var req CodeRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest(c)
	}

	result, err := h.repo.CheckCode(c.Request().Context(), req.Code)
	if err != nil {
		return InternalServerError(c, "failed to check code", err)
	}
	if !result.OK() {
		return outcomeError(c, result.Outcome)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"message": i18n.T(c.Request().Context(), "code_valid"),
	})
}

// Vote redeems a code for a nominee.
func (h *Handlers) Vote(c echo.Context) error {
	var req VoteRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest(c)
	}

	ctx := c.Request().Context()
	result, err := h.repo.RedeemCode(ctx, req.Code, req.NomineeID)
	if err != nil {
		return InternalServerError(c, "failed to redeem code", err)
	}
	if !result.OK() {
		return outcomeError(c, result.Outcome)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"message": i18n.T(ctx, "vote_recorded"),
	})
}

// Results returns the tallies once they are public.
func (h *Handlers) Results(c echo.Context) error {
	ctx := c.Request().Context()
	cfg, err := h.repo.GetVotingConfig(ctx)
	if err != nil {
		return InternalServerError(c, "failed to load voting config", err)
	}
	if !cfg.ResultsPublic {
		return RenderError(c, http.StatusNotFound, "error_results_hidden")
	}
	return h.renderResults(c)
}

func (h *Handlers) renderResults(c echo.Context) error {
	nominees, err := h.repo.ListNominees(c.Request().Context())
	if err != nil {
		return InternalServerError(c, "failed to list nominees", err)
	}
	return c.JSON(http.StatusOK, ResultsResponse{
		Nominees: nominees,
		TotalVotes: lo.SumBy(nominees, func(n models.Nominee) int64 {
			return n.VoteCount
		}),
	})
}
