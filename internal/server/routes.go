// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"log/slog"

	"codeberg.org/oliverandrich/votemail/internal/handlers"
	"codeberg.org/oliverandrich/votemail/internal/services/auth"
	"github.com/labstack/echo/v4"
)

func setupRoutes(e *echo.Echo, h *handlers.Handlers, verifier *auth.Verifier) {
	api := e.Group("/api")

	api.GET("/health", h.Health)
	api.POST("/trigger-process", h.TriggerProcess)

	// Voting
	api.GET("/config", h.VotingConfig)
	api.GET("/nominees", h.Nominees)
	api.POST("/codes/check", h.CheckCode)
	api.POST("/votes", h.Vote)
	api.GET("/results", h.Results)

	if verifier == nil {
		slog.Warn("admin API disabled", "reason", "no admin token hash configured")
		return
	}

	admin := api.Group("/admin", adminAuth(verifier))

	admin.GET("/stats", h.Stats)
	admin.GET("/events", h.Events)
	admin.POST("/reset", h.Reset)

	admin.GET("/codes", h.ListCodes)
	admin.GET("/codes/export", h.ExportCodes)
	admin.POST("/codes", h.GenerateCodes)
	admin.DELETE("/codes/:id", h.DeleteCode)

	admin.POST("/emails", h.RegisterEmails)
	admin.GET("/emails/failed", h.FailedEmails)
	admin.POST("/emails/:id/requeue", h.RequeueEmail)
	admin.POST("/emails/:id/ignore", h.IgnoreEmail)

	admin.GET("/config", h.AdminVotingConfig)
	admin.PUT("/config/status", h.SetVotingStatus)
	admin.PUT("/config/results", h.SetResultsPublic)
	admin.PUT("/config/closing-time", h.SetClosingTime)
	admin.GET("/results", h.AdminResults)

	admin.POST("/nominees", h.CreateNominee)
	admin.PUT("/nominees/:id", h.UpdateNominee)
	admin.DELETE("/nominees/:id", h.DeleteNominee)
}
