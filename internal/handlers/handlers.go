// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package handlers implements the JSON API.
package handlers

import (
	"net/http"
	"time"

	"codeberg.org/oliverandrich/votemail/internal/repository"
	"codeberg.org/oliverandrich/votemail/internal/services/provision"
	"codeberg.org/oliverandrich/votemail/internal/sse"
	"github.com/labstack/echo/v4"
)

// Dispatcher is the part of the dispatch worker the API drives.
type Dispatcher interface {
	Trigger()
	Processing() bool
}

// Handlers contains all HTTP handlers.
type Handlers struct {
	repo       *repository.Repository
	dispatcher Dispatcher
	provision  *provision.Service
	hub        *sse.Hub
	now        func() time.Time
}

// New creates a new Handlers instance.
func New(repo *repository.Repository, dispatcher Dispatcher, prov *provision.Service, hub *sse.Hub) *Handlers {
	return &Handlers{
		repo:       repo,
		dispatcher: dispatcher,
		provision:  prov,
		hub:        hub,
		now:        time.Now,
	}
}

// Health returns the health status.
func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":     "ok",
		"processing": h.dispatcher.Processing(),
		"timestamp":  h.now().UTC().Format(time.RFC3339),
	})
}

// TriggerProcess asks the worker to send pending emails and returns
// without waiting for the cycle.
func (h *Handlers) TriggerProcess(c echo.Context) error {
	h.dispatcher.Trigger()
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"message": "Worker triggered",
	})
}
