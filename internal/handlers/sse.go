// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"
	"time"

	"codeberg.org/oliverandrich/votemail/internal/sse"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// heartbeatInterval keeps idle connections alive through proxies.
var heartbeatInterval = 30 * time.Second

// reconnectDelay is sent to clients as the SSE retry field.
const reconnectDelay = 5 * time.Second

// Events streams dispatch progress as server-sent events.
func (h *Handlers) Events(c echo.Context) error {
	ctx := c.Request().Context()
	w := c.Response()

	// Set SSE headers
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)

	clientID := uuid.NewString()
	ch := h.hub.Register(clientID)
	defer h.hub.Unregister(clientID)

	// Send initial connection event
	hello, err := sse.Event{Name: "connected", Data: clientID, Retry: reconnectDelay}.Encode()
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte(hello)); err != nil {
		return nil
	}
	w.Flush()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	// Stream events until client disconnects
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := w.Write([]byte(sse.Heartbeat)); err != nil {
				return nil // Client disconnected
			}
			w.Flush()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if _, err := w.Write([]byte(msg)); err != nil {
				return nil
			}
			w.Flush()
		}
	}
}
