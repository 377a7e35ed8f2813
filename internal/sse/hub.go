// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package sse fans dispatch progress out to server-sent event streams.
package sse

import (
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/samber/lo"
)

// bufferSize is how many events a slow client may lag before events are dropped.
const bufferSize = 32

// Hub manages SSE client channels keyed by connection ID.
type Hub struct {
	clients map[string]chan string
	mu      sync.RWMutex
	seq     atomic.Uint64
}

// NewHub creates a new SSE hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]chan string),
	}
}

// Register adds a client and returns the channel to receive events on.
// Registering an ID again replaces and closes the previous channel.
func (h *Hub) Register(clientID string) chan string {
	ch := make(chan string, bufferSize)

	h.mu.Lock()
	defer h.mu.Unlock()

	if old, ok := h.clients[clientID]; ok {
		close(old)
	}
	h.clients[clientID] = ch
	return ch
}

// Unregister removes a client and closes its channel.
func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.clients[clientID]; ok {
		delete(h.clients, clientID)
		close(ch)
	}
}

// Broadcast sends a formatted event to all connected clients.
func (h *Hub) Broadcast(message string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.clients {
		select {
		case ch <- message:
		default:
			// Channel full, skip (prevents blocking)
		}
	}
}

// Publish broadcasts payload under event with the next sequence number
// as its ID.
func (h *Hub) Publish(event string, payload any) {
	msg, err := Event{
		ID:   strconv.FormatUint(h.seq.Add(1), 10),
		Name: event,
		Data: payload,
	}.Encode()
	if err != nil {
		slog.Error("sse_encode_failed", "event", event, "error", err)
		return
	}
	h.Broadcast(msg)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

// ClientIDs returns the IDs of connected clients in no particular order.
func (h *Hub) ClientIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return lo.Keys(h.clients)
}
