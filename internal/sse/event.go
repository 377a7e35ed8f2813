// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package sse

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Event is one server-sent event. String data is sent verbatim, any other
// value as JSON.
type Event struct {
	ID    string
	Name  string
	Data  any
	Retry time.Duration // client reconnect delay, sent when positive
}

// Encode renders the event in the text/event-stream format. Multiline data
// is split into one data: field per line.
func (e Event) Encode() (string, error) {
	data, err := e.payload()
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	if e.ID != "" {
		fmt.Fprintf(&sb, "id: %s\n", e.ID)
	}
	if e.Name != "" {
		fmt.Fprintf(&sb, "event: %s\n", e.Name)
	}
	if e.Retry > 0 {
		fmt.Fprintf(&sb, "retry: %d\n", e.Retry.Milliseconds())
	}
	for _, line := range strings.Split(data, "\n") {
		fmt.Fprintf(&sb, "data: %s\n", line)
	}
	sb.WriteString("\n")
	return sb.String(), nil
}

func (e Event) payload() (string, error) {
	switch v := e.Data.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("encoding %q event: %w", e.Name, err)
		}
		return string(b), nil
	}
}

// Heartbeat is an SSE comment that keeps the connection alive.
// Comments (lines starting with :) are ignored by SSE clients.
const Heartbeat = ": heartbeat\n\n"
