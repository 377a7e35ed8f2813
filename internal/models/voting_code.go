// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// EmailStatus tracks delivery of the notification carrying a code.
type EmailStatus string

const (
	EmailPending EmailStatus = "pending"
	EmailSent    EmailStatus = "sent"
	EmailFailed  EmailStatus = "failed"
)

// Valid reports whether s is one of the known statuses.
func (s EmailStatus) Valid() bool {
	switch s {
	case EmailPending, EmailSent, EmailFailed:
		return true
	}
	return false
}

// VotingCode is a single-use token, optionally bound to a recipient address.
// EmailStatus is set iff Email is set.
type VotingCode struct { //nolint:govet // fieldalignment: readability over optimization
	ID          int64        `db:"id" json:"id"`
	Code        string       `db:"code" json:"code"`
	Email       *string      `db:"email" json:"email"`
	IsUsed      bool         `db:"is_used" json:"is_used"`
	EmailStatus *EmailStatus `db:"email_status" json:"email_status"`
	EmailError  *string      `db:"email_error" json:"email_error"`
	EmailSentAt *time.Time   `db:"email_sent_at" json:"email_sent_at"`
	NomineeID   *int64       `db:"nominee_id" json:"nominee_id"`
	UsedAt      *time.Time   `db:"used_at" json:"used_at"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
}

// HasEmail reports whether the code is bound to a recipient.
func (c *VotingCode) HasEmail() bool {
	return c.Email != nil && *c.Email != ""
}

// Status returns the email status, or "" when the code has no recipient.
func (c *VotingCode) Status() EmailStatus {
	if c.EmailStatus == nil {
		return ""
	}
	return *c.EmailStatus
}

// EmailStats counts codes with a recipient by delivery status.
type EmailStats struct {
	Pending int64 `db:"pending" json:"pending"`
	Sent    int64 `db:"sent" json:"sent"`
	Failed  int64 `db:"failed" json:"failed"`
	Total   int64 `db:"total" json:"total"`
}
