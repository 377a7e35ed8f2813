// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// VotingStatus is the state of the election.
type VotingStatus string

const (
	VotingActive VotingStatus = "active"
	VotingClosed VotingStatus = "closed"
)

// Valid reports whether s is one of the known statuses.
func (s VotingStatus) Valid() bool {
	return s == VotingActive || s == VotingClosed
}

// VotingConfigID is the id of the singleton configuration row.
const VotingConfigID = 1

// VotingConfig is the singleton election configuration.
// ResultsPublic implies Status == VotingClosed.
type VotingConfig struct { //nolint:govet // fieldalignment: readability over optimization
	ID            int64        `db:"id" json:"id"`
	Status        VotingStatus `db:"status" json:"status"`
	ResultsPublic bool         `db:"results_public" json:"results_public"`
	ClosingTime   *time.Time   `db:"closing_time" json:"closing_time"`
	UpdatedAt     time.Time    `db:"updated_at" json:"updated_at"`
}

// IsActive reports whether votes are accepted.
func (c *VotingConfig) IsActive() bool {
	return c.Status == VotingActive
}

// Expired reports whether a closing time is set and has passed at now.
func (c *VotingConfig) Expired(now time.Time) bool {
	return c.ClosingTime != nil && !c.ClosingTime.After(now)
}
