// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

const (
	// MaxDescriptionLength limits Nominee.Description.
	MaxDescriptionLength = 150
	// MaxDetailedInfoLength limits Nominee.DetailedInfo.
	MaxDetailedInfoLength = 1000
)

// Nominee is a candidate votes are cast for. VoteCount only changes
// through code redemption.
type Nominee struct { //nolint:govet // fieldalignment: readability over optimization
	ID           int64     `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Description  string    `db:"description" json:"description"`
	DetailedInfo string    `db:"detailed_info" json:"detailed_info"`
	ImageURL     string    `db:"image_url" json:"image_url"`
	VoteCount    int64     `db:"vote_count" json:"vote_count"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
