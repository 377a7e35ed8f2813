// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"codeberg.org/oliverandrich/votemail/internal/models"
)

// CreateNominee inserts a nominee and fills in its ID and creation time.
func (r *Repository) CreateNominee(ctx context.Context, n *models.Nominee) error {
	n.CreatedAt = time.Now().UTC()
	n.VoteCount = 0
	return r.db.GetContext(ctx, &n.ID, r.db.Rebind(
		`INSERT INTO nominees (name, description, detailed_info, image_url, vote_count, created_at)
		VALUES (?, ?, ?, ?, 0, ?) RETURNING id`),
		n.Name, n.Description, n.DetailedInfo, n.ImageURL, n.CreatedAt)
}

// UpdateNominee updates the descriptive fields of a nominee. The vote
// count is never touched.
func (r *Repository) UpdateNominee(ctx context.Context, n *models.Nominee) error {
	return expectRows(r.db.ExecContext(ctx, r.db.Rebind(
		`UPDATE nominees SET name = ?, description = ?, detailed_info = ?, image_url = ? WHERE id = ?`),
		n.Name, n.Description, n.DetailedInfo, n.ImageURL, n.ID))
}

// DeleteNominee removes a nominee by ID.
func (r *Repository) DeleteNominee(ctx context.Context, id int64) error {
	return expectRows(r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM nominees WHERE id = ?`), id))
}

// GetNominee retrieves a nominee by ID.
func (r *Repository) GetNominee(ctx context.Context, id int64) (*models.Nominee, error) {
	var n models.Nominee
	if err := r.db.GetContext(ctx, &n, r.db.Rebind(`SELECT * FROM nominees WHERE id = ?`), id); err != nil {
		return nil, wrapError(err)
	}
	return &n, nil
}

// ListNominees returns all nominees ordered by votes, then ID.
func (r *Repository) ListNominees(ctx context.Context) ([]models.Nominee, error) {
	nominees := []models.Nominee{}
	if err := r.db.SelectContext(ctx, &nominees, `SELECT * FROM nominees ORDER BY vote_count DESC, id`); err != nil {
		return nil, err
	}
	return nominees, nil
}
