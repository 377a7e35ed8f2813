// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"codeberg.org/oliverandrich/votemail/internal/models"
	"github.com/vinovest/sqlx"
)

// GetVotingConfig retrieves the singleton election configuration.
func (r *Repository) GetVotingConfig(ctx context.Context) (*models.VotingConfig, error) {
	var cfg models.VotingConfig
	err := r.db.GetContext(ctx, &cfg, r.db.Rebind(`SELECT * FROM voting_config WHERE id = ?`), models.VotingConfigID)
	if err != nil {
		return nil, wrapError(err)
	}
	return &cfg, nil
}

// SetVotingStatus opens or closes voting. Reopening is refused with
// ErrResultsPublic while results are public, and drops a closing time that
// has already passed so the scheduler does not close it again right away.
func (r *Repository) SetVotingStatus(ctx context.Context, status models.VotingStatus, at time.Time) error {
	if status == models.VotingActive {
		res, err := r.db.ExecContext(ctx, r.db.Rebind(
			`UPDATE voting_config SET status = 'active', updated_at = ?,
			closing_time = CASE WHEN closing_time <= ? THEN NULL ELSE closing_time END
			WHERE id = ? AND results_public = FALSE`), at.UTC(), at.UTC(), models.VotingConfigID)
		if err := expectRows(res, err); err != nil {
			if err == ErrNotFound {
				return ErrResultsPublic
			}
			return err
		}
		return nil
	}

	return expectRows(r.db.ExecContext(ctx, r.db.Rebind(
		`UPDATE voting_config SET status = ?, updated_at = ? WHERE id = ?`),
		string(status), at.UTC(), models.VotingConfigID))
}

// SetResultsPublic shows or hides results. Publishing closes voting in the
// same statement.
func (r *Repository) SetResultsPublic(ctx context.Context, public bool, at time.Time) error {
	if public {
		return expectRows(r.db.ExecContext(ctx, r.db.Rebind(
			`UPDATE voting_config SET results_public = TRUE, status = 'closed', updated_at = ? WHERE id = ?`),
			at.UTC(), models.VotingConfigID))
	}
	return expectRows(r.db.ExecContext(ctx, r.db.Rebind(
		`UPDATE voting_config SET results_public = FALSE, updated_at = ? WHERE id = ?`),
		at.UTC(), models.VotingConfigID))
}

// SetClosingTime schedules automatic closing, or clears it when closing is nil.
func (r *Repository) SetClosingTime(ctx context.Context, closing *time.Time, at time.Time) error {
	var value any
	if closing != nil {
		value = closing.UTC()
	}
	return expectRows(r.db.ExecContext(ctx, r.db.Rebind(
		`UPDATE voting_config SET closing_time = ?, updated_at = ? WHERE id = ?`),
		value, at.UTC(), models.VotingConfigID))
}

// CloseIfExpired closes voting when its closing time has passed at now.
// The check and the transition are one statement, so concurrent callers,
// including other processes, close the election at most once. It reports
// whether this call performed the transition.
func (r *Repository) CloseIfExpired(ctx context.Context, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(
		`UPDATE voting_config SET status = 'closed', updated_at = ?
		WHERE id = ? AND status = 'active' AND closing_time IS NOT NULL AND closing_time <= ?`),
		now.UTC(), models.VotingConfigID, now.UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ResetVotingData deletes every code, zeroes vote counts and reopens voting.
func (r *Repository) ResetVotingData(ctx context.Context, at time.Time) error {
	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM voting_codes`); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE nominees SET vote_count = 0`); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, tx.Rebind(
			`UPDATE voting_config SET status = 'active', results_public = FALSE, closing_time = NULL, updated_at = ?
			WHERE id = ?`), at.UTC(), models.VotingConfigID)
		return err
	})
}
