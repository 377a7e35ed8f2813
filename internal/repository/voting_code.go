// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"codeberg.org/oliverandrich/votemail/internal/models"
	"github.com/vinovest/sqlx"
)

// EmailCode is a code bound to a recipient, ready to be inserted.
type EmailCode struct {
	Email  string
	Code   string
	Status models.EmailStatus
	Error  *string
}

// ListPendingEmails returns up to limit codes whose notification is still
// pending, oldest first.
func (r *Repository) ListPendingEmails(ctx context.Context, limit int) ([]models.VotingCode, error) {
	rows := []models.VotingCode{}
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(
		`SELECT * FROM voting_codes
		WHERE email IS NOT NULL AND email_status = 'pending'
		ORDER BY id LIMIT ?`), limit)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// MarkEmailSent records a successful delivery and clears any previous error.
func (r *Repository) MarkEmailSent(ctx context.Context, id int64, sentAt time.Time) error {
	return expectRows(r.db.ExecContext(ctx, r.db.Rebind(
		`UPDATE voting_codes SET email_status = 'sent', email_sent_at = ?, email_error = NULL
		WHERE id = ? AND email IS NOT NULL`), sentAt.UTC(), id))
}

// MarkEmailFailed records a failed delivery with its reason.
func (r *Repository) MarkEmailFailed(ctx context.Context, id int64, reason string) error {
	return expectRows(r.db.ExecContext(ctx, r.db.Rebind(
		`UPDATE voting_codes SET email_status = 'failed', email_error = ?
		WHERE id = ? AND email IS NOT NULL`), reason, id))
}

// RequeueEmail puts a failed notification back into the pending queue.
// Rows that are not failed are left alone and reported as ErrNotFound.
func (r *Repository) RequeueEmail(ctx context.Context, id int64) error {
	return expectRows(r.db.ExecContext(ctx, r.db.Rebind(
		`UPDATE voting_codes SET email_status = 'pending', email_error = NULL, email_sent_at = NULL
		WHERE id = ? AND email_status = 'failed'`), id))
}

// IgnoreFailedEmail marks a failed notification as sent without delivering
// it. Rows that are not failed are reported as ErrNotFound.
func (r *Repository) IgnoreFailedEmail(ctx context.Context, id int64, at time.Time) error {
	return expectRows(r.db.ExecContext(ctx, r.db.Rebind(
		`UPDATE voting_codes SET email_status = 'sent', email_error = NULL, email_sent_at = ?
		WHERE id = ? AND email_status = 'failed'`), at.UTC(), id))
}

// DeleteCode removes a code by ID.
func (r *Repository) DeleteCode(ctx context.Context, id int64) error {
	return expectRows(r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM voting_codes WHERE id = ?`), id))
}

// GetCode retrieves a code by its value.
func (r *Repository) GetCode(ctx context.Context, code string) (*models.VotingCode, error) {
	var row models.VotingCode
	err := r.db.GetContext(ctx, &row, r.db.Rebind(`SELECT * FROM voting_codes WHERE code = ?`), code)
	if err != nil {
		return nil, wrapError(err)
	}
	return &row, nil
}

// GetCodeByID retrieves a code by ID.
func (r *Repository) GetCodeByID(ctx context.Context, id int64) (*models.VotingCode, error) {
	var row models.VotingCode
	err := r.db.GetContext(ctx, &row, r.db.Rebind(`SELECT * FROM voting_codes WHERE id = ?`), id)
	if err != nil {
		return nil, wrapError(err)
	}
	return &row, nil
}

// CreateCodes inserts codes without a recipient.
func (r *Repository) CreateCodes(ctx context.Context, codes []string, createdAt time.Time) error {
	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		query := tx.Rebind(`INSERT INTO voting_codes (code, is_used, created_at) VALUES (?, FALSE, ?)`)
		for _, code := range codes {
			if _, err := tx.ExecContext(ctx, query, code, createdAt.UTC()); err != nil {
				return err
			}
		}
		return nil
	})
}

// InsertEmailCodes inserts codes bound to recipients. Rows clashing with
// an existing address or code are skipped; the rows actually inserted are
// returned.
func (r *Repository) InsertEmailCodes(ctx context.Context, entries []EmailCode, createdAt time.Time) ([]EmailCode, error) {
	inserted := make([]EmailCode, 0, len(entries))
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		query := tx.Rebind(`INSERT INTO voting_codes (code, email, is_used, email_status, email_error, created_at)
			VALUES (?, ?, FALSE, ?, ?, ?) ON CONFLICT DO NOTHING`)
		for _, e := range entries {
			res, err := tx.ExecContext(ctx, query, e.Code, e.Email, string(e.Status), e.Error, createdAt.UTC())
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n > 0 {
				inserted = append(inserted, e)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inserted, nil
}

// MarkEmailsFailed marks every code bound to one of emails as failed.
func (r *Repository) MarkEmailsFailed(ctx context.Context, emails []string, reason string) error {
	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		query := tx.Rebind(`UPDATE voting_codes SET email_status = 'failed', email_error = ? WHERE email = ?`)
		for _, email := range emails {
			if _, err := tx.ExecContext(ctx, query, reason, email); err != nil {
				return err
			}
		}
		return nil
	})
}

// ExistingCodes returns the set of every stored code.
func (r *Repository) ExistingCodes(ctx context.Context) (map[string]struct{}, error) {
	return r.stringSet(ctx, `SELECT code FROM voting_codes`)
}

// ExistingEmails returns the set of every stored recipient address.
func (r *Repository) ExistingEmails(ctx context.Context) (map[string]struct{}, error) {
	return r.stringSet(ctx, `SELECT email FROM voting_codes WHERE email IS NOT NULL`)
}

func (r *Repository) stringSet(ctx context.Context, query string) (map[string]struct{}, error) {
	var values []string
	if err := r.db.SelectContext(ctx, &values, query); err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set, nil
}

// ListCodes returns all codes, newest first.
func (r *Repository) ListCodes(ctx context.Context) ([]models.VotingCode, error) {
	rows := []models.VotingCode{}
	if err := r.db.SelectContext(ctx, &rows, `SELECT * FROM voting_codes ORDER BY created_at DESC, id DESC`); err != nil {
		return nil, err
	}
	return rows, nil
}

// ListUnusedCodes returns the values of codes that have not voted yet.
func (r *Repository) ListUnusedCodes(ctx context.Context) ([]string, error) {
	values := []string{}
	if err := r.db.SelectContext(ctx, &values, `SELECT code FROM voting_codes WHERE is_used = FALSE ORDER BY id`); err != nil {
		return nil, err
	}
	return values, nil
}

// ListFailedEmails returns codes whose notification failed.
func (r *Repository) ListFailedEmails(ctx context.Context) ([]models.VotingCode, error) {
	rows := []models.VotingCode{}
	err := r.db.SelectContext(ctx, &rows,
		`SELECT * FROM voting_codes WHERE email IS NOT NULL AND email_status = 'failed' ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// GetEmailStats counts codes with a recipient by delivery status.
func (r *Repository) GetEmailStats(ctx context.Context) (*models.EmailStats, error) {
	var stats models.EmailStats
	err := r.db.GetContext(ctx, &stats, `SELECT
		COALESCE(SUM(CASE WHEN email_status = 'pending' THEN 1 ELSE 0 END), 0) AS pending,
		COALESCE(SUM(CASE WHEN email_status = 'sent' THEN 1 ELSE 0 END), 0) AS sent,
		COALESCE(SUM(CASE WHEN email_status = 'failed' THEN 1 ELSE 0 END), 0) AS failed,
		COUNT(*) AS total
		FROM voting_codes WHERE email IS NOT NULL`)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
