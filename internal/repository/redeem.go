// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"codeberg.org/oliverandrich/votemail/internal/codes"
	"codeberg.org/oliverandrich/votemail/internal/models"
	"github.com/vinovest/sqlx"
)

// RedeemOutcome discriminates the result of checking or redeeming a code.
type RedeemOutcome string

const (
	RedeemOK              RedeemOutcome = "ok"
	RedeemInvalidFormat   RedeemOutcome = "invalid_format"
	RedeemCodeNotFound    RedeemOutcome = "code_not_found"
	RedeemCodeUsed        RedeemOutcome = "code_already_used"
	RedeemVotingClosed    RedeemOutcome = "voting_not_active"
	RedeemNomineeNotFound RedeemOutcome = "nominee_not_found"
)

// RedeemResult is returned by CheckCode and RedeemCode. Conflicts are
// reported here, not as errors.
type RedeemResult struct {
	Outcome   RedeemOutcome `json:"outcome"`
	NomineeID int64         `json:"nominee_id,omitempty"`
}

// OK reports whether the code was (or may be) redeemed.
func (r RedeemResult) OK() bool {
	return r.Outcome == RedeemOK
}

// RedeemCode consumes code as one vote for nomineeID. Marking the code
// used and incrementing the tally happen in one transaction, and the code
// update only matches an unused code, so concurrent redemptions of the same
// code produce exactly one success.
func (r *Repository) RedeemCode(ctx context.Context, code string, nomineeID int64) (RedeemResult, error) {
	code = codes.Normalize(code)
	if !codes.IsValidFormat(code) {
		return RedeemResult{Outcome: RedeemInvalidFormat}, nil
	}

	var result RedeemResult
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		now := time.Now().UTC()
		res, err := tx.ExecContext(ctx, tx.Rebind(
			`UPDATE voting_codes SET is_used = TRUE, used_at = ?, nominee_id = ?
			WHERE code = ? AND is_used = FALSE
			AND EXISTS (SELECT 1 FROM voting_config WHERE id = ? AND status = 'active')
			AND EXISTS (SELECT 1 FROM nominees WHERE id = ?)`),
			now, nomineeID, code, models.VotingConfigID, nomineeID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}

		if n == 0 {
			outcome, err := diagnose(ctx, tx, code, &nomineeID)
			if err != nil {
				return err
			}
			if outcome == RedeemOK {
				// Lost a race with a concurrent redemption.
				outcome = RedeemCodeUsed
			}
			result = RedeemResult{Outcome: outcome}
			return errRollback
		}

		if _, err := tx.ExecContext(ctx, tx.Rebind(
			`UPDATE nominees SET vote_count = vote_count + 1 WHERE id = ?`), nomineeID); err != nil {
			return err
		}
		result = RedeemResult{Outcome: RedeemOK, NomineeID: nomineeID}
		return nil
	})
	if err != nil && !errors.Is(err, errRollback) {
		return RedeemResult{}, err
	}
	return result, nil
}

// CheckCode reports whether code could vote right now without consuming it.
func (r *Repository) CheckCode(ctx context.Context, code string) (RedeemResult, error) {
	code = codes.Normalize(code)
	if !codes.IsValidFormat(code) {
		return RedeemResult{Outcome: RedeemInvalidFormat}, nil
	}

	var result RedeemResult
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		outcome, err := diagnose(ctx, tx, code, nil)
		if err != nil {
			return err
		}
		result = RedeemResult{Outcome: outcome}
		return nil
	})
	if err != nil {
		return RedeemResult{}, err
	}
	return result, nil
}

// errRollback aborts a transaction that found a conflict.
var errRollback = errors.New("rollback")

// diagnose explains why a code cannot vote, checking existence, prior use,
// voting state and (when given) the nominee in that order.
func diagnose(ctx context.Context, tx *sqlx.Tx, code string, nomineeID *int64) (RedeemOutcome, error) {
	var used bool
	err := tx.GetContext(ctx, &used, tx.Rebind(`SELECT is_used FROM voting_codes WHERE code = ?`), code)
	if errors.Is(err, sql.ErrNoRows) {
		return RedeemCodeNotFound, nil
	}
	if err != nil {
		return "", err
	}
	if used {
		return RedeemCodeUsed, nil
	}

	var status string
	err = tx.GetContext(ctx, &status, tx.Rebind(`SELECT status FROM voting_config WHERE id = ?`), models.VotingConfigID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}
	if status != string(models.VotingActive) {
		return RedeemVotingClosed, nil
	}

	if nomineeID != nil {
		var exists bool
		err = tx.GetContext(ctx, &exists, tx.Rebind(`SELECT EXISTS (SELECT 1 FROM nominees WHERE id = ?)`), *nomineeID)
		if err != nil {
			return "", err
		}
		if !exists {
			return RedeemNomineeNotFound, nil
		}
	}

	return RedeemOK, nil
}
