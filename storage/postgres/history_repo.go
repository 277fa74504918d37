package postgres

import (
	"context"
	"database/sql"

	"github.com/jrsteele09/go-session-server/credentials"
	"github.com/pkg/errors"
)

var _ credentials.HistoryRepo = (*HistoryRepo)(nil)

type HistoryRepo struct {
	db *sql.DB
}

func NewHistoryRepo(db *sql.DB) *HistoryRepo {
	return &HistoryRepo{db: db}
}

// Append inserts the entry and trims the user's history to the newest keep
// rows in one transaction.
func (r *HistoryRepo) Append(ctx context.Context, entry credentials.HistoryEntry, keep int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return dbError(err, "[HistoryRepo.Append] begin")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO password_history (user_id, password_hash, created_at) VALUES ($1, $2, $3)`,
		entry.UserID, entry.PasswordHash, entry.CreatedAt); err != nil {
		return dbError(err, "[HistoryRepo.Append] insert")
	}
	if keep > 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM password_history
			WHERE user_id = $1 AND id NOT IN (
				SELECT id FROM password_history WHERE user_id = $1
				ORDER BY created_at DESC, id DESC LIMIT $2)`,
			entry.UserID, keep); err != nil {
			return dbError(err, "[HistoryRepo.Append] trim")
		}
	}
	return dbError(tx.Commit(), "[HistoryRepo.Append] commit")
}

func (r *HistoryRepo) Recent(ctx context.Context, userID string, limit int) ([]credentials.HistoryEntry, error) {
	query := `SELECT user_id, password_hash, created_at FROM password_history
		WHERE user_id = $1 ORDER BY created_at DESC, id DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbError(err, "[HistoryRepo.Recent]")
	}
	defer rows.Close()

	var out []credentials.HistoryEntry
	for rows.Next() {
		var e credentials.HistoryEntry
		if err := rows.Scan(&e.UserID, &e.PasswordHash, &e.CreatedAt); err != nil {
			return nil, dbError(err, "[HistoryRepo.Recent] scan")
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(errors.WithStack(err), "[HistoryRepo.Recent] rows")
	}
	return out, nil
}
