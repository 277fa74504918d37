package credentials

import (
	"context"
	"time"
)

// HistoryEntry is an immutable record of a password a user has held.
type HistoryEntry struct {
	UserID       string
	PasswordHash string
	CreatedAt    time.Time
}

// HistoryRepo stores password history. Implementations keep at most the
// requested number of most recent entries per user.
type HistoryRepo interface {
	Append(ctx context.Context, entry HistoryEntry, keep int) error
	// Recent returns up to limit entries, newest first.
	Recent(ctx context.Context, userID string, limit int) ([]HistoryEntry, error)
}
