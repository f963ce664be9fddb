package repository

import (
	"context"
	"time"
)

// UnreadRepository is the server-owned unread counter store. The server is
// the sole source of truth; clients only mirror the integers it declares.
type UnreadRepository interface {
	// Increment bumps unread(userID, chatID) and returns the new count.
	Increment(ctx context.Context, userID, chatID string) (int64, error)

	// Reset zeroes unread(userID, chatID) and advances the lastReadAt
	// watermark to readAt.
	Reset(ctx context.Context, userID, chatID string, readAt time.Time) error

	Count(ctx context.Context, userID, chatID string) (int64, error)
	Counts(ctx context.Context, userID string) (map[string]int64, error)
	LastReadAt(ctx context.Context, userID, chatID string) (time.Time, error)
}
