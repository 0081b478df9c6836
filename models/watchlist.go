package models

import (
	"time"

	"github.com/google/uuid"
)

// WatchlistItem is one monitored symbol for a user. Uniqueness is on the
// (user, symbol) pair.
type WatchlistItem struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Symbol    string    `json:"symbol"`
	CreatedAt time.Time `json:"created_at"`
}
