package models

import (
	"time"

	"github.com/google/uuid"
)

// TransactionSide is the direction of a simulated trade.
type TransactionSide string

const (
	TransactionBuy TransactionSide = "buy"
)

type Transaction struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"user_id"`
	Symbol    string          `json:"symbol"`
	Side      TransactionSide `json:"side"`
	Quantity  int64           `json:"quantity"`
	Price     float64         `json:"price"`
	Total     float64         `json:"total"`
	CreatedAt time.Time       `json:"created_at"`
}
