package models

import (
	"time"

	"github.com/google/uuid"
)

type News struct {
	ID          uuid.UUID  `json:"id"`
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	Symbol      *string    `json:"symbol"`
	PublishedAt time.Time  `json:"published_at"`
	CreatedBy   *uuid.UUID `json:"created_by"`
}
