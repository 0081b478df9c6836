package models

import "time"

// Stock is a symbol-keyed quote record. Price is the only live signal the
// portfolio valuation reads; Change and ChangePercent are derived from
// PreviousClose on the way out, never stored.
type Stock struct {
	Symbol        string    `json:"symbol"`
	Name          string    `json:"name"`
	Sector        *string   `json:"sector"`
	Price         float64   `json:"price"`
	PreviousClose float64   `json:"previous_close"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	Description   *string   `json:"description"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Derive fills Change and ChangePercent from Price and PreviousClose.
func (s *Stock) Derive() {
	s.Change = s.Price - s.PreviousClose
	if s.PreviousClose != 0 {
		s.ChangePercent = s.Change / s.PreviousClose * 100
	} else {
		s.ChangePercent = 0
	}
}
