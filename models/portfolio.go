package models

import (
	"time"

	"github.com/google/uuid"
)

// IPOEntryCategory tags a portfolio projection entry by application outcome.
type IPOEntryCategory string

const (
	IPOEntryApplied     IPOEntryCategory = "applied"
	IPOEntryAllotted    IPOEntryCategory = "allotted"
	IPOEntryNotAllotted IPOEntryCategory = "not_allotted"
)

// Portfolio is the per-user aggregate of owned stocks and IPO history.
// Exactly zero or one exists per user; it is created lazily on first read.
// TotalInvestment and CurrentValue are stored advisory fields; the summary
// endpoint recomputes value from live prices and does not write it back.
type Portfolio struct {
	ID              uuid.UUID `json:"id"`
	UserID          uuid.UUID `json:"user_id"`
	TotalInvestment float64   `json:"total_investment"`
	CurrentValue    float64   `json:"current_value"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`

	AppliedIPOs     []PortfolioIPOEntry `json:"applied_ipos"`
	AllottedIPOs    []PortfolioIPOEntry `json:"allotted_ipos"`
	NotAllottedIPOs []PortfolioIPOEntry `json:"not_allotted_ipos"`
	OwnedStocks     []Holding           `json:"owned_stocks"`
}

// PortfolioIPOEntry mirrors one IPO application into the owner's portfolio.
type PortfolioIPOEntry struct {
	ID             uuid.UUID        `json:"id"`
	IPOID          uuid.UUID        `json:"ipo_id"`
	Symbol         string           `json:"symbol"`
	Category       IPOEntryCategory `json:"category"`
	SharesApplied  int64            `json:"shares_applied"`
	SharesAllotted int64            `json:"shares_allotted"`
	CreatedAt      time.Time        `json:"created_at"`
}

// Holding is an owned-stock position built up by simulated buys.
type Holding struct {
	ID           uuid.UUID `json:"id"`
	Symbol       string    `json:"symbol"`
	Quantity     int64     `json:"quantity"`
	AveragePrice float64   `json:"average_price"`
}

// PortfolioSummary is the valuation projection returned by the summary
// endpoint. ProfitLossPercent is rounded to two decimals.
type PortfolioSummary struct {
	Portfolio         *Portfolio `json:"portfolio"`
	CurrentValue      float64    `json:"current_value"`
	ProfitLoss        float64    `json:"profit_loss"`
	ProfitLossPercent float64    `json:"profit_loss_percent"`
}
