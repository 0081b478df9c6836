package models

import (
	"time"

	"github.com/google/uuid"
)

// IPOStatus is the admin-driven lifecycle of an offering. Transitions are
// monotonic: upcoming -> open -> closed -> allotted.
type IPOStatus string

const (
	IPOStatusUpcoming IPOStatus = "upcoming"
	IPOStatusOpen     IPOStatus = "open"
	IPOStatusClosed   IPOStatus = "closed"
	IPOStatusAllotted IPOStatus = "allotted"
)

// ipoStatusRank orders statuses for the monotonic transition check.
var ipoStatusRank = map[IPOStatus]int{
	IPOStatusUpcoming: 0,
	IPOStatusOpen:     1,
	IPOStatusClosed:   2,
	IPOStatusAllotted: 3,
}

// Valid reports whether the status is a known lifecycle state.
func (s IPOStatus) Valid() bool {
	_, ok := ipoStatusRank[s]
	return ok
}

// CanTransitionTo reports whether moving to next is a single forward step.
func (s IPOStatus) CanTransitionTo(next IPOStatus) bool {
	from, ok := ipoStatusRank[s]
	if !ok {
		return false
	}
	to, ok := ipoStatusRank[next]
	if !ok {
		return false
	}
	return to == from+1
}

// ApplicationStatus is the allotment outcome of one application. It starts
// pending and becomes terminal once the admin records an outcome.
type ApplicationStatus string

const (
	ApplicationStatusPending     ApplicationStatus = "pending"
	ApplicationStatusAllotted    ApplicationStatus = "allotted"
	ApplicationStatusNotAllotted ApplicationStatus = "not_allotted"
)

// Terminal reports whether the status can no longer change.
func (s ApplicationStatus) Terminal() bool {
	return s == ApplicationStatusAllotted || s == ApplicationStatusNotAllotted
}

type IPO struct {
	ID              uuid.UUID  `json:"id"`
	Symbol          string     `json:"symbol"`
	CompanyName     string     `json:"company_name"`
	TotalShares     int64      `json:"total_shares"`
	SharesAvailable int64      `json:"shares_available"`
	IssuePrice      float64    `json:"issue_price"`
	Status          IPOStatus  `json:"status"`
	OpenDate        *time.Time `json:"open_date"`
	CloseDate       *time.Time `json:"close_date"`
	AllotmentDate   *time.Time `json:"allotment_date"`
	ListingDate     *time.Time `json:"listing_date"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`

	// Applications are embedded in the IPO document projection; the rows
	// live in ipo_applications and are deleted with the IPO.
	Applications []Application `json:"applications"`
}

// Application is one user's request for shares in a specific IPO. At most
// one exists per (user, IPO) pair.
type Application struct {
	ID             uuid.UUID         `json:"id"`
	IPOID          uuid.UUID         `json:"ipo_id"`
	UserID         uuid.UUID         `json:"user_id"`
	SharesApplied  int64             `json:"shares_applied"`
	SharesAllotted int64             `json:"shares_allotted"`
	Status         ApplicationStatus `json:"status"`
	AppliedAt      time.Time         `json:"applied_at"`
}
