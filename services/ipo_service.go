package services

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/stocksim/backend/models"
	"github.com/stocksim/backend/shared"
)

// IPOService manages the IPO lifecycle: creation, status transitions,
// user applications, and admin allotment updates.
type IPOService struct {
	DB *sql.DB
}

func NewIPOService(db *sql.DB) *IPOService {
	return &IPOService{DB: db}
}

const ipoColumns = `id, symbol, company_name, total_shares, shares_available,
	issue_price, status, open_date, close_date, allotment_date, listing_date,
	created_at, updated_at`

func scanIPO(row interface{ Scan(...interface{}) error }, ipo *models.IPO) error {
	return row.Scan(&ipo.ID, &ipo.Symbol, &ipo.CompanyName, &ipo.TotalShares,
		&ipo.SharesAvailable, &ipo.IssuePrice, &ipo.Status, &ipo.OpenDate,
		&ipo.CloseDate, &ipo.AllotmentDate, &ipo.ListingDate,
		&ipo.CreatedAt, &ipo.UpdatedAt)
}

// ListIPOs returns all IPOs, optionally filtered by status. Applications
// are not embedded on the list path.
func (s *IPOService) ListIPOs(ctx context.Context, status string) ([]models.IPO, error) {
	query := `SELECT ` + ipoColumns + ` FROM ipos`
	args := []interface{}{}
	if status != "" && status != "all" {
		if !models.IPOStatus(status).Valid() {
			return nil, shared.Validation("unknown IPO status filter")
		}
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ipos := []models.IPO{}
	for rows.Next() {
		var ipo models.IPO
		if err := scanIPO(rows, &ipo); err != nil {
			return nil, err
		}
		ipo.Applications = []models.Application{}
		ipos = append(ipos, ipo)
	}
	return ipos, rows.Err()
}

// GetIPOBySymbol loads one IPO document with its embedded applications.
func (s *IPOService) GetIPOBySymbol(ctx context.Context, symbol string) (*models.IPO, error) {
	return s.getIPO(ctx, s.DB, symbol, false)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func (s *IPOService) getIPO(ctx context.Context, q queryer, symbol string, forUpdate bool) (*models.IPO, error) {
	query := `SELECT ` + ipoColumns + ` FROM ipos WHERE symbol = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var ipo models.IPO
	err := scanIPO(q.QueryRowContext(ctx, query, NormalizeSymbol(symbol)), &ipo)
	if err == sql.ErrNoRows {
		return nil, shared.NotFound("IPO not found")
	}
	if err != nil {
		return nil, err
	}

	apps, err := s.loadApplications(ctx, q, ipo.ID)
	if err != nil {
		return nil, err
	}
	ipo.Applications = apps
	return &ipo, nil
}

func (s *IPOService) loadApplications(ctx context.Context, q queryer, ipoID uuid.UUID) ([]models.Application, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, ipo_id, user_id, shares_applied, shares_allotted, status, applied_at
		FROM ipo_applications WHERE ipo_id = $1 ORDER BY applied_at`,
		ipoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	apps := []models.Application{}
	for rows.Next() {
		var app models.Application
		if err := rows.Scan(&app.ID, &app.IPOID, &app.UserID, &app.SharesApplied,
			&app.SharesAllotted, &app.Status, &app.AppliedAt); err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

// IPOInput carries the admin create payload.
type IPOInput struct {
	Symbol          string     `json:"symbol"`
	CompanyName     string     `json:"company_name"`
	TotalShares     int64      `json:"total_shares"`
	SharesAvailable *int64     `json:"shares_available"`
	IssuePrice      float64    `json:"issue_price"`
	OpenDate        *time.Time `json:"open_date"`
	CloseDate       *time.Time `json:"close_date"`
	AllotmentDate   *time.Time `json:"allotment_date"`
	ListingDate     *time.Time `json:"listing_date"`
}

// CreateIPO registers a new offering in the upcoming state. Available
// shares default to the total offered.
func (s *IPOService) CreateIPO(ctx context.Context, in *IPOInput) (*models.IPO, error) {
	symbol := NormalizeSymbol(in.Symbol)
	if symbol == "" {
		return nil, shared.Validation("symbol is required")
	}
	if strings.TrimSpace(in.CompanyName) == "" {
		return nil, shared.Validation("company name is required")
	}
	if in.TotalShares <= 0 {
		return nil, shared.Validation("total shares must be a positive number")
	}
	if in.IssuePrice < 0 {
		return nil, shared.Validation("issue price cannot be negative")
	}

	available := in.TotalShares
	if in.SharesAvailable != nil {
		if *in.SharesAvailable < 0 || *in.SharesAvailable > in.TotalShares {
			return nil, shared.Validation("shares available must be between 0 and total shares")
		}
		available = *in.SharesAvailable
	}

	ipo := models.IPO{
		Symbol:          symbol,
		CompanyName:     strings.TrimSpace(in.CompanyName),
		TotalShares:     in.TotalShares,
		SharesAvailable: available,
		IssuePrice:      in.IssuePrice,
		Status:          models.IPOStatusUpcoming,
		OpenDate:        in.OpenDate,
		CloseDate:       in.CloseDate,
		AllotmentDate:   in.AllotmentDate,
		ListingDate:     in.ListingDate,
		Applications:    []models.Application{},
	}

	err := s.DB.QueryRowContext(ctx, `
		INSERT INTO ipos (symbol, company_name, total_shares, shares_available,
			issue_price, status, open_date, close_date, allotment_date, listing_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`,
		ipo.Symbol, ipo.CompanyName, ipo.TotalShares, ipo.SharesAvailable,
		ipo.IssuePrice, ipo.Status, ipo.OpenDate, ipo.CloseDate,
		ipo.AllotmentDate, ipo.ListingDate,
	).Scan(&ipo.ID, &ipo.CreatedAt, &ipo.UpdatedAt)
	if err != nil {
		if classified := shared.Classify(err); classified.Code == shared.CodeDuplicate {
			return nil, shared.Duplicate("IPO already exists for this symbol")
		}
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"symbol":       ipo.Symbol,
		"total_shares": ipo.TotalShares,
	}).Info("IPO created")

	return &ipo, nil
}

// UpdateStatus advances the IPO lifecycle. Only single forward steps are
// accepted; the lifecycle is monotonic.
func (s *IPOService) UpdateStatus(ctx context.Context, symbol string, next models.IPOStatus) (*models.IPO, error) {
	if !next.Valid() {
		return nil, shared.Validation("unknown IPO status")
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	ipo, err := s.getIPO(ctx, tx, symbol, true)
	if err != nil {
		return nil, err
	}

	if !ipo.Status.CanTransitionTo(next) {
		return nil, shared.InvalidState("cannot transition IPO from " + string(ipo.Status) + " to " + string(next))
	}

	err = tx.QueryRowContext(ctx, `
		UPDATE ipos SET status = $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2 RETURNING updated_at`,
		next, ipo.ID,
	).Scan(&ipo.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	ipo.Status = next
	logrus.WithFields(logrus.Fields{
		"symbol": ipo.Symbol,
		"status": next,
	}).Info("IPO status updated")

	return ipo, nil
}

// Apply submits a share application against an open IPO on behalf of the
// caller. The application insert, the shares_available decrement, and the
// portfolio mirror entry are committed as one transaction: either all
// writes land or none do.
func (s *IPOService) Apply(ctx context.Context, symbol string, userID uuid.UUID, sharesApplied int64) (*models.IPO, error) {
	if sharesApplied <= 0 {
		return nil, shared.Validation("shares applied must be a positive number")
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	ipo, err := s.getIPO(ctx, tx, symbol, true)
	if err != nil {
		return nil, err
	}

	if ipo.Status != models.IPOStatusOpen {
		return nil, shared.InvalidState("IPO is not open for applications")
	}

	var exists bool
	err = tx.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM ipo_applications WHERE ipo_id = $1 AND user_id = $2)`,
		ipo.ID, userID,
	).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, shared.Duplicate("already applied to this IPO")
	}

	var app models.Application
	err = tx.QueryRowContext(ctx, `
		INSERT INTO ipo_applications (ipo_id, user_id, shares_applied)
		VALUES ($1, $2, $3)
		RETURNING id, ipo_id, user_id, shares_applied, shares_allotted, status, applied_at`,
		ipo.ID, userID, sharesApplied,
	).Scan(&app.ID, &app.IPOID, &app.UserID, &app.SharesApplied,
		&app.SharesAllotted, &app.Status, &app.AppliedAt)
	if err != nil {
		return nil, err
	}

	// Oversubscription is allowed; the available count clamps at zero
	// instead of rejecting or going negative.
	err = tx.QueryRowContext(ctx, `
		UPDATE ipos
		SET shares_available = GREATEST(shares_available - $1, 0),
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $2
		RETURNING shares_available, updated_at`,
		sharesApplied, ipo.ID,
	).Scan(&ipo.SharesAvailable, &ipo.UpdatedAt)
	if err != nil {
		return nil, err
	}

	portfolioID, err := ensurePortfolio(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO portfolio_ipo_entries (portfolio_id, ipo_id, symbol, category, shares_applied)
		VALUES ($1, $2, $3, $4, $5)`,
		portfolioID, ipo.ID, ipo.Symbol, models.IPOEntryApplied, sharesApplied)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	ipo.Applications = append(ipo.Applications, app)

	logrus.WithFields(logrus.Fields{
		"symbol":           ipo.Symbol,
		"user_id":          userID,
		"shares_applied":   sharesApplied,
		"shares_available": ipo.SharesAvailable,
	}).Info("IPO application accepted")

	return ipo, nil
}

// AllotmentInput carries the admin allotment decision for one application.
type AllotmentInput struct {
	Status         models.ApplicationStatus `json:"status"`
	SharesAllotted int64                    `json:"shares_allotted"`
}

// UpdateAllotment records the outcome of one application. Outcomes can only
// be set once: pending is the sole state that accepts an update. The
// applicant's portfolio projection lists are not touched here.
func (s *IPOService) UpdateAllotment(ctx context.Context, symbol string, applicationID uuid.UUID, in *AllotmentInput) (*models.Application, error) {
	if !in.Status.Terminal() {
		return nil, shared.Validation("allotment status must be allotted or not_allotted")
	}
	if in.SharesAllotted < 0 {
		return nil, shared.Validation("shares allotted cannot be negative")
	}
	if in.Status == models.ApplicationStatusNotAllotted && in.SharesAllotted != 0 {
		return nil, shared.Validation("shares allotted must be 0 when not allotted")
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	ipo, err := s.getIPO(ctx, tx, symbol, true)
	if err != nil {
		return nil, err
	}

	var app models.Application
	err = tx.QueryRowContext(ctx, `
		SELECT id, ipo_id, user_id, shares_applied, shares_allotted, status, applied_at
		FROM ipo_applications WHERE id = $1 AND ipo_id = $2 FOR UPDATE`,
		applicationID, ipo.ID,
	).Scan(&app.ID, &app.IPOID, &app.UserID, &app.SharesApplied,
		&app.SharesAllotted, &app.Status, &app.AppliedAt)
	if err == sql.ErrNoRows {
		return nil, shared.NotFound("application not found")
	}
	if err != nil {
		return nil, err
	}

	if app.Status.Terminal() {
		return nil, shared.InvalidState("allotment outcome is already set")
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE ipo_applications SET status = $1, shares_allotted = $2 WHERE id = $3`,
		in.Status, in.SharesAllotted, app.ID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	app.Status = in.Status
	app.SharesAllotted = in.SharesAllotted

	logrus.WithFields(logrus.Fields{
		"symbol":          ipo.Symbol,
		"application_id":  app.ID,
		"status":          app.Status,
		"shares_allotted": app.SharesAllotted,
	}).Info("Allotment outcome recorded")

	return &app, nil
}

// DeleteIPO removes the IPO and, through the cascade, its applications.
// Portfolio entries referencing it are left dangling.
func (s *IPOService) DeleteIPO(ctx context.Context, symbol string) error {
	result, err := s.DB.ExecContext(ctx, `DELETE FROM ipos WHERE symbol = $1`, NormalizeSymbol(symbol))
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return shared.NotFound("IPO not found")
	}

	logrus.WithField("symbol", NormalizeSymbol(symbol)).Info("IPO deleted")
	return nil
}
