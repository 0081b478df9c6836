package services

import (
	"context"
	"database/sql"
	"math"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/stocksim/backend/models"
	"github.com/stocksim/backend/shared"
)

// PortfolioService manages per-user portfolios: lazy creation, document
// assembly, valuation, and simulated buys.
type PortfolioService struct {
	DB *sql.DB
}

func NewPortfolioService(db *sql.DB) *PortfolioService {
	return &PortfolioService{DB: db}
}

// ensurePortfolio returns the portfolio id for a user, creating the row if
// none exists. Works inside or outside a transaction.
func ensurePortfolio(ctx context.Context, q queryer, userID uuid.UUID) (uuid.UUID, error) {
	var id uuid.UUID
	err := q.QueryRowContext(ctx, `
		INSERT INTO portfolios (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING id`,
		userID,
	).Scan(&id)
	return id, err
}

// GetOrCreate loads the caller's portfolio document, creating an empty one
// on first access. This is the lazy-create read path; the summary path
// does not create (see Summary).
func (s *PortfolioService) GetOrCreate(ctx context.Context, userID uuid.UUID) (*models.Portfolio, error) {
	if _, err := ensurePortfolio(ctx, s.DB, userID); err != nil {
		return nil, err
	}
	return s.load(ctx, userID)
}

// Get loads the caller's portfolio without creating it.
func (s *PortfolioService) Get(ctx context.Context, userID uuid.UUID) (*models.Portfolio, error) {
	return s.load(ctx, userID)
}

func (s *PortfolioService) load(ctx context.Context, userID uuid.UUID) (*models.Portfolio, error) {
	var p models.Portfolio
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, user_id, total_investment, current_value, created_at, updated_at
		FROM portfolios WHERE user_id = $1`,
		userID,
	).Scan(&p.ID, &p.UserID, &p.TotalInvestment, &p.CurrentValue, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, shared.NotFound("portfolio not found")
	}
	if err != nil {
		return nil, err
	}

	if err := s.loadIPOEntries(ctx, &p); err != nil {
		return nil, err
	}
	if err := s.loadHoldings(ctx, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PortfolioService) loadIPOEntries(ctx context.Context, p *models.Portfolio) error {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, ipo_id, symbol, category, shares_applied, shares_allotted, created_at
		FROM portfolio_ipo_entries WHERE portfolio_id = $1 ORDER BY created_at`,
		p.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	p.AppliedIPOs = []models.PortfolioIPOEntry{}
	p.AllottedIPOs = []models.PortfolioIPOEntry{}
	p.NotAllottedIPOs = []models.PortfolioIPOEntry{}

	for rows.Next() {
		var e models.PortfolioIPOEntry
		if err := rows.Scan(&e.ID, &e.IPOID, &e.Symbol, &e.Category,
			&e.SharesApplied, &e.SharesAllotted, &e.CreatedAt); err != nil {
			return err
		}
		switch e.Category {
		case models.IPOEntryApplied:
			p.AppliedIPOs = append(p.AppliedIPOs, e)
		case models.IPOEntryAllotted:
			p.AllottedIPOs = append(p.AllottedIPOs, e)
		case models.IPOEntryNotAllotted:
			p.NotAllottedIPOs = append(p.NotAllottedIPOs, e)
		}
	}
	return rows.Err()
}

func (s *PortfolioService) loadHoldings(ctx context.Context, p *models.Portfolio) error {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, symbol, quantity, average_price
		FROM portfolio_holdings WHERE portfolio_id = $1 ORDER BY symbol`,
		p.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	p.OwnedStocks = []models.Holding{}
	for rows.Next() {
		var h models.Holding
		if err := rows.Scan(&h.ID, &h.Symbol, &h.Quantity, &h.AveragePrice); err != nil {
			return err
		}
		p.OwnedStocks = append(p.OwnedStocks, h)
	}
	return rows.Err()
}

// pricedPosition pairs a holding with the live stock price, when the stock
// still exists.
type pricedPosition struct {
	quantity     int64
	averagePrice float64
	currentPrice sql.NullFloat64
}

// computeSummary derives the valuation from the stored total investment and
// the per-holding deltas against live prices. A dangling holding (stock
// deleted) contributes no gain or loss. The percentage is rounded to two
// decimals; a zero investment yields zero percent.
func computeSummary(totalInvestment float64, positions []pricedPosition) (currentValue, profitLoss, profitLossPercent float64) {
	currentValue = totalInvestment
	for _, pos := range positions {
		if !pos.currentPrice.Valid {
			continue
		}
		currentValue += (pos.currentPrice.Float64 - pos.averagePrice) * float64(pos.quantity)
	}

	profitLoss = currentValue - totalInvestment
	if totalInvestment > 0 {
		profitLossPercent = roundTo2(profitLoss / totalInvestment * 100)
	}
	return roundTo2(currentValue), roundTo2(profitLoss), profitLossPercent
}

// Summary computes the valuation projection from live stock prices. The
// portfolio must already exist: this path returns NOT_FOUND instead of
// lazy-creating, unlike GetOrCreate. The computation is read-only and the
// stored current_value column is never updated by it.
func (s *PortfolioService) Summary(ctx context.Context, userID uuid.UUID) (*models.PortfolioSummary, error) {
	p, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT h.quantity, h.average_price, st.price
		FROM portfolio_holdings h
		LEFT JOIN stocks st ON st.symbol = h.symbol
		WHERE h.portfolio_id = $1`,
		p.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []pricedPosition
	for rows.Next() {
		var pos pricedPosition
		if err := rows.Scan(&pos.quantity, &pos.averagePrice, &pos.currentPrice); err != nil {
			return nil, err
		}
		positions = append(positions, pos)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	currentValue, profitLoss, profitLossPercent := computeSummary(p.TotalInvestment, positions)

	return &models.PortfolioSummary{
		Portfolio:         p,
		CurrentValue:      currentValue,
		ProfitLoss:        profitLoss,
		ProfitLossPercent: profitLossPercent,
	}, nil
}

func roundTo2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Buy executes a simulated purchase at the stock's live price: the holding
// is upserted with a weighted average cost, total_investment grows by the
// trade value, and a transaction row is recorded, all in one transaction.
func (s *PortfolioService) Buy(ctx context.Context, userID uuid.UUID, symbol string, quantity int64) (*models.Transaction, error) {
	if quantity <= 0 {
		return nil, shared.Validation("quantity must be a positive number")
	}
	symbol = NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, shared.Validation("symbol is required")
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var price float64
	err = tx.QueryRowContext(ctx, `SELECT price FROM stocks WHERE symbol = $1`, symbol).Scan(&price)
	if err == sql.ErrNoRows {
		return nil, shared.NotFound("stock not found")
	}
	if err != nil {
		return nil, err
	}

	portfolioID, err := ensurePortfolio(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	total := price * float64(quantity)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO portfolio_holdings (portfolio_id, symbol, quantity, average_price)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (portfolio_id, symbol) DO UPDATE SET
			average_price = (portfolio_holdings.average_price * portfolio_holdings.quantity + $4 * $3)
				/ (portfolio_holdings.quantity + $3),
			quantity = portfolio_holdings.quantity + $3`,
		portfolioID, symbol, quantity, price)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE portfolios
		SET total_investment = total_investment + $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2`,
		total, portfolioID)
	if err != nil {
		return nil, err
	}

	txn := models.Transaction{
		UserID:   userID,
		Symbol:   symbol,
		Side:     models.TransactionBuy,
		Quantity: quantity,
		Price:    price,
		Total:    total,
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO transactions (user_id, symbol, side, quantity, price, total)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		txn.UserID, txn.Symbol, txn.Side, txn.Quantity, txn.Price, txn.Total,
	).Scan(&txn.ID, &txn.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"user_id":  userID,
		"symbol":   symbol,
		"quantity": quantity,
		"total":    total,
	}).Info("Simulated buy recorded")

	return &txn, nil
}

// ListTransactions returns the caller's trade history, newest first.
func (s *PortfolioService) ListTransactions(ctx context.Context, userID uuid.UUID) ([]models.Transaction, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, user_id, symbol, side, quantity, price, total, created_at
		FROM transactions WHERE user_id = $1 ORDER BY created_at DESC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	txns := []models.Transaction{}
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Symbol, &t.Side,
			&t.Quantity, &t.Price, &t.Total, &t.CreatedAt); err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}
