package services

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stocksim/backend/models"
	"github.com/stocksim/backend/shared"
)

const (
	stocksListCacheKey  = "stocks:all"
	stockCacheKeyPrefix = "stock:"
)

// StockService manages quote records. Reads go through the quote cache;
// mutations invalidate it.
type StockService struct {
	DB    *sql.DB
	cache *QuoteCache
}

func NewStockService(db *sql.DB) *StockService {
	return &StockService{
		DB:    db,
		cache: NewQuoteCache(30*time.Second, 1000),
	}
}

// NormalizeSymbol uppercases and trims a stock symbol.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func (s *StockService) ListStocks(ctx context.Context) ([]models.Stock, error) {
	if cached, ok := s.cache.Get(stocksListCacheKey); ok {
		return cached.([]models.Stock), nil
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT symbol, name, sector, price, previous_close, description, created_at, updated_at
		FROM stocks ORDER BY symbol`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stocks := []models.Stock{}
	for rows.Next() {
		var st models.Stock
		if err := rows.Scan(&st.Symbol, &st.Name, &st.Sector, &st.Price,
			&st.PreviousClose, &st.Description, &st.CreatedAt, &st.UpdatedAt); err != nil {
			return nil, err
		}
		st.Derive()
		stocks = append(stocks, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	s.cache.Set(stocksListCacheKey, stocks)
	return stocks, nil
}

func (s *StockService) GetStock(ctx context.Context, symbol string) (*models.Stock, error) {
	symbol = NormalizeSymbol(symbol)
	if cached, ok := s.cache.Get(stockCacheKeyPrefix + symbol); ok {
		stock := cached.(models.Stock)
		return &stock, nil
	}

	var st models.Stock
	err := s.DB.QueryRowContext(ctx, `
		SELECT symbol, name, sector, price, previous_close, description, created_at, updated_at
		FROM stocks WHERE symbol = $1`,
		symbol,
	).Scan(&st.Symbol, &st.Name, &st.Sector, &st.Price,
		&st.PreviousClose, &st.Description, &st.CreatedAt, &st.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, shared.NotFound("stock not found")
	}
	if err != nil {
		return nil, err
	}

	st.Derive()
	s.cache.Set(stockCacheKeyPrefix+symbol, st)
	return &st, nil
}

// StockInput carries the admin create/update payload.
type StockInput struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Sector        *string `json:"sector"`
	Price         float64 `json:"price"`
	PreviousClose float64 `json:"previous_close"`
	Description   *string `json:"description"`
}

func (in *StockInput) validate() error {
	if NormalizeSymbol(in.Symbol) == "" {
		return shared.Validation("symbol is required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return shared.Validation("name is required")
	}
	if in.Price < 0 || in.PreviousClose < 0 {
		return shared.Validation("prices cannot be negative")
	}
	return nil
}

func (s *StockService) CreateStock(ctx context.Context, in *StockInput) (*models.Stock, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	st := models.Stock{
		Symbol:        NormalizeSymbol(in.Symbol),
		Name:          strings.TrimSpace(in.Name),
		Sector:        in.Sector,
		Price:         in.Price,
		PreviousClose: in.PreviousClose,
		Description:   in.Description,
	}

	err := s.DB.QueryRowContext(ctx, `
		INSERT INTO stocks (symbol, name, sector, price, previous_close, description)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		st.Symbol, st.Name, st.Sector, st.Price, st.PreviousClose, st.Description,
	).Scan(&st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		if classified := shared.Classify(err); classified.Code == shared.CodeDuplicate {
			return nil, shared.Duplicate("stock already exists")
		}
		return nil, err
	}

	st.Derive()
	s.invalidate(st.Symbol)

	logrus.WithField("symbol", st.Symbol).Info("Stock created")
	return &st, nil
}

// UpdateStock updates a quote record. When rollClose is set the current
// price becomes the new previous_close before the new price is applied.
func (s *StockService) UpdateStock(ctx context.Context, symbol string, in *StockInput, rollClose bool) (*models.Stock, error) {
	symbol = NormalizeSymbol(symbol)
	in.Symbol = symbol
	if err := in.validate(); err != nil {
		return nil, err
	}

	var st models.Stock
	var err error
	if rollClose {
		err = s.DB.QueryRowContext(ctx, `
			UPDATE stocks
			SET name = $1, sector = $2, previous_close = price, price = $3,
			    description = $4, updated_at = CURRENT_TIMESTAMP
			WHERE symbol = $5
			RETURNING symbol, name, sector, price, previous_close, description, created_at, updated_at`,
			strings.TrimSpace(in.Name), in.Sector, in.Price, in.Description, symbol,
		).Scan(&st.Symbol, &st.Name, &st.Sector, &st.Price,
			&st.PreviousClose, &st.Description, &st.CreatedAt, &st.UpdatedAt)
	} else {
		err = s.DB.QueryRowContext(ctx, `
			UPDATE stocks
			SET name = $1, sector = $2, price = $3, previous_close = $4,
			    description = $5, updated_at = CURRENT_TIMESTAMP
			WHERE symbol = $6
			RETURNING symbol, name, sector, price, previous_close, description, created_at, updated_at`,
			strings.TrimSpace(in.Name), in.Sector, in.Price, in.PreviousClose, in.Description, symbol,
		).Scan(&st.Symbol, &st.Name, &st.Sector, &st.Price,
			&st.PreviousClose, &st.Description, &st.CreatedAt, &st.UpdatedAt)
	}
	if err == sql.ErrNoRows {
		return nil, shared.NotFound("stock not found")
	}
	if err != nil {
		return nil, err
	}

	st.Derive()
	s.invalidate(symbol)
	return &st, nil
}

func (s *StockService) DeleteStock(ctx context.Context, symbol string) error {
	symbol = NormalizeSymbol(symbol)
	result, err := s.DB.ExecContext(ctx, `DELETE FROM stocks WHERE symbol = $1`, symbol)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return shared.NotFound("stock not found")
	}

	s.invalidate(symbol)
	logrus.WithField("symbol", symbol).Info("Stock deleted")
	return nil
}

func (s *StockService) invalidate(symbol string) {
	s.cache.Invalidate(stocksListCacheKey)
	s.cache.Invalidate(stockCacheKeyPrefix + symbol)
}
