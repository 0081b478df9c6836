package services

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/stocksim/backend/models"
	"github.com/stocksim/backend/shared"
)

// WatchlistService manages the per-user list of monitored symbols.
type WatchlistService struct {
	DB *sql.DB
}

func NewWatchlistService(db *sql.DB) *WatchlistService {
	return &WatchlistService{DB: db}
}

func (s *WatchlistService) List(ctx context.Context, userID uuid.UUID) ([]models.WatchlistItem, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, user_id, symbol, created_at
		FROM watchlist_items WHERE user_id = $1 ORDER BY created_at`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []models.WatchlistItem{}
	for rows.Next() {
		var item models.WatchlistItem
		if err := rows.Scan(&item.ID, &item.UserID, &item.Symbol, &item.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Add puts a symbol on the caller's watchlist. The symbol is not required
// to reference an existing stock; dangling entries are tolerated.
func (s *WatchlistService) Add(ctx context.Context, userID uuid.UUID, symbol string) (*models.WatchlistItem, error) {
	symbol = NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, shared.Validation("symbol is required")
	}

	item := models.WatchlistItem{UserID: userID, Symbol: symbol}
	err := s.DB.QueryRowContext(ctx, `
		INSERT INTO watchlist_items (user_id, symbol) VALUES ($1, $2)
		RETURNING id, created_at`,
		userID, symbol,
	).Scan(&item.ID, &item.CreatedAt)
	if err != nil {
		if classified := shared.Classify(err); classified.Code == shared.CodeDuplicate {
			return nil, shared.Duplicate("symbol already on watchlist")
		}
		return nil, err
	}
	return &item, nil
}

func (s *WatchlistService) Remove(ctx context.Context, userID uuid.UUID, symbol string) error {
	result, err := s.DB.ExecContext(ctx, `
		DELETE FROM watchlist_items WHERE user_id = $1 AND symbol = $2`,
		userID, NormalizeSymbol(symbol))
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return shared.NotFound("symbol not on watchlist")
	}
	return nil
}
