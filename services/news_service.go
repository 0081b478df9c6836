package services

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"

	"github.com/stocksim/backend/models"
	"github.com/stocksim/backend/shared"
)

// NewsService manages news articles. Reads are public, mutations admin-only.
type NewsService struct {
	DB *sql.DB
}

func NewNewsService(db *sql.DB) *NewsService {
	return &NewsService{DB: db}
}

func (s *NewsService) List(ctx context.Context) ([]models.News, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, title, body, symbol, published_at, created_by
		FROM news ORDER BY published_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []models.News{}
	for rows.Next() {
		var n models.News
		if err := rows.Scan(&n.ID, &n.Title, &n.Body, &n.Symbol, &n.PublishedAt, &n.CreatedBy); err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	return items, rows.Err()
}

func (s *NewsService) Get(ctx context.Context, id uuid.UUID) (*models.News, error) {
	var n models.News
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, title, body, symbol, published_at, created_by
		FROM news WHERE id = $1`,
		id,
	).Scan(&n.ID, &n.Title, &n.Body, &n.Symbol, &n.PublishedAt, &n.CreatedBy)
	if err == sql.ErrNoRows {
		return nil, shared.NotFound("news article not found")
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// NewsInput carries the admin create/update payload.
type NewsInput struct {
	Title  string  `json:"title"`
	Body   string  `json:"body"`
	Symbol *string `json:"symbol"`
}

func (in *NewsInput) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return shared.Validation("title is required")
	}
	if strings.TrimSpace(in.Body) == "" {
		return shared.Validation("body is required")
	}
	return nil
}

func (s *NewsService) Create(ctx context.Context, in *NewsInput, createdBy uuid.UUID) (*models.News, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var symbol *string
	if in.Symbol != nil {
		normalized := NormalizeSymbol(*in.Symbol)
		symbol = &normalized
	}

	n := models.News{
		Title:     strings.TrimSpace(in.Title),
		Body:      in.Body,
		Symbol:    symbol,
		CreatedBy: &createdBy,
	}
	err := s.DB.QueryRowContext(ctx, `
		INSERT INTO news (title, body, symbol, created_by)
		VALUES ($1, $2, $3, $4)
		RETURNING id, published_at`,
		n.Title, n.Body, n.Symbol, n.CreatedBy,
	).Scan(&n.ID, &n.PublishedAt)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *NewsService) Update(ctx context.Context, id uuid.UUID, in *NewsInput) (*models.News, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var symbol *string
	if in.Symbol != nil {
		normalized := NormalizeSymbol(*in.Symbol)
		symbol = &normalized
	}

	var n models.News
	err := s.DB.QueryRowContext(ctx, `
		UPDATE news SET title = $1, body = $2, symbol = $3
		WHERE id = $4
		RETURNING id, title, body, symbol, published_at, created_by`,
		strings.TrimSpace(in.Title), in.Body, symbol, id,
	).Scan(&n.ID, &n.Title, &n.Body, &n.Symbol, &n.PublishedAt, &n.CreatedBy)
	if err == sql.ErrNoRows {
		return nil, shared.NotFound("news article not found")
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *NewsService) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := s.DB.ExecContext(ctx, `DELETE FROM news WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return shared.NotFound("news article not found")
	}
	return nil
}
