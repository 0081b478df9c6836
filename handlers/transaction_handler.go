package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/stocksim/backend/middleware"
	"github.com/stocksim/backend/services"
	"github.com/stocksim/backend/shared"
)

type TransactionHandler struct {
	Service *services.PortfolioService
}

func NewTransactionHandler(service *services.PortfolioService) *TransactionHandler {
	return &TransactionHandler{Service: service}
}

type buyRequest struct {
	Symbol   string `json:"symbol"`
	Quantity int64  `json:"quantity"`
}

// Buy records a simulated purchase at the live stock price.
func (h *TransactionHandler) Buy(c *fiber.Ctx) error {
	var req buyRequest
	if err := c.BodyParser(&req); err != nil {
		return shared.Validation("invalid request body")
	}

	txn, err := h.Service.Buy(c.Context(), middleware.CallerID(c), req.Symbol, req.Quantity)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    txn,
	})
}

func (h *TransactionHandler) ListTransactions(c *fiber.Ctx) error {
	txns, err := h.Service.ListTransactions(c.Context(), middleware.CallerID(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    txns,
	})
}

// PortfolioSummary returns the live valuation. Unlike GetPortfolio this
// path does not lazy-create: callers without a portfolio get a 404.
func (h *TransactionHandler) PortfolioSummary(c *fiber.Ctx) error {
	summary, err := h.Service.Summary(c.Context(), middleware.CallerID(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    summary,
	})
}
