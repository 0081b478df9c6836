package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/stocksim/backend/middleware"
	"github.com/stocksim/backend/services"
)

type PortfolioHandler struct {
	Service *services.PortfolioService
}

func NewPortfolioHandler(service *services.PortfolioService) *PortfolioHandler {
	return &PortfolioHandler{Service: service}
}

// GetPortfolio returns the caller's portfolio, creating an empty one on
// first access.
func (h *PortfolioHandler) GetPortfolio(c *fiber.Ctx) error {
	portfolio, err := h.Service.GetOrCreate(c.Context(), middleware.CallerID(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    portfolio,
	})
}
