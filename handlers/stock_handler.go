package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/stocksim/backend/services"
	"github.com/stocksim/backend/shared"
)

type StockHandler struct {
	Service *services.StockService
}

func NewStockHandler(service *services.StockService) *StockHandler {
	return &StockHandler{Service: service}
}

func (h *StockHandler) ListStocks(c *fiber.Ctx) error {
	stocks, err := h.Service.ListStocks(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    stocks,
	})
}

func (h *StockHandler) GetStock(c *fiber.Ctx) error {
	stock, err := h.Service.GetStock(c.Context(), c.Params("symbol"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    stock,
	})
}

func (h *StockHandler) CreateStock(c *fiber.Ctx) error {
	var in services.StockInput
	if err := c.BodyParser(&in); err != nil {
		return shared.Validation("invalid request body")
	}

	stock, err := h.Service.CreateStock(c.Context(), &in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    stock,
	})
}

func (h *StockHandler) UpdateStock(c *fiber.Ctx) error {
	var in services.StockInput
	if err := c.BodyParser(&in); err != nil {
		return shared.Validation("invalid request body")
	}

	rollClose := c.QueryBool("roll_close", false)
	stock, err := h.Service.UpdateStock(c.Context(), c.Params("symbol"), &in, rollClose)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    stock,
	})
}

func (h *StockHandler) DeleteStock(c *fiber.Ctx) error {
	if err := h.Service.DeleteStock(c.Context(), c.Params("symbol")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
	})
}
