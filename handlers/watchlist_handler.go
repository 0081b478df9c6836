package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/stocksim/backend/middleware"
	"github.com/stocksim/backend/services"
	"github.com/stocksim/backend/shared"
)

type WatchlistHandler struct {
	Service *services.WatchlistService
}

func NewWatchlistHandler(service *services.WatchlistService) *WatchlistHandler {
	return &WatchlistHandler{Service: service}
}

func (h *WatchlistHandler) List(c *fiber.Ctx) error {
	items, err := h.Service.List(c.Context(), middleware.CallerID(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    items,
	})
}

type watchRequest struct {
	Symbol string `json:"symbol"`
}

func (h *WatchlistHandler) Add(c *fiber.Ctx) error {
	var req watchRequest
	if err := c.BodyParser(&req); err != nil {
		return shared.Validation("invalid request body")
	}

	item, err := h.Service.Add(c.Context(), middleware.CallerID(c), req.Symbol)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    item,
	})
}

func (h *WatchlistHandler) Remove(c *fiber.Ctx) error {
	if err := h.Service.Remove(c.Context(), middleware.CallerID(c), c.Params("symbol")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
	})
}
