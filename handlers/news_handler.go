package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/stocksim/backend/middleware"
	"github.com/stocksim/backend/services"
	"github.com/stocksim/backend/shared"
)

type NewsHandler struct {
	Service *services.NewsService
}

func NewNewsHandler(service *services.NewsService) *NewsHandler {
	return &NewsHandler{Service: service}
}

func (h *NewsHandler) List(c *fiber.Ctx) error {
	items, err := h.Service.List(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    items,
	})
}

func (h *NewsHandler) Get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return shared.Validation("invalid news id")
	}

	article, err := h.Service.Get(c.Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    article,
	})
}

func (h *NewsHandler) Create(c *fiber.Ctx) error {
	var in services.NewsInput
	if err := c.BodyParser(&in); err != nil {
		return shared.Validation("invalid request body")
	}

	article, err := h.Service.Create(c.Context(), &in, middleware.CallerID(c))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    article,
	})
}

func (h *NewsHandler) Update(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return shared.Validation("invalid news id")
	}

	var in services.NewsInput
	if err := c.BodyParser(&in); err != nil {
		return shared.Validation("invalid request body")
	}

	article, err := h.Service.Update(c.Context(), id, &in)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    article,
	})
}

func (h *NewsHandler) Delete(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return shared.Validation("invalid news id")
	}

	if err := h.Service.Delete(c.Context(), id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
	})
}
