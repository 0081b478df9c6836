package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/stocksim/backend/middleware"
	"github.com/stocksim/backend/models"
	"github.com/stocksim/backend/services"
	"github.com/stocksim/backend/shared"
)

type IPOHandler struct {
	Service *services.IPOService
}

func NewIPOHandler(service *services.IPOService) *IPOHandler {
	return &IPOHandler{Service: service}
}

func (h *IPOHandler) ListIPOs(c *fiber.Ctx) error {
	ipos, err := h.Service.ListIPOs(c.Context(), c.Query("status", "all"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    ipos,
	})
}

func (h *IPOHandler) GetIPO(c *fiber.Ctx) error {
	ipo, err := h.Service.GetIPOBySymbol(c.Context(), c.Params("symbol"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    ipo,
	})
}

type applyRequest struct {
	SharesApplied int64 `json:"shares_applied"`
}

// Apply submits the caller's share application against an open IPO.
func (h *IPOHandler) Apply(c *fiber.Ctx) error {
	var req applyRequest
	if err := c.BodyParser(&req); err != nil {
		return shared.Validation("invalid request body")
	}

	ipo, err := h.Service.Apply(c.Context(), c.Params("symbol"), middleware.CallerID(c), req.SharesApplied)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    ipo,
	})
}

func (h *IPOHandler) CreateIPO(c *fiber.Ctx) error {
	var in services.IPOInput
	if err := c.BodyParser(&in); err != nil {
		return shared.Validation("invalid request body")
	}

	ipo, err := h.Service.CreateIPO(c.Context(), &in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    ipo,
	})
}

type statusRequest struct {
	Status models.IPOStatus `json:"status"`
}

func (h *IPOHandler) UpdateStatus(c *fiber.Ctx) error {
	var req statusRequest
	if err := c.BodyParser(&req); err != nil {
		return shared.Validation("invalid request body")
	}

	ipo, err := h.Service.UpdateStatus(c.Context(), c.Params("symbol"), req.Status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    ipo,
	})
}

func (h *IPOHandler) UpdateAllotment(c *fiber.Ctx) error {
	applicationID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return shared.Validation("invalid application id")
	}

	var in services.AllotmentInput
	if err := c.BodyParser(&in); err != nil {
		return shared.Validation("invalid request body")
	}

	app, err := h.Service.UpdateAllotment(c.Context(), c.Params("symbol"), applicationID, &in)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    app,
	})
}

func (h *IPOHandler) DeleteIPO(c *fiber.Ctx) error {
	if err := h.Service.DeleteIPO(c.Context(), c.Params("symbol")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
	})
}
