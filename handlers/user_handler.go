package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/stocksim/backend/models"
	"github.com/stocksim/backend/services"
	"github.com/stocksim/backend/shared"
)

type UserHandler struct {
	Service *services.UserService
}

func NewUserHandler(service *services.UserService) *UserHandler {
	return &UserHandler{Service: service}
}

func (h *UserHandler) ListUsers(c *fiber.Ctx) error {
	users, err := h.Service.ListUsers(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    users,
	})
}

type roleRequest struct {
	Role models.Role `json:"role"`
}

func (h *UserHandler) UpdateRole(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return shared.Validation("invalid user id")
	}

	var req roleRequest
	if err := c.BodyParser(&req); err != nil {
		return shared.Validation("invalid request body")
	}

	user, err := h.Service.UpdateRole(c.Context(), id, req.Role)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    user,
	})
}

func (h *UserHandler) DeleteUser(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return shared.Validation("invalid user id")
	}

	if err := h.Service.DeleteUser(c.Context(), id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
	})
}
