package handler

import (
	"errors"
	"log"

	"github.com/dubbletrubble/TsukiNijiLabsA/internal/model"
	"github.com/dubbletrubble/TsukiNijiLabsA/internal/service"

	"github.com/gofiber/fiber/v2"
)

type AccountHandler struct {
	registrySvc *service.RegistryService
}

func NewAccountHandler(registrySvc *service.RegistryService) *AccountHandler {
	return &AccountHandler{registrySvc: registrySvc}
}

// GET /api/v1/account/me
func (h *AccountHandler) Me(c *fiber.Ctx) error {
	accountID := c.Locals("account_id").(string)

	profile, err := h.registrySvc.Profile(c.Context(), accountID)
	if err != nil {
		if errors.Is(err, model.ErrAccountNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "account not found"})
		}
		log.Printf("[ACCOUNT] profile error: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "internal server error"})
	}
	return c.JSON(profile)
}

// GET /api/v1/account/balance
func (h *AccountHandler) Balance(c *fiber.Ctx) error {
	accountID := c.Locals("account_id").(string)

	balance, err := h.registrySvc.BalanceOf(c.Context(), accountID)
	if err != nil {
		if errors.Is(err, model.ErrAccountNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "account not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "internal server error"})
	}
	return c.JSON(fiber.Map{"balance": balance})
}
