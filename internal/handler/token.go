package handler

import (
	"errors"
	"log"
	"strconv"

	"github.com/dubbletrubble/TsukiNijiLabsA/internal/model"
	"github.com/dubbletrubble/TsukiNijiLabsA/internal/service"

	"github.com/gofiber/fiber/v2"
)

type TokenHandler struct {
	registrySvc *service.RegistryService
}

func NewTokenHandler(registrySvc *service.RegistryService) *TokenHandler {
	return &TokenHandler{registrySvc: registrySvc}
}

// GET /api/v1/tokens
func (h *TokenHandler) List(c *fiber.Ctx) error {
	tokens, err := h.registrySvc.ListTokens(c.Context())
	if err != nil {
		log.Printf("[TOKEN] list error: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to list tokens"})
	}
	return c.JSON(fiber.Map{"tokens": tokens})
}

// GET /api/v1/tokens/:id
func (h *TokenHandler) GetByID(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid token id"})
	}

	token, err := h.registrySvc.GetToken(c.Context(), id)
	if err != nil {
		if errors.Is(err, model.ErrUnknownToken) {
			return c.Status(404).JSON(fiber.Map{"error": "unknown token"})
		}
		log.Printf("[TOKEN] get error: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "internal server error"})
	}
	return c.JSON(token)
}

// GET /api/v1/tokens/:id/owner
func (h *TokenHandler) Owner(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid token id"})
	}

	ownerID, err := h.registrySvc.OwnerOf(c.Context(), id)
	if err != nil {
		if errors.Is(err, model.ErrUnknownToken) {
			return c.Status(404).JSON(fiber.Map{"error": "unknown token"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "internal server error"})
	}
	return c.JSON(fiber.Map{"token_id": id, "owner_id": ownerID})
}
