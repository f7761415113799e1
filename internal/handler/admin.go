package handler

import (
	"errors"
	"log"
	"strconv"

	"github.com/dubbletrubble/TsukiNijiLabsA/internal/model"
	"github.com/dubbletrubble/TsukiNijiLabsA/internal/service"

	"github.com/gofiber/fiber/v2"
)

type AdminHandler struct {
	governorSvc *service.GovernorService
	eventSvc    *service.EventService
	wsHub       *service.WSHub
}

func NewAdminHandler(governorSvc *service.GovernorService, eventSvc *service.EventService, wsHub *service.WSHub) *AdminHandler {
	return &AdminHandler{governorSvc: governorSvc, eventSvc: eventSvc, wsHub: wsHub}
}

// GET /api/v1/admin/stats
func (h *AdminHandler) Stats(c *fiber.Ctx) error {
	cfg, err := h.governorSvc.Config(c.Context())
	if err != nil {
		return adminError(c, err)
	}
	admins, err := h.governorSvc.ListAdmins(c.Context())
	if err != nil {
		return adminError(c, err)
	}

	return c.JSON(fiber.Map{
		"config":         cfg,
		"admins_total":   len(admins),
		"clients_online": h.wsHub.OnlineCount(),
	})
}

// GET /api/v1/admin/activity
func (h *AdminHandler) Activity(c *fiber.Ctx) error {
	limit := 0
	if limitStr := c.Query("limit"); limitStr != "" {
		if v, err := strconv.Atoi(limitStr); err == nil {
			limit = v
		}
	}

	events, err := h.eventSvc.Recent(c.Context(), limit)
	if err != nil {
		return adminError(c, err)
	}
	return c.JSON(fiber.Map{"events": events})
}

// POST /api/v1/admin/pause
func (h *AdminHandler) Pause(c *fiber.Ctx) error {
	if err := h.governorSvc.Pause(c.Context()); err != nil {
		return adminError(c, err)
	}
	return c.JSON(fiber.Map{"ok": true})
}

// POST /api/v1/admin/unpause
func (h *AdminHandler) Unpause(c *fiber.Ctx) error {
	if err := h.governorSvc.Unpause(c.Context()); err != nil {
		return adminError(c, err)
	}
	return c.JSON(fiber.Map{"ok": true})
}

// GET /api/v1/admin/admins
func (h *AdminHandler) ListAdmins(c *fiber.Ctx) error {
	admins, err := h.governorSvc.ListAdmins(c.Context())
	if err != nil {
		return adminError(c, err)
	}
	return c.JSON(fiber.Map{"admins": admins})
}

// POST /api/v1/admin/admins
func (h *AdminHandler) AddAdmin(c *fiber.Ctx) error {
	var req model.AddAdminRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.AccountID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "account_id is required"})
	}

	admin, err := h.governorSvc.AddAdmin(c.Context(), req.AccountID)
	if err != nil {
		return adminError(c, err)
	}
	return c.Status(201).JSON(admin)
}

// DELETE /api/v1/admin/admins/:id
func (h *AdminHandler) RemoveAdmin(c *fiber.Ctx) error {
	accountID := c.Params("id")
	if err := h.governorSvc.RemoveAdmin(c.Context(), accountID); err != nil {
		return adminError(c, err)
	}
	return c.JSON(fiber.Map{"ok": true})
}

// GET /api/v1/admin/config
func (h *AdminHandler) Config(c *fiber.Ctx) error {
	cfg, err := h.governorSvc.Config(c.Context())
	if err != nil {
		return adminError(c, err)
	}
	return c.JSON(cfg)
}

// POST /api/v1/admin/transactions
func (h *AdminHandler) SubmitTx(c *fiber.Ctx) error {
	adminID := c.Locals("account_id").(string)

	var req model.SubmitTxRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}

	tx, err := h.governorSvc.Submit(c.Context(), adminID, req.Command)
	if err != nil {
		return adminError(c, err)
	}
	return c.Status(201).JSON(tx)
}

// POST /api/v1/admin/transactions/:id/confirm
func (h *AdminHandler) ConfirmTx(c *fiber.Ctx) error {
	adminID := c.Locals("account_id").(string)

	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid transaction id"})
	}

	tx, err := h.governorSvc.Confirm(c.Context(), adminID, id)
	if err != nil {
		return adminError(c, err)
	}
	return c.JSON(tx)
}

// GET /api/v1/admin/transactions/:id
func (h *AdminHandler) GetTx(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid transaction id"})
	}

	tx, err := h.governorSvc.GetTx(c.Context(), id)
	if err != nil {
		return adminError(c, err)
	}
	return c.JSON(tx)
}

// GET /api/v1/admin/transactions
func (h *AdminHandler) ListTxs(c *fiber.Ctx) error {
	limit := 50
	offset := 0
	if limitStr := c.Query("limit"); limitStr != "" {
		if v, err := strconv.Atoi(limitStr); err == nil && v > 0 && v <= 100 {
			limit = v
		}
	}
	if offsetStr := c.Query("offset"); offsetStr != "" {
		if v, err := strconv.Atoi(offsetStr); err == nil && v >= 0 {
			offset = v
		}
	}

	txs, err := h.governorSvc.ListTxs(c.Context(), limit, offset)
	if err != nil {
		return adminError(c, err)
	}
	return c.JSON(fiber.Map{"transactions": txs})
}

func adminError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, model.ErrNotAdmin):
		return c.Status(403).JSON(fiber.Map{"error": "not an admin"})
	case errors.Is(err, model.ErrAccountNotFound):
		return c.Status(404).JSON(fiber.Map{"error": "account not found"})
	case errors.Is(err, model.ErrAlreadyExists):
		return c.Status(409).JSON(fiber.Map{"error": "already exists"})
	case errors.Is(err, model.ErrAlreadyExecuted):
		return c.Status(409).JSON(fiber.Map{"error": "transaction already executed"})
	case errors.Is(err, model.ErrAlreadyConfirmed):
		return c.Status(409).JSON(fiber.Map{"error": "transaction already confirmed"})
	case errors.Is(err, model.ErrTooFewAdmins):
		return c.Status(409).JSON(fiber.Map{"error": "too few admins would remain"})
	case errors.Is(err, model.ErrInvalidFee):
		return c.Status(400).JSON(fiber.Map{"error": "fee too high"})
	case errors.Is(err, model.ErrInvalidCommand):
		return c.Status(400).JSON(fiber.Map{"error": "unknown or malformed command"})
	case errors.Is(err, model.ErrUnknownToken):
		return c.Status(404).JSON(fiber.Map{"error": "unknown token"})
	default:
		log.Printf("[ADMIN ERROR] %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "internal server error"})
	}
}
