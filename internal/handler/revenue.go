package handler

import (
	"errors"
	"log"
	"strconv"

	"github.com/dubbletrubble/TsukiNijiLabsA/internal/model"
	"github.com/dubbletrubble/TsukiNijiLabsA/internal/service"

	"github.com/gofiber/fiber/v2"
)

type RevenueHandler struct {
	revenueSvc *service.RevenueService
}

func NewRevenueHandler(revenueSvc *service.RevenueService) *RevenueHandler {
	return &RevenueHandler{revenueSvc: revenueSvc}
}

// POST /api/v1/revenue/deposits
func (h *RevenueHandler) Deposit(c *fiber.Ctx) error {
	accountID := c.Locals("account_id").(string)

	var req model.DepositRevenueRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.Amount <= 0 {
		return c.Status(400).JSON(fiber.Map{"error": "amount must be greater than 0"})
	}

	quarter, err := h.revenueSvc.Deposit(c.Context(), accountID, &req)
	if err != nil {
		return revenueError(c, err)
	}

	return c.Status(201).JSON(quarter)
}

// POST /api/v1/revenue/quarters/finalize
func (h *RevenueHandler) Finalize(c *fiber.Ctx) error {
	quarter, err := h.revenueSvc.FinalizeQuarter(c.Context())
	if err != nil {
		return revenueError(c, err)
	}

	return c.JSON(quarter)
}

// POST /api/v1/revenue/claims
func (h *RevenueHandler) Claim(c *fiber.Ctx) error {
	accountID := c.Locals("account_id").(string)

	var req model.ClaimRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}

	claim, err := h.revenueSvc.Claim(c.Context(), accountID, &req)
	if err != nil {
		return revenueError(c, err)
	}

	return c.Status(201).JSON(claim)
}

// GET /api/v1/revenue/quarters/current
func (h *RevenueHandler) CurrentQuarter(c *fiber.Ctx) error {
	quarter, err := h.revenueSvc.CurrentQuarter(c.Context())
	if err != nil {
		return revenueError(c, err)
	}
	return c.JSON(quarter)
}

// GET /api/v1/revenue/quarters/:index
func (h *RevenueHandler) QuarterByIndex(c *fiber.Ctx) error {
	index, err := strconv.Atoi(c.Params("index"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid quarter index"})
	}

	quarter, err := h.revenueSvc.QuarterByIndex(c.Context(), index)
	if err != nil {
		return revenueError(c, err)
	}
	return c.JSON(quarter)
}

// GET /api/v1/revenue/share?token_id=&quarter_index=
func (h *RevenueHandler) Share(c *fiber.Ctx) error {
	tokenID, err := strconv.ParseInt(c.Query("token_id"), 10, 64)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid token id"})
	}
	quarterIndex, err := strconv.Atoi(c.Query("quarter_index"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid quarter index"})
	}

	projection, err := h.revenueSvc.CalculateShare(c.Context(), tokenID, quarterIndex)
	if err != nil {
		return revenueError(c, err)
	}
	return c.JSON(projection)
}

// GET /api/v1/revenue/tokens/:id/summary
func (h *RevenueHandler) TokenSummary(c *fiber.Ctx) error {
	tokenID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid token id"})
	}

	summary, err := h.revenueSvc.TokenSummary(c.Context(), tokenID)
	if err != nil {
		return revenueError(c, err)
	}
	return c.JSON(summary)
}

func revenueError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, model.ErrUnknownToken):
		return c.Status(404).JSON(fiber.Map{"error": "unknown token"})
	case errors.Is(err, model.ErrNotOwner):
		return c.Status(403).JSON(fiber.Map{"error": "not the token owner"})
	case errors.Is(err, model.ErrNotFinalized):
		return c.Status(409).JSON(fiber.Map{"error": "quarter not finalized"})
	case errors.Is(err, model.ErrAlreadyFinalized):
		return c.Status(409).JSON(fiber.Map{"error": "quarter already finalized"})
	case errors.Is(err, model.ErrPeriodNotEnded):
		return c.Status(409).JSON(fiber.Map{"error": "quarter has not ended yet"})
	case errors.Is(err, model.ErrAlreadyClaimed):
		return c.Status(409).JSON(fiber.Map{"error": "already claimed"})
	case errors.Is(err, model.ErrClaimWindowExpired):
		return c.Status(410).JSON(fiber.Map{"error": "claim window expired"})
	case errors.Is(err, model.ErrNothingToWithdraw):
		return c.Status(404).JSON(fiber.Map{"error": "no revenue to claim"})
	case errors.Is(err, model.ErrPaymentFailed):
		return c.Status(400).JSON(fiber.Map{"error": "insufficient balance"})
	case errors.Is(err, model.ErrInvalidAmount):
		return c.Status(400).JSON(fiber.Map{"error": "amount must be greater than 0"})
	case errors.Is(err, model.ErrSystemPaused):
		return c.Status(503).JSON(fiber.Map{"error": "system is paused"})
	default:
		log.Printf("[REVENUE ERROR] %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "internal server error"})
	}
}
