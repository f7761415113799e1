package handler

import (
	"errors"
	"log"
	"strconv"

	"github.com/dubbletrubble/TsukiNijiLabsA/internal/model"
	"github.com/dubbletrubble/TsukiNijiLabsA/internal/service"

	"github.com/gofiber/fiber/v2"
)

type MarketHandler struct {
	marketSvc *service.MarketService
}

func NewMarketHandler(marketSvc *service.MarketService) *MarketHandler {
	return &MarketHandler{marketSvc: marketSvc}
}

// GET /api/v1/market/listings
func (h *MarketHandler) Search(c *fiber.Ctx) error {
	req := &model.SearchListingsRequest{
		SortBy: c.Query("sort_by", "newest"),
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		if v, err := strconv.Atoi(limitStr); err == nil {
			req.Limit = v
		}
	}
	if offsetStr := c.Query("offset"); offsetStr != "" {
		if v, err := strconv.Atoi(offsetStr); err == nil {
			req.Offset = v
		}
	}
	if auctionStr := c.Query("is_auction"); auctionStr != "" {
		if v, err := strconv.ParseBool(auctionStr); err == nil {
			req.IsAuction = &v
		}
	}
	if minStr := c.Query("min_price"); minStr != "" {
		if v, err := strconv.ParseInt(minStr, 10, 64); err == nil {
			req.MinPrice = &v
		}
	}
	if maxStr := c.Query("max_price"); maxStr != "" {
		if v, err := strconv.ParseInt(maxStr, 10, 64); err == nil {
			req.MaxPrice = &v
		}
	}

	listings, total, err := h.marketSvc.SearchListings(c.Context(), req)
	if err != nil {
		log.Printf("[MARKET] search error: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to search listings"})
	}

	return c.JSON(fiber.Map{
		"listings": listings,
		"total":    total,
	})
}

// POST /api/v1/market/listings
func (h *MarketHandler) Create(c *fiber.Ctx) error {
	accountID := c.Locals("account_id").(string)
	username := c.Locals("username").(string)

	var req model.CreateListingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}

	if req.Price <= 0 {
		return c.Status(400).JSON(fiber.Map{"error": "price must be greater than 0"})
	}

	listing, err := h.marketSvc.List(c.Context(), accountID, username, &req)
	if err != nil {
		return marketError(c, err)
	}

	return c.Status(201).JSON(listing)
}

// GET /api/v1/market/listings/:id
func (h *MarketHandler) GetByID(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid listing id"})
	}

	listing, err := h.marketSvc.GetListing(c.Context(), id)
	if err != nil {
		return marketError(c, err)
	}

	return c.JSON(listing)
}

// POST /api/v1/market/listings/:id/buy
func (h *MarketHandler) Buy(c *fiber.Ctx) error {
	accountID := c.Locals("account_id").(string)

	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid listing id"})
	}

	settlement, err := h.marketSvc.BuyNow(c.Context(), id, accountID)
	if err != nil {
		return marketError(c, err)
	}

	return c.JSON(settlement)
}

// POST /api/v1/market/listings/:id/bids
func (h *MarketHandler) PlaceBid(c *fiber.Ctx) error {
	accountID := c.Locals("account_id").(string)

	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid listing id"})
	}

	var req model.PlaceBidRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.Amount <= 0 {
		return c.Status(400).JSON(fiber.Map{"error": "amount must be greater than 0"})
	}

	listing, err := h.marketSvc.PlaceBid(c.Context(), id, accountID, req.Amount)
	if err != nil {
		return marketError(c, err)
	}

	return c.JSON(listing)
}

// POST /api/v1/market/listings/:id/withdraw
func (h *MarketHandler) WithdrawBid(c *fiber.Ctx) error {
	accountID := c.Locals("account_id").(string)

	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid listing id"})
	}

	amount, err := h.marketSvc.WithdrawBid(c.Context(), id, accountID)
	if err != nil {
		return marketError(c, err)
	}

	return c.JSON(fiber.Map{"withdrawn": amount})
}

// GET /api/v1/market/listings/:id/withdrawable
func (h *MarketHandler) Withdrawable(c *fiber.Ctx) error {
	accountID := c.Locals("account_id").(string)

	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid listing id"})
	}

	amount, err := h.marketSvc.PendingWithdrawal(c.Context(), id, accountID)
	if err != nil {
		return marketError(c, err)
	}

	return c.JSON(fiber.Map{"amount": amount})
}

// POST /api/v1/market/listings/:id/end
func (h *MarketHandler) EndAuction(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid listing id"})
	}

	settlement, err := h.marketSvc.EndAuction(c.Context(), id)
	if err != nil {
		return marketError(c, err)
	}

	return c.JSON(settlement)
}

// DELETE /api/v1/market/listings/:id
func (h *MarketHandler) Cancel(c *fiber.Ctx) error {
	accountID := c.Locals("account_id").(string)

	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid listing id"})
	}

	if err := h.marketSvc.CancelListing(c.Context(), id, accountID); err != nil {
		return marketError(c, err)
	}

	return c.JSON(fiber.Map{"ok": true})
}

// GET /api/v1/market/my-listings
func (h *MarketHandler) MyListings(c *fiber.Ctx) error {
	accountID := c.Locals("account_id").(string)

	listings, err := h.marketSvc.MyListings(c.Context(), accountID)
	if err != nil {
		log.Printf("[MARKET] my-listings error: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to get listings"})
	}

	return c.JSON(fiber.Map{"listings": listings})
}

func marketError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, model.ErrListingNotFound):
		return c.Status(404).JSON(fiber.Map{"error": "listing not found"})
	case errors.Is(err, model.ErrUnknownToken):
		return c.Status(404).JSON(fiber.Map{"error": "unknown token"})
	case errors.Is(err, model.ErrNotActiveListing):
		return c.Status(409).JSON(fiber.Map{"error": "listing is no longer active"})
	case errors.Is(err, model.ErrAlreadyListed):
		return c.Status(409).JSON(fiber.Map{"error": "token already has an active listing"})
	case errors.Is(err, model.ErrNotOwner):
		return c.Status(403).JSON(fiber.Map{"error": "not the token owner"})
	case errors.Is(err, model.ErrNotSeller):
		return c.Status(403).JSON(fiber.Map{"error": "not the listing seller"})
	case errors.Is(err, model.ErrOwnListing):
		return c.Status(400).JSON(fiber.Map{"error": "cannot trade on your own listing"})
	case errors.Is(err, model.ErrPaymentFailed):
		return c.Status(400).JSON(fiber.Map{"error": "insufficient balance"})
	case errors.Is(err, model.ErrBidTooLow):
		return c.Status(400).JSON(fiber.Map{"error": "bid below the required minimum"})
	case errors.Is(err, model.ErrAuctionEnded):
		return c.Status(409).JSON(fiber.Map{"error": "auction has ended"})
	case errors.Is(err, model.ErrAuctionNotEnded):
		return c.Status(409).JSON(fiber.Map{"error": "auction has not ended yet"})
	case errors.Is(err, model.ErrBidsExist):
		return c.Status(409).JSON(fiber.Map{"error": "cannot cancel an auction with bids"})
	case errors.Is(err, model.ErrNothingToWithdraw):
		return c.Status(404).JSON(fiber.Map{"error": "nothing to withdraw"})
	case errors.Is(err, model.ErrSystemPaused):
		return c.Status(503).JSON(fiber.Map{"error": "system is paused"})
	default:
		log.Printf("[MARKET ERROR] %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "internal server error"})
	}
}
