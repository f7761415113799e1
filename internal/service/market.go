package service

import (
	"context"
	"time"

	"github.com/dubbletrubble/TsukiNijiLabsA/internal/model"
)

// MarketService is the listing/auction engine. It moves a company token
// from seller to buyer at a fixed price or to the winning bidder of a
// timed auction. Escrowed bids follow the pull-payment pattern: an
// outbid bidder's funds become a pending withdrawal they collect
// themselves, so paying one party can never block another's bid.
type MarketService struct {
	market MarketStore
	tokens TokenStore
	ledger LedgerStore
	config ConfigStore
	events *EventService
	escrow string // market escrow account id
	clock  func() time.Time
}

func NewMarketService(market MarketStore, tokens TokenStore, ledger LedgerStore, config ConfigStore, events *EventService, escrowAccountID string) *MarketService {
	return &MarketService{
		market: market,
		tokens: tokens,
		ledger: ledger,
		config: config,
		events: events,
		escrow: escrowAccountID,
		clock:  time.Now,
	}
}

// SetClock overrides the time source. Tests only.
func (s *MarketService) SetClock(clock func() time.Time) {
	s.clock = clock
}

func (s *MarketService) List(ctx context.Context, sellerID, sellerName string, req *model.CreateListingRequest) (*model.Listing, error) {
	cfg, err := s.config.Get(ctx)
	if err != nil {
		return nil, err
	}
	if cfg.Paused {
		return nil, model.ErrSystemPaused
	}
	if req.Price <= 0 {
		return nil, model.ErrInvalidAmount
	}

	token, err := s.tokens.Get(ctx, req.TokenID)
	if err != nil {
		return nil, model.ErrUnknownToken
	}
	if token.OwnerID != sellerID {
		return nil, model.ErrNotOwner
	}
	if token.Escrowed {
		return nil, model.ErrAlreadyListed
	}

	now := s.clock()
	listing := &model.Listing{
		TokenID:         req.TokenID,
		SellerID:        sellerID,
		SellerName:      sellerName,
		Price:           req.Price,
		IsAuction:       req.IsAuction,
		Status:          model.ListingActive,
		MinBidIncrement: cfg.MinBidIncrement,
	}
	if req.IsAuction {
		end := now.Add(cfg.MinAuctionDuration)
		listing.AuctionEndTime = &end
	}

	created, err := s.market.Create(ctx, listing)
	if err != nil {
		return nil, err
	}

	s.events.Emit(ctx, model.EventListed, created)
	return created, nil
}

func (s *MarketService) BuyNow(ctx context.Context, listingID int64, buyerID string) (*model.Settlement, error) {
	cfg, err := s.config.Get(ctx)
	if err != nil {
		return nil, err
	}
	if cfg.Paused {
		return nil, model.ErrSystemPaused
	}

	listing, err := s.market.GetListing(ctx, listingID)
	if err != nil {
		return nil, model.ErrListingNotFound
	}
	if !listing.Active() || listing.IsAuction {
		return nil, model.ErrNotActiveListing
	}
	if listing.SellerID == buyerID {
		return nil, model.ErrOwnListing
	}

	balance, err := s.ledger.BalanceOf(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	if balance < listing.Price {
		return nil, model.ErrPaymentFailed
	}

	settlement, err := s.market.SettleBuyNow(ctx, listingID, buyerID, cfg.MarketFeeBps, cfg.TreasuryID, s.clock())
	if err != nil {
		return nil, err
	}

	s.events.Emit(ctx, model.EventSale, settlement)
	return settlement, nil
}

func (s *MarketService) PlaceBid(ctx context.Context, listingID int64, bidderID string, amount int64) (*model.Listing, error) {
	cfg, err := s.config.Get(ctx)
	if err != nil {
		return nil, err
	}
	if cfg.Paused {
		return nil, model.ErrSystemPaused
	}

	listing, err := s.market.GetListing(ctx, listingID)
	if err != nil {
		return nil, model.ErrListingNotFound
	}
	if !listing.Active() || !listing.IsAuction {
		return nil, model.ErrNotActiveListing
	}
	if listing.SellerID == bidderID {
		return nil, model.ErrOwnListing
	}

	now := s.clock()
	if listing.AuctionEndTime != nil && !now.Before(*listing.AuctionEndTime) {
		return nil, model.ErrAuctionEnded
	}
	if amount < requiredBid(listing) {
		return nil, model.ErrBidTooLow
	}

	balance, err := s.ledger.BalanceOf(ctx, bidderID)
	if err != nil {
		return nil, err
	}
	if balance < amount {
		return nil, model.ErrPaymentFailed
	}

	updated, err := s.market.PlaceBid(ctx, listingID, bidderID, amount, s.escrow, now)
	if err != nil {
		return nil, err
	}

	s.events.Emit(ctx, model.EventBidPlaced, updated)
	return updated, nil
}

// requiredBid is the minimum acceptable next bid: the listing price for
// the first bid, previous highest plus the increment afterwards.
func requiredBid(l *model.Listing) int64 {
	if l.HighestBidderID == nil {
		return l.Price
	}
	return l.HighestBid + l.MinBidIncrement
}

func (s *MarketService) WithdrawBid(ctx context.Context, listingID int64, bidderID string) (int64, error) {
	amount, err := s.market.WithdrawBid(ctx, listingID, bidderID, s.escrow)
	if err != nil {
		return 0, err
	}

	s.events.Emit(ctx, model.EventBidWithdrawn, map[string]any{
		"listing_id": listingID,
		"bidder_id":  bidderID,
		"amount":     amount,
	})
	return amount, nil
}

// EndAuction settles an expired auction. Callable by anyone: the caller
// only pays for the call, all funds move between seller, winner and
// treasury.
func (s *MarketService) EndAuction(ctx context.Context, listingID int64) (*model.Settlement, error) {
	cfg, err := s.config.Get(ctx)
	if err != nil {
		return nil, err
	}

	listing, err := s.market.GetListing(ctx, listingID)
	if err != nil {
		return nil, model.ErrListingNotFound
	}
	if !listing.IsAuction {
		return nil, model.ErrNotActiveListing
	}
	if !listing.Active() {
		return nil, model.ErrAuctionEnded
	}

	now := s.clock()
	if listing.AuctionEndTime != nil && now.Before(*listing.AuctionEndTime) {
		return nil, model.ErrAuctionNotEnded
	}

	settlement, err := s.market.EndAuction(ctx, listingID, cfg.MarketFeeBps, cfg.TreasuryID, s.escrow, now)
	if err != nil {
		return nil, err
	}

	s.events.Emit(ctx, model.EventAuctionEnded, settlement)
	return settlement, nil
}

func (s *MarketService) CancelListing(ctx context.Context, listingID int64, sellerID string) error {
	listing, err := s.market.GetListing(ctx, listingID)
	if err != nil {
		return model.ErrListingNotFound
	}
	if listing.SellerID != sellerID {
		return model.ErrNotSeller
	}
	if !listing.Active() {
		return model.ErrNotActiveListing
	}
	if listing.HighestBidderID != nil {
		return model.ErrBidsExist
	}

	if err := s.market.Cancel(ctx, listingID, sellerID); err != nil {
		return err
	}

	s.events.Emit(ctx, model.EventListingCancelled, map[string]any{"listing_id": listingID, "token_id": listing.TokenID})
	return nil
}

func (s *MarketService) GetListing(ctx context.Context, listingID int64) (*model.Listing, error) {
	listing, err := s.market.GetListing(ctx, listingID)
	if err != nil {
		return nil, model.ErrListingNotFound
	}
	return listing, nil
}

func (s *MarketService) SearchListings(ctx context.Context, req *model.SearchListingsRequest) ([]model.Listing, int, error) {
	return s.market.Search(ctx, req)
}

func (s *MarketService) MyListings(ctx context.Context, sellerID string) ([]model.Listing, error) {
	return s.market.BySeller(ctx, sellerID)
}

func (s *MarketService) PendingWithdrawal(ctx context.Context, listingID int64, bidderID string) (int64, error) {
	return s.market.PendingAmount(ctx, listingID, bidderID)
}
