package memory

import (
	"context"
	"sort"
	"time"

	"github.com/dubbletrubble/TsukiNijiLabsA/internal/model"
)

type MarketRepo struct{ c *core }

func (r *MarketRepo) GetListing(ctx context.Context, listingID int64) (*model.Listing, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	l, ok := r.c.listings[listingID]
	if !ok {
		return nil, model.ErrListingNotFound
	}
	out := *l
	return &out, nil
}

func (r *MarketRepo) ActiveListingForToken(ctx context.Context, tokenID int64) (*model.Listing, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	id, ok := r.c.activeByToken[tokenID]
	if !ok {
		return nil, model.ErrListingNotFound
	}
	out := *r.c.listings[id]
	return &out, nil
}

func (r *MarketRepo) Search(ctx context.Context, req *model.SearchListingsRequest) ([]model.Listing, int, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()

	var matched []model.Listing
	for _, l := range r.c.listings {
		if l.Status != model.ListingActive {
			continue
		}
		if req.IsAuction != nil && l.IsAuction != *req.IsAuction {
			continue
		}
		if req.MinPrice != nil && l.Price < *req.MinPrice {
			continue
		}
		if req.MaxPrice != nil && l.Price > *req.MaxPrice {
			continue
		}
		matched = append(matched, *l)
	}

	switch req.SortBy {
	case "price_asc":
		sort.Slice(matched, func(i, j int) bool { return matched[i].Price < matched[j].Price })
	case "price_desc":
		sort.Slice(matched, func(i, j int) bool { return matched[i].Price > matched[j].Price })
	case "oldest":
		sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.Before(matched[j].CreatedAt) })
	default:
		sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	}

	total := len(matched)
	limit := req.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	offset := req.Offset
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (r *MarketRepo) BySeller(ctx context.Context, sellerID string) ([]model.Listing, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()

	var out []model.Listing
	for _, l := range r.c.listings {
		if l.SellerID == sellerID {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MarketRepo) Create(ctx context.Context, l *model.Listing) (*model.Listing, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()

	token, ok := r.c.tokens[l.TokenID]
	if !ok {
		return nil, model.ErrUnknownToken
	}
	if token.OwnerID != l.SellerID {
		return nil, model.ErrNotOwner
	}
	if token.Escrowed {
		return nil, model.ErrAlreadyListed
	}
	if _, active := r.c.activeByToken[l.TokenID]; active {
		return nil, model.ErrAlreadyListed
	}

	r.c.nextListingID++
	cp := *l
	cp.ID = r.c.nextListingID
	cp.Status = model.ListingActive
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	r.c.listings[cp.ID] = &cp
	r.c.activeByToken[l.TokenID] = cp.ID
	token.Escrowed = true

	out := cp
	return &out, nil
}

func (r *MarketRepo) SettleBuyNow(ctx context.Context, listingID int64, buyerID string, feeBps int, treasuryID string, now time.Time) (*model.Settlement, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()

	l, ok := r.c.listings[listingID]
	if !ok {
		return nil, model.ErrListingNotFound
	}
	if l.Status != model.ListingActive || l.IsAuction {
		return nil, model.ErrNotActiveListing
	}

	fee := l.Price * int64(feeBps) / 10000
	if err := r.c.transferLocked(buyerID, treasuryID, fee); err != nil {
		return nil, err
	}
	if err := r.c.transferLocked(buyerID, l.SellerID, l.Price-fee); err != nil {
		// restore the fee leg; the operation must be all or nothing
		_ = r.c.transferLocked(treasuryID, buyerID, fee)
		return nil, err
	}

	token := r.c.tokens[l.TokenID]
	token.OwnerID = buyerID
	token.Escrowed = false
	token.UpdatedAt = now

	l.Status = model.ListingSold
	l.SoldToID = &buyerID
	price := l.Price
	l.SoldPrice = &price
	soldAt := now
	l.SoldAt = &soldAt
	delete(r.c.activeByToken, l.TokenID)

	out := *l
	return &model.Settlement{
		Listing:      &out,
		BuyerID:      buyerID,
		Price:        l.Price,
		Fee:          fee,
		SellerAmount: l.Price - fee,
	}, nil
}

func (r *MarketRepo) PlaceBid(ctx context.Context, listingID int64, bidderID string, amount int64, escrowID string, now time.Time) (*model.Listing, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()

	l, ok := r.c.listings[listingID]
	if !ok {
		return nil, model.ErrListingNotFound
	}
	if l.Status != model.ListingActive || !l.IsAuction {
		return nil, model.ErrNotActiveListing
	}
	if l.AuctionEndTime != nil && !now.Before(*l.AuctionEndTime) {
		return nil, model.ErrAuctionEnded
	}

	required := l.Price
	if l.HighestBidderID != nil {
		required = l.HighestBid + l.MinBidIncrement
	}
	if amount < required {
		return nil, model.ErrBidTooLow
	}

	if err := r.c.transferLocked(bidderID, escrowID, amount); err != nil {
		return nil, err
	}

	// The superseded bid becomes a pending withdrawal, never a push
	// payment.
	if l.HighestBidderID != nil {
		if r.c.pending[listingID] == nil {
			r.c.pending[listingID] = make(map[string]int64)
		}
		r.c.pending[listingID][*l.HighestBidderID] += l.HighestBid
	}

	bidder := bidderID
	l.HighestBidderID = &bidder
	l.HighestBid = amount

	out := *l
	return &out, nil
}

func (r *MarketRepo) WithdrawBid(ctx context.Context, listingID int64, bidderID, escrowID string) (int64, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()

	amount := r.c.pending[listingID][bidderID]
	if amount <= 0 {
		return 0, model.ErrNothingToWithdraw
	}
	if err := r.c.transferLocked(escrowID, bidderID, amount); err != nil {
		return 0, err
	}
	delete(r.c.pending[listingID], bidderID)
	return amount, nil
}

func (r *MarketRepo) EndAuction(ctx context.Context, listingID int64, feeBps int, treasuryID, escrowID string, now time.Time) (*model.Settlement, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()

	l, ok := r.c.listings[listingID]
	if !ok {
		return nil, model.ErrListingNotFound
	}
	if l.Status != model.ListingActive || !l.IsAuction {
		return nil, model.ErrAuctionEnded
	}
	if l.AuctionEndTime != nil && now.Before(*l.AuctionEndTime) {
		return nil, model.ErrAuctionNotEnded
	}

	token := r.c.tokens[l.TokenID]

	// No bids: return the token to the seller, nothing moves.
	if l.HighestBidderID == nil {
		token.Escrowed = false
		token.UpdatedAt = now
		l.Status = model.ListingEnded
		delete(r.c.activeByToken, l.TokenID)
		out := *l
		return &model.Settlement{Listing: &out}, nil
	}

	winner := *l.HighestBidderID
	price := l.HighestBid
	fee := price * int64(feeBps) / 10000

	if err := r.c.transferLocked(escrowID, treasuryID, fee); err != nil {
		return nil, err
	}
	if err := r.c.transferLocked(escrowID, l.SellerID, price-fee); err != nil {
		_ = r.c.transferLocked(treasuryID, escrowID, fee)
		return nil, err
	}

	token.OwnerID = winner
	token.Escrowed = false
	token.UpdatedAt = now

	l.Status = model.ListingSold
	l.SoldToID = &winner
	l.SoldPrice = &price
	soldAt := now
	l.SoldAt = &soldAt
	delete(r.c.activeByToken, l.TokenID)

	out := *l
	return &model.Settlement{
		Listing:      &out,
		BuyerID:      winner,
		Price:        price,
		Fee:          fee,
		SellerAmount: price - fee,
	}, nil
}

func (r *MarketRepo) Cancel(ctx context.Context, listingID int64, sellerID string) error {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()

	l, ok := r.c.listings[listingID]
	if !ok {
		return model.ErrListingNotFound
	}
	if l.SellerID != sellerID {
		return model.ErrNotSeller
	}
	if l.Status != model.ListingActive {
		return model.ErrNotActiveListing
	}
	if l.HighestBidderID != nil {
		return model.ErrBidsExist
	}

	token := r.c.tokens[l.TokenID]
	token.Escrowed = false
	l.Status = model.ListingCancelled
	delete(r.c.activeByToken, l.TokenID)
	return nil
}

func (r *MarketRepo) PendingAmount(ctx context.Context, listingID int64, bidderID string) (int64, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	return r.c.pending[listingID][bidderID], nil
}
