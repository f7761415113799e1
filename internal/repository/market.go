package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dubbletrubble/TsukiNijiLabsA/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MarketRepository struct {
	pool *pgxpool.Pool
}

func NewMarketRepository(pool *pgxpool.Pool) *MarketRepository {
	return &MarketRepository{pool: pool}
}

const listingColumns = `id, token_id, seller_id, seller_name, price, is_auction, status,
       auction_end_time, highest_bid, highest_bidder_id, min_bid_increment,
       created_at, sold_to_id, sold_price, sold_at`

func scanListing(row pgx.Row, l *model.Listing) error {
	return row.Scan(
		&l.ID, &l.TokenID, &l.SellerID, &l.SellerName, &l.Price, &l.IsAuction, &l.Status,
		&l.AuctionEndTime, &l.HighestBid, &l.HighestBidderID, &l.MinBidIncrement,
		&l.CreatedAt, &l.SoldToID, &l.SoldPrice, &l.SoldAt,
	)
}

func (r *MarketRepository) GetListing(ctx context.Context, listingID int64) (*model.Listing, error) {
	l := &model.Listing{}
	err := scanListing(r.pool.QueryRow(ctx, `
		SELECT `+listingColumns+` FROM listings WHERE id = $1
	`, listingID), l)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrListingNotFound
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (r *MarketRepository) ActiveListingForToken(ctx context.Context, tokenID int64) (*model.Listing, error) {
	l := &model.Listing{}
	err := scanListing(r.pool.QueryRow(ctx, `
		SELECT `+listingColumns+` FROM listings WHERE token_id = $1 AND status = 'active'
	`, tokenID), l)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrListingNotFound
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (r *MarketRepository) Search(ctx context.Context, req *model.SearchListingsRequest) ([]model.Listing, int, error) {
	var conditions []string
	var args []interface{}
	argIdx := 1

	conditions = append(conditions, "status = 'active'")

	if req.IsAuction != nil {
		conditions = append(conditions, fmt.Sprintf("is_auction = $%d", argIdx))
		args = append(args, *req.IsAuction)
		argIdx++
	}

	if req.MinPrice != nil {
		conditions = append(conditions, fmt.Sprintf("price >= $%d", argIdx))
		args = append(args, *req.MinPrice)
		argIdx++
	}

	if req.MaxPrice != nil {
		conditions = append(conditions, fmt.Sprintf("price <= $%d", argIdx))
		args = append(args, *req.MaxPrice)
		argIdx++
	}

	where := strings.Join(conditions, " AND ")

	var total int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM listings WHERE "+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	orderBy := "created_at DESC"
	switch req.SortBy {
	case "price_asc":
		orderBy = "price ASC"
	case "price_desc":
		orderBy = "price DESC"
	case "oldest":
		orderBy = "created_at ASC"
	}

	limit := req.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	offset := req.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`
		SELECT %s FROM listings
		WHERE %s
		ORDER BY %s
		LIMIT %d OFFSET %d
	`, listingColumns, where, orderBy, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var listings []model.Listing
	for rows.Next() {
		var l model.Listing
		if err := scanListing(rows, &l); err != nil {
			return nil, 0, err
		}
		listings = append(listings, l)
	}
	if listings == nil {
		listings = []model.Listing{}
	}
	return listings, total, nil
}

func (r *MarketRepository) BySeller(ctx context.Context, sellerID string) ([]model.Listing, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+listingColumns+` FROM listings
		WHERE seller_id = $1
		ORDER BY created_at DESC
	`, sellerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []model.Listing
	for rows.Next() {
		var l model.Listing
		if err := scanListing(rows, &l); err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	if listings == nil {
		listings = []model.Listing{}
	}
	return listings, nil
}

func (r *MarketRepository) Create(ctx context.Context, l *model.Listing) (*model.Listing, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// Lock the token row and verify the seller still owns it and it is
	// not already escrowed by another listing.
	var ownerID string
	var escrowed bool
	err = tx.QueryRow(ctx, `
		SELECT owner_id, escrowed FROM tokens WHERE id = $1 FOR UPDATE
	`, l.TokenID).Scan(&ownerID, &escrowed)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrUnknownToken
	}
	if err != nil {
		return nil, err
	}
	if ownerID != l.SellerID {
		return nil, model.ErrNotOwner
	}
	if escrowed {
		return nil, model.ErrAlreadyListed
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO listings (
			token_id, seller_id, seller_name, price, is_auction, status,
			auction_end_time, min_bid_increment
		) VALUES ($1, $2, $3, $4, $5, 'active', $6, $7)
		RETURNING id, created_at
	`,
		l.TokenID, l.SellerID, l.SellerName, l.Price, l.IsAuction,
		l.AuctionEndTime, l.MinBidIncrement,
	).Scan(&l.ID, &l.CreatedAt)
	if err != nil {
		// unique partial index on (token_id) WHERE status = 'active'
		if strings.Contains(err.Error(), "duplicate key") {
			return nil, model.ErrAlreadyListed
		}
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE tokens SET escrowed = TRUE, updated_at = NOW() WHERE id = $1
	`, l.TokenID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	l.Status = model.ListingActive
	return l, nil
}

func (r *MarketRepository) SettleBuyNow(ctx context.Context, listingID int64, buyerID string, feeBps int, treasuryID string, now time.Time) (*model.Settlement, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	l, err := lockListing(ctx, tx, listingID)
	if err != nil {
		return nil, err
	}
	if l.Status != model.ListingActive || l.IsAuction {
		return nil, model.ErrNotActiveListing
	}

	fee := l.Price * int64(feeBps) / 10000

	if err := debit(ctx, tx, buyerID, l.Price); err != nil {
		return nil, err
	}
	if err := credit(ctx, tx, treasuryID, fee); err != nil {
		return nil, err
	}
	if err := credit(ctx, tx, l.SellerID, l.Price-fee); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE tokens SET owner_id = $2, escrowed = FALSE, updated_at = NOW()
		WHERE id = $1
	`, l.TokenID, buyerID)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE listings SET status = 'sold', sold_to_id = $2, sold_price = $3, sold_at = $4
		WHERE id = $1
	`, listingID, buyerID, l.Price, now)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	l.Status = model.ListingSold
	l.SoldToID = &buyerID
	price := l.Price
	l.SoldPrice = &price
	soldAt := now
	l.SoldAt = &soldAt

	return &model.Settlement{
		Listing:      l,
		BuyerID:      buyerID,
		Price:        l.Price,
		Fee:          fee,
		SellerAmount: l.Price - fee,
	}, nil
}

func (r *MarketRepository) PlaceBid(ctx context.Context, listingID int64, bidderID string, amount int64, escrowID string, now time.Time) (*model.Listing, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	l, err := lockListing(ctx, tx, listingID)
	if err != nil {
		return nil, err
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

	if err := debit(ctx, tx, bidderID, amount); err != nil {
		return nil, err
	}
	if err := credit(ctx, tx, escrowID, amount); err != nil {
		return nil, err
	}

	// The superseded bid becomes a pending withdrawal, never a push
	// payment.
	if l.HighestBidderID != nil {
		_, err = tx.Exec(ctx, `
			INSERT INTO pending_withdrawals (listing_id, bidder_id, amount)
			VALUES ($1, $2, $3)
			ON CONFLICT (listing_id, bidder_id)
			DO UPDATE SET amount = pending_withdrawals.amount + EXCLUDED.amount
		`, listingID, *l.HighestBidderID, l.HighestBid)
		if err != nil {
			return nil, err
		}
	}

	_, err = tx.Exec(ctx, `
		UPDATE listings SET highest_bid = $2, highest_bidder_id = $3 WHERE id = $1
	`, listingID, amount, bidderID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	l.HighestBid = amount
	l.HighestBidderID = &bidderID
	return l, nil
}

func (r *MarketRepository) WithdrawBid(ctx context.Context, listingID int64, bidderID, escrowID string) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var amount int64
	err = tx.QueryRow(ctx, `
		DELETE FROM pending_withdrawals
		WHERE listing_id = $1 AND bidder_id = $2
		RETURNING amount
	`, listingID, bidderID).Scan(&amount)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, model.ErrNothingToWithdraw
	}
	if err != nil {
		return 0, err
	}

	if err := debit(ctx, tx, escrowID, amount); err != nil {
		return 0, err
	}
	if err := credit(ctx, tx, bidderID, amount); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return amount, nil
}

func (r *MarketRepository) EndAuction(ctx context.Context, listingID int64, feeBps int, treasuryID, escrowID string, now time.Time) (*model.Settlement, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	l, err := lockListing(ctx, tx, listingID)
	if err != nil {
		return nil, err
	}
	if l.Status != model.ListingActive || !l.IsAuction {
		return nil, model.ErrAuctionEnded
	}
	if l.AuctionEndTime != nil && now.Before(*l.AuctionEndTime) {
		return nil, model.ErrAuctionNotEnded
	}

	// No bids: return the token to the seller, nothing moves.
	if l.HighestBidderID == nil {
		_, err = tx.Exec(ctx, `
			UPDATE tokens SET escrowed = FALSE, updated_at = NOW() WHERE id = $1
		`, l.TokenID)
		if err != nil {
			return nil, err
		}
		_, err = tx.Exec(ctx, `UPDATE listings SET status = 'ended' WHERE id = $1`, listingID)
		if err != nil {
			return nil, err
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}
		l.Status = model.ListingEnded
		return &model.Settlement{Listing: l}, nil
	}

	winner := *l.HighestBidderID
	price := l.HighestBid
	fee := price * int64(feeBps) / 10000

	if err := debit(ctx, tx, escrowID, price); err != nil {
		return nil, err
	}
	if err := credit(ctx, tx, treasuryID, fee); err != nil {
		return nil, err
	}
	if err := credit(ctx, tx, l.SellerID, price-fee); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE tokens SET owner_id = $2, escrowed = FALSE, updated_at = NOW()
		WHERE id = $1
	`, l.TokenID, winner)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE listings SET status = 'sold', sold_to_id = $2, sold_price = $3, sold_at = $4
		WHERE id = $1
	`, listingID, winner, price, now)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	l.Status = model.ListingSold
	l.SoldToID = &winner
	l.SoldPrice = &price
	soldAt := now
	l.SoldAt = &soldAt

	return &model.Settlement{
		Listing:      l,
		BuyerID:      winner,
		Price:        price,
		Fee:          fee,
		SellerAmount: price - fee,
	}, nil
}

func (r *MarketRepository) Cancel(ctx context.Context, listingID int64, sellerID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	l, err := lockListing(ctx, tx, listingID)
	if err != nil {
		return err
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

	_, err = tx.Exec(ctx, `
		UPDATE tokens SET escrowed = FALSE, updated_at = NOW() WHERE id = $1
	`, l.TokenID)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `UPDATE listings SET status = 'cancelled' WHERE id = $1`, listingID)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *MarketRepository) PendingAmount(ctx context.Context, listingID int64, bidderID string) (int64, error) {
	var amount int64
	err := r.pool.QueryRow(ctx, `
		SELECT amount FROM pending_withdrawals WHERE listing_id = $1 AND bidder_id = $2
	`, listingID, bidderID).Scan(&amount)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return amount, err
}

func lockListing(ctx context.Context, tx pgx.Tx, listingID int64) (*model.Listing, error) {
	l := &model.Listing{}
	err := scanListing(tx.QueryRow(ctx, `
		SELECT `+listingColumns+` FROM listings WHERE id = $1 FOR UPDATE
	`, listingID), l)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrListingNotFound
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

// debit fails with ErrPaymentFailed instead of letting a balance go
// negative.
func debit(ctx context.Context, tx pgx.Tx, accountID string, amount int64) error {
	var remaining int64
	err := tx.QueryRow(ctx, `
		UPDATE accounts SET balance = balance - $2, updated_at = NOW()
		WHERE id = $1 AND balance >= $2
		RETURNING balance
	`, accountID, amount).Scan(&remaining)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ErrPaymentFailed
	}
	return err
}

func credit(ctx context.Context, tx pgx.Tx, accountID string, amount int64) error {
	tag, err := tx.Exec(ctx, `
		UPDATE accounts SET balance = balance + $2, updated_at = NOW() WHERE id = $1
	`, accountID, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrAccountNotFound
	}
	return nil
}
