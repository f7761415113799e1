package model

import "time"

// Listing statuses.
const (
	ListingActive    = "active"
	ListingSold      = "sold"
	ListingCancelled = "cancelled"
	ListingEnded     = "ended"
)

type Listing struct {
	ID              int64      `json:"id"`
	TokenID         int64      `json:"token_id"`
	SellerID        string     `json:"seller_id"`
	SellerName      string     `json:"seller_name"`
	Price           int64      `json:"price"`
	IsAuction       bool       `json:"is_auction"`
	Status          string     `json:"status"`
	AuctionEndTime  *time.Time `json:"auction_end_time,omitempty"`
	HighestBid      int64      `json:"highest_bid"`
	HighestBidderID *string    `json:"highest_bidder_id,omitempty"`
	MinBidIncrement int64      `json:"min_bid_increment"`
	CreatedAt       time.Time  `json:"created_at"`
	SoldToID        *string    `json:"sold_to_id,omitempty"`
	SoldPrice       *int64     `json:"sold_price,omitempty"`
	SoldAt          *time.Time `json:"sold_at,omitempty"`
}

func (l *Listing) Active() bool {
	return l.Status == ListingActive
}

// PendingWithdrawal holds escrowed funds belonging to an outbid bidder
// until they pull them. Amounts accumulate if the same bidder is outbid
// more than once on one listing.
type PendingWithdrawal struct {
	ListingID int64  `json:"listing_id"`
	BidderID  string `json:"bidder_id"`
	Amount    int64  `json:"amount"`
}

type CreateListingRequest struct {
	TokenID   int64 `json:"token_id"`
	Price     int64 `json:"price"`
	IsAuction bool  `json:"is_auction"`
}

type PlaceBidRequest struct {
	Amount int64 `json:"amount"`
}

type SearchListingsRequest struct {
	IsAuction *bool  `json:"is_auction,omitempty"`
	MinPrice  *int64 `json:"min_price,omitempty"`
	MaxPrice  *int64 `json:"max_price,omitempty"`
	SortBy    string `json:"sort_by"`
	Limit     int    `json:"limit"`
	Offset    int    `json:"offset"`
}

// Settlement summarizes a completed sale: buyNow or a won auction.
type Settlement struct {
	Listing      *Listing `json:"listing"`
	BuyerID      string   `json:"buyer_id"`
	Price        int64    `json:"price"`
	Fee          int64    `json:"fee"`
	SellerAmount int64    `json:"seller_amount"`
}
