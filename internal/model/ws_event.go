package model

import "encoding/json"

// Event types pushed over the websocket feed and recorded in the
// activity log. Fire-and-forget: consumers must not rely on delivery.
const (
	EventListed               = "listed"
	EventBidPlaced            = "bid_placed"
	EventBidWithdrawn         = "bid_withdrawn"
	EventAuctionEnded         = "auction_ended"
	EventListingCancelled     = "listing_cancelled"
	EventSale                 = "sale"
	EventRevenueDeposited     = "revenue_deposited"
	EventQuarterFinalized     = "quarter_finalized"
	EventDistributionClaimed  = "distribution_claimed"
	EventUnclaimedSwept       = "unclaimed_swept"
	EventTokenMinted          = "token_minted"
	EventCompanyDataUpdated   = "company_data_updated"
	EventTransactionSubmitted = "transaction_submitted"
	EventTransactionConfirmed = "transaction_confirmed"
	EventTransactionExecuted  = "transaction_executed"
	EventAdminAdded           = "admin_added"
	EventAdminRemoved         = "admin_removed"
	EventPaused               = "paused"
	EventUnpaused             = "unpaused"
	EventConfigUpdated        = "config_updated"
)

type WSEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}
