package model

import "time"

// Unclaimed-revenue dispositions once the claim window has passed.
const (
	UnclaimedHold  = "hold"  // amounts stay recorded, no movement
	UnclaimedSweep = "sweep" // governor may move them to treasury
)

const MaxFeeBps = 1000 // 10%

// PlatformConfig is the single versioned configuration record owned by
// the governor. Engine and router read it at call time; every governor
// mutation bumps Version.
type PlatformConfig struct {
	Version                int           `json:"version"`
	MarketFeeBps           int           `json:"market_fee_bps"`
	RevenueFeeBps          int           `json:"revenue_fee_bps"`
	MinBidIncrement        int64         `json:"min_bid_increment"`
	MinAuctionDuration     time.Duration `json:"min_auction_duration"`
	ClaimWindow            time.Duration `json:"claim_window"`
	RequiredConfirmations  int           `json:"required_confirmations"`
	Paused                 bool          `json:"paused"`
	UnclaimedPolicy        string        `json:"unclaimed_policy"`
	TreasuryID             string        `json:"treasury_id"`
	UpdatedAt              time.Time     `json:"updated_at"`
}
