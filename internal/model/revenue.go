package model

import "time"

// Quarter is one fixed-length revenue accounting window. Quarters are
// sequentially indexed and never overlap; finalize locks the totals and
// opens the next window.
type Quarter struct {
	Index        int        `json:"index"`
	StartTime    time.Time  `json:"start_time"`
	EndTime      time.Time  `json:"end_time"`
	TotalRevenue int64      `json:"total_revenue"`
	Finalized    bool       `json:"finalized"`
	FinalizedAt  *time.Time `json:"finalized_at,omitempty"`
	FeeBps       int        `json:"fee_bps,omitempty"`
	PlatformFee  int64      `json:"platform_fee,omitempty"`
}

// QuarterDeposit accumulates revenue deposited for one token within one
// quarter. It is the share basis for that token's distribution claim.
type QuarterDeposit struct {
	QuarterIndex int   `json:"quarter_index"`
	TokenID      int64 `json:"token_id"`
	Amount       int64 `json:"amount"`
	Swept        bool  `json:"swept"`
}

type Claim struct {
	QuarterIndex int       `json:"quarter_index"`
	TokenID      int64     `json:"token_id"`
	AccountID    string    `json:"account_id"`
	Amount       int64     `json:"amount"`
	ClaimedAt    time.Time `json:"claimed_at"`
}

type DepositRevenueRequest struct {
	TokenID int64 `json:"token_id"`
	Amount  int64 `json:"amount"`
}

type ClaimRequest struct {
	TokenID      int64 `json:"token_id"`
	QuarterIndex int   `json:"quarter_index"`
}

// ShareProjection is the read-only view of a claimable distribution.
type ShareProjection struct {
	TokenID      int64  `json:"token_id"`
	QuarterIndex int    `json:"quarter_index"`
	Deposited    int64  `json:"deposited"`
	Fee          int64  `json:"fee"`
	Share        int64  `json:"share"`
	Claimed      bool   `json:"claimed"`
	Claimable    bool   `json:"claimable"`
	Reason       string `json:"reason,omitempty"`
}

// TokenRevenueSummary backs the per-token revenue dashboard.
type TokenRevenueSummary struct {
	TokenID      int64  `json:"token_id"`
	TotalRevenue int64  `json:"total_revenue"`
	Available    int64  `json:"available"`
	LastPayout   *Claim `json:"last_payout,omitempty"`
}
