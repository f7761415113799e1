package model

import (
	"encoding/json"
	"time"
)

// Governor command kinds. The command set is closed: privileged actions
// are tagged variants, not arbitrary dispatch.
const (
	CmdPause                    = "pause"
	CmdUnpause                  = "unpause"
	CmdSetMarketFee             = "set_market_fee"
	CmdSetRevenueFee            = "set_revenue_fee"
	CmdSetMinBidIncrement       = "set_min_bid_increment"
	CmdSetMinAuctionDuration    = "set_min_auction_duration"
	CmdSetClaimWindow           = "set_claim_window"
	CmdSetTreasury              = "set_treasury"
	CmdSetRequiredConfirmations = "set_required_confirmations"
	CmdMintToken                = "mint_token"
	CmdUpdateCompanyData        = "update_company_data"
	CmdSweepUnclaimed           = "sweep_unclaimed"
)

// Command is the payload of a multisig transaction.
type Command struct {
	Kind string `json:"kind"`

	// set_* commands
	Bps     *int   `json:"bps,omitempty"`
	Amount  *int64 `json:"amount,omitempty"`
	Seconds *int64 `json:"seconds,omitempty"`
	Count   *int   `json:"count,omitempty"`

	// set_treasury
	AccountID string `json:"account_id,omitempty"`

	// mint_token / update_company_data
	TokenID     int64  `json:"token_id,omitempty"`
	OwnerID     string `json:"owner_id,omitempty"`
	CompanyName string `json:"company_name,omitempty"`
	MetadataURI string `json:"metadata_uri,omitempty"`
	Revenue     int64  `json:"revenue,omitempty"`
	Profit      int64  `json:"profit,omitempty"`

	// sweep_unclaimed
	QuarterIndex int `json:"quarter_index,omitempty"`
}

// MultisigTx moves Submitted -> [confirm]* -> Executed and is terminal
// once executed.
type MultisigTx struct {
	ID            int64      `json:"id"`
	Command       Command    `json:"command"`
	SubmittedBy   string     `json:"submitted_by"`
	Confirmations []string   `json:"confirmations"`
	Executed      bool       `json:"executed"`
	ExecutedAt    *time.Time `json:"executed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

type Admin struct {
	AccountID string    `json:"account_id"`
	Username  string    `json:"username"`
	AddedAt   time.Time `json:"added_at"`
}

type SubmitTxRequest struct {
	Command Command `json:"command"`
}

type AddAdminRequest struct {
	AccountID string `json:"account_id"`
}

// PlatformEvent is the persisted form of the observability feed, kept
// for the admin activity log.
type PlatformEvent struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
