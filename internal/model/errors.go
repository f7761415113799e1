package model

import "errors"

// Domain errors shared by services and repositories. Repositories
// re-check state inside their transactions and must surface the same
// sentinels the services pre-check with.
var (
	// Authorization
	ErrNotOwner  = errors.New("not token owner")
	ErrNotSeller = errors.New("not the listing seller")
	ErrNotAdmin  = errors.New("not admin")

	// State conflicts
	ErrAlreadyListed    = errors.New("token already has an active listing")
	ErrAlreadyExecuted  = errors.New("transaction already executed")
	ErrAlreadyConfirmed = errors.New("transaction already confirmed")
	ErrAlreadyClaimed   = errors.New("already claimed")
	ErrAlreadyFinalized = errors.New("quarter already finalized")
	ErrNotFinalized     = errors.New("quarter not finalized")
	ErrAlreadyExists    = errors.New("token already exists")

	// Timing
	ErrAuctionNotEnded    = errors.New("auction not ended")
	ErrAuctionEnded       = errors.New("auction ended")
	ErrPeriodNotEnded     = errors.New("quarter not ended")
	ErrClaimWindowExpired = errors.New("claim window expired")

	// Validation
	ErrBidTooLow      = errors.New("bid increment too low")
	ErrUnknownToken   = errors.New("unknown token")
	ErrInvalidFee     = errors.New("fee too high")
	ErrInvalidAmount  = errors.New("amount must be greater than 0")
	ErrInvalidCommand = errors.New("unknown or malformed command")
	ErrOwnListing     = errors.New("cannot trade on your own listing")

	// Availability
	ErrTooFewAdmins = errors.New("too few admins")
	ErrSystemPaused = errors.New("system paused")

	// External transfer
	ErrPaymentFailed = errors.New("payment failed")

	// Listings
	ErrNotActiveListing  = errors.New("not active listing")
	ErrBidsExist         = errors.New("bids exist on this auction")
	ErrNothingToWithdraw = errors.New("nothing to withdraw")
	ErrListingNotFound   = errors.New("listing not found")

	// Accounts
	ErrAccountNotFound = errors.New("account not found")
)
