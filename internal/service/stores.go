package service

import (
	"context"
	"time"

	"github.com/dubbletrubble/TsukiNijiLabsA/internal/model"
)

// Store interfaces implemented by the pgx repositories and by the
// in-memory store used in tests. Compound operations are atomic: the
// implementation either applies every step or none.

type AccountStore interface {
	Create(ctx context.Context, username, email, passwordHash string) (*model.Account, error)
	GetByID(ctx context.Context, id string) (*model.Account, error)
	GetByUsername(ctx context.Context, username string) (*model.Account, error)
	UpdateLoginTime(ctx context.Context, id string) error
}

type SessionStore interface {
	Create(ctx context.Context, accountID, tokenHash string, expiresAt time.Time) error
	GetAccountID(ctx context.Context, tokenHash string, now time.Time) (string, error)
	Delete(ctx context.Context, tokenHash string) error
}

// LedgerStore is the fungible-balance account system. Transfer debits
// conditionally: it fails with ErrPaymentFailed when the source balance
// is insufficient, without touching either account.
type LedgerStore interface {
	BalanceOf(ctx context.Context, accountID string) (int64, error)
	Transfer(ctx context.Context, from, to string, amount int64) error
}

// TokenStore is the ownership registry. Transfers happen only inside
// market settlement; the registry exposes no direct transfer.
type TokenStore interface {
	Get(ctx context.Context, tokenID int64) (*model.CompanyToken, error)
	Exists(ctx context.Context, tokenID int64) (bool, error)
	List(ctx context.Context) ([]model.CompanyToken, error)
	Mint(ctx context.Context, t *model.CompanyToken) error
	UpdateCompanyData(ctx context.Context, tokenID, revenue, profit int64) error
}

type MarketStore interface {
	GetListing(ctx context.Context, listingID int64) (*model.Listing, error)
	ActiveListingForToken(ctx context.Context, tokenID int64) (*model.Listing, error)
	Search(ctx context.Context, req *model.SearchListingsRequest) ([]model.Listing, int, error)
	BySeller(ctx context.Context, sellerID string) ([]model.Listing, error)

	// Create inserts the listing and escrows the token. Fails with
	// ErrAlreadyListed if the token already has an active listing.
	Create(ctx context.Context, l *model.Listing) (*model.Listing, error)

	// SettleBuyNow debits the buyer, pays fee to treasury and the rest
	// to the seller, transfers the token and deactivates the listing.
	SettleBuyNow(ctx context.Context, listingID int64, buyerID string, feeBps int, treasuryID string, now time.Time) (*model.Settlement, error)

	// PlaceBid escrows the bid into escrowID and converts the previous
	// highest bid into a pending withdrawal.
	PlaceBid(ctx context.Context, listingID int64, bidderID string, amount int64, escrowID string, now time.Time) (*model.Listing, error)

	WithdrawBid(ctx context.Context, listingID int64, bidderID, escrowID string) (int64, error)

	// EndAuction settles to the highest bidder, or returns the token to
	// the seller when no bids were placed.
	EndAuction(ctx context.Context, listingID int64, feeBps int, treasuryID, escrowID string, now time.Time) (*model.Settlement, error)

	Cancel(ctx context.Context, listingID int64, sellerID string) error
	PendingAmount(ctx context.Context, listingID int64, bidderID string) (int64, error)
}

type RevenueStore interface {
	CurrentQuarter(ctx context.Context) (*model.Quarter, error)
	QuarterByIndex(ctx context.Context, index int) (*model.Quarter, error)

	// Deposit moves amount from the depositor into the revenue pool and
	// adds it to the open quarter's totals, atomically.
	Deposit(ctx context.Context, tokenID int64, depositorID, poolID string, amount int64) (*model.Quarter, error)

	// Finalize locks the open quarter, pays the platform cut from the
	// pool to the treasury and opens the next quarter.
	Finalize(ctx context.Context, feeBps int, poolID, treasuryID string, quarterLength time.Duration, now time.Time) (*model.Quarter, error)

	// Claim pays the claimant their share from the pool. Ownership,
	// window and exactly-once are enforced inside the transaction.
	Claim(ctx context.Context, tokenID int64, quarterIndex int, claimantID, poolID string, claimWindow time.Duration, now time.Time) (*model.Claim, error)

	DepositFor(ctx context.Context, quarterIndex int, tokenID int64) (*model.QuarterDeposit, error)
	ClaimFor(ctx context.Context, quarterIndex int, tokenID int64) (*model.Claim, error)
	TokenSummary(ctx context.Context, tokenID int64, claimWindow time.Duration, now time.Time) (*model.TokenRevenueSummary, error)

	// SweepUnclaimed moves expired unclaimed deposits of a finalized
	// quarter from the pool to the treasury.
	SweepUnclaimed(ctx context.Context, quarterIndex int, poolID, treasuryID string, claimWindow time.Duration, now time.Time) (int64, error)

	// EnsureOpenQuarter creates quarter 0 at bootstrap if none exists.
	EnsureOpenQuarter(ctx context.Context, quarterLength time.Duration, now time.Time) error
}

type AdminStore interface {
	IsAdmin(ctx context.Context, accountID string) (bool, error)
	ListAdmins(ctx context.Context) ([]model.Admin, error)
	AddAdmin(ctx context.Context, accountID string) error

	// RemoveAdmin fails with ErrTooFewAdmins when removal would leave
	// fewer admins than required confirmations.
	RemoveAdmin(ctx context.Context, accountID string, requiredConfirmations int) error

	AdminCount(ctx context.Context) (int, error)
	SubmitTx(ctx context.Context, tx *model.MultisigTx) (*model.MultisigTx, error)
	GetTx(ctx context.Context, id int64) (*model.MultisigTx, error)
	ListTxs(ctx context.Context, limit, offset int) ([]model.MultisigTx, error)

	// Confirm records one confirmation. ErrAlreadyConfirmed on a repeat
	// by the same admin, ErrAlreadyExecuted on executed transactions.
	Confirm(ctx context.Context, txID int64, adminID string) (*model.MultisigTx, error)

	MarkExecuted(ctx context.Context, txID int64, now time.Time) error
}

type ConfigStore interface {
	Get(ctx context.Context) (*model.PlatformConfig, error)

	// Save persists the record and bumps its version.
	Save(ctx context.Context, cfg *model.PlatformConfig) error
}

type EventStore interface {
	Append(ctx context.Context, ev *model.PlatformEvent) error
	List(ctx context.Context, limit int) ([]model.PlatformEvent, error)
}
