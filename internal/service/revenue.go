package service

import (
	"context"
	"time"

	"github.com/dubbletrubble/TsukiNijiLabsA/internal/model"
)

// QuarterLength is the fixed accounting window over which company
// revenue accumulates before distribution.
const QuarterLength = 90 * 24 * time.Hour

// RevenueService is the quarterly revenue router. Deposits accumulate
// per token per quarter; finalize locks the quarter and pays the
// platform cut; the token's owner at claim time collects the remainder
// within the claim window.
type RevenueService struct {
	revenue RevenueStore
	tokens  TokenStore
	ledger  LedgerStore
	config  ConfigStore
	events  *EventService
	pool    string // revenue pool account id
	clock   func() time.Time
}

func NewRevenueService(revenue RevenueStore, tokens TokenStore, ledger LedgerStore, config ConfigStore, events *EventService, poolAccountID string) *RevenueService {
	return &RevenueService{
		revenue: revenue,
		tokens:  tokens,
		ledger:  ledger,
		config:  config,
		events:  events,
		pool:    poolAccountID,
		clock:   time.Now,
	}
}

// SetClock overrides the time source. Tests only.
func (s *RevenueService) SetClock(clock func() time.Time) {
	s.clock = clock
}

// Deposit records revenue for a company. Any payer may fund any
// token's distribution; no ownership check.
func (s *RevenueService) Deposit(ctx context.Context, depositorID string, req *model.DepositRevenueRequest) (*model.Quarter, error) {
	cfg, err := s.config.Get(ctx)
	if err != nil {
		return nil, err
	}
	if cfg.Paused {
		return nil, model.ErrSystemPaused
	}
	if req.Amount <= 0 {
		return nil, model.ErrInvalidAmount
	}

	ok, err := s.tokens.Exists(ctx, req.TokenID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, model.ErrUnknownToken
	}

	balance, err := s.ledger.BalanceOf(ctx, depositorID)
	if err != nil {
		return nil, err
	}
	if balance < req.Amount {
		return nil, model.ErrPaymentFailed
	}

	quarter, err := s.revenue.Deposit(ctx, req.TokenID, depositorID, s.pool, req.Amount)
	if err != nil {
		return nil, err
	}

	s.events.Emit(ctx, model.EventRevenueDeposited, map[string]any{
		"token_id": req.TokenID,
		"amount":   req.Amount,
		"quarter":  quarter.Index,
	})
	return quarter, nil
}

// FinalizeQuarter locks the open quarter once its end has passed, pays
// the platform cut and opens the next window. Callable by anyone.
func (s *RevenueService) FinalizeQuarter(ctx context.Context) (*model.Quarter, error) {
	cfg, err := s.config.Get(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	current, err := s.revenue.CurrentQuarter(ctx)
	if err != nil {
		return nil, err
	}
	if now.Before(current.EndTime) {
		return nil, model.ErrPeriodNotEnded
	}

	quarter, err := s.revenue.Finalize(ctx, cfg.RevenueFeeBps, s.pool, cfg.TreasuryID, QuarterLength, now)
	if err != nil {
		return nil, err
	}

	s.events.Emit(ctx, model.EventQuarterFinalized, quarter)
	return quarter, nil
}

// Claim pays the current token owner their share of a finalized
// quarter. Exactly once per (token, quarter); bounded by the claim
// window measured from finalize time.
func (s *RevenueService) Claim(ctx context.Context, claimantID string, req *model.ClaimRequest) (*model.Claim, error) {
	cfg, err := s.config.Get(ctx)
	if err != nil {
		return nil, err
	}
	if cfg.Paused {
		return nil, model.ErrSystemPaused
	}

	quarter, err := s.revenue.QuarterByIndex(ctx, req.QuarterIndex)
	if err != nil {
		return nil, err
	}
	if !quarter.Finalized {
		return nil, model.ErrNotFinalized
	}

	token, err := s.tokens.Get(ctx, req.TokenID)
	if err != nil {
		return nil, model.ErrUnknownToken
	}
	if token.OwnerID != claimantID {
		return nil, model.ErrNotOwner
	}

	claim, err := s.revenue.Claim(ctx, req.TokenID, req.QuarterIndex, claimantID, s.pool, cfg.ClaimWindow, s.clock())
	if err != nil {
		return nil, err
	}

	s.events.Emit(ctx, model.EventDistributionClaimed, claim)
	return claim, nil
}

// CalculateShare projects the payout for (token, quarter) without
// claiming. Usable before the quarter finalizes, for display.
func (s *RevenueService) CalculateShare(ctx context.Context, tokenID int64, quarterIndex int) (*model.ShareProjection, error) {
	cfg, err := s.config.Get(ctx)
	if err != nil {
		return nil, err
	}

	quarter, err := s.revenue.QuarterByIndex(ctx, quarterIndex)
	if err != nil {
		return nil, err
	}

	deposit, err := s.revenue.DepositFor(ctx, quarterIndex, tokenID)
	if err != nil {
		return nil, err
	}

	feeBps := cfg.RevenueFeeBps
	if quarter.Finalized {
		feeBps = quarter.FeeBps
	}
	fee := deposit.Amount * int64(feeBps) / 10000
	proj := &model.ShareProjection{
		TokenID:      tokenID,
		QuarterIndex: quarterIndex,
		Deposited:    deposit.Amount,
		Fee:          fee,
		Share:        deposit.Amount - fee,
	}

	claim, err := s.revenue.ClaimFor(ctx, quarterIndex, tokenID)
	if err == nil && claim != nil {
		proj.Claimed = true
		proj.Reason = "already claimed"
		return proj, nil
	}

	switch {
	case !quarter.Finalized:
		proj.Reason = "quarter not finalized"
	case deposit.Swept:
		proj.Reason = "swept to treasury"
	case quarter.FinalizedAt != nil && !s.clock().Before(quarter.FinalizedAt.Add(cfg.ClaimWindow)):
		proj.Reason = "claim window expired"
	case proj.Share <= 0:
		proj.Reason = "nothing to claim"
	default:
		proj.Claimable = true
	}
	return proj, nil
}

func (s *RevenueService) CurrentQuarter(ctx context.Context) (*model.Quarter, error) {
	return s.revenue.CurrentQuarter(ctx)
}

func (s *RevenueService) QuarterByIndex(ctx context.Context, index int) (*model.Quarter, error) {
	return s.revenue.QuarterByIndex(ctx, index)
}

// TokenSummary backs the per-token revenue dashboard: lifetime revenue,
// currently claimable total and the most recent payout.
func (s *RevenueService) TokenSummary(ctx context.Context, tokenID int64) (*model.TokenRevenueSummary, error) {
	cfg, err := s.config.Get(ctx)
	if err != nil {
		return nil, err
	}

	ok, err := s.tokens.Exists(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, model.ErrUnknownToken
	}

	return s.revenue.TokenSummary(ctx, tokenID, cfg.ClaimWindow, s.clock())
}

// SweepUnclaimed moves a finalized quarter's expired unclaimed deposits
// to the treasury. Only reachable through the governor command set and
// only under the sweep policy.
func (s *RevenueService) SweepUnclaimed(ctx context.Context, quarterIndex int) (int64, error) {
	cfg, err := s.config.Get(ctx)
	if err != nil {
		return 0, err
	}
	if cfg.UnclaimedPolicy != model.UnclaimedSweep {
		return 0, model.ErrInvalidCommand
	}

	swept, err := s.revenue.SweepUnclaimed(ctx, quarterIndex, s.pool, cfg.TreasuryID, cfg.ClaimWindow, s.clock())
	if err != nil {
		return 0, err
	}

	s.events.Emit(ctx, model.EventUnclaimedSwept, map[string]any{
		"quarter": quarterIndex,
		"amount":  swept,
	})
	return swept, nil
}
