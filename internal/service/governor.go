package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dubbletrubble/TsukiNijiLabsA/internal/model"
)

// GovernorService gates privileged operations behind an N-of-M admin
// quorum. The command set is closed: every multisig transaction carries
// a tagged command, never an arbitrary call. The operator key holder
// ("owner") has a fast path for emergencies and admin-set changes; it
// is not part of the quorum.
type GovernorService struct {
	admins   AdminStore
	accounts AccountStore
	config   ConfigStore
	tokens   TokenStore
	revenue  *RevenueService
	events   *EventService
	clock    func() time.Time
}

func NewGovernorService(admins AdminStore, accounts AccountStore, config ConfigStore, tokens TokenStore, revenue *RevenueService, events *EventService) *GovernorService {
	return &GovernorService{
		admins:   admins,
		accounts: accounts,
		config:   config,
		tokens:   tokens,
		revenue:  revenue,
		events:   events,
		clock:    time.Now,
	}
}

// SetClock overrides the time source. Tests only.
func (s *GovernorService) SetClock(clock func() time.Time) {
	s.clock = clock
}

func (s *GovernorService) requireAdmin(ctx context.Context, accountID string) error {
	ok, err := s.admins.IsAdmin(ctx, accountID)
	if err != nil {
		return err
	}
	if !ok {
		return model.ErrNotAdmin
	}
	return nil
}

// Submit stores a new multisig transaction with zero confirmations.
// The submitter does not implicitly confirm.
func (s *GovernorService) Submit(ctx context.Context, adminID string, cmd model.Command) (*model.MultisigTx, error) {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	if err := s.validateCommand(ctx, cmd); err != nil {
		return nil, err
	}

	tx, err := s.admins.SubmitTx(ctx, &model.MultisigTx{
		Command:     cmd,
		SubmittedBy: adminID,
		CreatedAt:   s.clock(),
	})
	if err != nil {
		return nil, err
	}

	s.events.Emit(ctx, model.EventTransactionSubmitted, tx)
	return tx, nil
}

// Confirm records one admin's confirmation. When the quorum is reached
// the command executes in this same call. A failed execution is
// returned to the caller but the confirmation stays recorded and the
// transaction remains executable: a confirmed admin re-confirming an
// unexecuted, quorum-satisfied transaction retries the dispatch.
func (s *GovernorService) Confirm(ctx context.Context, adminID string, txID int64) (*model.MultisigTx, error) {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}

	cfg, err := s.config.Get(ctx)
	if err != nil {
		return nil, err
	}

	tx, err := s.admins.Confirm(ctx, txID, adminID)
	switch {
	case err == nil:
		s.events.Emit(ctx, model.EventTransactionConfirmed, map[string]any{
			"tx_id":         tx.ID,
			"admin_id":      adminID,
			"confirmations": len(tx.Confirmations),
		})
	case errors.Is(err, model.ErrAlreadyConfirmed):
		tx, err = s.admins.GetTx(ctx, txID)
		if err != nil {
			return nil, err
		}
		if tx.Executed {
			return nil, model.ErrAlreadyExecuted
		}
		if len(tx.Confirmations) < cfg.RequiredConfirmations {
			return nil, model.ErrAlreadyConfirmed
		}
	default:
		return nil, err
	}

	if tx.Executed || len(tx.Confirmations) < cfg.RequiredConfirmations {
		return tx, nil
	}

	if err := s.execute(ctx, tx.Command); err != nil {
		return nil, fmt.Errorf("execute tx %d: %w", tx.ID, err)
	}

	now := s.clock()
	if err := s.admins.MarkExecuted(ctx, tx.ID, now); err != nil {
		return nil, err
	}
	tx.Executed = true
	tx.ExecutedAt = &now

	s.events.Emit(ctx, model.EventTransactionExecuted, tx)
	return tx, nil
}

func (s *GovernorService) GetTx(ctx context.Context, txID int64) (*model.MultisigTx, error) {
	return s.admins.GetTx(ctx, txID)
}

func (s *GovernorService) ListTxs(ctx context.Context, limit, offset int) ([]model.MultisigTx, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.admins.ListTxs(ctx, limit, offset)
}

func (s *GovernorService) validateCommand(ctx context.Context, cmd model.Command) error {
	switch cmd.Kind {
	case model.CmdPause, model.CmdUnpause:
		return nil
	case model.CmdSetMarketFee, model.CmdSetRevenueFee:
		if cmd.Bps == nil || *cmd.Bps < 0 || *cmd.Bps > model.MaxFeeBps {
			return model.ErrInvalidFee
		}
	case model.CmdSetMinBidIncrement:
		if cmd.Amount == nil || *cmd.Amount <= 0 {
			return model.ErrInvalidCommand
		}
	case model.CmdSetMinAuctionDuration, model.CmdSetClaimWindow:
		if cmd.Seconds == nil || *cmd.Seconds <= 0 {
			return model.ErrInvalidCommand
		}
	case model.CmdSetTreasury:
		if cmd.AccountID == "" {
			return model.ErrInvalidCommand
		}
		if _, err := s.accounts.GetByID(ctx, cmd.AccountID); err != nil {
			return model.ErrAccountNotFound
		}
	case model.CmdSetRequiredConfirmations:
		if cmd.Count == nil || *cmd.Count < 1 {
			return model.ErrInvalidCommand
		}
		n, err := s.admins.AdminCount(ctx)
		if err != nil {
			return err
		}
		if *cmd.Count > n {
			return model.ErrTooFewAdmins
		}
	case model.CmdMintToken:
		if cmd.TokenID <= 0 || cmd.OwnerID == "" {
			return model.ErrInvalidCommand
		}
		if _, err := s.accounts.GetByID(ctx, cmd.OwnerID); err != nil {
			return model.ErrAccountNotFound
		}
	case model.CmdUpdateCompanyData:
		if cmd.TokenID <= 0 {
			return model.ErrInvalidCommand
		}
	case model.CmdSweepUnclaimed:
		if cmd.QuarterIndex < 0 {
			return model.ErrInvalidCommand
		}
	default:
		return model.ErrInvalidCommand
	}
	return nil
}

func (s *GovernorService) execute(ctx context.Context, cmd model.Command) error {
	switch cmd.Kind {
	case model.CmdPause:
		return s.setPaused(ctx, true)
	case model.CmdUnpause:
		return s.setPaused(ctx, false)
	case model.CmdSetMarketFee:
		return s.updateConfig(ctx, func(cfg *model.PlatformConfig) { cfg.MarketFeeBps = *cmd.Bps })
	case model.CmdSetRevenueFee:
		return s.updateConfig(ctx, func(cfg *model.PlatformConfig) { cfg.RevenueFeeBps = *cmd.Bps })
	case model.CmdSetMinBidIncrement:
		return s.updateConfig(ctx, func(cfg *model.PlatformConfig) { cfg.MinBidIncrement = *cmd.Amount })
	case model.CmdSetMinAuctionDuration:
		return s.updateConfig(ctx, func(cfg *model.PlatformConfig) {
			cfg.MinAuctionDuration = time.Duration(*cmd.Seconds) * time.Second
		})
	case model.CmdSetClaimWindow:
		return s.updateConfig(ctx, func(cfg *model.PlatformConfig) {
			cfg.ClaimWindow = time.Duration(*cmd.Seconds) * time.Second
		})
	case model.CmdSetTreasury:
		return s.updateConfig(ctx, func(cfg *model.PlatformConfig) { cfg.TreasuryID = cmd.AccountID })
	case model.CmdSetRequiredConfirmations:
		n, err := s.admins.AdminCount(ctx)
		if err != nil {
			return err
		}
		if *cmd.Count > n {
			return model.ErrTooFewAdmins
		}
		return s.updateConfig(ctx, func(cfg *model.PlatformConfig) { cfg.RequiredConfirmations = *cmd.Count })
	case model.CmdMintToken:
		now := s.clock()
		err := s.tokens.Mint(ctx, &model.CompanyToken{
			ID:          cmd.TokenID,
			CompanyName: cmd.CompanyName,
			MetadataURI: cmd.MetadataURI,
			OwnerID:     cmd.OwnerID,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		if err != nil {
			return err
		}
		s.events.Emit(ctx, model.EventTokenMinted, map[string]any{
			"token_id":     cmd.TokenID,
			"owner_id":     cmd.OwnerID,
			"company_name": cmd.CompanyName,
		})
		return nil
	case model.CmdUpdateCompanyData:
		if err := s.tokens.UpdateCompanyData(ctx, cmd.TokenID, cmd.Revenue, cmd.Profit); err != nil {
			return err
		}
		s.events.Emit(ctx, model.EventCompanyDataUpdated, map[string]any{"token_id": cmd.TokenID})
		return nil
	case model.CmdSweepUnclaimed:
		_, err := s.revenue.SweepUnclaimed(ctx, cmd.QuarterIndex)
		return err
	default:
		return model.ErrInvalidCommand
	}
}

func (s *GovernorService) updateConfig(ctx context.Context, mutate func(*model.PlatformConfig)) error {
	cfg, err := s.config.Get(ctx)
	if err != nil {
		return err
	}
	mutate(cfg)
	if err := s.config.Save(ctx, cfg); err != nil {
		return err
	}
	s.events.Emit(ctx, model.EventConfigUpdated, map[string]any{"version": cfg.Version})
	return nil
}

func (s *GovernorService) setPaused(ctx context.Context, paused bool) error {
	cfg, err := s.config.Get(ctx)
	if err != nil {
		return err
	}
	if cfg.Paused == paused {
		return nil
	}
	cfg.Paused = paused
	if err := s.config.Save(ctx, cfg); err != nil {
		return err
	}
	eventType := model.EventPaused
	if !paused {
		eventType = model.EventUnpaused
	}
	s.events.Emit(ctx, eventType, nil)
	return nil
}

// Pause and Unpause are the operator fast path for emergency halts,
// distinct from the multisig path.
func (s *GovernorService) Pause(ctx context.Context) error {
	return s.setPaused(ctx, true)
}

func (s *GovernorService) Unpause(ctx context.Context) error {
	return s.setPaused(ctx, false)
}

// AddAdmin is operator-only: the operator key is the single designated
// super-admin, not part of the quorum.
func (s *GovernorService) AddAdmin(ctx context.Context, accountID string) (*model.Admin, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, model.ErrAccountNotFound
	}

	if err := s.admins.AddAdmin(ctx, accountID); err != nil {
		return nil, err
	}

	s.events.Emit(ctx, model.EventAdminAdded, map[string]any{"account_id": accountID})
	return &model.Admin{AccountID: accountID, Username: account.Username, AddedAt: s.clock()}, nil
}

// RemoveAdmin refuses removals that would leave fewer admins than the
// confirmation quorum requires.
func (s *GovernorService) RemoveAdmin(ctx context.Context, accountID string) error {
	cfg, err := s.config.Get(ctx)
	if err != nil {
		return err
	}

	if err := s.admins.RemoveAdmin(ctx, accountID, cfg.RequiredConfirmations); err != nil {
		return err
	}

	s.events.Emit(ctx, model.EventAdminRemoved, map[string]any{"account_id": accountID})
	return nil
}

func (s *GovernorService) ListAdmins(ctx context.Context) ([]model.Admin, error) {
	return s.admins.ListAdmins(ctx)
}

func (s *GovernorService) IsAdmin(ctx context.Context, accountID string) (bool, error) {
	return s.admins.IsAdmin(ctx, accountID)
}

func (s *GovernorService) Config(ctx context.Context) (*model.PlatformConfig, error) {
	return s.config.Get(ctx)
}
