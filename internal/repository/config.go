package repository

import (
	"context"
	"time"

	"github.com/dubbletrubble/TsukiNijiLabsA/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ConfigRepository persists the single platform configuration row.
// Durations are stored as seconds.
type ConfigRepository struct {
	pool *pgxpool.Pool
}

func NewConfigRepository(pool *pgxpool.Pool) *ConfigRepository {
	return &ConfigRepository{pool: pool}
}

// Init writes the row only when none exists, so operator defaults never
// clobber values the governor has already changed.
func (r *ConfigRepository) Init(ctx context.Context, cfg *model.PlatformConfig) error {
	if err := validateConfig(cfg); err != nil {
		return err
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO platform_config (
			id, version, market_fee_bps, revenue_fee_bps, min_bid_increment,
			min_auction_duration_secs, claim_window_secs, required_confirmations,
			paused, unclaimed_policy, treasury_id
		) VALUES (1, 1, $1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`,
		cfg.MarketFeeBps, cfg.RevenueFeeBps, cfg.MinBidIncrement,
		int64(cfg.MinAuctionDuration/time.Second), int64(cfg.ClaimWindow/time.Second),
		cfg.RequiredConfirmations, cfg.Paused, cfg.UnclaimedPolicy, cfg.TreasuryID,
	)
	return err
}

func (r *ConfigRepository) Get(ctx context.Context) (*model.PlatformConfig, error) {
	cfg := &model.PlatformConfig{}
	var auctionSecs, windowSecs int64
	err := r.pool.QueryRow(ctx, `
		SELECT version, market_fee_bps, revenue_fee_bps, min_bid_increment,
		       min_auction_duration_secs, claim_window_secs, required_confirmations,
		       paused, unclaimed_policy, treasury_id, updated_at
		FROM platform_config WHERE id = 1
	`).Scan(
		&cfg.Version, &cfg.MarketFeeBps, &cfg.RevenueFeeBps, &cfg.MinBidIncrement,
		&auctionSecs, &windowSecs, &cfg.RequiredConfirmations,
		&cfg.Paused, &cfg.UnclaimedPolicy, &cfg.TreasuryID, &cfg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	cfg.MinAuctionDuration = time.Duration(auctionSecs) * time.Second
	cfg.ClaimWindow = time.Duration(windowSecs) * time.Second
	return cfg, nil
}

func (r *ConfigRepository) Save(ctx context.Context, cfg *model.PlatformConfig) error {
	if err := validateConfig(cfg); err != nil {
		return err
	}
	err := r.pool.QueryRow(ctx, `
		UPDATE platform_config SET
			version = version + 1,
			market_fee_bps = $1, revenue_fee_bps = $2, min_bid_increment = $3,
			min_auction_duration_secs = $4, claim_window_secs = $5,
			required_confirmations = $6, paused = $7, unclaimed_policy = $8,
			treasury_id = $9, updated_at = NOW()
		WHERE id = 1
		RETURNING version
	`,
		cfg.MarketFeeBps, cfg.RevenueFeeBps, cfg.MinBidIncrement,
		int64(cfg.MinAuctionDuration/time.Second), int64(cfg.ClaimWindow/time.Second),
		cfg.RequiredConfirmations, cfg.Paused, cfg.UnclaimedPolicy, cfg.TreasuryID,
	).Scan(&cfg.Version)
	return err
}

func validateConfig(cfg *model.PlatformConfig) error {
	if cfg.MarketFeeBps < 0 || cfg.MarketFeeBps > model.MaxFeeBps ||
		cfg.RevenueFeeBps < 0 || cfg.RevenueFeeBps > model.MaxFeeBps {
		return model.ErrInvalidFee
	}
	if cfg.RequiredConfirmations < 1 {
		return model.ErrInvalidCommand
	}
	return nil
}
