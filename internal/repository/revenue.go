package repository

import (
	"context"
	"errors"
	"time"

	"github.com/dubbletrubble/TsukiNijiLabsA/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RevenueRepository struct {
	pool *pgxpool.Pool
}

func NewRevenueRepository(pool *pgxpool.Pool) *RevenueRepository {
	return &RevenueRepository{pool: pool}
}

const quarterColumns = `quarter_index, start_time, end_time, total_revenue,
       finalized, finalized_at, fee_bps, platform_fee`

func scanQuarter(row pgx.Row, q *model.Quarter) error {
	return row.Scan(
		&q.Index, &q.StartTime, &q.EndTime, &q.TotalRevenue,
		&q.Finalized, &q.FinalizedAt, &q.FeeBps, &q.PlatformFee,
	)
}

func (r *RevenueRepository) EnsureOpenQuarter(ctx context.Context, quarterLength time.Duration, now time.Time) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO quarters (quarter_index, start_time, end_time)
		SELECT 0, $1, $2
		WHERE NOT EXISTS (SELECT 1 FROM quarters)
	`, now, now.Add(quarterLength))
	return err
}

func (r *RevenueRepository) CurrentQuarter(ctx context.Context) (*model.Quarter, error) {
	q := &model.Quarter{}
	err := scanQuarter(r.pool.QueryRow(ctx, `
		SELECT `+quarterColumns+` FROM quarters
		WHERE finalized = FALSE
		ORDER BY quarter_index DESC LIMIT 1
	`), q)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrNotFinalized
	}
	if err != nil {
		return nil, err
	}
	return q, nil
}

func (r *RevenueRepository) QuarterByIndex(ctx context.Context, index int) (*model.Quarter, error) {
	q := &model.Quarter{}
	err := scanQuarter(r.pool.QueryRow(ctx, `
		SELECT `+quarterColumns+` FROM quarters WHERE quarter_index = $1
	`, index), q)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrNotFinalized
	}
	if err != nil {
		return nil, err
	}
	return q, nil
}

func (r *RevenueRepository) Deposit(ctx context.Context, tokenID int64, depositorID, poolID string, amount int64) (*model.Quarter, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tokens WHERE id = $1)`, tokenID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, model.ErrUnknownToken
	}

	q := &model.Quarter{}
	err = scanQuarter(tx.QueryRow(ctx, `
		SELECT `+quarterColumns+` FROM quarters
		WHERE finalized = FALSE
		ORDER BY quarter_index DESC LIMIT 1
		FOR UPDATE
	`), q)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrAlreadyFinalized
	}
	if err != nil {
		return nil, err
	}

	if err := debit(ctx, tx, depositorID, amount); err != nil {
		return nil, err
	}
	if err := credit(ctx, tx, poolID, amount); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE quarters SET total_revenue = total_revenue + $2 WHERE quarter_index = $1
	`, q.Index, amount)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO quarter_deposits (quarter_index, token_id, amount)
		VALUES ($1, $2, $3)
		ON CONFLICT (quarter_index, token_id)
		DO UPDATE SET amount = quarter_deposits.amount + EXCLUDED.amount
	`, q.Index, tokenID, amount)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	q.TotalRevenue += amount
	return q, nil
}

func (r *RevenueRepository) Finalize(ctx context.Context, feeBps int, poolID, treasuryID string, quarterLength time.Duration, now time.Time) (*model.Quarter, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	q := &model.Quarter{}
	err = scanQuarter(tx.QueryRow(ctx, `
		SELECT `+quarterColumns+` FROM quarters
		WHERE finalized = FALSE
		ORDER BY quarter_index DESC LIMIT 1
		FOR UPDATE
	`), q)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrAlreadyFinalized
	}
	if err != nil {
		return nil, err
	}
	if now.Before(q.EndTime) {
		return nil, model.ErrPeriodNotEnded
	}

	fee := q.TotalRevenue * int64(feeBps) / 10000
	if fee > 0 {
		if err := debit(ctx, tx, poolID, fee); err != nil {
			return nil, err
		}
		if err := credit(ctx, tx, treasuryID, fee); err != nil {
			return nil, err
		}
	}

	_, err = tx.Exec(ctx, `
		UPDATE quarters
		SET finalized = TRUE, finalized_at = $2, fee_bps = $3, platform_fee = $4
		WHERE quarter_index = $1
	`, q.Index, now, feeBps, fee)
	if err != nil {
		return nil, err
	}

	// Open the next window back to back with the one just closed.
	_, err = tx.Exec(ctx, `
		INSERT INTO quarters (quarter_index, start_time, end_time)
		VALUES ($1, $2, $3)
	`, q.Index+1, q.EndTime, q.EndTime.Add(quarterLength))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	q.Finalized = true
	finalizedAt := now
	q.FinalizedAt = &finalizedAt
	q.FeeBps = feeBps
	q.PlatformFee = fee
	return q, nil
}

func (r *RevenueRepository) Claim(ctx context.Context, tokenID int64, quarterIndex int, claimantID, poolID string, claimWindow time.Duration, now time.Time) (*model.Claim, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	q := &model.Quarter{}
	err = scanQuarter(tx.QueryRow(ctx, `
		SELECT `+quarterColumns+` FROM quarters WHERE quarter_index = $1 FOR UPDATE
	`, quarterIndex), q)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrNotFinalized
	}
	if err != nil {
		return nil, err
	}
	if !q.Finalized || q.FinalizedAt == nil {
		return nil, model.ErrNotFinalized
	}

	// Ownership at claim time, not deposit time, decides the recipient.
	var ownerID string
	err = tx.QueryRow(ctx, `SELECT owner_id FROM tokens WHERE id = $1`, tokenID).Scan(&ownerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrUnknownToken
	}
	if err != nil {
		return nil, err
	}
	if ownerID != claimantID {
		return nil, model.ErrNotOwner
	}

	if !now.Before(q.FinalizedAt.Add(claimWindow)) {
		return nil, model.ErrClaimWindowExpired
	}

	var claimed bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM claims WHERE quarter_index = $1 AND token_id = $2)
	`, quarterIndex, tokenID).Scan(&claimed)
	if err != nil {
		return nil, err
	}
	if claimed {
		return nil, model.ErrAlreadyClaimed
	}

	var deposited int64
	var swept bool
	err = tx.QueryRow(ctx, `
		SELECT amount, swept FROM quarter_deposits
		WHERE quarter_index = $1 AND token_id = $2
		FOR UPDATE
	`, quarterIndex, tokenID).Scan(&deposited, &swept)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && (deposited <= 0 || swept)) {
		return nil, model.ErrNothingToWithdraw
	}
	if err != nil {
		return nil, err
	}

	share := deposited - deposited*int64(q.FeeBps)/10000
	if err := debit(ctx, tx, poolID, share); err != nil {
		return nil, err
	}
	if err := credit(ctx, tx, claimantID, share); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO claims (quarter_index, token_id, account_id, amount, claimed_at)
		VALUES ($1, $2, $3, $4, $5)
	`, quarterIndex, tokenID, claimantID, share, now)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return &model.Claim{
		QuarterIndex: quarterIndex,
		TokenID:      tokenID,
		AccountID:    claimantID,
		Amount:       share,
		ClaimedAt:    now,
	}, nil
}

func (r *RevenueRepository) DepositFor(ctx context.Context, quarterIndex int, tokenID int64) (*model.QuarterDeposit, error) {
	d := &model.QuarterDeposit{QuarterIndex: quarterIndex, TokenID: tokenID}
	err := r.pool.QueryRow(ctx, `
		SELECT amount, swept FROM quarter_deposits
		WHERE quarter_index = $1 AND token_id = $2
	`, quarterIndex, tokenID).Scan(&d.Amount, &d.Swept)
	if errors.Is(err, pgx.ErrNoRows) {
		return d, nil
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *RevenueRepository) ClaimFor(ctx context.Context, quarterIndex int, tokenID int64) (*model.Claim, error) {
	cl := &model.Claim{}
	err := r.pool.QueryRow(ctx, `
		SELECT quarter_index, token_id, account_id, amount, claimed_at
		FROM claims WHERE quarter_index = $1 AND token_id = $2
	`, quarterIndex, tokenID).Scan(&cl.QuarterIndex, &cl.TokenID, &cl.AccountID, &cl.Amount, &cl.ClaimedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return cl, nil
}

func (r *RevenueRepository) TokenSummary(ctx context.Context, tokenID int64, claimWindow time.Duration, now time.Time) (*model.TokenRevenueSummary, error) {
	sum := &model.TokenRevenueSummary{TokenID: tokenID}

	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM quarter_deposits WHERE token_id = $1
	`, tokenID).Scan(&sum.TotalRevenue)
	if err != nil {
		return nil, err
	}

	// Finalized, unclaimed, unswept deposits still inside their window.
	err = r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(d.amount - d.amount * q.fee_bps / 10000), 0)
		FROM quarter_deposits d
		JOIN quarters q ON q.quarter_index = d.quarter_index
		WHERE d.token_id = $1
		  AND q.finalized = TRUE
		  AND d.swept = FALSE
		  AND q.finalized_at + $2 > $3
		  AND NOT EXISTS (
		      SELECT 1 FROM claims c
		      WHERE c.quarter_index = d.quarter_index AND c.token_id = d.token_id
		  )
	`, tokenID, claimWindow, now).Scan(&sum.Available)
	if err != nil {
		return nil, err
	}

	cl := &model.Claim{}
	err = r.pool.QueryRow(ctx, `
		SELECT quarter_index, token_id, account_id, amount, claimed_at
		FROM claims WHERE token_id = $1
		ORDER BY claimed_at DESC LIMIT 1
	`, tokenID).Scan(&cl.QuarterIndex, &cl.TokenID, &cl.AccountID, &cl.Amount, &cl.ClaimedAt)
	if err == nil {
		sum.LastPayout = cl
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	return sum, nil
}

func (r *RevenueRepository) SweepUnclaimed(ctx context.Context, quarterIndex int, poolID, treasuryID string, claimWindow time.Duration, now time.Time) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	q := &model.Quarter{}
	err = scanQuarter(tx.QueryRow(ctx, `
		SELECT `+quarterColumns+` FROM quarters WHERE quarter_index = $1 FOR UPDATE
	`, quarterIndex), q)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, model.ErrNotFinalized
	}
	if err != nil {
		return 0, err
	}
	if !q.Finalized || q.FinalizedAt == nil {
		return 0, model.ErrNotFinalized
	}
	if now.Before(q.FinalizedAt.Add(claimWindow)) {
		return 0, model.ErrPeriodNotEnded
	}

	var swept int64
	err = tx.QueryRow(ctx, `
		WITH marked AS (
			UPDATE quarter_deposits d SET swept = TRUE
			WHERE d.quarter_index = $1
			  AND d.swept = FALSE
			  AND d.amount > 0
			  AND NOT EXISTS (
			      SELECT 1 FROM claims c
			      WHERE c.quarter_index = d.quarter_index AND c.token_id = d.token_id
			  )
			RETURNING d.amount
		)
		SELECT COALESCE(SUM(amount - amount * $2 / 10000), 0) FROM marked
	`, quarterIndex, q.FeeBps).Scan(&swept)
	if err != nil {
		return 0, err
	}

	if swept > 0 {
		if err := debit(ctx, tx, poolID, swept); err != nil {
			return 0, err
		}
		if err := credit(ctx, tx, treasuryID, swept); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return swept, nil
}
