package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/dubbletrubble/TsukiNijiLabsA/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AdminRepository struct {
	pool *pgxpool.Pool
}

func NewAdminRepository(pool *pgxpool.Pool) *AdminRepository {
	return &AdminRepository{pool: pool}
}

func (r *AdminRepository) IsAdmin(ctx context.Context, accountID string) (bool, error) {
	var isAdmin bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM admins WHERE account_id = $1)
	`, accountID).Scan(&isAdmin)
	return isAdmin, err
}

func (r *AdminRepository) ListAdmins(ctx context.Context) ([]model.Admin, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT a.account_id, acc.username, a.added_at
		FROM admins a
		JOIN accounts acc ON acc.id = a.account_id
		ORDER BY a.added_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var admins []model.Admin
	for rows.Next() {
		var a model.Admin
		if err := rows.Scan(&a.AccountID, &a.Username, &a.AddedAt); err != nil {
			return nil, err
		}
		admins = append(admins, a)
	}
	if admins == nil {
		admins = []model.Admin{}
	}
	return admins, nil
}

func (r *AdminRepository) AddAdmin(ctx context.Context, accountID string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO admins (account_id) VALUES ($1)
	`, accountID)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return model.ErrAlreadyExists
		}
		if strings.Contains(err.Error(), "foreign key") {
			return model.ErrAccountNotFound
		}
		return err
	}
	return nil
}

func (r *AdminRepository) RemoveAdmin(ctx context.Context, accountID string, requiredConfirmations int) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// Serialize removals against each other so two concurrent removes
	// cannot both pass the floor check.
	rows, err := tx.Query(ctx, `SELECT account_id FROM admins FOR UPDATE`)
	if err != nil {
		return err
	}
	count := 0
	member := false
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		if id == accountID {
			member = true
		}
		count++
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if !member {
		return model.ErrAccountNotFound
	}
	if count-1 < requiredConfirmations {
		return model.ErrTooFewAdmins
	}

	if _, err := tx.Exec(ctx, `DELETE FROM admins WHERE account_id = $1`, accountID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *AdminRepository) AdminCount(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM admins`).Scan(&count)
	return count, err
}

func (r *AdminRepository) SubmitTx(ctx context.Context, mtx *model.MultisigTx) (*model.MultisigTx, error) {
	payload, err := json.Marshal(mtx.Command)
	if err != nil {
		return nil, err
	}
	err = r.pool.QueryRow(ctx, `
		INSERT INTO admin_txs (command, submitted_by)
		VALUES ($1, $2)
		RETURNING id, created_at
	`, payload, mtx.SubmittedBy).Scan(&mtx.ID, &mtx.CreatedAt)
	if err != nil {
		return nil, err
	}
	mtx.Confirmations = nil
	mtx.Executed = false
	return mtx, nil
}

func (r *AdminRepository) GetTx(ctx context.Context, id int64) (*model.MultisigTx, error) {
	mtx, err := r.getTx(ctx, r.pool, id, false)
	if err != nil {
		return nil, err
	}
	mtx.Confirmations, err = r.confirmations(ctx, id)
	if err != nil {
		return nil, err
	}
	return mtx, nil
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *AdminRepository) getTx(ctx context.Context, q queryRower, id int64, forUpdate bool) (*model.MultisigTx, error) {
	query := `
		SELECT id, command, submitted_by, executed, executed_at, created_at
		FROM admin_txs WHERE id = $1
	`
	if forUpdate {
		query += " FOR UPDATE"
	}

	mtx := &model.MultisigTx{}
	var payload []byte
	err := q.QueryRow(ctx, query, id).Scan(
		&mtx.ID, &payload, &mtx.SubmittedBy, &mtx.Executed, &mtx.ExecutedAt, &mtx.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrInvalidCommand
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payload, &mtx.Command); err != nil {
		return nil, err
	}
	return mtx, nil
}

func (r *AdminRepository) confirmations(ctx context.Context, txID int64) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT admin_id FROM admin_tx_confirmations
		WHERE tx_id = $1 ORDER BY confirmed_at
	`, txID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *AdminRepository) ListTxs(ctx context.Context, limit, offset int) ([]model.MultisigTx, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT t.id, t.command, t.submitted_by, t.executed, t.executed_at, t.created_at,
		       COALESCE(array_agg(c.admin_id ORDER BY c.confirmed_at)
		                FILTER (WHERE c.admin_id IS NOT NULL), '{}')
		FROM admin_txs t
		LEFT JOIN admin_tx_confirmations c ON c.tx_id = t.id
		GROUP BY t.id
		ORDER BY t.id DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []model.MultisigTx
	for rows.Next() {
		var mtx model.MultisigTx
		var payload []byte
		if err := rows.Scan(
			&mtx.ID, &payload, &mtx.SubmittedBy, &mtx.Executed, &mtx.ExecutedAt, &mtx.CreatedAt,
			&mtx.Confirmations,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(payload, &mtx.Command); err != nil {
			return nil, err
		}
		txs = append(txs, mtx)
	}
	if txs == nil {
		txs = []model.MultisigTx{}
	}
	return txs, nil
}

func (r *AdminRepository) Confirm(ctx context.Context, txID int64, adminID string) (*model.MultisigTx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	mtx, err := r.getTx(ctx, tx, txID, true)
	if err != nil {
		return nil, err
	}
	if mtx.Executed {
		return nil, model.ErrAlreadyExecuted
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO admin_tx_confirmations (tx_id, admin_id) VALUES ($1, $2)
	`, txID, adminID)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return nil, model.ErrAlreadyConfirmed
		}
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT admin_id FROM admin_tx_confirmations
		WHERE tx_id = $1 ORDER BY confirmed_at
	`, txID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		mtx.Confirmations = append(mtx.Confirmations, id)
	}
	rows.Close()

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return mtx, nil
}

func (r *AdminRepository) MarkExecuted(ctx context.Context, txID int64, now time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE admin_txs SET executed = TRUE, executed_at = $2
		WHERE id = $1 AND executed = FALSE
	`, txID, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrAlreadyExecuted
	}
	return nil
}
