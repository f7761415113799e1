package repository

import (
	"context"
	"errors"

	"github.com/dubbletrubble/TsukiNijiLabsA/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AccountRepository struct {
	pool *pgxpool.Pool
}

func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

func (r *AccountRepository) Create(ctx context.Context, username, email, passwordHash string) (*model.Account, error) {
	a := &model.Account{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO accounts (username, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id, balance, created_at, updated_at
	`, username, email, passwordHash).Scan(&a.ID, &a.Balance, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// CreateSystem inserts a platform-owned ledger account. Idempotent so
// bootstrap can run on every start.
func (r *AccountRepository) CreateSystem(ctx context.Context, username string) (*model.Account, error) {
	a := &model.Account{Username: username, IsSystem: true}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO accounts (username, password_hash, is_system)
		VALUES ($1, '', TRUE)
		ON CONFLICT (username) DO UPDATE SET is_system = TRUE
		RETURNING id, balance, created_at, updated_at
	`, username).Scan(&a.ID, &a.Balance, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*model.Account, error) {
	return r.get(ctx, "id = $1", id)
}

func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (*model.Account, error) {
	return r.get(ctx, "LOWER(username) = LOWER($1)", username)
}

func (r *AccountRepository) get(ctx context.Context, where string, arg any) (*model.Account, error) {
	a := &model.Account{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, username, email, password_hash, balance, is_system, is_banned,
		       last_login_at, created_at, updated_at
		FROM accounts WHERE `+where,
		arg,
	).Scan(
		&a.ID, &a.Username, &a.Email, &a.PasswordHash, &a.Balance, &a.IsSystem, &a.IsBanned,
		&a.LastLoginAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *AccountRepository) UpdateLoginTime(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE accounts SET last_login_at = NOW(), updated_at = NOW() WHERE id = $1
	`, id)
	return err
}

// Credit adds externally minted funds to an account. Stands in for the
// fungible-token mint that feeds the platform's internal ledger.
func (r *AccountRepository) Credit(ctx context.Context, id string, amount int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE accounts SET balance = balance + $2, updated_at = NOW() WHERE id = $1
	`, id, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrAccountNotFound
	}
	return nil
}

func (r *AccountRepository) BalanceOf(ctx context.Context, accountID string) (int64, error) {
	var balance int64
	err := r.pool.QueryRow(ctx, `SELECT balance FROM accounts WHERE id = $1`, accountID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, model.ErrAccountNotFound
	}
	return balance, err
}

// Transfer moves amount between two accounts in one transaction. The
// debit is conditional so a concurrent spend can never push the source
// balance below zero.
func (r *AccountRepository) Transfer(ctx context.Context, from, to string, amount int64) error {
	if amount <= 0 {
		return model.ErrInvalidAmount
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var remaining int64
	err = tx.QueryRow(ctx, `
		UPDATE accounts SET balance = balance - $2, updated_at = NOW()
		WHERE id = $1 AND balance >= $2
		RETURNING balance
	`, from, amount).Scan(&remaining)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ErrPaymentFailed
	}
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE accounts SET balance = balance + $2, updated_at = NOW() WHERE id = $1
	`, to, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrAccountNotFound
	}

	return tx.Commit(ctx)
}
