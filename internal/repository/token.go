package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/dubbletrubble/TsukiNijiLabsA/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TokenRepository struct {
	pool *pgxpool.Pool
}

func NewTokenRepository(pool *pgxpool.Pool) *TokenRepository {
	return &TokenRepository{pool: pool}
}

const tokenColumns = `id, company_name, metadata_uri, owner_id, escrowed,
       monthly_revenue, monthly_profit, created_at, updated_at`

func scanToken(row pgx.Row, t *model.CompanyToken) error {
	return row.Scan(
		&t.ID, &t.CompanyName, &t.MetadataURI, &t.OwnerID, &t.Escrowed,
		&t.MonthlyRevenue, &t.MonthlyProfit, &t.CreatedAt, &t.UpdatedAt,
	)
}

func (r *TokenRepository) Get(ctx context.Context, tokenID int64) (*model.CompanyToken, error) {
	t := &model.CompanyToken{}
	err := scanToken(r.pool.QueryRow(ctx, `
		SELECT `+tokenColumns+` FROM tokens WHERE id = $1
	`, tokenID), t)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrUnknownToken
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *TokenRepository) Exists(ctx context.Context, tokenID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM tokens WHERE id = $1)
	`, tokenID).Scan(&exists)
	return exists, err
}

func (r *TokenRepository) List(ctx context.Context) ([]model.CompanyToken, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+tokenColumns+` FROM tokens ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []model.CompanyToken
	for rows.Next() {
		var t model.CompanyToken
		if err := scanToken(rows, &t); err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	if tokens == nil {
		tokens = []model.CompanyToken{}
	}
	return tokens, nil
}

func (r *TokenRepository) Mint(ctx context.Context, t *model.CompanyToken) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO tokens (id, company_name, metadata_uri, owner_id, monthly_revenue, monthly_profit)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`, t.ID, t.CompanyName, t.MetadataURI, t.OwnerID, t.MonthlyRevenue, t.MonthlyProfit,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil && strings.Contains(err.Error(), "duplicate key") {
		return model.ErrAlreadyExists
	}
	return err
}

func (r *TokenRepository) UpdateCompanyData(ctx context.Context, tokenID, revenue, profit int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE tokens SET monthly_revenue = $2, monthly_profit = $3, updated_at = NOW()
		WHERE id = $1
	`, tokenID, revenue, profit)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUnknownToken
	}
	return nil
}
