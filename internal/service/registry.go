package service

import (
	"context"

	"github.com/dubbletrubble/TsukiNijiLabsA/internal/model"
)

// RegistryService serves read-only views of the ownership registry and
// the value ledger. All mutation goes through market settlement or
// governor commands.
type RegistryService struct {
	tokens   TokenStore
	ledger   LedgerStore
	admins   AdminStore
	accounts AccountStore
}

func NewRegistryService(tokens TokenStore, ledger LedgerStore, admins AdminStore, accounts AccountStore) *RegistryService {
	return &RegistryService{tokens: tokens, ledger: ledger, admins: admins, accounts: accounts}
}

func (s *RegistryService) GetToken(ctx context.Context, tokenID int64) (*model.CompanyToken, error) {
	token, err := s.tokens.Get(ctx, tokenID)
	if err != nil {
		return nil, model.ErrUnknownToken
	}
	return token, nil
}

func (s *RegistryService) ListTokens(ctx context.Context) ([]model.CompanyToken, error) {
	return s.tokens.List(ctx)
}

func (s *RegistryService) OwnerOf(ctx context.Context, tokenID int64) (string, error) {
	token, err := s.tokens.Get(ctx, tokenID)
	if err != nil {
		return "", model.ErrUnknownToken
	}
	return token.OwnerID, nil
}

func (s *RegistryService) BalanceOf(ctx context.Context, accountID string) (int64, error) {
	return s.ledger.BalanceOf(ctx, accountID)
}

func (s *RegistryService) Profile(ctx context.Context, accountID string) (*model.AccountProfile, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	isAdmin, err := s.admins.IsAdmin(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	return &model.AccountProfile{
		ID:       account.ID,
		Username: account.Username,
		Balance:  account.Balance,
		IsAdmin:  isAdmin,
	}, nil
}
