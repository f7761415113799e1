// Package memory implements the service store interfaces with plain
// maps behind one mutex. It backs the unit tests and gives every
// compound operation the same all-or-nothing semantics the pgx
// repositories get from transactions.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dubbletrubble/TsukiNijiLabsA/internal/model"

	"github.com/google/uuid"
)

type session struct {
	accountID string
	expiresAt time.Time
}

// core is the shared state every repository view locks.
type core struct {
	mu sync.Mutex

	accounts  map[string]*model.Account
	usernames map[string]string // username -> account id
	sessions  map[string]session

	tokens map[int64]*model.CompanyToken

	listings      map[int64]*model.Listing
	activeByToken map[int64]int64 // token id -> active listing id
	pending       map[int64]map[string]int64
	nextListingID int64

	quarters []*model.Quarter
	deposits map[int]map[int64]*model.QuarterDeposit
	claims   map[int]map[int64]*model.Claim

	admins map[string]time.Time
	txs    []*model.MultisigTx

	cfg    *model.PlatformConfig
	events []model.PlatformEvent
}

// Store bundles one in-memory repository per concern, all sharing one
// state. Mirrors the wiring shape of the pgx repositories.
type Store struct {
	c *core

	Accounts *AccountRepo
	Sessions *SessionRepo
	Ledger   *LedgerRepo
	Tokens   *TokenRepo
	Market   *MarketRepo
	Revenue  *RevenueRepo
	Admins   *AdminRepo
	Config   *ConfigRepo
	Events   *EventRepo
}

func NewStore() *Store {
	c := &core{
		accounts:      make(map[string]*model.Account),
		usernames:     make(map[string]string),
		sessions:      make(map[string]session),
		tokens:        make(map[int64]*model.CompanyToken),
		listings:      make(map[int64]*model.Listing),
		activeByToken: make(map[int64]int64),
		pending:       make(map[int64]map[string]int64),
		deposits:      make(map[int]map[int64]*model.QuarterDeposit),
		claims:        make(map[int]map[int64]*model.Claim),
		admins:        make(map[string]time.Time),
	}
	return &Store{
		c:        c,
		Accounts: &AccountRepo{c},
		Sessions: &SessionRepo{c},
		Ledger:   &LedgerRepo{c},
		Tokens:   &TokenRepo{c},
		Market:   &MarketRepo{c},
		Revenue:  &RevenueRepo{c},
		Admins:   &AdminRepo{c},
		Config:   &ConfigRepo{c},
		Events:   &EventRepo{c},
	}
}

// transferLocked is the conditional-debit primitive every settlement
// path uses. Caller holds the mutex.
func (c *core) transferLocked(from, to string, amount int64) error {
	if amount < 0 {
		return model.ErrInvalidAmount
	}
	src, ok := c.accounts[from]
	if !ok {
		return model.ErrAccountNotFound
	}
	dst, ok := c.accounts[to]
	if !ok {
		return model.ErrAccountNotFound
	}
	if src.Balance < amount {
		return model.ErrPaymentFailed
	}
	src.Balance -= amount
	dst.Balance += amount
	return nil
}

// --- AccountRepo ---

type AccountRepo struct{ c *core }

func (r *AccountRepo) Create(ctx context.Context, username, email, passwordHash string) (*model.Account, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()

	if _, taken := r.c.usernames[username]; taken {
		return nil, fmt.Errorf("duplicate key: username %q", username)
	}
	now := time.Now().UTC()
	a := &model.Account{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.c.accounts[a.ID] = a
	r.c.usernames[username] = a.ID
	out := *a
	return &out, nil
}

// CreateSystem registers an internal account (treasury, market escrow,
// revenue pool). Bootstrap only; idempotent.
func (r *AccountRepo) CreateSystem(username string) (*model.Account, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()

	if id, ok := r.c.usernames[username]; ok {
		out := *r.c.accounts[id]
		return &out, nil
	}
	now := time.Now().UTC()
	a := &model.Account{
		ID:        uuid.NewString(),
		Username:  username,
		IsSystem:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.c.accounts[a.ID] = a
	r.c.usernames[username] = a.ID
	out := *a
	return &out, nil
}

// Credit adds funds to an account. Stands in for the external
// fungible-token mint, which is out of scope. Tests and bootstrap.
func (r *AccountRepo) Credit(accountID string, amount int64) error {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	a, ok := r.c.accounts[accountID]
	if !ok {
		return model.ErrAccountNotFound
	}
	a.Balance += amount
	return nil
}

func (r *AccountRepo) GetByID(ctx context.Context, id string) (*model.Account, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	a, ok := r.c.accounts[id]
	if !ok {
		return nil, model.ErrAccountNotFound
	}
	out := *a
	return &out, nil
}

func (r *AccountRepo) GetByUsername(ctx context.Context, username string) (*model.Account, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	id, ok := r.c.usernames[username]
	if !ok {
		return nil, model.ErrAccountNotFound
	}
	out := *r.c.accounts[id]
	return &out, nil
}

func (r *AccountRepo) UpdateLoginTime(ctx context.Context, id string) error {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	a, ok := r.c.accounts[id]
	if !ok {
		return model.ErrAccountNotFound
	}
	now := time.Now().UTC()
	a.LastLoginAt = &now
	return nil
}

// --- SessionRepo ---

type SessionRepo struct{ c *core }

func (r *SessionRepo) Create(ctx context.Context, accountID, tokenHash string, expiresAt time.Time) error {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	r.c.sessions[tokenHash] = session{accountID: accountID, expiresAt: expiresAt}
	return nil
}

func (r *SessionRepo) GetAccountID(ctx context.Context, tokenHash string, now time.Time) (string, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	sess, ok := r.c.sessions[tokenHash]
	if !ok || now.After(sess.expiresAt) {
		return "", fmt.Errorf("session not found or expired")
	}
	return sess.accountID, nil
}

func (r *SessionRepo) Delete(ctx context.Context, tokenHash string) error {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	delete(r.c.sessions, tokenHash)
	return nil
}

// --- LedgerRepo ---

type LedgerRepo struct{ c *core }

func (r *LedgerRepo) BalanceOf(ctx context.Context, accountID string) (int64, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	a, ok := r.c.accounts[accountID]
	if !ok {
		return 0, model.ErrAccountNotFound
	}
	return a.Balance, nil
}

func (r *LedgerRepo) Transfer(ctx context.Context, from, to string, amount int64) error {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	return r.c.transferLocked(from, to, amount)
}

// --- TokenRepo ---

type TokenRepo struct{ c *core }

func (r *TokenRepo) Get(ctx context.Context, tokenID int64) (*model.CompanyToken, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	t, ok := r.c.tokens[tokenID]
	if !ok {
		return nil, model.ErrUnknownToken
	}
	out := *t
	return &out, nil
}

func (r *TokenRepo) Exists(ctx context.Context, tokenID int64) (bool, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	_, ok := r.c.tokens[tokenID]
	return ok, nil
}

func (r *TokenRepo) List(ctx context.Context) ([]model.CompanyToken, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	out := make([]model.CompanyToken, 0, len(r.c.tokens))
	for _, t := range r.c.tokens {
		out = append(out, *t)
	}
	return out, nil
}

func (r *TokenRepo) Mint(ctx context.Context, t *model.CompanyToken) error {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	if _, exists := r.c.tokens[t.ID]; exists {
		return model.ErrAlreadyExists
	}
	if _, ok := r.c.accounts[t.OwnerID]; !ok {
		return model.ErrAccountNotFound
	}
	cp := *t
	r.c.tokens[t.ID] = &cp
	return nil
}

func (r *TokenRepo) UpdateCompanyData(ctx context.Context, tokenID, revenue, profit int64) error {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	t, ok := r.c.tokens[tokenID]
	if !ok {
		return model.ErrUnknownToken
	}
	t.MonthlyRevenue = revenue
	t.MonthlyProfit = profit
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// --- EventRepo ---

type EventRepo struct{ c *core }

func (r *EventRepo) Append(ctx context.Context, ev *model.PlatformEvent) error {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	r.c.events = append(r.c.events, *ev)
	return nil
}

func (r *EventRepo) List(ctx context.Context, limit int) ([]model.PlatformEvent, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	n := len(r.c.events)
	if limit > n {
		limit = n
	}
	out := make([]model.PlatformEvent, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, r.c.events[i])
	}
	return out, nil
}

// --- ConfigRepo ---

type ConfigRepo struct{ c *core }

// Init seeds the configuration record. Fails fast on an invariant
// violation rather than running misconfigured.
func (r *ConfigRepo) Init(cfg *model.PlatformConfig) error {
	if cfg.RequiredConfirmations < 1 {
		return fmt.Errorf("required confirmations must be at least 1")
	}
	if cfg.MarketFeeBps > model.MaxFeeBps || cfg.RevenueFeeBps > model.MaxFeeBps {
		return model.ErrInvalidFee
	}
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	cp := *cfg
	cp.Version = 1
	cp.UpdatedAt = time.Now().UTC()
	r.c.cfg = &cp
	return nil
}

func (r *ConfigRepo) Get(ctx context.Context) (*model.PlatformConfig, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	if r.c.cfg == nil {
		return nil, fmt.Errorf("platform config not initialized")
	}
	out := *r.c.cfg
	return &out, nil
}

func (r *ConfigRepo) Save(ctx context.Context, cfg *model.PlatformConfig) error {
	if cfg.MarketFeeBps > model.MaxFeeBps || cfg.RevenueFeeBps > model.MaxFeeBps {
		return model.ErrInvalidFee
	}
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	cp := *cfg
	cp.Version = r.c.cfg.Version + 1
	cp.UpdatedAt = time.Now().UTC()
	r.c.cfg = &cp
	return nil
}
