package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/dubbletrubble/TsukiNijiLabsA/internal/model"
	"github.com/dubbletrubble/TsukiNijiLabsA/internal/repository/memory"
	"github.com/dubbletrubble/TsukiNijiLabsA/internal/service"

	"github.com/stretchr/testify/require"
)

// testEnv wires the services against the in-memory store with a fixed,
// manually advanced clock.
type testEnv struct {
	store    *memory.Store
	events   *service.EventService
	market   *service.MarketService
	revenue  *service.RevenueService
	governor *service.GovernorService

	treasury *model.Account
	escrow   *model.Account
	pool     *model.Account

	now time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	store := memory.NewStore()

	treasury, err := store.Accounts.CreateSystem(model.SystemTreasury)
	require.NoError(t, err)
	escrow, err := store.Accounts.CreateSystem(model.SystemMarketEscrow)
	require.NoError(t, err)
	pool, err := store.Accounts.CreateSystem(model.SystemRevenuePool)
	require.NoError(t, err)

	err = store.Config.Init(&model.PlatformConfig{
		MarketFeeBps:          100,
		RevenueFeeBps:         250,
		MinBidIncrement:       7,
		MinAuctionDuration:    7 * 24 * time.Hour,
		ClaimWindow:           180 * 24 * time.Hour,
		RequiredConfirmations: 2,
		UnclaimedPolicy:       model.UnclaimedHold,
		TreasuryID:            treasury.ID,
	})
	require.NoError(t, err)

	env := &testEnv{
		store:    store,
		treasury: treasury,
		escrow:   escrow,
		pool:     pool,
		now:      time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	require.NoError(t, store.Revenue.EnsureOpenQuarter(ctx, service.QuarterLength, env.now))

	clock := func() time.Time { return env.now }

	env.events = service.NewEventService(store.Events, nil)
	env.market = service.NewMarketService(store.Market, store.Tokens, store.Ledger, store.Config, env.events, escrow.ID)
	env.market.SetClock(clock)
	env.revenue = service.NewRevenueService(store.Revenue, store.Tokens, store.Ledger, store.Config, env.events, pool.ID)
	env.revenue.SetClock(clock)
	env.governor = service.NewGovernorService(store.Admins, store.Accounts, store.Config, store.Tokens, env.revenue, env.events)
	env.governor.SetClock(clock)

	return env
}

func (e *testEnv) advance(d time.Duration) {
	e.now = e.now.Add(d)
}

func (e *testEnv) newAccount(t *testing.T, username string, balance int64) *model.Account {
	t.Helper()
	account, err := e.store.Accounts.Create(context.Background(), username, username+"@example.com", "hash")
	require.NoError(t, err)
	if balance > 0 {
		require.NoError(t, e.store.Accounts.Credit(account.ID, balance))
	}
	return account
}

func (e *testEnv) mintToken(t *testing.T, tokenID int64, owner *model.Account) {
	t.Helper()
	err := e.store.Tokens.Mint(context.Background(), &model.CompanyToken{
		ID:          tokenID,
		CompanyName: "Acme Holdings",
		OwnerID:     owner.ID,
		CreatedAt:   e.now,
		UpdatedAt:   e.now,
	})
	require.NoError(t, err)
}

func (e *testEnv) balance(t *testing.T, accountID string) int64 {
	t.Helper()
	balance, err := e.store.Ledger.BalanceOf(context.Background(), accountID)
	require.NoError(t, err)
	return balance
}

func (e *testEnv) makeAdmin(t *testing.T, account *model.Account) {
	t.Helper()
	require.NoError(t, e.store.Admins.AddAdmin(context.Background(), account.ID))
}

func (e *testEnv) setUnclaimedPolicy(t *testing.T, policy string) {
	t.Helper()
	ctx := context.Background()
	cfg, err := e.store.Config.Get(ctx)
	require.NoError(t, err)
	cfg.UnclaimedPolicy = policy
	require.NoError(t, e.store.Config.Save(ctx, cfg))
}
