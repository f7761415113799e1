package main

import (
	"context"
	"testing"
	"time"

	"github.com/dubbletrubble/TsukiNijiLabsA/internal/model"
	"github.com/dubbletrubble/TsukiNijiLabsA/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bootstrapStore(t *testing.T, requiredConfirmations int) *memory.Store {
	t.Helper()
	store := memory.NewStore()
	treasury, err := store.Accounts.CreateSystem(model.SystemTreasury)
	require.NoError(t, err)
	require.NoError(t, store.Config.Init(&model.PlatformConfig{
		MarketFeeBps:          100,
		RevenueFeeBps:         250,
		MinBidIncrement:       7,
		MinAuctionDuration:    7 * 24 * time.Hour,
		ClaimWindow:           180 * 24 * time.Hour,
		RequiredConfirmations: requiredConfirmations,
		UnclaimedPolicy:       model.UnclaimedHold,
		TreasuryID:            treasury.ID,
	}))
	return store
}

func TestSeedAdmins(t *testing.T) {
	store := bootstrapStore(t, 2)
	ctx := context.Background()

	alice, err := store.Accounts.Create(ctx, "alice", "a@b.c", "hash")
	require.NoError(t, err)
	bob, err := store.Accounts.Create(ctx, "bob", "b@b.c", "hash")
	require.NoError(t, err)

	// Missing usernames are skipped, existing ones are granted, and
	// re-seeding on restart is a no-op.
	seedAdmins(ctx, "alice, bob ,ghost,", store.Accounts, store.Admins)
	seedAdmins(ctx, "alice,bob", store.Accounts, store.Admins)

	count, err := store.Admins.AdminCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	ok, err := store.Admins.IsAdmin(ctx, alice.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = store.Admins.IsAdmin(ctx, bob.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCheckQuorumReachable(t *testing.T) {
	store := bootstrapStore(t, 2)
	ctx := context.Background()

	// One admin cannot satisfy a two-confirmation threshold.
	alice, err := store.Accounts.Create(ctx, "alice", "a@b.c", "hash")
	require.NoError(t, err)
	require.NoError(t, store.Admins.AddAdmin(ctx, alice.ID))

	err = checkQuorumReachable(ctx, store.Admins, store.Config)
	assert.ErrorIs(t, err, model.ErrTooFewAdmins)

	bob, err := store.Accounts.Create(ctx, "bob", "b@b.c", "hash")
	require.NoError(t, err)
	require.NoError(t, store.Admins.AddAdmin(ctx, bob.ID))

	assert.NoError(t, checkQuorumReachable(ctx, store.Admins, store.Config))
}
