package service_test

import (
	"context"
	"testing"

	"github.com/dubbletrubble/TsukiNijiLabsA/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }

func TestQuorumExecutesOnFinalConfirm(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.newAccount(t, "alice", 0)
	bob := env.newAccount(t, "bob", 0)
	env.makeAdmin(t, alice)
	env.makeAdmin(t, bob)

	tx, err := env.governor.Submit(ctx, alice.ID, model.Command{
		Kind: model.CmdSetMarketFee,
		Bps:  intPtr(300),
	})
	require.NoError(t, err)
	// Submitting does not count as a confirmation.
	assert.Empty(t, tx.Confirmations)
	assert.False(t, tx.Executed)

	tx, err = env.governor.Confirm(ctx, alice.ID, tx.ID)
	require.NoError(t, err)
	assert.Len(t, tx.Confirmations, 1)
	assert.False(t, tx.Executed)

	cfg, err := env.governor.Config(ctx)
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.MarketFeeBps, "config must not change below quorum")

	tx, err = env.governor.Confirm(ctx, bob.ID, tx.ID)
	require.NoError(t, err)
	assert.True(t, tx.Executed)
	require.NotNil(t, tx.ExecutedAt)

	cfg, err = env.governor.Config(ctx)
	require.NoError(t, err)
	assert.Equal(t, 300, cfg.MarketFeeBps)
	assert.Equal(t, 2, cfg.Version, "every governor mutation bumps the version")
}

func TestConfirmGuards(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.newAccount(t, "alice", 0)
	bob := env.newAccount(t, "bob", 0)
	outsider := env.newAccount(t, "outsider", 0)
	env.makeAdmin(t, alice)
	env.makeAdmin(t, bob)

	tx, err := env.governor.Submit(ctx, alice.ID, model.Command{Kind: model.CmdPause})
	require.NoError(t, err)

	_, err = env.governor.Submit(ctx, outsider.ID, model.Command{Kind: model.CmdPause})
	assert.ErrorIs(t, err, model.ErrNotAdmin)

	_, err = env.governor.Confirm(ctx, outsider.ID, tx.ID)
	assert.ErrorIs(t, err, model.ErrNotAdmin)

	_, err = env.governor.Confirm(ctx, alice.ID, tx.ID)
	require.NoError(t, err)

	_, err = env.governor.Confirm(ctx, alice.ID, tx.ID)
	assert.ErrorIs(t, err, model.ErrAlreadyConfirmed)

	_, err = env.governor.Confirm(ctx, bob.ID, tx.ID)
	require.NoError(t, err)

	_, err = env.governor.Confirm(ctx, bob.ID, tx.ID)
	assert.ErrorIs(t, err, model.ErrAlreadyExecuted)

	cfg, err := env.governor.Config(ctx)
	require.NoError(t, err)
	assert.True(t, cfg.Paused)
}

func TestCommandValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.newAccount(t, "alice", 0)
	env.makeAdmin(t, alice)

	_, err := env.governor.Submit(ctx, alice.ID, model.Command{Kind: model.CmdSetMarketFee, Bps: intPtr(1001)})
	assert.ErrorIs(t, err, model.ErrInvalidFee)

	_, err = env.governor.Submit(ctx, alice.ID, model.Command{Kind: model.CmdSetRevenueFee})
	assert.ErrorIs(t, err, model.ErrInvalidFee)

	_, err = env.governor.Submit(ctx, alice.ID, model.Command{Kind: model.CmdSetMinBidIncrement, Amount: int64Ptr(0)})
	assert.ErrorIs(t, err, model.ErrInvalidCommand)

	_, err = env.governor.Submit(ctx, alice.ID, model.Command{Kind: "launch_missiles"})
	assert.ErrorIs(t, err, model.ErrInvalidCommand)

	_, err = env.governor.Submit(ctx, alice.ID, model.Command{Kind: model.CmdSetTreasury, AccountID: "no-such-account"})
	assert.ErrorIs(t, err, model.ErrAccountNotFound)

	_, err = env.governor.Submit(ctx, alice.ID, model.Command{Kind: model.CmdMintToken, TokenID: 5, OwnerID: "no-such-account"})
	assert.ErrorIs(t, err, model.ErrAccountNotFound)

	// A quorum larger than the admin set could never execute anything.
	_, err = env.governor.Submit(ctx, alice.ID, model.Command{Kind: model.CmdSetRequiredConfirmations, Count: intPtr(5)})
	assert.ErrorIs(t, err, model.ErrTooFewAdmins)
}

func TestMintTokenByQuorum(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.newAccount(t, "alice", 0)
	bob := env.newAccount(t, "bob", 0)
	recipient := env.newAccount(t, "recipient", 0)
	env.makeAdmin(t, alice)
	env.makeAdmin(t, bob)

	tx, err := env.governor.Submit(ctx, alice.ID, model.Command{
		Kind:        model.CmdMintToken,
		TokenID:     42,
		OwnerID:     recipient.ID,
		CompanyName: "Umbrella Industries",
		MetadataURI: "ipfs://QmUmbrella",
	})
	require.NoError(t, err)

	_, err = env.governor.Confirm(ctx, alice.ID, tx.ID)
	require.NoError(t, err)
	_, err = env.governor.Confirm(ctx, bob.ID, tx.ID)
	require.NoError(t, err)

	token, err := env.store.Tokens.Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, recipient.ID, token.OwnerID)
	assert.Equal(t, "Umbrella Industries", token.CompanyName)
}

func TestUpdateCompanyDataByQuorum(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.newAccount(t, "alice", 0)
	bob := env.newAccount(t, "bob", 0)
	owner := env.newAccount(t, "owner", 0)
	env.makeAdmin(t, alice)
	env.makeAdmin(t, bob)
	env.mintToken(t, 7, owner)

	tx, err := env.governor.Submit(ctx, alice.ID, model.Command{
		Kind:    model.CmdUpdateCompanyData,
		TokenID: 7,
		Revenue: 120000,
		Profit:  34000,
	})
	require.NoError(t, err)

	_, err = env.governor.Confirm(ctx, alice.ID, tx.ID)
	require.NoError(t, err)
	_, err = env.governor.Confirm(ctx, bob.ID, tx.ID)
	require.NoError(t, err)

	token, err := env.store.Tokens.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(120000), token.MonthlyRevenue)
	assert.Equal(t, int64(34000), token.MonthlyProfit)
}

func TestRemoveAdminKeepsQuorumReachable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.newAccount(t, "alice", 0)
	bob := env.newAccount(t, "bob", 0)
	carol := env.newAccount(t, "carol", 0)
	env.makeAdmin(t, alice)
	env.makeAdmin(t, bob)

	// Two admins with a quorum of two: removing either would make every
	// pending transaction unconfirmable.
	err := env.governor.RemoveAdmin(ctx, bob.ID)
	assert.ErrorIs(t, err, model.ErrTooFewAdmins)

	_, err = env.governor.AddAdmin(ctx, carol.ID)
	require.NoError(t, err)

	require.NoError(t, env.governor.RemoveAdmin(ctx, bob.ID))

	admins, err := env.governor.ListAdmins(ctx)
	require.NoError(t, err)
	assert.Len(t, admins, 2)

	ok, err := env.governor.IsAdmin(ctx, bob.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRemoveNonAdminAtFloor(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.newAccount(t, "alice", 0)
	bob := env.newAccount(t, "bob", 0)
	stranger := env.newAccount(t, "stranger", 0)
	env.makeAdmin(t, alice)
	env.makeAdmin(t, bob)

	// The target not being an admin outranks the floor check even when
	// the admin set is already at the quorum floor.
	err := env.governor.RemoveAdmin(ctx, stranger.ID)
	assert.ErrorIs(t, err, model.ErrAccountNotFound)

	admins, err := env.governor.ListAdmins(ctx)
	require.NoError(t, err)
	assert.Len(t, admins, 2)
}

func TestAddAdminValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.newAccount(t, "alice", 0)

	_, err := env.governor.AddAdmin(ctx, "no-such-account")
	assert.ErrorIs(t, err, model.ErrAccountNotFound)

	_, err = env.governor.AddAdmin(ctx, alice.ID)
	require.NoError(t, err)

	_, err = env.governor.AddAdmin(ctx, alice.ID)
	assert.ErrorIs(t, err, model.ErrAlreadyExists)
}

func TestSetRequiredConfirmationsByQuorum(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.newAccount(t, "alice", 0)
	bob := env.newAccount(t, "bob", 0)
	carol := env.newAccount(t, "carol", 0)
	env.makeAdmin(t, alice)
	env.makeAdmin(t, bob)
	env.makeAdmin(t, carol)

	tx, err := env.governor.Submit(ctx, alice.ID, model.Command{
		Kind:  model.CmdSetRequiredConfirmations,
		Count: intPtr(3),
	})
	require.NoError(t, err)

	_, err = env.governor.Confirm(ctx, alice.ID, tx.ID)
	require.NoError(t, err)
	tx, err = env.governor.Confirm(ctx, bob.ID, tx.ID)
	require.NoError(t, err)
	assert.True(t, tx.Executed)

	cfg, err := env.governor.Config(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.RequiredConfirmations)

	// The next transaction needs all three under the raised quorum.
	tx, err = env.governor.Submit(ctx, alice.ID, model.Command{Kind: model.CmdPause})
	require.NoError(t, err)
	_, err = env.governor.Confirm(ctx, alice.ID, tx.ID)
	require.NoError(t, err)
	tx, err = env.governor.Confirm(ctx, bob.ID, tx.ID)
	require.NoError(t, err)
	assert.False(t, tx.Executed)
	tx, err = env.governor.Confirm(ctx, carol.ID, tx.ID)
	require.NoError(t, err)
	assert.True(t, tx.Executed)
}

func TestFailedExecutionStaysRetryable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.newAccount(t, "alice", 0)
	bob := env.newAccount(t, "bob", 0)
	env.makeAdmin(t, alice)
	env.makeAdmin(t, bob)

	// The command validates at submit time (token id is positive) but
	// the dispatch fails because no such token exists yet.
	tx, err := env.governor.Submit(ctx, alice.ID, model.Command{
		Kind:    model.CmdUpdateCompanyData,
		TokenID: 9,
		Revenue: 50000,
		Profit:  8000,
	})
	require.NoError(t, err)

	_, err = env.governor.Confirm(ctx, alice.ID, tx.ID)
	require.NoError(t, err)
	_, err = env.governor.Confirm(ctx, bob.ID, tx.ID)
	assert.ErrorIs(t, err, model.ErrUnknownToken)

	// The failed dispatch kept both confirmations and left the
	// transaction unexecuted.
	got, err := env.governor.GetTx(ctx, tx.ID)
	require.NoError(t, err)
	assert.False(t, got.Executed)
	assert.Len(t, got.Confirmations, 2)

	// Once the blocker is gone, a re-confirm by an already-confirmed
	// admin drives the transaction to completion.
	owner := env.newAccount(t, "owner", 0)
	env.mintToken(t, 9, owner)

	got, err = env.governor.Confirm(ctx, bob.ID, tx.ID)
	require.NoError(t, err)
	assert.True(t, got.Executed)

	token, err := env.store.Tokens.Get(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, int64(50000), token.MonthlyRevenue)

	_, err = env.governor.Confirm(ctx, alice.ID, tx.ID)
	assert.ErrorIs(t, err, model.ErrAlreadyExecuted)
}

func TestListTxsNewestFirst(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.newAccount(t, "alice", 0)
	env.makeAdmin(t, alice)

	first, err := env.governor.Submit(ctx, alice.ID, model.Command{Kind: model.CmdPause})
	require.NoError(t, err)
	second, err := env.governor.Submit(ctx, alice.ID, model.Command{Kind: model.CmdUnpause})
	require.NoError(t, err)

	txs, err := env.governor.ListTxs(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, second.ID, txs[0].ID)
	assert.Equal(t, first.ID, txs[1].ID)

	got, err := env.governor.GetTx(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CmdPause, got.Command.Kind)

	_, err = env.governor.GetTx(ctx, 99)
	assert.ErrorIs(t, err, model.ErrInvalidCommand)
}

func TestPauseIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.governor.Pause(ctx))
	require.NoError(t, env.governor.Pause(ctx))

	cfg, err := env.governor.Config(ctx)
	require.NoError(t, err)
	assert.True(t, cfg.Paused)
	version := cfg.Version

	// Re-pausing an already paused platform must not touch the config.
	require.NoError(t, env.governor.Pause(ctx))
	cfg, err = env.governor.Config(ctx)
	require.NoError(t, err)
	assert.Equal(t, version, cfg.Version)

	require.NoError(t, env.governor.Unpause(ctx))
	cfg, err = env.governor.Config(ctx)
	require.NoError(t, err)
	assert.False(t, cfg.Paused)
}
