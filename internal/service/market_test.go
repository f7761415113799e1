package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/dubbletrubble/TsukiNijiLabsA/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuyNowSplitsFee(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	seller := env.newAccount(t, "seller", 0)
	buyer := env.newAccount(t, "buyer", 1500)
	env.mintToken(t, 1, seller)

	listing, err := env.market.List(ctx, seller.ID, seller.Username, &model.CreateListingRequest{
		TokenID: 1,
		Price:   1000,
	})
	require.NoError(t, err)
	assert.Equal(t, model.ListingActive, listing.Status)

	token, err := env.store.Tokens.Get(ctx, 1)
	require.NoError(t, err)
	assert.True(t, token.Escrowed, "listed token must be escrowed")

	settlement, err := env.market.BuyNow(ctx, listing.ID, buyer.ID)
	require.NoError(t, err)

	// 100 bps of 1000 is 10 to the treasury, 990 to the seller.
	assert.Equal(t, int64(1000), settlement.Price)
	assert.Equal(t, int64(10), settlement.Fee)
	assert.Equal(t, int64(990), settlement.SellerAmount)

	assert.Equal(t, int64(500), env.balance(t, buyer.ID))
	assert.Equal(t, int64(990), env.balance(t, seller.ID))
	assert.Equal(t, int64(10), env.balance(t, env.treasury.ID))

	token, err = env.store.Tokens.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, buyer.ID, token.OwnerID)
	assert.False(t, token.Escrowed)

	sold, err := env.market.GetListing(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ListingSold, sold.Status)
}

func TestBuyNowRejectsOwnListing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	seller := env.newAccount(t, "seller", 5000)
	env.mintToken(t, 1, seller)

	listing, err := env.market.List(ctx, seller.ID, seller.Username, &model.CreateListingRequest{TokenID: 1, Price: 1000})
	require.NoError(t, err)

	_, err = env.market.BuyNow(ctx, listing.ID, seller.ID)
	assert.ErrorIs(t, err, model.ErrOwnListing)
}

func TestBuyNowInsufficientBalance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	seller := env.newAccount(t, "seller", 0)
	buyer := env.newAccount(t, "buyer", 999)
	env.mintToken(t, 1, seller)

	listing, err := env.market.List(ctx, seller.ID, seller.Username, &model.CreateListingRequest{TokenID: 1, Price: 1000})
	require.NoError(t, err)

	_, err = env.market.BuyNow(ctx, listing.ID, buyer.ID)
	assert.ErrorIs(t, err, model.ErrPaymentFailed)
	assert.Equal(t, int64(999), env.balance(t, buyer.ID))
}

func TestListRequiresOwnership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := env.newAccount(t, "owner", 0)
	stranger := env.newAccount(t, "stranger", 0)
	env.mintToken(t, 1, owner)

	_, err := env.market.List(ctx, stranger.ID, stranger.Username, &model.CreateListingRequest{TokenID: 1, Price: 100})
	assert.ErrorIs(t, err, model.ErrNotOwner)

	_, err = env.market.List(ctx, owner.ID, owner.Username, &model.CreateListingRequest{TokenID: 99, Price: 100})
	assert.ErrorIs(t, err, model.ErrUnknownToken)
}

func TestListRejectsDoubleListing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	seller := env.newAccount(t, "seller", 0)
	env.mintToken(t, 1, seller)

	_, err := env.market.List(ctx, seller.ID, seller.Username, &model.CreateListingRequest{TokenID: 1, Price: 100})
	require.NoError(t, err)

	_, err = env.market.List(ctx, seller.ID, seller.Username, &model.CreateListingRequest{TokenID: 1, Price: 200})
	assert.ErrorIs(t, err, model.ErrAlreadyListed)
}

func TestAuctionBidLadder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	seller := env.newAccount(t, "seller", 0)
	alice := env.newAccount(t, "alice", 2000)
	bob := env.newAccount(t, "bob", 2000)
	env.mintToken(t, 1, seller)

	listing, err := env.market.List(ctx, seller.ID, seller.Username, &model.CreateListingRequest{
		TokenID:   1,
		Price:     1000,
		IsAuction: true,
	})
	require.NoError(t, err)
	require.NotNil(t, listing.AuctionEndTime)
	assert.Equal(t, env.now.Add(7*24*time.Hour), *listing.AuctionEndTime)

	// First bid must reach the listing price.
	_, err = env.market.PlaceBid(ctx, listing.ID, alice.ID, 999)
	assert.ErrorIs(t, err, model.ErrBidTooLow)

	updated, err := env.market.PlaceBid(ctx, listing.ID, alice.ID, 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), updated.HighestBid)
	assert.Equal(t, int64(1000), env.balance(t, alice.ID))
	assert.Equal(t, int64(1000), env.balance(t, env.escrow.ID))

	// Next bid must beat the highest by at least the increment of 7.
	_, err = env.market.PlaceBid(ctx, listing.ID, bob.ID, 1006)
	assert.ErrorIs(t, err, model.ErrBidTooLow)

	updated, err = env.market.PlaceBid(ctx, listing.ID, bob.ID, 1010)
	require.NoError(t, err)
	assert.Equal(t, int64(1010), updated.HighestBid)
	require.NotNil(t, updated.HighestBidderID)
	assert.Equal(t, bob.ID, *updated.HighestBidderID)

	// Alice's superseded bid sits in escrow as a pending withdrawal.
	pending, err := env.market.PendingWithdrawal(ctx, listing.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), pending)

	amount, err := env.market.WithdrawBid(ctx, listing.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), amount)
	assert.Equal(t, int64(2000), env.balance(t, alice.ID))

	_, err = env.market.WithdrawBid(ctx, listing.ID, alice.ID)
	assert.ErrorIs(t, err, model.ErrNothingToWithdraw)
}

func TestOutbidTwiceWithdrawsAccumulatedSum(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	seller := env.newAccount(t, "seller", 0)
	alice := env.newAccount(t, "alice", 3000)
	bob := env.newAccount(t, "bob", 3000)
	env.mintToken(t, 1, seller)

	listing, err := env.market.List(ctx, seller.ID, seller.Username, &model.CreateListingRequest{
		TokenID:   1,
		Price:     1000,
		IsAuction: true,
	})
	require.NoError(t, err)

	// Alice is outbid twice across the ladder; both superseded bids
	// accumulate under one pending withdrawal.
	_, err = env.market.PlaceBid(ctx, listing.ID, alice.ID, 1000)
	require.NoError(t, err)
	_, err = env.market.PlaceBid(ctx, listing.ID, bob.ID, 1010)
	require.NoError(t, err)
	_, err = env.market.PlaceBid(ctx, listing.ID, alice.ID, 1020)
	require.NoError(t, err)
	_, err = env.market.PlaceBid(ctx, listing.ID, bob.ID, 1030)
	require.NoError(t, err)

	pending, err := env.market.PendingWithdrawal(ctx, listing.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2020), pending)

	amount, err := env.market.WithdrawBid(ctx, listing.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2020), amount)
	assert.Equal(t, int64(3000), env.balance(t, alice.ID))

	// Bob's own superseded bid is still intact alongside the winning
	// one held against the listing.
	pending, err = env.market.PendingWithdrawal(ctx, listing.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1010), pending)
	assert.Equal(t, int64(2040), env.balance(t, env.escrow.ID))
}

func TestAuctionSettlement(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	seller := env.newAccount(t, "seller", 0)
	bidder := env.newAccount(t, "bidder", 2000)
	env.mintToken(t, 1, seller)

	listing, err := env.market.List(ctx, seller.ID, seller.Username, &model.CreateListingRequest{
		TokenID:   1,
		Price:     1000,
		IsAuction: true,
	})
	require.NoError(t, err)

	_, err = env.market.PlaceBid(ctx, listing.ID, bidder.ID, 1010)
	require.NoError(t, err)

	_, err = env.market.EndAuction(ctx, listing.ID)
	assert.ErrorIs(t, err, model.ErrAuctionNotEnded)

	env.advance(7*24*time.Hour + time.Minute)

	_, err = env.market.PlaceBid(ctx, listing.ID, bidder.ID, 1100)
	assert.ErrorIs(t, err, model.ErrAuctionEnded)

	settlement, err := env.market.EndAuction(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, bidder.ID, settlement.BuyerID)
	assert.Equal(t, int64(1010), settlement.Price)
	assert.Equal(t, int64(10), settlement.Fee)
	assert.Equal(t, int64(1000), settlement.SellerAmount)

	assert.Equal(t, int64(1000), env.balance(t, seller.ID))
	assert.Equal(t, int64(10), env.balance(t, env.treasury.ID))
	assert.Equal(t, int64(0), env.balance(t, env.escrow.ID))

	token, err := env.store.Tokens.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, bidder.ID, token.OwnerID)
	assert.False(t, token.Escrowed)

	_, err = env.market.EndAuction(ctx, listing.ID)
	assert.ErrorIs(t, err, model.ErrAuctionEnded)
}

func TestAuctionWithNoBidsReturnsToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	seller := env.newAccount(t, "seller", 0)
	env.mintToken(t, 1, seller)

	listing, err := env.market.List(ctx, seller.ID, seller.Username, &model.CreateListingRequest{
		TokenID:   1,
		Price:     1000,
		IsAuction: true,
	})
	require.NoError(t, err)

	env.advance(8 * 24 * time.Hour)

	settlement, err := env.market.EndAuction(ctx, listing.ID)
	require.NoError(t, err)
	assert.Empty(t, settlement.BuyerID)
	assert.Zero(t, settlement.Price)

	token, err := env.store.Tokens.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, seller.ID, token.OwnerID)
	assert.False(t, token.Escrowed, "unsold token must leave escrow")

	ended, err := env.market.GetListing(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ListingEnded, ended.Status)
}

func TestCancelListing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	seller := env.newAccount(t, "seller", 0)
	bidder := env.newAccount(t, "bidder", 2000)
	stranger := env.newAccount(t, "stranger", 0)
	env.mintToken(t, 1, seller)

	listing, err := env.market.List(ctx, seller.ID, seller.Username, &model.CreateListingRequest{
		TokenID:   1,
		Price:     1000,
		IsAuction: true,
	})
	require.NoError(t, err)

	err = env.market.CancelListing(ctx, listing.ID, stranger.ID)
	assert.ErrorIs(t, err, model.ErrNotSeller)

	_, err = env.market.PlaceBid(ctx, listing.ID, bidder.ID, 1000)
	require.NoError(t, err)

	err = env.market.CancelListing(ctx, listing.ID, seller.ID)
	assert.ErrorIs(t, err, model.ErrBidsExist)

	// A bid-free listing cancels cleanly and releases the escrow flag.
	env.mintToken(t, 2, seller)
	second, err := env.market.List(ctx, seller.ID, seller.Username, &model.CreateListingRequest{TokenID: 2, Price: 500})
	require.NoError(t, err)

	require.NoError(t, env.market.CancelListing(ctx, second.ID, seller.ID))

	token, err := env.store.Tokens.Get(ctx, 2)
	require.NoError(t, err)
	assert.False(t, token.Escrowed)

	cancelled, err := env.market.GetListing(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ListingCancelled, cancelled.Status)
}

func TestPauseBlocksTrading(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	seller := env.newAccount(t, "seller", 0)
	buyer := env.newAccount(t, "buyer", 2000)
	env.mintToken(t, 1, seller)

	listing, err := env.market.List(ctx, seller.ID, seller.Username, &model.CreateListingRequest{TokenID: 1, Price: 1000})
	require.NoError(t, err)

	require.NoError(t, env.governor.Pause(ctx))

	_, err = env.market.BuyNow(ctx, listing.ID, buyer.ID)
	assert.ErrorIs(t, err, model.ErrSystemPaused)

	env.mintToken(t, 2, seller)
	_, err = env.market.List(ctx, seller.ID, seller.Username, &model.CreateListingRequest{TokenID: 2, Price: 100})
	assert.ErrorIs(t, err, model.ErrSystemPaused)

	require.NoError(t, env.governor.Unpause(ctx))

	_, err = env.market.BuyNow(ctx, listing.ID, buyer.ID)
	require.NoError(t, err)
}

func TestSearchListings(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	seller := env.newAccount(t, "seller", 0)
	for i := int64(1); i <= 3; i++ {
		env.mintToken(t, i, seller)
		_, err := env.market.List(ctx, seller.ID, seller.Username, &model.CreateListingRequest{
			TokenID:   i,
			Price:     i * 100,
			IsAuction: i == 3,
		})
		require.NoError(t, err)
	}

	auctions := true
	results, total, err := env.market.SearchListings(ctx, &model.SearchListingsRequest{IsAuction: &auctions})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, results, 1)
	assert.Equal(t, int64(3), results[0].TokenID)

	minPrice := int64(150)
	results, total, err = env.market.SearchListings(ctx, &model.SearchListingsRequest{MinPrice: &minPrice, SortBy: "price_asc"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, results, 2)
	assert.Equal(t, int64(200), results[0].Price)

	mine, err := env.market.MyListings(ctx, seller.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 3)
}
