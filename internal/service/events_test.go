package service_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/dubbletrubble/TsukiNijiLabsA/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSink struct {
	types []string
}

func (c *captureSink) Notify(eventType string, payload json.RawMessage) {
	c.types = append(c.types, eventType)
}

func TestEmitPersistsAndFansOut(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sink := &captureSink{}
	env.events.AddSink(sink)

	env.events.Emit(ctx, model.EventPaused, nil)
	env.events.Emit(ctx, model.EventUnpaused, map[string]any{"by": "operator"})

	recent, err := env.events.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	// Newest first.
	assert.Equal(t, model.EventUnpaused, recent[0].Type)
	assert.Equal(t, model.EventPaused, recent[1].Type)
	assert.NotEmpty(t, recent[0].ID)

	assert.Equal(t, []string{model.EventPaused, model.EventUnpaused}, sink.types)
}

func TestTradeEmitsActivity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	seller := env.newAccount(t, "seller", 0)
	buyer := env.newAccount(t, "buyer", 2000)
	env.mintToken(t, 1, seller)

	listing, err := env.market.List(ctx, seller.ID, seller.Username, &model.CreateListingRequest{TokenID: 1, Price: 1000})
	require.NoError(t, err)
	_, err = env.market.BuyNow(ctx, listing.ID, buyer.ID)
	require.NoError(t, err)

	recent, err := env.events.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, model.EventSale, recent[0].Type)
	assert.Equal(t, model.EventListed, recent[1].Type)

	var settlement model.Settlement
	require.NoError(t, json.Unmarshal(recent[0].Payload, &settlement))
	assert.Equal(t, buyer.ID, settlement.BuyerID)
	assert.Equal(t, int64(1000), settlement.Price)
}
