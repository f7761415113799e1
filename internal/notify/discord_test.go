package notify

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/dubbletrubble/TsukiNijiLabsA/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func marshal(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestFormatAnnouncementSale(t *testing.T) {
	settlement := &model.Settlement{
		Listing:      &model.Listing{ID: 3, TokenID: 42, SellerID: "seller", Price: 1000},
		BuyerID:      "buyer",
		Price:        1000,
		Fee:          10,
		SellerAmount: 990,
	}

	msg := formatAnnouncement(model.EventSale, marshal(t, settlement))
	assert.Equal(t, "Company token 42 sold for 1000.", msg)

	msg = formatAnnouncement(model.EventAuctionEnded, marshal(t, settlement))
	assert.Equal(t, "Company token 42 sold for 1000.", msg)
}

func TestFormatAnnouncementNoBidAuction(t *testing.T) {
	// An auction that expires without bids settles with no buyer and
	// must not be announced as a sale.
	settlement := &model.Settlement{
		Listing: &model.Listing{ID: 3, TokenID: 42, Status: model.ListingEnded},
	}
	assert.Empty(t, formatAnnouncement(model.EventAuctionEnded, marshal(t, settlement)))
}

func TestFormatAnnouncementQuarterFinalized(t *testing.T) {
	now := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	quarter := &model.Quarter{
		Index:        2,
		Finalized:    true,
		FinalizedAt:  &now,
		TotalRevenue: 5000,
		FeeBps:       250,
		PlatformFee:  125,
	}

	msg := formatAnnouncement(model.EventQuarterFinalized, marshal(t, quarter))
	assert.Equal(t, "Quarter 2 finalized. Token holders can now claim their revenue share.", msg)
}

func TestFormatAnnouncementTokenMinted(t *testing.T) {
	payload := marshal(t, map[string]any{
		"token_id":     int64(7),
		"owner_id":     "recipient",
		"company_name": "Acme Holdings",
	})
	assert.Equal(t, "New company token 7 minted for Acme Holdings.", formatAnnouncement(model.EventTokenMinted, payload))

	payload = marshal(t, map[string]any{"token_id": int64(7), "owner_id": "recipient"})
	assert.Equal(t, "New company token 7 minted.", formatAnnouncement(model.EventTokenMinted, payload))
}

func TestFormatAnnouncementIgnoresQuietEvents(t *testing.T) {
	assert.Empty(t, formatAnnouncement(model.EventBidPlaced, marshal(t, map[string]any{"listing_id": 1})))
	assert.Empty(t, formatAnnouncement(model.EventPaused, []byte("null")))
	assert.Empty(t, formatAnnouncement(model.EventSale, []byte("{broken")))
}
