package notify

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/dubbletrubble/TsukiNijiLabsA/internal/model"

	"github.com/bwmarrin/discordgo"
)

// DiscordSink announces marketplace milestones to a Discord channel
// through a bot session.
type DiscordSink struct {
	session   *discordgo.Session
	channelID string
}

func NewDiscordSink(token, channelID string) (*DiscordSink, error) {
	if token == "" || channelID == "" {
		log.Println("[discord] no bot token or channel configured, announcements disabled")
		return nil, nil
	}

	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	s.Identify.Intents = discordgo.IntentsGuildMessages

	if err := s.Open(); err != nil {
		return nil, err
	}
	return &DiscordSink{session: s, channelID: channelID}, nil
}

func (d *DiscordSink) Close() {
	if d.session != nil {
		_ = d.session.Close()
	}
}

func (d *DiscordSink) Notify(eventType string, payload json.RawMessage) {
	msg := formatAnnouncement(eventType, payload)
	if msg == "" {
		return
	}
	go func() {
		if _, err := d.session.ChannelMessageSend(d.channelID, msg); err != nil {
			log.Printf("[discord] announce %s: %v", eventType, err)
		}
	}()
}

// formatAnnouncement renders the few event types worth a public ping.
// Everything else stays on the websocket feed. Payloads are the same
// structs the event service persists: a Settlement for sales, a
// Quarter for finalization, a flat map for mints.
func formatAnnouncement(eventType string, payload json.RawMessage) string {
	switch eventType {
	case model.EventSale, model.EventAuctionEnded:
		var s model.Settlement
		if err := json.Unmarshal(payload, &s); err != nil || s.Listing == nil || s.BuyerID == "" {
			// An expired auction without bids settles with no buyer.
			return ""
		}
		return fmt.Sprintf("Company token %d sold for %d.", s.Listing.TokenID, s.Price)
	case model.EventQuarterFinalized:
		var q model.Quarter
		if err := json.Unmarshal(payload, &q); err != nil {
			return ""
		}
		return fmt.Sprintf("Quarter %d finalized. Token holders can now claim their revenue share.", q.Index)
	case model.EventTokenMinted:
		var mint struct {
			TokenID     int64  `json:"token_id"`
			CompanyName string `json:"company_name"`
		}
		if err := json.Unmarshal(payload, &mint); err != nil || mint.TokenID == 0 {
			return ""
		}
		if mint.CompanyName == "" {
			return fmt.Sprintf("New company token %d minted.", mint.TokenID)
		}
		return fmt.Sprintf("New company token %d minted for %s.", mint.TokenID, mint.CompanyName)
	default:
		return ""
	}
}
