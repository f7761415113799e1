// Package notify carries platform events to external channels. Sinks
// are best effort: a failed announcement never fails the operation that
// produced it.
package notify

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/dubbletrubble/TsukiNijiLabsA/internal/model"
)

// WebhookSink posts platform events as Discord-compatible embeds to a
// configured webhook URL.
type WebhookSink struct {
	url    string
	client *http.Client
}

func NewWebhookSink(url string) *WebhookSink {
	return &WebhookSink{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type webhookEmbed struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Color       int    `json:"color,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"`
}

type webhookPayload struct {
	Username string         `json:"username,omitempty"`
	Embeds   []webhookEmbed `json:"embeds"`
}

var embedColors = map[string]int{
	model.EventSale:                0x2ecc71,
	model.EventAuctionEnded:        0x2ecc71,
	model.EventQuarterFinalized:    0x3498db,
	model.EventRevenueDeposited:    0x3498db,
	model.EventPaused:              0xe74c3c,
	model.EventUnpaused:            0x2ecc71,
	model.EventTransactionExecuted: 0x9b59b6,
}

func (s *WebhookSink) Notify(eventType string, payload json.RawMessage) {
	if s.url == "" {
		return
	}
	color, ok := embedColors[eventType]
	if !ok {
		return
	}

	body := webhookPayload{
		Username: "Token Market",
		Embeds: []webhookEmbed{{
			Title:       eventType,
			Description: "```json\n" + string(payload) + "\n```",
			Color:       color,
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
		}},
	}

	go func() {
		data, err := json.Marshal(body)
		if err != nil {
			log.Printf("[webhook] marshal error: %v", err)
			return
		}
		resp, err := s.client.Post(s.url, "application/json", bytes.NewReader(data))
		if err != nil {
			log.Printf("[webhook] send error: %v", err)
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			log.Printf("[webhook] status %d for %s", resp.StatusCode, eventType)
		}
	}()
}
