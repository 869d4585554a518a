package webhook

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"moodline/internal/domain"
)

type payload struct {
	Destination string  `json:"destination"`
	Events      []event `json:"events"`
}

type event struct {
	Type           string `json:"type"`
	Mode           string `json:"mode"`
	Timestamp      int64  `json:"timestamp"`
	WebhookEventID string `json:"webhookEventId"`
	ReplyToken     string `json:"replyToken"`
	Source         struct {
		Type   string `json:"type"`
		UserID string `json:"userId"`
	} `json:"source"`
	Message struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"message"`
	DeliveryContext struct {
		IsRedelivery bool `json:"isRedelivery"`
	} `json:"deliveryContext"`
}

// Parse decodes a webhook batch into inbound text events. Non-message
// events, non-text messages and standby-mode events are skipped. An empty
// batch (the platform's verification ping) yields no events.
func Parse(body []byte, now time.Time) ([]domain.InboundEvent, error) {
	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decode webhook body: %w", err)
	}

	events := make([]domain.InboundEvent, 0, len(p.Events))
	for _, e := range p.Events {
		if e.Type != "message" || e.Message.Type != "text" || e.Mode == "standby" {
			continue
		}

		id := e.WebhookEventID
		if id == "" {
			id = uuid.NewString()
		}

		received := now
		if e.Timestamp > 0 {
			received = time.UnixMilli(e.Timestamp)
		}

		events = append(events, domain.InboundEvent{
			ID:         id,
			UserID:     e.Source.UserID,
			Text:       e.Message.Text,
			ReplyToken: e.ReplyToken,
			ReceivedAt: received,
			Redelivery: e.DeliveryContext.IsRedelivery,
		})
	}

	return events, nil
}
