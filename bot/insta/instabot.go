package insta

import (
	"FunnelRouter/bot/graph"
	"FunnelRouter/entity"
	"FunnelRouter/internal/lib/sl"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// WebhookPayload represents the incoming webhook payload from Instagram. Entries and
// messaging events stay raw so each branch is decoded on its own.
type WebhookPayload struct {
	Object string            `json:"object"`
	Entry  []json.RawMessage `json:"entry"`
}

type Entry struct {
	ID        string            `json:"id"`
	Time      int64             `json:"time"`
	Messaging []json.RawMessage `json:"messaging"`
}

type Messaging struct {
	Sender struct {
		ID string `json:"id"`
	} `json:"sender"`
	Recipient struct {
		ID string `json:"id"`
	} `json:"recipient"`
	Timestamp int64 `json:"timestamp"`
	Message   *struct {
		Mid    string `json:"mid"`
		Text   string `json:"text"`
		IsEcho bool   `json:"is_echo,omitempty"`
	} `json:"message,omitempty"`
}

// SendMessageRequest represents the request body for sending a message
type SendMessageRequest struct {
	Recipient struct {
		ID string `json:"id"`
	} `json:"recipient"`
	Message struct {
		Text string `json:"text"`
	} `json:"message"`
}

// InstaBot handles Instagram messaging via the Graph API
type InstaBot struct {
	log   *slog.Logger
	graph *graph.Client
}

func NewInstaBot(client *graph.Client, log *slog.Logger) *InstaBot {
	return &InstaBot{
		log:   log.With(sl.Module("instabot")),
		graph: client,
	}
}

func (b *InstaBot) Platform() string {
	return entity.PlatformInstagram
}

// Normalize extracts inbound text messages; echoes of our own replies are dropped. A
// branch that fails to decode is skipped without affecting its siblings.
func (b *InstaBot) Normalize(raw []byte) ([]entity.InboundMessage, int) {
	var payload WebhookPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		b.log.Warn("failed to parse webhook payload", sl.Err(err))
		return nil, 0
	}

	var messages []entity.InboundMessage
	skipped := 0
	for i, rawEntry := range payload.Entry {
		var entry Entry
		if err := json.Unmarshal(rawEntry, &entry); err != nil {
			skipped++
			b.log.With(slog.Int("entry", i)).Debug("malformed entry skipped", sl.Err(err))
			continue
		}
		for _, rawMessaging := range entry.Messaging {
			var messaging Messaging
			if err := json.Unmarshal(rawMessaging, &messaging); err != nil {
				skipped++
				b.log.Debug("malformed messaging event skipped", sl.Err(err))
				continue
			}
			if messaging.Message == nil || messaging.Message.Text == "" || messaging.Message.IsEcho {
				skipped++
				continue
			}
			channelID := entry.ID
			if channelID == "" {
				channelID = messaging.Recipient.ID
			}
			if channelID == "" || messaging.Sender.ID == "" {
				skipped++
				continue
			}

			var ts time.Time
			if messaging.Timestamp > 0 {
				ts = time.UnixMilli(messaging.Timestamp).UTC()
			}

			messages = append(messages, entity.InboundMessage{
				Platform:  entity.PlatformInstagram,
				ChannelID: channelID,
				SenderID:  messaging.Recipient.ID,
				UserID:    messaging.Sender.ID,
				MessageID: messaging.Message.Mid,
				Timestamp: ts,
				Text:      messaging.Message.Text,
				Raw:       raw,
			})
		}
	}
	return messages, skipped
}

// Send sends a text message to a user
func (b *InstaBot) Send(ctx context.Context, token string, msg entity.OutboundMessage) error {
	if msg.UserID == "" {
		return fmt.Errorf("recipient missing for channel %s: %w", msg.ChannelID, entity.ErrInvalidRecipient)
	}

	reqBody := SendMessageRequest{}
	reqBody.Recipient.ID = msg.UserID
	reqBody.Message.Text = msg.Text

	if err := b.graph.Post(ctx, token, "/me/messages", reqBody); err != nil {
		return err
	}

	b.log.Info("message sent", slog.String("recipient_id", msg.UserID))
	return nil
}
