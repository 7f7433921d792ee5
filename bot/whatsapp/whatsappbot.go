package whatsapp

import (
	"FunnelRouter/bot/graph"
	"FunnelRouter/entity"
	"FunnelRouter/internal/lib/sl"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"
)

// WebhookPayload represents the incoming webhook payload from WhatsApp. Entries,
// changes and messages stay raw so each branch is decoded on its own.
type WebhookPayload struct {
	Object string            `json:"object"`
	Entry  []json.RawMessage `json:"entry"`
}

type Entry struct {
	ID      string            `json:"id"`
	Changes []json.RawMessage `json:"changes"`
}

type Change struct {
	Value struct {
		MessagingProduct string `json:"messaging_product"`
		Metadata         struct {
			DisplayPhoneNumber string `json:"display_phone_number"`
			PhoneNumberID      string `json:"phone_number_id"`
		} `json:"metadata"`
		Messages []json.RawMessage `json:"messages"`
	} `json:"value"`
	Field string `json:"field"`
}

type Message struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text,omitempty"`
}

// SendMessageRequest represents the request body for sending a text message
type SendMessageRequest struct {
	MessagingProduct string `json:"messaging_product"`
	RecipientType    string `json:"recipient_type"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		PreviewURL bool   `json:"preview_url"`
		Body       string `json:"body"`
	} `json:"text"`
}

// WhatsApp normalizes Cloud API envelopes and sends replies through the Graph API
type WhatsApp struct {
	log   *slog.Logger
	graph *graph.Client
}

func New(client *graph.Client, log *slog.Logger) *WhatsApp {
	return &WhatsApp{
		log:   log.With(sl.Module("whatsapp")),
		graph: client,
	}
}

func (b *WhatsApp) Platform() string {
	return entity.PlatformWhatsApp
}

// Normalize extracts every text message of the envelope. A branch that fails to decode,
// misses fields or carries a non-text message is skipped without affecting its
// siblings; the count of skipped branches is returned.
func (b *WhatsApp) Normalize(raw []byte) ([]entity.InboundMessage, int) {
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
		for j, rawChange := range entry.Changes {
			var change Change
			if err := json.Unmarshal(rawChange, &change); err != nil {
				skipped++
				b.log.With(slog.Int("entry", i), slog.Int("change", j)).Debug("malformed change skipped", sl.Err(err))
				continue
			}
			value := change.Value
			senderID := value.Metadata.PhoneNumberID
			channelID := entry.ID
			if channelID == "" {
				channelID = senderID
			}

			for _, rawMessage := range value.Messages {
				var message Message
				if err := json.Unmarshal(rawMessage, &message); err != nil {
					skipped++
					b.log.Debug("malformed message skipped", sl.Err(err))
					continue
				}
				if message.Type != "text" || message.Text == nil || message.Text.Body == "" {
					skipped++
					b.log.With(
						slog.String("message_id", message.ID),
						slog.String("type", message.Type),
					).Debug("non-text message skipped")
					continue
				}
				if channelID == "" || message.From == "" {
					skipped++
					b.log.With(slog.String("message_id", message.ID)).Debug("incomplete message skipped")
					continue
				}

				messages = append(messages, entity.InboundMessage{
					Platform:  entity.PlatformWhatsApp,
					ChannelID: channelID,
					SenderID:  senderID,
					UserID:    message.From,
					MessageID: message.ID,
					Timestamp: parseTimestamp(message.Timestamp),
					Text:      message.Text.Body,
					Raw:       raw,
				})
			}
		}
	}
	return messages, skipped
}

// Send posts a text message to the recipient from the business phone number.
func (b *WhatsApp) Send(ctx context.Context, token string, msg entity.OutboundMessage) error {
	if msg.SenderID == "" {
		return fmt.Errorf("phone_number_id missing for channel %s: %w", msg.ChannelID, entity.ErrInvalidRecipient)
	}

	reqBody := SendMessageRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               msg.UserID,
		Type:             "text",
	}
	reqBody.Text.PreviewURL = false
	reqBody.Text.Body = msg.Text

	if err := b.graph.Post(ctx, token, fmt.Sprintf("/%s/messages", msg.SenderID), reqBody); err != nil {
		return err
	}

	b.log.Info("message sent successfully", slog.String("recipient_phone", msg.UserID))
	return nil
}

func parseTimestamp(ts string) time.Time {
	sec, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
