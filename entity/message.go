package entity

import "time"

// InboundMessage is the canonical form of one text message taken from a provider envelope.
type InboundMessage struct {
	Platform  string    `json:"platform"`
	ChannelID string    `json:"channel_id"`
	SenderID  string    `json:"sender_id"`
	UserID    string    `json:"user_id"`
	MessageID string    `json:"message_id"`
	Timestamp time.Time `json:"timestamp"`
	Text      string    `json:"text"`
	Raw       []byte    `json:"-"`
}

type SessionParameters struct {
	TenantID            string         `json:"tenant_id"`
	ChannelID           string         `json:"channel_id"`
	UserID              string         `json:"user_id"`
	Funnel              Funnel         `json:"-"`
	PlaybookConfig      PlaybookConfig `json:"-"`
	ContactStatus       string         `json:"contact_status"`
	ContactScore        float64        `json:"contact_score"`
	ContactContextScore string         `json:"contact_context_score"`
}

// OutboundMessage is consumed once by the delivery client.
type OutboundMessage struct {
	Platform             string
	ChannelID            string
	SenderID             string
	UserID               string
	Text                 string
	CredentialSecretName string
	Credential           string
}

// QueueMessage is what the broker hands to the orchestrator.
type QueueMessage struct {
	ID         string
	Payload    []byte
	Attributes map[string]string
	Attempt    int
}

func (m QueueMessage) Platform() string {
	if p := m.Attributes["platform"]; p != "" {
		return p
	}
	return PlatformWhatsApp
}
