package entity

import "time"

// State is a step of the per-message pipeline.
type State string

const (
	StateReceived       State = "RECEIVED"
	StateNormalized     State = "NORMALIZED"
	StateTenantResolved State = "TENANT_RESOLVED"
	StateFunnelSelected State = "FUNNEL_SELECTED"
	StateAgentReplied   State = "AGENT_REPLIED"
	StateDelivered      State = "DELIVERED"
	StateSkipped        State = "SKIPPED"
	StateFailed         State = "FAILED"
)

// PipelineEvent is emitted on every state transition.
type PipelineEvent struct {
	Key       string    `json:"key"`
	QueueID   string    `json:"queue_id"`
	Platform  string    `json:"platform,omitempty"`
	ChannelID string    `json:"channel_id,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	State     State     `json:"state"`
	Kind      string    `json:"kind,omitempty"`
	Funnel    string    `json:"funnel,omitempty"`
	Time      time.Time `json:"time"`
}
