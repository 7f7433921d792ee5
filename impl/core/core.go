package core

import (
	"FunnelRouter/entity"
	"FunnelRouter/internal/lib/sl"
	"FunnelRouter/internal/service/ledger"
	"FunnelRouter/internal/service/queue"
	"context"
	"log/slog"
	"time"
)

type Normalizer interface {
	Platform() string
	Normalize(raw []byte) ([]entity.InboundMessage, int)
}

type Resolver interface {
	Resolve(ctx context.Context, channelID string) (entity.ChannelMapping, error)
	GetContact(ctx context.Context, tenantID, userID string) (entity.Contact, error)
	GetTenant(ctx context.Context, tenantID string) (entity.Tenant, error)
	Playbook(tenant entity.Tenant, funnel entity.Funnel) (entity.PlaybookConfig, error)
}

type Agent interface {
	Invoke(ctx context.Context, text string, params entity.SessionParameters) (string, error)
}

// SessionResetter is implemented by agents that can forget a conversation.
type SessionResetter interface {
	ResetSession(tenantID, channelID, userID string) error
}

type Delivery interface {
	Deliver(ctx context.Context, msg entity.OutboundMessage) error
}

type SecretStore interface {
	Secret(ctx context.Context, name string) (string, error)
}

// Alerter notifies operators about messages dropped for good.
type Alerter interface {
	Alert(ev entity.PipelineEvent, cause error)
}

// EventSink receives every pipeline state transition.
type EventSink interface {
	Broadcast(ev entity.PipelineEvent)
}

type Core struct {
	normalizers   map[string]Normalizer
	resolver      Resolver
	agent         Agent
	delivery      Delivery
	publisher     queue.Publisher
	ledger        ledger.Ledger
	secrets       SecretStore
	alerter       Alerter
	events        EventSink
	verifyToken   string
	appSecretName string
	maxAttempts   int
	lease         time.Duration
	now           func() time.Time
	log           *slog.Logger
}

func New(log *slog.Logger) *Core {
	return &Core{
		normalizers: make(map[string]Normalizer),
		maxAttempts: 5,
		lease:       time.Minute,
		now:         time.Now,
		log:         log.With(sl.Module("core")),
	}
}

func (c *Core) AddNormalizer(n Normalizer) {
	c.normalizers[n.Platform()] = n
}

func (c *Core) SetResolver(resolver Resolver) {
	c.resolver = resolver
}

func (c *Core) SetAgent(agent Agent) {
	c.agent = agent
}

func (c *Core) SetDelivery(delivery Delivery) {
	c.delivery = delivery
}

func (c *Core) SetPublisher(publisher queue.Publisher) {
	c.publisher = publisher
}

func (c *Core) SetLedger(l ledger.Ledger, lease time.Duration) {
	c.ledger = l
	if lease > 0 {
		c.lease = lease
	}
}

func (c *Core) SetSecretStore(store SecretStore, appSecretName string) {
	c.secrets = store
	c.appSecretName = appSecretName
}

func (c *Core) SetVerifyToken(token string) {
	c.verifyToken = token
}

func (c *Core) SetAlerter(alerter Alerter) {
	c.alerter = alerter
}

func (c *Core) SetEventSink(events EventSink) {
	c.events = events
}

// SetMaxAttempts bounds redeliveries; a retryable failure on the last attempt is terminal.
func (c *Core) SetMaxAttempts(n int) {
	if n > 0 {
		c.maxAttempts = n
	}
}

func (c *Core) emit(ev entity.PipelineEvent) {
	ev.Time = c.now()
	c.log.With(
		slog.String("key", ev.Key),
		slog.String("state", string(ev.State)),
		slog.String("kind", ev.Kind),
	).Debug("pipeline transition")
	if c.events != nil {
		c.events.Broadcast(ev)
	}
}

func (c *Core) alert(ev entity.PipelineEvent, cause error) {
	if c.alerter != nil {
		c.alerter.Alert(ev, cause)
	}
}
