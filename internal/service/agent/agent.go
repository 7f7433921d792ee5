// Package agent turns a routed message into a reply from the conversational agent service.
package agent

import (
	"FunnelRouter/entity"
	"FunnelRouter/internal/lib/sl"
	"context"
	"errors"
	"fmt"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
	"log/slog"
	"strings"
	"time"
)

// sessionNamespace scopes session ids so they never collide with other UUIDv5 users.
var sessionNamespace = uuid.MustParse("6f1c2a4e-9b1d-5c7e-8a2f-3d4b5c6e7f80")

// AgentService is the conversational backend: Dialogflow CX or an OpenAI chat model.
type AgentService interface {
	DetectIntent(ctx context.Context, sessionID, text string, params map[string]interface{}) (string, error)
}

// ConversationResetter is implemented by services that keep conversation state locally.
type ConversationResetter interface {
	ResetConversation(sessionID string)
}

type Invoker struct {
	service AgentService
	limiter *rate.Limiter
	timeout time.Duration
	log     *slog.Logger
}

// NewInvoker limits calls to ratePerSec; zero or less disables the limit.
func NewInvoker(service AgentService, ratePerSec float64, timeout time.Duration, log *slog.Logger) *Invoker {
	limit := rate.Inf
	burst := 1
	if ratePerSec > 0 {
		limit = rate.Limit(ratePerSec)
		burst = int(ratePerSec)
		if burst < 1 {
			burst = 1
		}
	}
	return &Invoker{
		service: service,
		limiter: rate.NewLimiter(limit, burst),
		timeout: timeout,
		log:     log.With(sl.Module("agent")),
	}
}

// SessionID is stable for a user on a channel of a tenant.
func SessionID(tenantID, channelID, userID string) string {
	return uuid.NewSHA1(sessionNamespace, []byte(tenantID+"|"+channelID+"|"+userID)).String()
}

// Parameters builds the bag passed to the agent; the playbook travels as a JSON string.
// controlFields are playbook switches for the router itself; the agent never sees them.
var controlFields = map[string]bool{
	"active":          true,
	"core_active":     true,
	"core_enabled":    true,
	"enabled":         true,
	"is_active":       true,
	"playbook_active": true,
	"status":          true,
}

// Parameters builds the agent parameter bag. The whole playbook travels as the opaque
// playbook_config string; each non-control field is also exposed as playbook_<key>
// unless that name is already taken.
func Parameters(p entity.SessionParameters) (map[string]interface{}, error) {
	playbook, err := p.PlaybookConfig.JSON()
	if err != nil {
		return nil, fmt.Errorf("%w: playbook config: %v", entity.ErrAgentRejected, err)
	}
	params := map[string]interface{}{
		"tenant_id":             p.TenantID,
		"channel_id":            p.ChannelID,
		"user_id":               p.UserID,
		"funnel_id":             p.Funnel.String(),
		"playbook_name":         p.Funnel.String(),
		"playbook_config":       playbook,
		"contact_status":        p.ContactStatus,
		"contact_score":         p.ContactScore,
		"contact_context_score": p.ContactContextScore,
	}
	for key, value := range p.PlaybookConfig {
		if controlFields[strings.ToLower(key)] {
			continue
		}
		name := "playbook_" + key
		if _, taken := params[name]; taken {
			continue
		}
		params[name] = value
	}
	return params, nil
}

func (i *Invoker) Invoke(ctx context.Context, text string, p entity.SessionParameters) (string, error) {
	log := i.log.With(
		slog.String("tenant_id", p.TenantID),
		slog.String("channel_id", p.ChannelID),
		slog.String("user_id", p.UserID),
		slog.String("funnel_id", p.Funnel.String()),
	)

	params, err := Parameters(p)
	if err != nil {
		log.Error("building session parameters", sl.Err(err))
		return "", err
	}

	if i.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	if err = i.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: rate limit wait: %v", entity.ErrAgentUnavailable, err)
	}

	session := SessionID(p.TenantID, p.ChannelID, p.UserID)
	reply, err := i.service.DetectIntent(ctx, session, text, params)
	if err != nil {
		switch {
		case errors.Is(err, entity.ErrAgentRejected):
			log.With(
				slog.String("session", session),
				slog.String("text", text),
				slog.String("contact_status", p.ContactStatus),
				slog.Float64("contact_score", p.ContactScore),
				slog.Any("parameters", params),
			).Error("agent rejected request", sl.Err(err))
			return "", err
		case errors.Is(err, entity.ErrAgentUnavailable):
			log.Warn("agent unavailable", sl.Err(err))
			return "", err
		default:
			log.Warn("agent call failed", sl.Err(err))
			return "", fmt.Errorf("%w: %v", entity.ErrAgentUnavailable, err)
		}
	}

	log.With(
		slog.String("session", session),
		slog.Int("reply_length", len(reply)),
	).Debug("agent replied")
	return reply, nil
}

// ResetSession forgets the conversation of a user so the next message starts fresh.
func (i *Invoker) ResetSession(tenantID, channelID, userID string) error {
	resetter, ok := i.service.(ConversationResetter)
	if !ok {
		return fmt.Errorf("agent keeps no conversation state: %w", entity.ErrNotSupported)
	}
	session := SessionID(tenantID, channelID, userID)
	resetter.ResetConversation(session)
	i.log.With(
		slog.String("tenant_id", tenantID),
		slog.String("channel_id", channelID),
		slog.String("user_id", userID),
		slog.String("session", session),
	).Info("conversation reset")
	return nil
}
