// Package delivery sends agent replies back through the originating platform.
package delivery

import (
	"FunnelRouter/bot/graph"
	"FunnelRouter/entity"
	"FunnelRouter/internal/lib/sl"
	"context"
	"errors"
	"fmt"
	"golang.org/x/time/rate"
	"log/slog"
	"time"
)

// Messenger posts a text with an already resolved access token.
type Messenger interface {
	Platform() string
	Send(ctx context.Context, token string, msg entity.OutboundMessage) error
}

// Credentials resolves channel access tokens; Invalidate drops a stale one.
type Credentials interface {
	Secret(ctx context.Context, name string) (string, error)
	Invalidate(name string)
}

type Client struct {
	messengers  map[string]Messenger
	credentials Credentials
	limiter     *rate.Limiter
	timeout     time.Duration
	log         *slog.Logger
}

func New(credentials Credentials, ratePerSec float64, timeout time.Duration, log *slog.Logger, messengers ...Messenger) *Client {
	limit := rate.Inf
	burst := 1
	if ratePerSec > 0 {
		limit = rate.Limit(ratePerSec)
		burst = max(int(ratePerSec), 1)
	}
	c := &Client{
		messengers:  make(map[string]Messenger, len(messengers)),
		credentials: credentials,
		limiter:     rate.NewLimiter(limit, burst),
		timeout:     timeout,
		log:         log.With(sl.Module("delivery")),
	}
	for _, m := range messengers {
		c.messengers[m.Platform()] = m
	}
	return c
}

// Deliver resolves the channel credential and sends msg. A 401 from the platform
// refreshes the credential and retries once.
func (c *Client) Deliver(ctx context.Context, msg entity.OutboundMessage) error {
	messenger, ok := c.messengers[msg.Platform]
	if !ok {
		return fmt.Errorf("%w: %s", entity.ErrUnsupportedPlatform, msg.Platform)
	}

	log := c.log.With(
		slog.String("platform", msg.Platform),
		slog.String("channel_id", msg.ChannelID),
		slog.String("user_id", msg.UserID),
	)

	err := c.send(ctx, messenger, msg)
	if errors.Is(err, graph.ErrUnauthorized) {
		log.Warn("credential rejected, refreshing", slog.String("secret", msg.CredentialSecretName))
		c.credentials.Invalidate(msg.CredentialSecretName)
		err = c.send(ctx, messenger, msg)
	}
	if err != nil {
		log.Error("delivery failed", slog.String("kind", entity.FailureKind(err)), sl.Err(err))
		return err
	}

	log.Debug("reply delivered")
	return nil
}

func (c *Client) send(ctx context.Context, messenger Messenger, msg entity.OutboundMessage) error {
	token := msg.Credential
	if token == "" {
		var err error
		token, err = c.credentials.Secret(ctx, msg.CredentialSecretName)
		if err != nil {
			return fmt.Errorf("credential for channel %s: %w", msg.ChannelID, err)
		}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limit wait: %v", entity.ErrDeliveryFailed, err)
	}
	return messenger.Send(ctx, token, msg)
}
