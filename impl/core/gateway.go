package core

import (
	"FunnelRouter/entity"
	"FunnelRouter/internal/lib/signature"
	"FunnelRouter/internal/lib/sl"
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
)

const modeSubscribe = "subscribe"

// Platform maps a webhook path segment to a supported platform.
func (c *Core) Platform(name string) (string, error) {
	switch name {
	case entity.PlatformWhatsApp, "meta":
		name = entity.PlatformWhatsApp
	case entity.PlatformInstagram:
	default:
		return "", fmt.Errorf("%w: %s", entity.ErrUnsupportedPlatform, name)
	}
	if _, ok := c.normalizers[name]; !ok {
		return "", fmt.Errorf("%w: %s", entity.ErrUnsupportedPlatform, name)
	}
	return name, nil
}

// HandleVerification answers the subscription handshake with the challenge.
func (c *Core) HandleVerification(mode, challenge, token string) (string, error) {
	tokenMatch := c.verifyToken != "" &&
		subtle.ConstantTimeCompare([]byte(token), []byte(c.verifyToken)) == 1
	if mode == modeSubscribe && tokenMatch {
		c.log.Info("webhook verified")
		return challenge, nil
	}

	c.log.With(
		slog.String("mode", mode),
		slog.Bool("token_match", tokenMatch),
	).Warn("webhook verification failed")
	return "", entity.ErrForbidden
}

// HandleWebhook authenticates the raw body and enqueues it once; processing happens
// after the caller has been answered.
func (c *Core) HandleWebhook(ctx context.Context, platform string, body []byte, signatureHeader string) (string, error) {
	platform, err := c.Platform(platform)
	if err != nil {
		return "", err
	}

	secret, err := c.secrets.Secret(ctx, c.appSecretName)
	if err != nil {
		return "", fmt.Errorf("app secret: %w", err)
	}

	if !signature.Verify(body, signatureHeader, []byte(secret)) {
		c.log.With(
			slog.String("platform", platform),
			slog.Bool("header_present", signatureHeader != ""),
		).Warn("invalid webhook signature")
		return "", entity.ErrAuthFailure
	}

	id, err := c.publisher.Publish(ctx, body, map[string]string{"platform": platform})
	if err != nil {
		c.log.With(slog.String("platform", platform)).Error("publish webhook", sl.Err(err))
		return "", fmt.Errorf("publish: %w", err)
	}

	c.log.With(
		slog.String("platform", platform),
		slog.String("message_id", id),
		slog.Int("size", len(body)),
	).Debug("webhook enqueued")
	return id, nil
}
