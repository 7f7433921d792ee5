package delivery

import (
	"FunnelRouter/bot/graph"
	"FunnelRouter/entity"
	"FunnelRouter/internal/service/secrets"
	"context"
	"fmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"log/slog"
	"testing"
	"time"
)

type rotatingStore struct {
	tokens []string
	reads  int
}

func (s *rotatingStore) Secret(_ context.Context, name string) (string, error) {
	if name != "wpp-token-tenant_123" {
		return "", fmt.Errorf("secret %s: %w", name, entity.ErrNotFound)
	}
	token := s.tokens[min(s.reads, len(s.tokens)-1)]
	s.reads++
	return token, nil
}

type fakeMessenger struct {
	platform string
	tokens   []string
	sent     []entity.OutboundMessage
	// errs is consumed one per call
	errs []error
}

func (f *fakeMessenger) Platform() string { return f.platform }

func (f *fakeMessenger) Send(_ context.Context, token string, msg entity.OutboundMessage) error {
	f.tokens = append(f.tokens, token)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return err
		}
	}
	f.sent = append(f.sent, msg)
	return nil
}

func unauthorized() error {
	return fmt.Errorf("%w: %w: status 401", graph.ErrUnauthorized, entity.ErrInvalidRecipient)
}

func outbound() entity.OutboundMessage {
	return entity.OutboundMessage{
		Platform:             entity.PlatformWhatsApp,
		ChannelID:            "123456789",
		SenderID:             "987654321",
		UserID:               "5511999999999",
		Text:                 "Oi! Como posso ajudar?",
		CredentialSecretName: "wpp-token-tenant_123",
	}
}

func newClient(store secrets.Store, m *fakeMessenger) *Client {
	creds := secrets.NewCached(store, time.Minute, time.Second)
	return New(creds, 0, time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)), m)
}

func TestDeliverCachesCredential(t *testing.T) {
	store := &rotatingStore{tokens: []string{"EAAB-1"}}
	m := &fakeMessenger{platform: entity.PlatformWhatsApp}
	c := newClient(store, m)

	require.NoError(t, c.Deliver(context.Background(), outbound()))
	require.NoError(t, c.Deliver(context.Background(), outbound()))

	assert.Len(t, m.sent, 2)
	assert.Equal(t, []string{"EAAB-1", "EAAB-1"}, m.tokens)
	assert.Equal(t, 1, store.reads)
}

func TestDeliverRefreshesStaleCredential(t *testing.T) {
	store := &rotatingStore{tokens: []string{"stale", "fresh"}}
	m := &fakeMessenger{platform: entity.PlatformWhatsApp, errs: []error{unauthorized()}}
	c := newClient(store, m)

	require.NoError(t, c.Deliver(context.Background(), outbound()))
	assert.Equal(t, []string{"stale", "fresh"}, m.tokens)
	assert.Len(t, m.sent, 1)
}

func TestDeliverSecondUnauthorizedIsTerminal(t *testing.T) {
	store := &rotatingStore{tokens: []string{"stale", "still-stale"}}
	m := &fakeMessenger{platform: entity.PlatformWhatsApp, errs: []error{unauthorized(), unauthorized()}}
	c := newClient(store, m)

	err := c.Deliver(context.Background(), outbound())
	assert.ErrorIs(t, err, entity.ErrInvalidRecipient)
	assert.False(t, entity.IsRetryable(err))
	assert.Len(t, m.tokens, 2)
}

func TestDeliverErrors(t *testing.T) {
	m := &fakeMessenger{platform: entity.PlatformWhatsApp, errs: []error{fmt.Errorf("%w: status 503", entity.ErrDeliveryFailed)}}
	c := newClient(&rotatingStore{tokens: []string{"t"}}, m)

	err := c.Deliver(context.Background(), outbound())
	assert.ErrorIs(t, err, entity.ErrDeliveryFailed)
	assert.True(t, entity.IsRetryable(err))

	missing := outbound()
	missing.CredentialSecretName = "unknown"
	err = c.Deliver(context.Background(), missing)
	assert.ErrorIs(t, err, entity.ErrNotFound)

	other := outbound()
	other.Platform = "linkedin"
	err = c.Deliver(context.Background(), other)
	assert.ErrorIs(t, err, entity.ErrUnsupportedPlatform)
}
