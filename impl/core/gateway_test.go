package core

import (
	"FunnelRouter/entity"
	"FunnelRouter/internal/lib/signature"
	"context"
	"errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestHandleVerification(t *testing.T) {
	f := newFixture(t)

	challenge, err := f.core.HandleVerification("subscribe", "1158201444", verifyToken)
	require.NoError(t, err)
	assert.Equal(t, "1158201444", challenge)

	_, err = f.core.HandleVerification("subscribe", "1158201444", "wrong")
	assert.ErrorIs(t, err, entity.ErrForbidden)

	_, err = f.core.HandleVerification("unsubscribe", "1158201444", verifyToken)
	assert.ErrorIs(t, err, entity.ErrForbidden)

	f.core.SetVerifyToken("")
	_, err = f.core.HandleVerification("subscribe", "1", "")
	assert.ErrorIs(t, err, entity.ErrForbidden)
}

func TestHandleWebhookPublishesOnce(t *testing.T) {
	f := newFixture(t)
	body := []byte(scenarioEnvelope)

	id, err := f.core.HandleWebhook(context.Background(), "whatsapp", body, signature.Sign(body, []byte(appSecret)))
	require.NoError(t, err)
	assert.Equal(t, "queue-1", id)

	require.Len(t, f.publisher.payloads, 1)
	assert.Equal(t, body, f.publisher.payloads[0])
	assert.Equal(t, "whatsapp", f.publisher.attrs[0]["platform"])
	assert.Zero(t, f.agent.count(), "processing must not happen inline")
}

func TestHandleWebhookPlatforms(t *testing.T) {
	f := newFixture(t)
	body := []byte(`{"object":"instagram","entry":[]}`)
	sig := signature.Sign(body, []byte(appSecret))

	_, err := f.core.HandleWebhook(context.Background(), "instagram", body, sig)
	require.NoError(t, err)
	_, err = f.core.HandleWebhook(context.Background(), "meta", body, sig)
	require.NoError(t, err)
	assert.Equal(t, "instagram", f.publisher.attrs[0]["platform"])
	assert.Equal(t, "whatsapp", f.publisher.attrs[1]["platform"])

	_, err = f.core.HandleWebhook(context.Background(), "linkedin", body, sig)
	assert.ErrorIs(t, err, entity.ErrUnsupportedPlatform)
	assert.Len(t, f.publisher.payloads, 2)
}

func TestHandleWebhookRejectsBadSignature(t *testing.T) {
	f := newFixture(t)
	body := []byte(scenarioEnvelope)
	sig := signature.Sign(body, []byte(appSecret))

	tampered := append([]byte(nil), body...)
	tampered[10] ^= 0x01

	for name, tc := range map[string]struct {
		body []byte
		sig  string
	}{
		"tampered body":  {tampered, sig},
		"missing header": {body, ""},
		"wrong secret":   {body, signature.Sign(body, []byte("other"))},
		"no prefix":      {body, sig[len("sha256="):]},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.core.HandleWebhook(context.Background(), "whatsapp", tc.body, tc.sig)
			assert.ErrorIs(t, err, entity.ErrAuthFailure)
		})
	}
	assert.Empty(t, f.publisher.payloads)
}

func TestHandleWebhookPublishFailure(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("pubsub unavailable")
	body := []byte(scenarioEnvelope)

	_, err := f.core.HandleWebhook(context.Background(), "whatsapp", body, signature.Sign(body, []byte(appSecret)))
	require.Error(t, err)
	assert.NotErrorIs(t, err, entity.ErrAuthFailure)
}
