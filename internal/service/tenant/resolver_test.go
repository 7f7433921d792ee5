package tenant

import (
	"FunnelRouter/entity"
	"context"
	"errors"
	"fmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"log/slog"
	"testing"
)

func newResolver(repo Repository) *Resolver {
	return NewResolver(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func seeded() *Memory {
	m := NewMemory()
	m.PutChannelMapping(entity.ChannelMapping{
		ChannelID:            "123456789",
		TenantID:             "tenant_123",
		CredentialSecretName: "wpp-token-tenant_123",
	})
	m.PutTenant(entity.Tenant{
		TenantID: "tenant_123",
		PlaybookConfigs: map[string]entity.PlaybookConfig{
			"core_bdr": {"greeting": "Oi!"},
		},
	})
	m.PutContact(entity.Contact{TenantID: "tenant_123", UserID: "5511888888888", ContactStatus: "sdr_qualified", ContactScore: 87.5})
	return m
}

func TestResolve(t *testing.T) {
	r := newResolver(seeded())

	mapping, err := r.Resolve(context.Background(), "123456789")
	require.NoError(t, err)
	assert.Equal(t, "tenant_123", mapping.TenantID)
	assert.Equal(t, "wpp-token-tenant_123", mapping.CredentialSecretName)

	_, err = r.Resolve(context.Background(), "unknown")
	assert.ErrorIs(t, err, entity.ErrNotFound)

	_, err = r.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestResolveIncompleteMapping(t *testing.T) {
	m := NewMemory()
	m.PutChannelMapping(entity.ChannelMapping{ChannelID: "1", TenantID: "t"})
	_, err := newResolver(m).Resolve(context.Background(), "1")
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestGetContact(t *testing.T) {
	r := newResolver(seeded())

	known, err := r.GetContact(context.Background(), "tenant_123", "5511888888888")
	require.NoError(t, err)
	assert.Equal(t, "sdr_qualified", known.ContactStatus)
	assert.Equal(t, 87.5, known.ContactScore)

	unseen, err := r.GetContact(context.Background(), "tenant_123", "5511999999999")
	require.NoError(t, err)
	assert.Equal(t, entity.DefaultContact("tenant_123", "5511999999999"), unseen)
}

type brokenRepo struct{ Repository }

func (brokenRepo) GetContact(context.Context, string, string) (*entity.Contact, error) {
	return nil, fmt.Errorf("mongo: %w", entity.ErrStoreUnavailable)
}

func TestGetContactStoreFailure(t *testing.T) {
	_, err := newResolver(brokenRepo{}).GetContact(context.Background(), "t", "u")
	assert.True(t, errors.Is(err, entity.ErrStoreUnavailable))
	assert.True(t, entity.IsRetryable(err))
}

func TestGetTenantAndPlaybook(t *testing.T) {
	r := newResolver(seeded())

	tenant, err := r.GetTenant(context.Background(), "tenant_123")
	require.NoError(t, err)

	playbook, err := r.Playbook(tenant, entity.FunnelInitialOutreach)
	require.NoError(t, err)
	assert.Equal(t, "Oi!", playbook["greeting"])

	_, err = r.Playbook(tenant, entity.FunnelQualifiedLead)
	assert.ErrorIs(t, err, entity.ErrNotFound)

	_, err = r.GetTenant(context.Background(), "tenant_missing")
	assert.ErrorIs(t, err, entity.ErrNotFound)
}
