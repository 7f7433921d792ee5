// Package tenant resolves the business context of an inbound message: the channel
// mapping, the tenant's playbooks and the sender's contact record.
package tenant

import (
	"FunnelRouter/entity"
	"FunnelRouter/internal/lib/sl"
	"context"
	"errors"
	"fmt"
	"log/slog"
)

type Repository interface {
	GetChannelMapping(ctx context.Context, channelID string) (*entity.ChannelMapping, error)
	GetTenant(ctx context.Context, tenantID string) (*entity.Tenant, error)
	GetContact(ctx context.Context, tenantID, userID string) (*entity.Contact, error)
}

type Resolver struct {
	repo Repository
	log  *slog.Logger
}

func NewResolver(repo Repository, log *slog.Logger) *Resolver {
	return &Resolver{
		repo: repo,
		log:  log.With(sl.Module("tenant")),
	}
}

// Resolve fails with entity.ErrNotFound when no usable mapping exists for the channel.
func (r *Resolver) Resolve(ctx context.Context, channelID string) (entity.ChannelMapping, error) {
	if channelID == "" {
		return entity.ChannelMapping{}, fmt.Errorf("empty channel id: %w", entity.ErrNotFound)
	}
	mapping, err := r.repo.GetChannelMapping(ctx, channelID)
	if err != nil {
		return entity.ChannelMapping{}, err
	}
	if mapping == nil {
		return entity.ChannelMapping{}, fmt.Errorf("channel %s: %w", channelID, entity.ErrNotFound)
	}
	return *mapping, nil
}

// GetContact returns the default contact when the store has no record for the user.
func (r *Resolver) GetContact(ctx context.Context, tenantID, userID string) (entity.Contact, error) {
	contact, err := r.repo.GetContact(ctx, tenantID, userID)
	if errors.Is(err, entity.ErrNotFound) || (err == nil && contact == nil) {
		r.log.With(
			slog.String("tenant_id", tenantID),
			slog.String("user_id", userID),
		).Debug("contact not found, using default")
		return entity.DefaultContact(tenantID, userID), nil
	}
	if err != nil {
		return entity.Contact{}, err
	}
	return *contact, nil
}

// GetTenant fails with entity.ErrNotFound when the tenant document is absent.
func (r *Resolver) GetTenant(ctx context.Context, tenantID string) (entity.Tenant, error) {
	tenant, err := r.repo.GetTenant(ctx, tenantID)
	if err != nil {
		return entity.Tenant{}, err
	}
	if tenant == nil {
		return entity.Tenant{}, fmt.Errorf("tenant %s: %w", tenantID, entity.ErrNotFound)
	}
	return *tenant, nil
}

// Playbook returns the tenant's configuration for funnel; a missing playbook is terminal.
func (r *Resolver) Playbook(tenant entity.Tenant, funnel entity.Funnel) (entity.PlaybookConfig, error) {
	playbook, ok := tenant.Playbook(funnel)
	if !ok {
		return nil, fmt.Errorf("tenant %s has no playbook for %s: %w", tenant.TenantID, funnel, entity.ErrNotFound)
	}
	return playbook, nil
}
