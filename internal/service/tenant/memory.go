package tenant

import (
	"FunnelRouter/entity"
	"context"
	"fmt"
	"sync"
)

// Memory is a Repository held in process, used when no document store is configured.
type Memory struct {
	mu       sync.RWMutex
	channels map[string]entity.ChannelMapping
	tenants  map[string]entity.Tenant
	contacts map[string]entity.Contact
}

func NewMemory() *Memory {
	return &Memory{
		channels: make(map[string]entity.ChannelMapping),
		tenants:  make(map[string]entity.Tenant),
		contacts: make(map[string]entity.Contact),
	}
}

func (m *Memory) PutChannelMapping(mapping entity.ChannelMapping) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[mapping.ChannelID] = mapping
}

func (m *Memory) PutTenant(tenant entity.Tenant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tenants[tenant.TenantID] = tenant
}

func (m *Memory) PutContact(contact entity.Contact) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contacts[contactKey(contact.TenantID, contact.UserID)] = contact
}

func (m *Memory) GetChannelMapping(_ context.Context, channelID string) (*entity.ChannelMapping, error) {
	m.mu.RLock()
	mapping, ok := m.channels[channelID]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("channel %s: %w", channelID, entity.ErrNotFound)
	}
	if err := mapping.Validate(); err != nil {
		return nil, fmt.Errorf("channel %s: %w: %v", channelID, entity.ErrNotFound, err)
	}
	return &mapping, nil
}

func (m *Memory) GetTenant(_ context.Context, tenantID string) (*entity.Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tenant, ok := m.tenants[tenantID]
	if !ok {
		return nil, fmt.Errorf("tenant %s: %w", tenantID, entity.ErrNotFound)
	}
	return &tenant, nil
}

func (m *Memory) GetContact(_ context.Context, tenantID, userID string) (*entity.Contact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	contact, ok := m.contacts[contactKey(tenantID, userID)]
	if !ok {
		return nil, fmt.Errorf("contact %s/%s: %w", tenantID, userID, entity.ErrNotFound)
	}
	return &contact, nil
}

func contactKey(tenantID, userID string) string {
	return tenantID + "|" + userID
}
