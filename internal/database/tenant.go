package repository

import (
	"FunnelRouter/entity"
	"context"
	"fmt"
	"go.mongodb.org/mongo-driver/bson"
)

func (m *MongoDB) GetTenant(ctx context.Context, tenantID string) (*entity.Tenant, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	var tenant entity.Tenant
	err := m.collection(tenantsCollection).FindOne(ctx, bson.D{{Key: "_id", Value: tenantID}}).Decode(&tenant)
	if err != nil {
		return nil, fmt.Errorf("tenant %s: %w", tenantID, m.findError(err))
	}
	return &tenant, nil
}
