package repository

import (
	"FunnelRouter/entity"
	"context"
	"fmt"
	"go.mongodb.org/mongo-driver/bson"
)

// GetChannelMapping loads the mapping stored under the channel id. Documents missing a
// required field are treated as absent.
func (m *MongoDB) GetChannelMapping(ctx context.Context, channelID string) (*entity.ChannelMapping, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	var mapping entity.ChannelMapping
	err := m.collection(channelMappingsCollection).FindOne(ctx, bson.D{{Key: "_id", Value: channelID}}).Decode(&mapping)
	if err != nil {
		return nil, fmt.Errorf("channel %s: %w", channelID, m.findError(err))
	}

	if err = mapping.Validate(); err != nil {
		return nil, fmt.Errorf("channel %s: %w: %v", channelID, entity.ErrNotFound, err)
	}
	return &mapping, nil
}
