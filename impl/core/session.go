package core

import (
	"FunnelRouter/entity"
	"context"
	"fmt"
)

// ResetSession drops the agent conversation of userID on channelID. The tenant comes
// from the channel mapping, the same way inbound messages are routed.
func (c *Core) ResetSession(ctx context.Context, channelID, userID string) error {
	resetter, ok := c.agent.(SessionResetter)
	if !ok {
		return fmt.Errorf("session reset: %w", entity.ErrNotSupported)
	}
	mapping, err := c.resolver.Resolve(ctx, channelID)
	if err != nil {
		return err
	}
	return resetter.ResetSession(mapping.TenantID, channelID, userID)
}
