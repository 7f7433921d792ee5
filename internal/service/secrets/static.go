package secrets

import (
	"FunnelRouter/entity"
	"context"
	"fmt"
)

// Static serves secrets from configuration, for local runs.
type Static map[string]string

func (s Static) Secret(_ context.Context, name string) (string, error) {
	v, ok := s[name]
	if !ok {
		return "", fmt.Errorf("secret %q: %w", name, entity.ErrNotFound)
	}
	return v, nil
}
