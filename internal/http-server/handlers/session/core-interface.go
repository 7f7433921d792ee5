package session

import "context"

type Core interface {
	ResetSession(ctx context.Context, channelID, userID string) error
}
