package pubsub

import (
	"FunnelRouter/entity"
	"FunnelRouter/internal/service/queue"
	"context"
)

type Core interface {
	Handle(ctx context.Context, msg entity.QueueMessage) queue.Result
}
