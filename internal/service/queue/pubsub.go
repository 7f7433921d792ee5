package queue

import (
	"FunnelRouter/entity"
	"FunnelRouter/internal/lib/sl"
	"cloud.google.com/go/pubsub"
	"context"
	"fmt"
	"google.golang.org/api/option"
	"log/slog"
	"time"
)

// PubSub publishes to a topic and pulls from a subscription on Google Cloud Pub/Sub.
type PubSub struct {
	client         *pubsub.Client
	topic          *pubsub.Topic
	subscription   *pubsub.Subscription
	publishTimeout time.Duration
	lease          time.Duration
	log            *slog.Logger
}

type PubSubOptions struct {
	ProjectID       string
	CredentialsFile string
	Topic           string
	Subscription    string
	Workers         int
	Lease           time.Duration
	PublishTimeout  time.Duration
}

func NewPubSub(ctx context.Context, opts PubSubOptions, log *slog.Logger) (*PubSub, error) {
	var clientOpts []option.ClientOption
	if opts.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	}
	client, err := pubsub.NewClient(ctx, opts.ProjectID, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("pubsub client: %w", err)
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	sub := client.Subscription(opts.Subscription)
	sub.ReceiveSettings.NumGoroutines = workers
	sub.ReceiveSettings.MaxOutstandingMessages = workers
	if opts.Lease > 0 {
		sub.ReceiveSettings.MaxExtension = opts.Lease
	}

	return &PubSub{
		client:         client,
		topic:          client.Topic(opts.Topic),
		subscription:   sub,
		publishTimeout: opts.PublishTimeout,
		lease:          opts.Lease,
		log:            log.With(sl.Module("queue.pubsub")),
	}, nil
}

func (p *PubSub) Publish(ctx context.Context, payload []byte, attributes map[string]string) (string, error) {
	if p.publishTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.publishTimeout)
		defer cancel()
	}
	id, err := p.topic.Publish(ctx, &pubsub.Message{
		Data:       payload,
		Attributes: attributes,
	}).Get(ctx)
	if err != nil {
		return "", fmt.Errorf("pubsub publish: %w", err)
	}
	return id, nil
}

func (p *PubSub) Consume(ctx context.Context, h Handler) error {
	p.log.With(slog.String("subscription", p.subscription.ID())).Info("receiving messages")

	return p.subscription.Receive(ctx, func(ctx context.Context, m *pubsub.Message) {
		msg := entity.QueueMessage{
			ID:         m.ID,
			Payload:    m.Data,
			Attributes: m.Attributes,
			Attempt:    1,
		}
		if m.DeliveryAttempt != nil {
			msg.Attempt = *m.DeliveryAttempt
		}

		hctx := ctx
		if p.lease > 0 {
			var cancel context.CancelFunc
			hctx, cancel = context.WithTimeout(ctx, p.lease)
			defer cancel()
		}

		if h(hctx, msg) == Ack {
			m.Ack()
			return
		}
		m.Nack()
	})
}

func (p *PubSub) Close() error {
	p.topic.Stop()
	return p.client.Close()
}
