package core

import (
	"FunnelRouter/entity"
	"FunnelRouter/internal/lib/sl"
	"FunnelRouter/internal/service/ledger"
	"FunnelRouter/internal/service/queue"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var errExhausted = errors.New("retry attempts exhausted")

const (
	kindExhausted   = "exhausted"
	ledgerTimeout   = 5 * time.Second
	kindUnsupported = "unsupported_platform"
)

// Handle runs every message of a queued envelope through the pipeline and tells the
// broker whether the envelope needs redelivery.
func (c *Core) Handle(ctx context.Context, msg entity.QueueMessage) queue.Result {
	platform := msg.Platform()
	log := c.log.With(
		slog.String("queue_id", msg.ID),
		slog.String("platform", platform),
		slog.Int("attempt", msg.Attempt),
	)

	base := entity.PipelineEvent{Key: msg.ID, QueueID: msg.ID, Platform: platform}

	normalizer, ok := c.normalizers[platform]
	if !ok {
		ev := base
		ev.State, ev.Kind = entity.StateFailed, kindUnsupported
		c.emit(ev)
		err := fmt.Errorf("%w: %s", entity.ErrUnsupportedPlatform, platform)
		log.Error("dropping message", sl.Err(err))
		c.alert(ev, err)
		return queue.Ack
	}

	received := base
	received.State = entity.StateReceived
	c.emit(received)

	messages, skipped := normalizer.Normalize(msg.Payload)
	if len(messages) == 0 {
		ev := base
		ev.State = entity.StateSkipped
		c.emit(ev)
		log.With(slog.Int("skipped", skipped)).Info("no text messages in payload")
		return queue.Ack
	}

	result := queue.Ack
	for i, m := range messages {
		err := c.process(ctx, msg, i, m)
		if err == nil {
			continue
		}

		ev := entity.PipelineEvent{
			Key:       idempotencyKey(msg, i, m),
			QueueID:   msg.ID,
			Platform:  m.Platform,
			ChannelID: m.ChannelID,
			UserID:    m.UserID,
			State:     entity.StateFailed,
			Kind:      entity.FailureKind(err),
		}
		mlog := log.With(
			slog.String("key", ev.Key),
			slog.String("channel_id", m.ChannelID),
			slog.String("user_id", m.UserID),
			slog.String("kind", ev.Kind),
		)

		exhausted := errors.Is(err, errExhausted)
		if !exhausted && entity.IsRetryable(err) {
			if msg.Attempt < c.maxAttempts {
				mlog.Warn("retryable failure", sl.Err(err))
				c.emit(ev)
				result = queue.Nack
				continue
			}
			if errors.Is(err, entity.ErrInFlight) {
				// the lease holder settles the key
				mlog.Info("attempts exhausted while in flight elsewhere")
				continue
			}
			exhausted = true
		}
		if exhausted {
			ev.Kind = kindExhausted
		}

		mlog.Error("message dropped", sl.Err(err))
		c.emit(ev)
		c.alert(ev, err)
	}

	return result
}

// process moves one inbound message through the states up to DELIVERED. The ledger
// claim is released on retryable failures and settled on success and on terminal
// failures. A retryable failure on the last allowed attempt is settled and reported
// wrapped in errExhausted. The attempt count is the larger of the broker's and the
// ledger's, so the bound holds even when the broker does not count redeliveries.
func (c *Core) process(ctx context.Context, q entity.QueueMessage, index int, m entity.InboundMessage) (err error) {
	key := idempotencyKey(q, index, m)
	ev := entity.PipelineEvent{
		Key:       key,
		QueueID:   q.ID,
		Platform:  m.Platform,
		ChannelID: m.ChannelID,
		UserID:    m.UserID,
	}
	step := func(state entity.State) {
		e := ev
		e.State = state
		c.emit(e)
	}

	claim, err := c.ledger.Begin(ctx, key, c.lease)
	if err != nil {
		return fmt.Errorf("%w: ledger: %v", entity.ErrStoreUnavailable, err)
	}
	switch claim.Status {
	case ledger.Done:
		step(entity.StateSkipped)
		c.log.With(slog.String("key", key)).Info("duplicate message skipped")
		return nil
	case ledger.InFlight:
		return fmt.Errorf("%s: %w", key, entity.ErrInFlight)
	}

	attempt := max(q.Attempt, claim.Attempts)
	defer func() {
		if err != nil && entity.IsRetryable(err) {
			if attempt < c.maxAttempts {
				c.release(ctx, key, claim.Token)
				return
			}
			err = fmt.Errorf("%w after %d attempts: %w", errExhausted, attempt, err)
		}
		c.finish(ctx, key, claim.Token)
	}()

	step(entity.StateNormalized)

	mapping, err := c.resolver.Resolve(ctx, m.ChannelID)
	if err != nil {
		return err
	}
	contact, err := c.resolver.GetContact(ctx, mapping.TenantID, m.UserID)
	if err != nil {
		return err
	}
	tenant, err := c.resolver.GetTenant(ctx, mapping.TenantID)
	if err != nil {
		return err
	}
	step(entity.StateTenantResolved)

	funnel := entity.SelectFunnel(contact.ContactStatus)
	playbook, err := c.resolver.Playbook(tenant, funnel)
	if err != nil {
		return err
	}
	ev.Funnel = funnel.String()
	step(entity.StateFunnelSelected)

	reply, err := c.agent.Invoke(ctx, m.Text, entity.SessionParameters{
		TenantID:            mapping.TenantID,
		ChannelID:           m.ChannelID,
		UserID:              m.UserID,
		Funnel:              funnel,
		PlaybookConfig:      playbook,
		ContactStatus:       contact.ContactStatus,
		ContactScore:        contact.ContactScore,
		ContactContextScore: contact.ContactContextScore,
	})
	if err != nil {
		return err
	}
	if reply == "" {
		step(entity.StateSkipped)
		c.log.With(slog.String("key", key)).Info("agent returned no reply")
		return nil
	}
	step(entity.StateAgentReplied)

	platform := mapping.Platform
	if platform == "" {
		platform = m.Platform
	}
	err = c.delivery.Deliver(ctx, entity.OutboundMessage{
		Platform:             platform,
		ChannelID:            m.ChannelID,
		SenderID:             m.SenderID,
		UserID:               m.UserID,
		Text:                 reply,
		CredentialSecretName: mapping.CredentialSecretName,
	})
	if err != nil {
		return err
	}
	step(entity.StateDelivered)
	return nil
}

// idempotencyKey identifies an inbound message across broker redeliveries.
func idempotencyKey(q entity.QueueMessage, index int, m entity.InboundMessage) string {
	if m.MessageID != "" {
		return fmt.Sprintf("%s:%s:%s", m.Platform, m.ChannelID, m.MessageID)
	}
	return fmt.Sprintf("%s#%d", q.ID, index)
}

func (c *Core) finish(ctx context.Context, key, token string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ledgerTimeout)
	defer cancel()
	if err := c.ledger.Complete(ctx, key, token); err != nil {
		c.log.With(slog.String("key", key)).Warn("ledger complete", sl.Err(err))
	}
}

func (c *Core) release(ctx context.Context, key, token string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ledgerTimeout)
	defer cancel()
	if err := c.ledger.Release(ctx, key, token); err != nil {
		c.log.With(slog.String("key", key)).Warn("ledger release", sl.Err(err))
	}
}
