package cartsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/storefrontlab/storefront-backend/internal/checkout"
	"github.com/storefrontlab/storefront-backend/pkg/enums"
	"github.com/storefrontlab/storefront-backend/pkg/logger"
	"github.com/storefrontlab/storefront-backend/pkg/metrics"
	"github.com/storefrontlab/storefront-backend/pkg/outbox"
	"github.com/storefrontlab/storefront-backend/pkg/outbox/payloads"
)

const consumerName = "cartsync-worker"

type synchronizer interface {
	Sync(ctx context.Context, cartID uuid.UUID) (checkout.SyncOutcome, error)
}

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Consumer drives cart-to-session synchronization off cart_changed events.
// Sync failures are logged and swallowed: the next cart mutation publishes a
// fresh event and the full-replace sync converges regardless of what was missed.
type Consumer struct {
	sync         synchronizer
	subscription *pubsub.Subscriber
	manager      idempotencyChecker
	metrics      *metrics.CartSyncMetrics
	logg         *logger.Logger
	now          func() time.Time
}

// NewConsumer builds a cart sync consumer bound to the provided subscription.
func NewConsumer(sync synchronizer, subscription *pubsub.Subscriber, manager idempotencyChecker, m *metrics.CartSyncMetrics, logg *logger.Logger) (*Consumer, error) {
	if sync == nil {
		return nil, errors.New("synchronizer is required")
	}
	if subscription == nil {
		return nil, errors.New("cart subscription is required")
	}
	if manager == nil {
		return nil, errors.New("idempotency manager is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Consumer{
		sync:         sync,
		subscription: subscription,
		manager:      manager,
		metrics:      m,
		logg:         logg,
		now:          time.Now,
	}, nil
}

// Run processes messages until the context is canceled or the subscription
// errors. Every message is acked; this consumer never blocks the subscription.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		c.Process(ctx, msg.Attributes, msg.Data)
		msg.Ack()
	})
}

// Process handles one published cart event. Errors are logged, never returned:
// the caller acks unconditionally.
func (c *Consumer) Process(ctx context.Context, attributes map[string]string, data []byte) {
	started := c.now()

	eventType := enums.OutboxEventType(attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"event_type": eventType,
		"consumer":   consumerName,
	})

	if eventType != enums.EventCartChanged {
		c.logg.Info(logCtx, "event not handled by cart sync consumer")
		return
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode event envelope", err)
		return
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "event id missing or malformed", err)
		return
	}
	logCtx = c.logg.WithField(logCtx, "event_id", envelope.EventID)

	var payload payloads.CartChangedEvent
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		c.logg.Error(logCtx, "failed to decode cart_changed payload", err)
		return
	}
	if payload.CartID == uuid.Nil {
		c.logg.Error(logCtx, "cart_changed payload missing cart id", fmt.Errorf("empty cart_id"))
		return
	}
	logCtx = c.logg.WithCartID(logCtx, payload.CartID.String())

	already, err := c.manager.CheckAndMarkProcessed(ctx, consumerName, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return
	}

	outcome, err := c.sync.Sync(ctx, payload.CartID)
	c.observe(outcome, c.now().Sub(started))
	if err != nil {
		// Unmark so a future redelivery of this event can retry the sync.
		_ = c.manager.Delete(ctx, consumerName, eventID)
		c.logg.Error(logCtx, "cart sync failed", err)
		return
	}

	c.logg.Info(c.logg.WithField(logCtx, "outcome", string(outcome)), "cart sync processed")
}

func (c *Consumer) observe(outcome checkout.SyncOutcome, elapsed time.Duration) {
	if c.metrics == nil {
		return
	}
	label := metrics.SyncOutcomeFailed
	switch outcome {
	case checkout.SyncApplied:
		label = metrics.SyncOutcomeApplied
	case checkout.SyncNoSession:
		label = metrics.SyncOutcomeNoSession
	case checkout.SyncSkippedEmptyCart:
		label = metrics.SyncOutcomeSkippedEmpty
	}
	c.metrics.Observe(label, elapsed)
}
