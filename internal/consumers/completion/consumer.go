package completion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/storefrontlab/storefront-backend/pkg/enums"
	pkgerrors "github.com/storefrontlab/storefront-backend/pkg/errors"
	"github.com/storefrontlab/storefront-backend/pkg/logger"
	"github.com/storefrontlab/storefront-backend/pkg/outbox"
	"github.com/storefrontlab/storefront-backend/pkg/outbox/payloads"
)

const consumerName = "completion-worker"

type sessionCompleter interface {
	Complete(ctx context.Context, sessionID uuid.UUID) error
}

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Consumer finalizes confirmed sessions. It reacts to session_confirmed
// events and drives the confirmed-to-completed transition.
type Consumer struct {
	checkout     sessionCompleter
	subscription *pubsub.Subscriber
	manager      idempotencyChecker
	logg         *logger.Logger
}

// NewConsumer builds a completion consumer bound to the provided subscription.
func NewConsumer(checkout sessionCompleter, subscription *pubsub.Subscriber, manager idempotencyChecker, logg *logger.Logger) (*Consumer, error) {
	if checkout == nil {
		return nil, errors.New("checkout service is required")
	}
	if subscription == nil {
		return nil, errors.New("checkout subscription is required")
	}
	if manager == nil {
		return nil, errors.New("idempotency manager is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Consumer{
		checkout:     checkout,
		subscription: subscription,
		manager:      manager,
		logg:         logg,
	}, nil
}

// Run processes messages until the context is canceled or the subscription
// errors. Retryable failures nack so Pub/Sub redelivers.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.Process(ctx, msg.Attributes, msg.Data) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// Process handles one checkout event and reports whether to ack it.
func (c *Consumer) Process(ctx context.Context, attributes map[string]string, data []byte) bool {
	eventType := enums.OutboxEventType(attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"event_type": eventType,
		"consumer":   consumerName,
	})

	if eventType != enums.EventSessionConfirmed {
		return true
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode event envelope", err)
		return true
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "event id missing or malformed", err)
		return true
	}
	logCtx = c.logg.WithField(logCtx, "event_id", envelope.EventID)

	var payload payloads.SessionConfirmedEvent
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		c.logg.Error(logCtx, "failed to decode session_confirmed payload", err)
		return true
	}
	if payload.SessionID == uuid.Nil {
		c.logg.Error(logCtx, "session_confirmed payload missing session id", fmt.Errorf("empty session_id"))
		return true
	}
	logCtx = c.logg.WithSessionID(logCtx, payload.SessionID.String())

	already, err := c.manager.CheckAndMarkProcessed(ctx, consumerName, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return false
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return true
	}

	if err := c.checkout.Complete(ctx, payload.SessionID); err != nil {
		_ = c.manager.Delete(ctx, consumerName, eventID)
		// A session that vanished or can never transition is not retryable.
		switch pkgerrors.CodeOf(err) {
		case pkgerrors.CodeNotFound, pkgerrors.CodeStateConflict:
			c.logg.Warn(c.logg.WithField(logCtx, "error", err.Error()), "session cannot be completed, dropping event")
			return true
		}
		c.logg.Error(logCtx, "failed to complete session", err)
		return false
	}

	c.logg.Info(logCtx, "session completed")
	return true
}
