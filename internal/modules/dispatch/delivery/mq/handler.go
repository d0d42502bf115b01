package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"anoa.com/tutorhub/internal/modules/dispatch/dto"
	"anoa.com/tutorhub/internal/modules/dispatch/service"
	"anoa.com/tutorhub/pkg/apperror"
	"anoa.com/tutorhub/pkg/mq"
	"go.uber.org/zap"
)

const (
	QueueName = "notification-dispatch"

	RoutingKeyDeliveryFailed = "notification.delivery_failed"
)

var routes = map[string]dto.EventType{
	"payout.approved":        dto.EventPayoutApproved,
	"payout.rejected":        dto.EventPayoutRejected,
	"payout.paid":            dto.EventPayoutPaid,
	"verification.scheduled": dto.EventVerificationScheduled,
	"message.direct":         dto.EventDirectMessage,
}

// RoutingKeys lists the keys the notification queue binds to.
func RoutingKeys() []string {
	return []string{
		"payout.approved",
		"payout.rejected",
		"payout.paid",
		"verification.scheduled",
		"message.direct",
	}
}

type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// Invalidator drops cached admin counts that an event may have changed.
type Invalidator interface {
	InvalidateUrgentCounts(ctx context.Context) error
}

type EventHandler struct {
	pipeline    service.Pipeline
	publisher   Publisher
	invalidator Invalidator
	logger      *zap.Logger
	now         func() time.Time
}

func NewEventHandler(pipeline service.Pipeline, publisher Publisher, invalidator Invalidator, logger *zap.Logger) *EventHandler {
	return &EventHandler{
		pipeline:    pipeline,
		publisher:   publisher,
		invalidator: invalidator,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Handle is an mq.MessageHandler. Malformed or unacceptable events are
// discarded. A stored notification whose mail failed is acked, since a
// redelivery would store it twice.
func (h *EventHandler) Handle(ctx context.Context, routingKey string, body []byte) error {
	eventType, ok := routes[routingKey]
	if !ok {
		return fmt.Errorf("unrouted key %q: %w", routingKey, mq.ErrDiscard)
	}

	var ev dto.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		h.logger.Error("failed to decode event", zap.String("routing_key", routingKey), zap.Error(err))
		return fmt.Errorf("decode %s: %w", routingKey, errors.Join(mq.ErrDiscard, err))
	}
	ev.Type = eventType

	if h.invalidator != nil && !strings.HasPrefix(routingKey, "message.") {
		if err := h.invalidator.InvalidateUrgentCounts(ctx); err != nil {
			h.logger.Warn("failed to invalidate urgent counts", zap.Error(err))
		}
	}

	n, err := h.pipeline.Deliver(ctx, ev)
	if err == nil {
		h.logger.Info("notification delivered",
			zap.String("event_type", string(ev.Type)),
			zap.String("notification_id", n.ID.String()),
		)
		return nil
	}

	var derr *service.DeliveryError
	if errors.As(err, &derr) {
		h.reportFailure(ctx, ev, derr)
		return nil
	}

	if errors.Is(err, apperror.ErrValidation) || errors.Is(err, apperror.ErrNotFound) {
		h.logger.Warn("event rejected",
			zap.String("event_type", string(ev.Type)),
			zap.String("recipient_id", ev.RecipientID.String()),
			zap.Error(err),
		)
		return errors.Join(mq.ErrDiscard, err)
	}
	return err
}

func (h *EventHandler) reportFailure(ctx context.Context, ev dto.Event, derr *service.DeliveryError) {
	if h.publisher == nil {
		return
	}
	failed := dto.DeliveryFailed{
		Event:          ev,
		NotificationID: derr.NotificationID,
		Error:          derr.Err.Error(),
		FailedAt:       h.now(),
	}
	if err := h.publisher.Publish(ctx, RoutingKeyDeliveryFailed, failed); err != nil {
		h.logger.Error("failed to publish delivery failure",
			zap.String("notification_id", derr.NotificationID.String()),
			zap.Error(err),
		)
	}
}
