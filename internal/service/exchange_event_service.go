package service

import (
	"context"
	"time"

	"metabolite-assistant-be/internal/constant"
	"metabolite-assistant-be/internal/entity"
	"metabolite-assistant-be/internal/pkg/logger"
	"metabolite-assistant-be/pkg/events"
	pktNats "metabolite-assistant-be/pkg/nats"

	"github.com/google/uuid"
)

const (
	publishTimeout = 5 * time.Second
	auditDurable   = "assistant-failure-audit"
)

// IExchangeEventService announces session and exchange lifecycle events on
// the message bus. Publishing failures are logged and never reach callers.
type IExchangeEventService interface {
	SessionCreated(ctx context.Context, sessionId uuid.UUID)
	SessionDeleted(ctx context.Context, sessionId uuid.UUID)
	ExchangeSettled(ctx context.Context, exchange *entity.Exchange)
	// Audit logs every failed exchange seen on the bus, from any instance.
	Audit(ctx context.Context, subscriber *pktNats.Subscriber) error
}

type exchangeEventService struct {
	publisher events.Publisher
	logger    logger.ILogger
}

func NewExchangeEventService(publisher events.Publisher, log logger.ILogger) IExchangeEventService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &exchangeEventService{publisher: publisher, logger: log}
}

func (s *exchangeEventService) SessionCreated(ctx context.Context, sessionId uuid.UUID) {
	s.publish(ctx, events.New(constant.EventSessionCreated, map[string]interface{}{
		"session_id": sessionId.String(),
	}))
}

func (s *exchangeEventService) SessionDeleted(ctx context.Context, sessionId uuid.UUID) {
	s.publish(ctx, events.New(constant.EventSessionDeleted, map[string]interface{}{
		"session_id": sessionId.String(),
	}))
}

func (s *exchangeEventService) ExchangeSettled(ctx context.Context, exchange *entity.Exchange) {
	eventType := constant.EventExchangeCompleted
	if exchange.IsError {
		eventType = constant.EventExchangeFailed
	}
	s.publish(ctx, events.New(eventType, map[string]interface{}{
		"exchange_id": exchange.Id.String(),
		"session_id":  exchange.SessionId.String(),
		"task":        exchange.Task,
		"sent":        exchange.Sent,
		"duration_ms": exchange.Duration.Milliseconds(),
	}))
}

func (s *exchangeEventService) Audit(ctx context.Context, subscriber *pktNats.Subscriber) error {
	return subscriber.Subscribe(ctx, constant.EventExchangeFailed, auditDurable, func(_ context.Context, event events.Event) error {
		s.logger.Warn(constant.LogModuleExchangeEvents, "Assistant exchange failed", event.Payload())
		return nil
	})
}

func (s *exchangeEventService) publish(ctx context.Context, event events.Event) {
	// Detached from the request so a cancelled client does not drop the event.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn(constant.LogModuleExchangeEvents, "Failed to publish event", map[string]interface{}{
			"type":  event.EventType(),
			"error": err.Error(),
		})
	}
}
