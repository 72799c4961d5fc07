package service

import (
	"context"
	"encoding/json"

	"metabolite-assistant-be/internal/constant"
	"metabolite-assistant-be/internal/pkg/logger"
	"metabolite-assistant-be/pkg/chat"
)

const sessionEventBuffer = 1024

// ISessionEventService receives session changes from the orchestrator and
// forwards them to the event bus in order.
type ISessionEventService interface {
	chat.Observer
	Run(ctx context.Context)
}

type sessionEventService struct {
	publisher IPublisherService
	logger    logger.ILogger
	queue     chan chat.Event
}

func NewSessionEventService(publisher IPublisherService, log logger.ILogger) ISessionEventService {
	return &sessionEventService{
		publisher: publisher,
		logger:    log,
		queue:     make(chan chat.Event, sessionEventBuffer),
	}
}

// Notify is called with the session locked and never blocks. Events are
// dropped when the queue is full.
func (s *sessionEventService) Notify(e chat.Event) {
	select {
	case s.queue <- e:
	default:
		s.logger.Warn(constant.LogModuleEventBus, "Session event queue full, dropping event", map[string]interface{}{
			"session_id": e.SessionId.String(),
			"seq":        e.Seq,
			"kind":       string(e.Kind),
		})
	}
}

// Run publishes queued events one at a time until ctx is done.
func (s *sessionEventService) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-s.queue:
			payload, err := json.Marshal(e)
			if err != nil {
				s.logger.Error(constant.LogModuleEventBus, "Failed to encode session event", map[string]interface{}{"error": err.Error()})
				continue
			}
			if err := s.publisher.Publish(ctx, payload); err != nil {
				s.logger.Error(constant.LogModuleEventBus, "Failed to publish session event", map[string]interface{}{
					"session_id": e.SessionId.String(),
					"error":      err.Error(),
				})
			}
		}
	}
}
