package service

import (
	"context"
	"encoding/json"

	"metabolite-assistant-be/internal/constant"
	"metabolite-assistant-be/internal/mapper"
	"metabolite-assistant-be/internal/pkg/logger"
	"metabolite-assistant-be/pkg/chat"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

// EventDelivery pushes frames to the clients watching a session.
type EventDelivery interface {
	Send(sessionId uuid.UUID, eventType string, data interface{})
}

type IConsumerService interface {
	Consume(ctx context.Context) error
}

type consumerService struct {
	subscriber message.Subscriber
	topicName  string
	delivery   EventDelivery
	mapper     *mapper.AssistantMapper
	logger     logger.ILogger
}

func NewConsumerService(
	subscriber message.Subscriber,
	topicName string,
	delivery EventDelivery,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		subscriber: subscriber,
		topicName:  topicName,
		delivery:   delivery,
		mapper:     mapper.NewAssistantMapper(),
		logger:     log,
	}
}

// Consume subscribes and processes messages in the background until ctx is done.
func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(msg *message.Message) {
	// Undecodable messages are acked so they are not redelivered forever.
	defer msg.Ack()

	var e chat.Event
	if err := json.Unmarshal(msg.Payload, &e); err != nil {
		cs.logger.Error(constant.LogModuleConsumer, "Failed to unmarshal session event", map[string]interface{}{
			"error":      err.Error(),
			"message_id": msg.UUID,
		})
		return
	}

	cs.delivery.Send(e.SessionId, constant.FrameSessionEvent, cs.mapper.EventToResponse(e))
}
