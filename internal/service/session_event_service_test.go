package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"metabolite-assistant-be/internal/constant"
	"metabolite-assistant-be/internal/dto"
	"metabolite-assistant-be/internal/pkg/logger"
	"metabolite-assistant-be/pkg/assistant"
	"metabolite-assistant-be/pkg/chat"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type frame struct {
	sessionId uuid.UUID
	kind      string
	data      dto.SessionEventResponse
}

type collector struct {
	mu     sync.Mutex
	frames []frame
}

func (c *collector) Send(sessionId uuid.UUID, eventType string, data interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, frame{sessionId: sessionId, kind: eventType, data: data.(dto.SessionEventResponse)})
}

func (c *collector) snapshot() []frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]frame(nil), c.frames...)
}

func TestSessionEventsReachDeliveryInOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pubSub := gochannel.NewGoChannel(gochannel.Config{BlockPublishUntilSubscriberAck: true}, watermill.NopLogger{})
	defer pubSub.Close()

	delivery := &collector{}
	consumer := NewConsumerService(pubSub, constant.SessionEventTopic, delivery, logger.NewNopLogger())
	require.NoError(t, consumer.Consume(ctx))

	events := NewSessionEventService(NewPublisherService(constant.SessionEventTopic, pubSub), logger.NewNopLogger())
	go events.Run(ctx)

	o := chat.NewOrchestrator(&stubClient{reply: assistant.Reply{Reply: "`x` done"}}, events)
	s := chat.NewSession(nil)
	_, err := o.Submit(ctx, s, "go")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(delivery.snapshot()) == 4 }, 2*time.Second, 10*time.Millisecond)

	frames := delivery.snapshot()
	for i, f := range frames {
		assert.Equal(t, s.Id, f.sessionId)
		assert.Equal(t, constant.FrameSessionEvent, f.kind)
		assert.Equal(t, uint64(i+1), f.data.Seq)
	}
	assert.Equal(t, "message_appended", frames[2].data.Kind)
	require.NotNil(t, frames[2].data.Message)
	assert.Equal(t, "<code>x</code> done", frames[2].data.Message.Html)
	assert.Equal(t, dto.UIStateResponse{PanelOpen: true}, frames[3].data.State)
}

func TestSessionEventService_NotifyNeverBlocks(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()
	events := NewSessionEventService(NewPublisherService(constant.SessionEventTopic, pubSub), logger.NewNopLogger())

	// Run is not started, so the queue fills and the rest are dropped.
	done := make(chan struct{})
	go func() {
		for i := 0; i < sessionEventBuffer+10; i++ {
			events.Notify(chat.Event{SessionId: uuid.New(), Kind: chat.EventStateChanged})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Notify blocked")
	}
}
