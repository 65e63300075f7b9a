package service

import (
	"context"
	"sync/atomic"

	"ai-chatbot-be/internal/pkg/logger"
	"ai-chatbot-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
	Snapshot() Stats
}

// Stats counts what the event stream has announced since start.
type Stats struct {
	DocumentsIngested int64
	ChunksIndexed     int64
	SessionResets     int64
}

type consumerService struct {
	pubSub    *gochannel.GoChannel
	topicName string
	logger    logger.ILogger

	documents atomic.Int64
	chunks    atomic.Int64
	resets    atomic.Int64
}

func NewConsumerService(pubSub *gochannel.GoChannel, topicName string, log logger.ILogger) IConsumerService {
	return &consumerService{
		pubSub:    pubSub,
		topicName: topicName,
		logger:    log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
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

func (cs *consumerService) Snapshot() Stats {
	return Stats{
		DocumentsIngested: cs.documents.Load(),
		ChunksIndexed:     cs.chunks.Load(),
		SessionResets:     cs.resets.Load(),
	}
}

func (cs *consumerService) processMessage(msg *message.Message) {
	// Malformed events are acked so they are not redelivered forever
	defer msg.Ack()

	event, err := events.Decode(msg.Payload)
	if err != nil {
		cs.logger.Error("EVENTS", "Failed to decode event", map[string]interface{}{
			"message_id": msg.UUID,
			"error":      err.Error(),
		})
		return
	}

	switch event.EventType() {
	case events.TypeDocumentIngested:
		if reused, _ := event.Data["reused"].(bool); !reused {
			cs.documents.Add(1)
			// JSON numbers decode as float64
			if chunks, ok := event.Data["chunks"].(float64); ok {
				cs.chunks.Add(int64(chunks))
			}
		}
	case events.TypeSessionReset:
		cs.resets.Add(1)
	}

	cs.logger.Info("EVENTS", "Event received", map[string]interface{}{
		"type":       event.EventType(),
		"session_id": event.Data["session_id"],
	})
}
