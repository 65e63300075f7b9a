package events

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// BusPublisher puts events on an in-process watermill topic.
type BusPublisher struct {
	pubSub *gochannel.GoChannel
	topic  string
}

func NewBusPublisher(pubSub *gochannel.GoChannel, topic string) *BusPublisher {
	return &BusPublisher{pubSub: pubSub, topic: topic}
}

func (p *BusPublisher) Publish(ctx context.Context, event Event) error {
	data, err := Encode(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.Metadata.Set("event_type", event.EventType())
	msg.SetContext(ctx)

	if err := p.pubSub.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("failed to publish event to topic %s: %w", p.topic, err)
	}
	return nil
}
