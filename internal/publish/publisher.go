// Package publish emits enrichment events to Google Cloud Pub/Sub.
package publish

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
)

// topicPublisher is the subset of *pubsub.Topic used here.
type topicPublisher interface {
	Publish(ctx context.Context, msg *pubsub.Message) *pubsub.PublishResult
}

// Publisher wraps a Pub/Sub topic for enrichment events.
type Publisher struct {
	topic topicPublisher
}

// New creates a Publisher for the provided project and topic. The
// topic must already exist.
func New(ctx context.Context, projectID, topicName string) (*Publisher, error) {
	if projectID == "" || topicName == "" {
		return nil, fmt.Errorf("pubsub project and topic are required")
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	topic := client.Topic(topicName)
	ok, err := topic.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("check topic %q: %w", topicName, err)
	}
	if !ok {
		return nil, fmt.Errorf("topic %q does not exist", topicName)
	}
	return &Publisher{topic: topic}, nil
}

// NewWithTopic constructs a Publisher from an existing topic handle
// (primarily for testing).
func NewWithTopic(topic topicPublisher) *Publisher {
	return &Publisher{topic: topic}
}

// Publish marshals the payload to JSON and publishes it with the given
// attributes, blocking until the server acknowledges the message.
func (p *Publisher) Publish(ctx context.Context, payload any, attributes map[string]string) error {
	if p == nil || p.topic == nil {
		return fmt.Errorf("pubsub publisher is not configured")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attributes,
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}
