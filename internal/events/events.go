// Package events publishes order lifecycle events to Kafka. Publishing is
// optional: with no brokers configured the client is a no-op and the outbox
// worker only delivers notifications.
package events

import (
	"context"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

type Client struct {
	Brokers []string
	Topic   string
}

func NewClient(brokersCSV, topic string) *Client {
	brokers := []string{}
	for _, b := range strings.Split(brokersCSV, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return &Client{Brokers: brokers, Topic: topic}
}

func (c *Client) Enabled() bool {
	return len(c.Brokers) > 0
}

// Publish writes one keyed message. Callers treat errors as retryable.
func (c *Client) Publish(ctx context.Context, key string, payload []byte) error {
	if !c.Enabled() {
		return nil
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(c.Brokers...),
		Topic:        c.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
	}
	defer w.Close()

	return w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: payload,
	})
}
