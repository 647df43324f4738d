package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"tickfolio/internal/application/port"

	"github.com/segmentio/kafka-go"
)

// Writer is the subset of *kafka.Writer the publisher needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Config struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
}

// Publisher sends each measurement as one JSON message keyed by its name.
type Publisher struct {
	w     Writer
	topic string
}

func NewWriter(cfg Config) (*kafka.Writer, error) {
	if len(cfg.Brokers) == 0 || strings.TrimSpace(cfg.Topic) == "" {
		return nil, fmt.Errorf("kafka: brokers and topic are required")
	}
	bt := cfg.BatchTimeout
	if bt <= 0 {
		bt = 10 * time.Millisecond
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           bt,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}, nil
}

func NewPublisher(w Writer, topic string) *Publisher {
	return &Publisher{w: w, topic: topic}
}

func (p *Publisher) Append(ctx context.Context, m port.Measurement) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return err
	}
	err = p.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(m.Name),
		Value: payload,
		Time:  m.Time,
	})
	if err != nil {
		return fmt.Errorf("kafka publish %s: %w", p.topic, err)
	}
	return nil
}

func (p *Publisher) Close() error { return p.w.Close() }

var _ port.MeasurementStore = (*Publisher)(nil)
