package usage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Publisher exports committed usage records to Kafka for downstream
// analytics. It is optional: when no brokers are configured the request
// path simply skips publishing. A failed publish never fails the request.
type Publisher struct {
	writer *kafka.Writer
	logger *zap.Logger
	mu     sync.RWMutex
	topic  string
}

// PublisherConfig configures the Kafka publisher.
type PublisherConfig struct {
	Brokers      []string
	Topic        string
	ClientID     string
	BatchSize    int
	BatchTimeout time.Duration
	WriteTimeout time.Duration
}

// NewPublisher creates a Kafka publisher for usage records.
func NewPublisher(cfg PublisherConfig, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		ReadTimeout:  5 * time.Second,
	}
	if cfg.ClientID != "" {
		writer.Transport = &kafka.Transport{ClientID: cfg.ClientID}
	}

	return &Publisher{
		writer: writer,
		logger: logger.With(zap.String("component", "usage-publisher")),
		topic:  cfg.Topic,
	}
}

// Publish exports one committed usage record.
func (p *Publisher) Publish(ctx context.Context, record *Record) error {
	p.mu.RLock()
	writer := p.writer
	p.mu.RUnlock()

	if writer == nil {
		return fmt.Errorf("kafka writer is closed")
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("serialize usage record: %w", err)
	}

	message := kafka.Message{
		Key:   []byte(record.ID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "record_id", Value: []byte(record.ID)},
			{Key: "user_id", Value: []byte(record.UserID)},
			{Key: "model", Value: []byte(record.ModelName)},
			{Key: "difficulty", Value: []byte(record.Difficulty)},
		},
		Time: record.CreatedAt,
	}

	if err := writer.WriteMessages(ctx, message); err != nil {
		p.logger.Error("failed to publish usage record",
			zap.String("record_id", record.ID),
			zap.String("user_id", record.UserID),
			zap.Error(err),
		)
		return fmt.Errorf("publish usage record: %w", err)
	}

	p.logger.Debug("usage record published",
		zap.String("record_id", record.ID),
		zap.String("topic", p.topic),
	)
	return nil
}

// Close closes the Kafka writer. Safe to call multiple times.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writer == nil {
		return nil
	}
	err := p.writer.Close()
	p.writer = nil
	return err
}
