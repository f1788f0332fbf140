// Package kafka forwards monitor events to a Kafka topic so that processes
// other than the client can follow tracked jobs.
package kafka

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/jobwatch/internal/domain/events"
	"github.com/ahrav/jobwatch/internal/infra/eventbus/kafka/tracing"
	"github.com/ahrav/jobwatch/internal/infra/eventbus/serialization"
	"github.com/ahrav/jobwatch/pkg/common/logger"
)

// PublisherMetrics defines metrics operations needed to monitor Kafka publishing.
type PublisherMetrics interface {
	IncMessagePublished(ctx context.Context, topic string)
	IncPublishError(ctx context.Context, topic string)
}

// Config contains settings for connecting to and publishing to Kafka.
type Config struct {
	// Brokers is a list of Kafka broker addresses to connect to.
	Brokers []string
	// Topic receives every monitor event.
	Topic string
	// ClientID uniquely identifies this client to the Kafka cluster.
	ClientID string
}

var _ events.DomainEventPublisher = (*Publisher)(nil)

// Publisher implements events.DomainEventPublisher on top of a sarama
// SyncProducer. Events are JSON encoded and keyed by item id so all events of
// one item land in the same partition.
type Publisher struct {
	producer sarama.SyncProducer
	topic    string

	logger  *logger.Logger
	tracer  trace.Tracer
	metrics PublisherMetrics
}

// NewProducerConfig returns the sarama settings used for publishing.
func NewProducerConfig(clientID string) *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = clientID
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Return.Successes = true
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	cfg.Version = sarama.V3_6_0_0
	return cfg
}

// NewPublisherFromConfig dials the brokers and creates a Publisher.
func NewPublisherFromConfig(
	cfg *Config,
	logger *logger.Logger,
	metrics PublisherMetrics,
	tracer trace.Tracer,
) (*Publisher, error) {
	producer, err := sarama.NewSyncProducer(cfg.Brokers, NewProducerConfig(cfg.ClientID))
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return NewPublisher(producer, cfg.Topic, logger, metrics, tracer), nil
}

// NewPublisher creates a Publisher that writes to topic through producer.
func NewPublisher(
	producer sarama.SyncProducer,
	topic string,
	logger *logger.Logger,
	metrics PublisherMetrics,
	tracer trace.Tracer,
) *Publisher {
	return &Publisher{
		producer: producer,
		topic:    topic,
		logger:   logger.With("component", "kafka_publisher", "topic", topic),
		tracer:   tracer,
		metrics:  metrics,
	}
}

// PublishDomainEvent encodes event and sends it to the configured topic.
func (p *Publisher) PublishDomainEvent(ctx context.Context, event events.DomainEvent, opts ...events.PublishOption) error {
	env := events.ToEnvelope(event, opts...)

	ctx, span := tracing.StartProducerSpan(ctx, p.topic, p.tracer)
	defer span.End()
	span.SetAttributes(
		attribute.String("event.type", string(env.Type)),
		attribute.String("event.key", env.Key),
	)

	msgBytes, err := serialization.SerializeEventEnvelope(env)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "serialization failed")
		if p.metrics != nil {
			p.metrics.IncPublishError(ctx, p.topic)
		}
		return fmt.Errorf("failed to serialize payload for event %s: %w", env.Type, err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(env.Key),
		Value: sarama.ByteEncoder(msgBytes),
	}
	for k, v := range env.Headers {
		msg.Headers = append(msg.Headers, sarama.RecordHeader{Key: []byte(k), Value: []byte(v)})
	}
	tracing.InjectTraceContext(ctx, msg)

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "send failed")
		if p.metrics != nil {
			p.metrics.IncPublishError(ctx, p.topic)
		}
		return fmt.Errorf("failed to send message to kafka topic %s: %w", p.topic, err)
	}

	if p.metrics != nil {
		p.metrics.IncMessagePublished(ctx, p.topic)
	}
	p.logger.Debug(ctx, "Published message to Kafka",
		"event_type", string(env.Type),
		"partition", partition,
		"offset", offset,
		"key", env.Key,
	)

	return nil
}

// Close flushes and closes the producer.
func (p *Publisher) Close() error { return p.producer.Close() }
