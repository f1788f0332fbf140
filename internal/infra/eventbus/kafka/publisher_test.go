package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ahrav/jobwatch/internal/domain/background"
	"github.com/ahrav/jobwatch/internal/domain/events"
	"github.com/ahrav/jobwatch/internal/infra/eventbus/serialization"
	"github.com/ahrav/jobwatch/pkg/common/logger"
)

type mockPublisherMetrics struct{ mock.Mock }

func (m *mockPublisherMetrics) IncMessagePublished(ctx context.Context, topic string) {
	m.Called(ctx, topic)
}

func (m *mockPublisherMetrics) IncPublishError(ctx context.Context, topic string) {
	m.Called(ctx, topic)
}

func newTestItem(t *testing.T) *background.TrackedItem {
	t.Helper()

	item, err := background.NewTrackedItem("export", background.UITypeQuery, false,
		background.StatusRecord{ID: "J1", Kind: background.JobKindSearch, State: background.JobStateWorking})
	require.NoError(t, err)
	return item
}

func TestPublisher_PublishDomainEvent(t *testing.T) {
	producer := mocks.NewSyncProducer(t, NewProducerConfig("test"))
	defer producer.Close()

	var sent *sarama.ProducerMessage
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		sent = msg
		return nil
	})

	metrics := new(mockPublisherMetrics)
	metrics.On("IncMessagePublished", mock.Anything, "jobwatch-events").Once()

	pub := NewPublisher(producer, "jobwatch-events", logger.Noop(), metrics, noop.NewTracerProvider().Tracer("test"))

	item := newTestItem(t)
	err := pub.PublishDomainEvent(context.Background(), background.NewItemAddedEvent(item), events.WithKey(item.ID()))
	require.NoError(t, err)

	require.NotNil(t, sent)
	assert.Equal(t, "jobwatch-events", sent.Topic)

	key, err := sent.Key.Encode()
	require.NoError(t, err)
	assert.Equal(t, item.ID(), string(key))

	value, err := sent.Value.Encode()
	require.NoError(t, err)
	env, err := serialization.DeserializeEventEnvelope(value)
	require.NoError(t, err)
	assert.Equal(t, background.EventTypeItemAdded, env.Type)

	metrics.AssertExpectations(t)
}

func TestPublisher_SendFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, NewProducerConfig("test"))
	defer producer.Close()

	sendErr := errors.New("broker unavailable")
	producer.ExpectSendMessageAndFail(sendErr)

	metrics := new(mockPublisherMetrics)
	metrics.On("IncPublishError", mock.Anything, "jobwatch-events").Once()

	pub := NewPublisher(producer, "jobwatch-events", logger.Noop(), metrics, noop.NewTracerProvider().Tracer("test"))

	err := pub.PublishDomainEvent(context.Background(), background.NewItemAddedEvent(newTestItem(t)))
	require.ErrorIs(t, err, sendErr)

	metrics.AssertExpectations(t)
}

func TestProducerConfig(t *testing.T) {
	cfg := NewProducerConfig("jobwatch")

	assert.Equal(t, "jobwatch", cfg.ClientID)
	assert.Equal(t, sarama.WaitForAll, cfg.Producer.RequiredAcks)
	assert.True(t, cfg.Producer.Return.Successes)
	require.NoError(t, cfg.Validate())
}
