package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// MockKafkaWriter implements KafkaWriter for testing
type MockKafkaWriter struct {
	mock.Mock
}

func (m *MockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *MockKafkaWriter) Close() error {
	args := m.Called()
	return args.Error(0)
}

func testEvent() Event {
	return Event{
		Type:        JobCreated,
		JobID:       42,
		CompanyID:   7,
		CompanyName: "Acme",
		ExternalID:  "ext-42",
		ScrapeDate:  "2024-01-08",
		OccurredAt:  time.Date(2024, 1, 8, 10, 0, 0, 0, time.UTC),
	}
}

func TestProducer_Produce(t *testing.T) {
	t.Run("queues event", func(t *testing.T) {
		producer := newProducer(new(MockKafkaWriter), zaptest.NewLogger(t), 10)

		producer.Produce(testEvent())

		assert.Equal(t, 1, len(producer.events))
	})

	t.Run("dropped event when queue full", func(t *testing.T) {
		core, recorded := observer.New(zap.WarnLevel)
		producer := newProducer(new(MockKafkaWriter), zap.New(core), 1)

		producer.Produce(testEvent())
		producer.Produce(testEvent())

		assert.Equal(t, 1, recorded.FilterMessage("Kafka producer queue full, dropping event").Len())
		assert.Equal(t, 1, recorded.FilterField(zap.Uint("job_id", 42)).Len())
	})
}

func TestProducer_SendEvent(t *testing.T) {
	event := testEvent()

	t.Run("successful send", func(t *testing.T) {
		mockWriter := new(MockKafkaWriter)
		mockWriter.On("WriteMessages", mock.Anything, mock.Anything).Return(nil)
		producer := newProducer(mockWriter, zaptest.NewLogger(t), 1)

		producer.sendEvent(context.Background(), event)

		value, err := json.Marshal(event)
		require.NoError(t, err)
		mockWriter.AssertCalled(t, "WriteMessages", mock.Anything, []kafka.Message{
			{Key: []byte("42"), Value: value},
		})
	})

	t.Run("serialization error", func(t *testing.T) {
		core, recorded := observer.New(zap.ErrorLevel)
		mockWriter := new(MockKafkaWriter)
		producer := newProducer(mockWriter, zap.New(core), 1)

		oldMarshal := jsonMarshal
		jsonMarshal = func(_ interface{}) ([]byte, error) {
			return nil, errors.New("mock marshal error")
		}
		defer func() { jsonMarshal = oldMarshal }()

		producer.sendEvent(context.Background(), event)

		assert.Equal(t, 1, recorded.FilterMessage("Failed to serialize event").Len())
		mockWriter.AssertNotCalled(t, "WriteMessages", mock.Anything, mock.Anything)
	})

	t.Run("write error", func(t *testing.T) {
		core, recorded := observer.New(zap.ErrorLevel)
		mockWriter := new(MockKafkaWriter)
		mockWriter.On("WriteMessages", mock.Anything, mock.Anything).Return(errors.New("kafka error"))
		producer := newProducer(mockWriter, zap.New(core), 1)

		producer.sendEvent(context.Background(), event)

		assert.Equal(t, 1, recorded.FilterMessage("Failed to produce event").Len())
	})
}

func TestProducer_EventLoopAndClose(t *testing.T) {
	mockWriter := new(MockKafkaWriter)
	delivered := make(chan struct{})
	mockWriter.On("WriteMessages", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { close(delivered) }).
		Return(nil).Once()
	mockWriter.On("Close").Return(nil)

	producer := newProducer(mockWriter, zaptest.NewLogger(t), 1)
	go producer.eventLoop()

	producer.Produce(testEvent())

	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered")
	}

	producer.Close()

	select {
	case <-producer.closeChan:
	default:
		t.Error("closeChan not closed")
	}
	mockWriter.AssertCalled(t, "Close")
}

func TestNopProducer(t *testing.T) {
	assert.NotPanics(t, func() {
		var p NopProducer
		p.Produce(testEvent())
		p.Close()
	})
}

// fakeReader serves a fixed list of messages, then blocks until cancelled.
type fakeReader struct {
	msgs      []kafka.Message
	committed []int64
	cancel    context.CancelFunc
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(f.msgs) == 0 {
		f.cancel()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	msg := f.msgs[0]
	f.msgs = f.msgs[1:]
	return msg, nil
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeReader) Close() error { return nil }

func quickRetry() backoff.BackOff {
	return backoff.NewConstantBackOff(time.Millisecond)
}

func TestConsumer_Run(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &fakeReader{
		msgs: []kafka.Message{
			{Offset: 1, Value: []byte("ok")},
			{Offset: 2, Value: []byte("bad")},
			{Offset: 3, Value: []byte("flaky")},
			{Offset: 4, Value: []byte("ok")},
		},
		cancel: cancel,
	}
	core, recorded := observer.New(zap.WarnLevel)
	consumer := &Consumer{reader: reader, logger: zap.New(core), retry: quickRetry}

	var handled []string
	flakyAttempts := 0
	consumer.RegisterHandler(func(_ context.Context, msg kafka.Message) error {
		handled = append(handled, string(msg.Value))
		switch string(msg.Value) {
		case "bad":
			return ErrMalformed
		case "flaky":
			flakyAttempts++
			if flakyAttempts < 3 {
				return errors.New("database unavailable")
			}
		}
		return nil
	})

	require.NoError(t, consumer.Run(ctx))

	assert.Equal(t, []string{"ok", "bad", "flaky", "flaky", "flaky", "ok"}, handled)
	assert.Equal(t, []int64{1, 2, 3, 4}, reader.committed)
	assert.Equal(t, 1, recorded.FilterMessage("Skipping malformed message").Len())
	assert.Equal(t, 2, recorded.FilterMessage("Failed to handle message, retrying").Len())
}

func TestConsumer_RunNeverCommitsPastFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &fakeReader{
		msgs: []kafka.Message{
			{Offset: 3, Value: []byte("fail")},
			{Offset: 4, Value: []byte("ok")},
		},
		cancel: cancel,
	}
	consumer := &Consumer{reader: reader, logger: zaptest.NewLogger(t), retry: quickRetry}

	var handled []string
	attempts := 0
	consumer.RegisterHandler(func(_ context.Context, msg kafka.Message) error {
		handled = append(handled, string(msg.Value))
		attempts++
		if attempts == 5 {
			cancel()
		}
		return errors.New("database unavailable")
	})

	require.NoError(t, consumer.Run(ctx))

	assert.GreaterOrEqual(t, attempts, 5)
	assert.NotContains(t, handled, "ok", "later messages wait for the failing one")
	assert.Empty(t, reader.committed)
}

func TestConsumer_RunStopsWhenRetriesGiveUp(t *testing.T) {
	reader := &fakeReader{
		msgs:   []kafka.Message{{Offset: 7, Value: []byte("fail")}},
		cancel: func() {},
	}
	consumer := &Consumer{
		reader: reader,
		logger: zaptest.NewLogger(t),
		retry: func() backoff.BackOff {
			return backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Millisecond), 2)
		},
	}
	storageErr := errors.New("database unavailable")
	consumer.RegisterHandler(func(context.Context, kafka.Message) error { return storageErr })

	err := consumer.Run(context.Background())
	assert.ErrorIs(t, err, storageErr)
	assert.Empty(t, reader.committed)
}

func TestConsumer_RunWithoutHandler(t *testing.T) {
	consumer := &Consumer{reader: &fakeReader{}, logger: zaptest.NewLogger(t)}
	assert.Error(t, consumer.Run(context.Background()))
}

func TestProducer_CloseFlushesQueuedEvents(t *testing.T) {
	mockWriter := new(MockKafkaWriter)
	mockWriter.On("WriteMessages", mock.Anything, mock.Anything).Return(nil).Twice()

	producer := newProducer(mockWriter, zaptest.NewLogger(t), 2)
	producer.Produce(testEvent())
	producer.Produce(testEvent())

	close(producer.closeChan)
	producer.eventLoop()

	mockWriter.AssertExpectations(t)
	_, open := <-producer.done
	assert.False(t, open)
}
