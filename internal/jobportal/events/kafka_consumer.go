package events

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type KafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads scraper observations from a topic and hands each message
// to the registered handler. Messages are committed only after the handler
// succeeds or rejects them as malformed. Any other handler error is retried
// on the same message, so later offsets are never committed past it.
type Consumer struct {
	reader  KafkaReader
	logger  *zap.Logger
	handler func(context.Context, kafka.Message) error
	retry   func() backoff.BackOff
}

// ErrMalformed marks a message the handler can never process. It is
// committed and skipped instead of being redelivered.
var ErrMalformed = errors.New("malformed message")

func NewConsumer(brokers []string, groupID, topic string, logger *zap.Logger) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: brokers,
			GroupID: groupID,
			Topic:   topic,
			Dialer:  kafka.DefaultDialer,
		}),
		logger: logger.Named("kafka_consumer"),
		retry:  retryForever,
	}
}

// retryForever backs off exponentially up to a minute between attempts and
// never gives up on its own.
func retryForever() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.MaxInterval = time.Minute
	b.MaxElapsedTime = 0
	return b
}

// Run consumes until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	if c.handler == nil {
		return errors.New("no handler registered")
	}
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			c.logger.Error("Failed to fetch message", zap.Error(err))
			continue
		}

		if err := c.process(ctx, msg); err != nil {
			if !errors.Is(err, ErrMalformed) {
				// the message stays uncommitted and is redelivered
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("failed to handle message at offset %d: %w", msg.Offset, err)
			}
			c.logger.Warn("Skipping malformed message",
				zap.Error(err),
				zap.Int64("offset", msg.Offset),
				zap.ByteString("value", msg.Value),
			)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("Failed to commit message",
				zap.Error(err),
				zap.Int64("offset", msg.Offset),
			)
		}
	}
}

// process runs the handler on msg until it succeeds, reports ErrMalformed
// or ctx is done.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) error {
	policy := retryForever
	if c.retry != nil {
		policy = c.retry
	}
	return backoff.RetryNotify(func() error {
		err := c.handler(ctx, msg)
		if errors.Is(err, ErrMalformed) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(policy(), ctx), func(err error, next time.Duration) {
		c.logger.Error("Failed to handle message, retrying",
			zap.Error(err),
			zap.Int64("offset", msg.Offset),
			zap.Duration("retry_in", next),
		)
	})
}

func (c *Consumer) RegisterHandler(fn func(context.Context, kafka.Message) error) {
	c.handler = fn
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.logger.Error("Failed to close Kafka reader", zap.Error(err))
	}
}
