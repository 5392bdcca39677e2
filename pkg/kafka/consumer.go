package kafka

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"

	appctx "github.com/Ramsey-B/matcher/pkg/context"
	merrors "github.com/Ramsey-B/matcher/pkg/errors"
	"github.com/Ramsey-B/matcher/pkg/metrics"
	"github.com/Ramsey-B/matcher/pkg/tracing"
)

// MessageHandler processes one scrap job.
type MessageHandler func(ctx context.Context, msg *IncomingMessage) error

// Reader is the part of kafka.Reader the consumer uses.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ConsumerConfig holds Kafka consumer configuration
type ConsumerConfig struct {
	Brokers       []string
	Topic         string
	ConsumerGroup string
	// MaxAttempts bounds how often a retryable failure is retried in place. Zero retries
	// until the consumer stops.
	MaxAttempts  int
	RetryBackoff time.Duration
}

// Consumer reads scrap jobs and hands them to a MessageHandler.
//
// A message is committed when the handler succeeds or fails permanently (the scrap is
// missing, claimed by another worker, or broke an invariant). A retryable failure is
// retried in place and is never committed.
type Consumer struct {
	reader  Reader
	topic   string
	config  ConsumerConfig
	logger  ectologger.Logger
	handler MessageHandler
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

// NewConsumer creates a consumer group reader for the configured topic.
func NewConsumer(cfg ConsumerConfig, logger ectologger.Logger, handler MessageHandler) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.ConsumerGroup,
		MinBytes:       1,
		MaxBytes:       1e6, // 1MB
		MaxWait:        500 * time.Millisecond,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: 0, // synchronous commits
	})
	return NewConsumerWithReader(reader, cfg, logger, handler)
}

func NewConsumerWithReader(reader Reader, cfg ConsumerConfig, logger ectologger.Logger, handler MessageHandler) *Consumer {
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Second
	}
	return &Consumer{
		reader:  reader,
		topic:   cfg.Topic,
		config:  cfg,
		logger:  logger,
		handler: handler,
	}
}

// Start begins consuming messages
func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go c.consumeLoop(ctx)

	c.logger.WithContext(ctx).WithFields(map[string]any{
		"topic": c.topic,
		"group": c.config.ConsumerGroup,
	}).Info("Kafka consumer started")
	return nil
}

// Stop waits for the message in flight, then closes the reader.
func (c *Consumer) Stop(_ context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	return c.reader.Close()
}

func (c *Consumer) consumeLoop(ctx context.Context) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			c.logger.WithContext(ctx).Info("Consumer loop stopping")
			return
		default:
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
					return
				}
				c.logger.WithContext(ctx).WithError(err).Error("Failed to fetch message")
				continue
			}

			c.processMessage(ctx, msg)
		}
	}
}

func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message) {
	incoming := newIncomingMessage(msg)
	ctx = tracing.WithTraceParent(ctx, incoming.TraceParent())
	ctx = appctx.SetJobID(ctx, incoming.JobID())

	ctx, span := tracing.StartSpan(ctx, "kafka.Consumer.processMessage")
	defer span.End()

	log := c.logger.WithContext(ctx).WithFields(map[string]any{
		"topic":     msg.Topic,
		"partition": msg.Partition,
		"offset":    msg.Offset,
	})

	if err := incoming.ParseScrapMessage(); err != nil {
		log.WithError(err).Error("Failed to parse message")
		metrics.KafkaMessagesConsumed.WithLabelValues(c.topic, "malformed").Inc()
		// Still commit to avoid getting stuck
		c.commit(ctx, log, msg)
		return
	}
	log = log.WithField("scrap_id", incoming.Scrap.ScrapID)

	for attempt := 1; ; attempt++ {
		err := c.handler(ctx, incoming)
		if err == nil {
			metrics.KafkaMessagesConsumed.WithLabelValues(c.topic, "ok").Inc()
			c.commit(ctx, log, msg)
			return
		}
		tracing.RecordError(span, err)

		if !merrors.IsRetryable(err) {
			log.WithError(err).WithField("kind", merrors.Kind(err)).Warn("Scrap job failed permanently, committing")
			metrics.KafkaMessagesConsumed.WithLabelValues(c.topic, "dropped").Inc()
			c.commit(ctx, log, msg)
			return
		}

		if c.config.MaxAttempts > 0 && attempt >= c.config.MaxAttempts {
			log.WithError(err).WithField("attempts", attempt).Error("Scrap job kept failing (not committing)")
			metrics.KafkaMessagesConsumed.WithLabelValues(c.topic, "failed").Inc()
			return
		}

		log.WithError(err).WithField("attempt", attempt).Warn("Scrap job failed, retrying")
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.config.RetryBackoff):
		}
	}
}

func (c *Consumer) commit(ctx context.Context, log ectologger.Logger, msg kafka.Message) {
	// Commit even when the consumer is stopping so finished work is not redelivered.
	if err := c.reader.CommitMessages(context.WithoutCancel(ctx), msg); err != nil {
		log.WithError(err).Error("Failed to commit message")
	}
}
