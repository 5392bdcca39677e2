package kafka

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"

	"github.com/Ramsey-B/matcher/pkg/metrics"
	"github.com/Ramsey-B/matcher/pkg/tracing"
)

// Writer is the part of kafka.Writer the producer uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ProducerConfig holds Kafka producer configuration
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int
	Compression  string
	// Async makes WriteMessages return immediately; delivery failures are only logged.
	Async bool
}

// Producer publishes JSON messages to one topic.
type Producer struct {
	writer Writer
	logger ectologger.Logger
	topic  string
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg ProducerConfig, logger ectologger.Logger) *Producer {
	compression := kafka.Snappy
	switch cfg.Compression {
	case "gzip":
		compression = kafka.Gzip
	case "lz4":
		compression = kafka.Lz4
	case "zstd":
		compression = kafka.Zstd
	case "none":
		compression = 0
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:            compression,
		AllowAutoTopicCreation: true,
		Async:                  cfg.Async,
	}
	if cfg.Async {
		writer.Completion = func(messages []kafka.Message, err error) {
			status := "ok"
			if err != nil {
				status = "error"
				logger.WithError(err).WithField("batch_size", len(messages)).Error("Failed to deliver messages")
			}
			metrics.KafkaMessagesPublished.WithLabelValues(cfg.Topic, status).Add(float64(len(messages)))
		}
	}

	return &Producer{writer: writer, logger: logger, topic: cfg.Topic}
}

func NewProducerWithWriter(writer Writer, topic string, logger ectologger.Logger) *Producer {
	return &Producer{writer: writer, logger: logger, topic: topic}
}

func (p *Producer) Topic() string {
	return p.topic
}

// Close flushes pending messages and closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// Publish marshals value as JSON and writes it keyed by key. The active trace is
// propagated in a traceparent header.
func (p *Producer) Publish(ctx context.Context, key string, value any, headers map[string]string) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.Publish")
	defer span.End()

	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
	}
	for k, v := range headers {
		msg.Headers = append(msg.Headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	if tp := tracing.GetTraceParent(ctx); tp != "" {
		msg.Headers = append(msg.Headers, kafka.Header{Key: headerTraceParent, Value: []byte(tp)})
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		metrics.KafkaMessagesPublished.WithLabelValues(p.topic, "error").Inc()
		tracing.RecordError(span, err)
		p.logger.WithContext(ctx).WithError(err).WithField("key", key).Error("Failed to publish message")
		return err
	}

	p.logger.WithContext(ctx).WithField("key", key).Debug("Published message")
	return nil
}

// PublishScrap enqueues a scrap job.
func (p *Producer) PublishScrap(ctx context.Context, scrapID int64, jobID string) error {
	headers := map[string]string{}
	if jobID != "" {
		headers[headerJobID] = jobID
	}
	return p.Publish(ctx, strconv.FormatInt(scrapID, 10), ScrapMessage{ScrapID: scrapID}, headers)
}
