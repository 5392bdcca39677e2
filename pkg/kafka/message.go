package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	headerTraceParent = "traceparent"
	headerJobID       = "job_id"
)

// ScrapMessage asks a worker to resolve one scrap.
type ScrapMessage struct {
	ScrapID int64 `json:"scrap_id"`
}

// IncomingMessage wraps a raw Kafka message with parsed headers
type IncomingMessage struct {
	Key       string
	Value     []byte
	Headers   map[string]string
	Partition int
	Offset    int64
	Timestamp time.Time
	Topic     string

	// Parsed content
	Scrap *ScrapMessage
}

func newIncomingMessage(msg kafka.Message) *IncomingMessage {
	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	return &IncomingMessage{
		Key:       string(msg.Key),
		Value:     msg.Value,
		Headers:   headers,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Timestamp: msg.Time,
		Topic:     msg.Topic,
	}
}

// ParseScrapMessage parses the message value as a scrap job.
func (m *IncomingMessage) ParseScrapMessage() error {
	var msg ScrapMessage
	if err := json.Unmarshal(m.Value, &msg); err != nil {
		return err
	}
	if msg.ScrapID <= 0 {
		return fmt.Errorf("scrap message without a scrap_id: %s", m.Value)
	}
	m.Scrap = &msg
	return nil
}

// TraceParent returns the W3C trace context propagated by the producer, if any.
func (m *IncomingMessage) TraceParent() string {
	return m.Headers[headerTraceParent]
}

// JobID identifies the delivery for logs: the job_id header when the producer set one,
// otherwise topic/partition/offset.
func (m *IncomingMessage) JobID() string {
	if id := m.Headers[headerJobID]; id != "" {
		return id
	}
	return fmt.Sprintf("%s/%d/%d", m.Topic, m.Partition, m.Offset)
}
