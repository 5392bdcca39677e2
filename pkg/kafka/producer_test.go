package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestProducer_PublishScrap(t *testing.T) {
	w := &fakeWriter{}
	p := NewProducerWithWriter(w, "scrap-ready", silentLogger())

	require.NoError(t, p.PublishScrap(context.Background(), 12, "job-1"))
	require.Len(t, w.messages, 1)

	msg := w.messages[0]
	assert.Equal(t, "12", string(msg.Key))

	var body ScrapMessage
	require.NoError(t, json.Unmarshal(msg.Value, &body))
	assert.Equal(t, int64(12), body.ScrapID)

	incoming := newIncomingMessage(msg)
	require.NoError(t, incoming.ParseScrapMessage())
	assert.Equal(t, "job-1", incoming.JobID())
	assert.Equal(t, int64(12), incoming.Scrap.ScrapID)
}

func TestProducer_PublishError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := NewProducerWithWriter(w, "canonical-events", silentLogger())

	err := p.Publish(context.Background(), "1", map[string]int{"a": 1}, nil)
	assert.EqualError(t, err, "broker down")
}
