// Package kafka publishes normalized earthquake events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/quake-data-etl/internal/domain"
)

const defaultBatchSize = 50

// messageWriter is the subset of kafkago.Writer used by Writer.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Config selects the brokers and topic events are published to.
type Config struct {
	Brokers   []string
	Topic     string
	BatchSize int
}

// Writer produces one message per event to the sink topic.
type Writer struct {
	writer    messageWriter
	batchSize int
	clock     clockwork.Clock
	logger    *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return newWriter(w, cfg.BatchSize, clockwork.NewRealClock(), logger)
}

func newWriter(w messageWriter, batchSize int, clock clockwork.Clock, logger *slog.Logger) *Writer {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Writer{writer: w, batchSize: batchSize, clock: clock, logger: logger}
}

// Publish serializes the table's events in time order and writes them in
// batches of at most BatchSize messages. Events are keyed by ID, so the same
// event always lands on the same partition.
func (w *Writer) Publish(ctx context.Context, table domain.Table) error {
	events := table.Events()
	if len(events) == 0 {
		return nil
	}
	publishedAt := w.clock.Now().UTC()

	for start := 0; start < len(events); start += w.batchSize {
		end := min(start+w.batchSize, len(events))
		msgs := make([]kafkago.Message, 0, end-start)
		for i := start; i < end; i++ {
			msg, err := serializeToMessage(events[i], publishedAt)
			if err != nil {
				return err
			}
			msgs = append(msgs, msg)
		}
		if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
			return fmt.Errorf("publish events %d-%d: %w", start, end-1, err)
		}
	}

	w.logger.Info("events published", "count", len(events))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an Event into a Kafka message.
func serializeToMessage(event domain.Event, publishedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize earthquake event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_time", Value: []byte(event.Time.Format(time.RFC3339))},
			{Key: "published_at", Value: []byte(publishedAt.Format(time.RFC3339))},
		},
	}, nil
}
