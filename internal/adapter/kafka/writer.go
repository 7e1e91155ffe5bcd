package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/postfire-sar-etl/internal/config"
	"github.com/couchcryptid/postfire-sar-etl/internal/sar"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer produces product records to a Kafka topic.
// It implements pipeline.ProductPublisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured product topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish serializes and publishes one product record to the product
// topic, keyed by the record's deterministic ID so reprocessed scenes
// land in the same partition.
func (w *Writer) Publish(ctx context.Context, rec sar.ProductRecord) error {
	msg, err := serializeToMessage(rec)
	if err != nil {
		return err
	}
	return w.writer.WriteMessages(ctx, msg)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a ProductRecord into a Kafka message.
func serializeToMessage(rec sar.ProductRecord) (kafkago.Message, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize product record: %w", err)
	}
	headers := []kafkago.Header{
		{Key: "scene", Value: []byte(rec.Scene)},
		{Key: "polarization", Value: []byte(rec.Polarization)},
		{Key: "processed_at", Value: []byte(rec.ProcessedAt.Format(time.RFC3339))},
	}
	if rec.RunID != "" {
		headers = append(headers, kafkago.Header{Key: "run_id", Value: []byte(rec.RunID)})
	}
	return kafkago.Message{
		Key:     []byte(rec.ID),
		Value:   data,
		Headers: headers,
	}, nil
}
