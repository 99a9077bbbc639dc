package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/incidence-dashboard-service/internal/config"
	"github.com/couchcryptid/incidence-dashboard-service/internal/domain"
	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer publishes normalized incidence records to a Kafka topic.
// It implements pipeline.BatchExporter.
type Writer struct {
	writer *kafkago.Writer
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured export topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaExportTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, clock: clockwork.NewRealClock(), logger: logger}
}

// ExportBatch publishes records in a single WriteMessages call. Messages are
// keyed by entity so one entity's rows land on one partition in table order.
func (w *Writer) ExportBatch(ctx context.Context, records []domain.IncidenceRecord) error {
	if len(records) == 0 {
		return nil
	}
	exportedAt := w.clock.Now()
	msgs := make([]kafkago.Message, len(records))
	for i := range records {
		msg, err := serializeToMessage(records[i], exportedAt)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d records to %s: %w", len(msgs), w.writer.Topic, err)
	}
	w.logger.Debug("batch exported", "topic", w.writer.Topic, "records", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

func serializeToMessage(record domain.IncidenceRecord, exportedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize incidence record: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(record.Entity),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "source", Value: []byte(record.Source)},
			{Key: "exported_at", Value: []byte(exportedAt.UTC().Format(time.RFC3339))},
		},
	}, nil
}
