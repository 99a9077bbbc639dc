//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/couchcryptid/incidence-dashboard-service/internal/adapter/datos"
	"github.com/couchcryptid/incidence-dashboard-service/internal/adapter/kafka"
	"github.com/couchcryptid/incidence-dashboard-service/internal/config"
	"github.com/couchcryptid/incidence-dashboard-service/internal/domain"
	"github.com/couchcryptid/incidence-dashboard-service/internal/observability"
	"github.com/couchcryptid/incidence-dashboard-service/internal/pipeline"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

const testExportTopic = "test-incidence-records"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node broker and returns its address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("incidence-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("terminate kafka container: %v", err)
		}
	})

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

type exportedMessage struct {
	Key     string
	Record  domain.IncidenceRecord
	Headers map[string]string
}

func readExported(ctx context.Context, t *testing.T, broker string, n int) []exportedMessage {
	t.Helper()
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:   []string{broker},
		Topic:     testExportTopic,
		Partition: 0,
		MaxWait:   500 * time.Millisecond,
	})
	defer reader.Close()

	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	out := make([]exportedMessage, 0, n)
	for len(out) < n {
		msg, err := reader.ReadMessage(readCtx)
		require.NoError(t, err, "read from export topic")

		m := exportedMessage{Key: string(msg.Key), Headers: make(map[string]string, len(msg.Headers))}
		for _, h := range msg.Headers {
			m.Headers[h.Key] = string(h.Value)
		}
		require.NoError(t, json.Unmarshal(msg.Value, &m.Record))
		out = append(out, m)
	}
	return out
}

// TestLoadExportsDatasetToKafka loads both fixture sources through the real
// fetcher and pipeline and checks every record lands on the export topic in
// table order.
func TestLoadExportsDatasetToKafka(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testExportTopic)

	cfg := &config.Config{
		KafkaBrokers:     []string{broker},
		KafkaExportTopic: testExportTopic,
	}
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	sources := []domain.SourceSpec{
		{
			Name:             "municipal",
			URL:              "../pipeline/testdata/municipal.json",
			EntityColumn:     "municipio_distrito",
			DateColumn:       "fecha_informe",
			RateColumn:       "tasa_incidencia_acumulada_ultimos_14dias",
			CasesTotalColumn: "casos_confirmados_totales",
			Cases14dColumn:   "casos_confirmados_ultimos_14dias",
		},
		{
			Name:         "health_zones",
			URL:          "../pipeline/testdata/health_zones.json",
			EntityColumn: "zona_basica_salud",
			DateColumn:   "fecha_informe",
			RateColumn:   "tasa_incidencia_acumulada_ultimos_14dias",
		},
	}

	metrics := observability.NewMetricsForTesting()
	p := pipeline.New(sources, datos.NewClient(5*time.Second, metrics, discardLogger()),
		pipeline.NewNormalizer(discardLogger()), discardLogger(), metrics,
		pipeline.WithExporter(writer, 2))

	ds, err := p.Load(ctx)
	require.NoError(t, err)
	require.Len(t, ds.Records, 5)

	msgs := readExported(ctx, t, broker, len(ds.Records))
	for i, m := range msgs {
		want := ds.Records[i]
		assert.Equal(t, want.Entity, m.Key)
		assert.Equal(t, want.Source, m.Headers["source"])
		assert.NotEmpty(t, m.Headers["exported_at"])
		assert.Equal(t, want.Incidence14d, m.Record.Incidence14d)
		assert.True(t, want.Date.Equal(m.Record.Date))
	}
	assert.Equal(t, "Getafe", msgs[4].Key)
	assert.Equal(t, "health_zones", msgs[4].Headers["source"])
}
