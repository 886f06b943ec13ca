package transfer

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/roadlens/trackmark/internal/transfer"

type importMetrics struct {
	rows metric.Int64Counter
}

func newImportMetrics() (*importMetrics, error) {
	rows, err := otel.Meter(instrumentationName).Int64Counter(
		"transfer.import.rows",
		metric.WithDescription("Imported CSV rows by outcome"),
	)
	if err != nil {
		return nil, err
	}
	return &importMetrics{rows: rows}, nil
}

func (m *importMetrics) record(ctx context.Context, r RowResult) {
	outcome := "created"
	if !r.OK() {
		outcome = "failed"
	}
	m.rows.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
