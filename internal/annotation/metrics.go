package annotation

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/roadlens/trackmark/pkg/core"
)

const instrumentationName = "github.com/roadlens/trackmark/internal/annotation"

type storeMetrics struct {
	mutations metric.Int64Counter
}

// newStoreMetrics uses the global OTel meter (no-op if not configured).
func newStoreMetrics() (*storeMetrics, error) {
	m := otel.Meter(instrumentationName)
	mutations, err := m.Int64Counter(
		"annotation.mutations",
		metric.WithDescription("Annotation mutations by operation and outcome"),
	)
	if err != nil {
		return nil, err
	}
	return &storeMetrics{mutations: mutations}, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, core.ErrValidation):
		return "invalid"
	case errors.Is(err, core.ErrConflict):
		return "conflict"
	case errors.Is(err, core.ErrNotFound):
		return "not_found"
	default:
		return "transport"
	}
}

func (m *storeMetrics) record(ctx context.Context, op string, err error) {
	m.mutations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("outcome", outcome(err)),
	))
}
