package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/rl1809/shop-sales/internal/core/service"

type commitMetrics struct {
	succeeded metric.Int64Counter
	failed    metric.Int64Counter
	duration  metric.Float64Histogram
}

func newCommitMetrics(meter metric.Meter) (*commitMetrics, error) {
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}

	succeeded, err := meter.Int64Counter("sales.commit.succeeded",
		metric.WithDescription("Sales committed"))
	if err != nil {
		return nil, err
	}
	failed, err := meter.Int64Counter("sales.commit.failed",
		metric.WithDescription("Sale commits rejected or aborted, by error kind"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("sales.commit.duration",
		metric.WithDescription("CommitSale latency"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return &commitMetrics{succeeded: succeeded, failed: failed, duration: duration}, nil
}

func (m *commitMetrics) record(ctx context.Context, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		kind := KindOf(err)
		if kind == "" {
			kind = "internal"
		}
		outcome = string(kind)
		m.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", outcome)))
	} else {
		m.succeeded.Add(ctx, 1)
	}
	m.duration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("outcome", outcome)))
}
