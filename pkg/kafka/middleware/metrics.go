package kafka_middleware

import (
	"context"
	"sync/atomic"
	"time"

	"roombook/pkg/kafka"
)

// PublishMetrics counts publish outcomes for one producer.
type PublishMetrics struct {
	published     atomic.Int64
	failed        atomic.Int64
	durationTotal atomic.Int64 // nanoseconds
}

type PublishSnapshot struct {
	Published  int64
	Failed     int64
	AvgLatency time.Duration
}

func NewPublishMetrics() *PublishMetrics {
	return &PublishMetrics{}
}

func (m *PublishMetrics) Snapshot() PublishSnapshot {
	published := m.published.Load()
	snap := PublishSnapshot{
		Published: published,
		Failed:    m.failed.Load(),
	}
	if published > 0 {
		snap.AvgLatency = time.Duration(m.durationTotal.Load() / published)
	}
	return snap
}

func MetricsProducerMiddleware(m *PublishMetrics) kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next func(ctx context.Context, msg kafka.Message) error) error {
		start := time.Now()
		err := next(ctx, msg)
		if err != nil {
			m.failed.Add(1)
			return err
		}
		m.published.Add(1)
		m.durationTotal.Add(int64(time.Since(start)))
		return nil
	}
}
