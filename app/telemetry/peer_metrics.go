package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// PeerMetrics counts peer RPC calls and their latency. A nil *PeerMetrics
// records nothing.
type PeerMetrics struct {
	calls   metric.Int64Counter
	latency metric.Float64Histogram
}

// NewPeerMetrics creates the peer instruments on meter.
func NewPeerMetrics(meter metric.Meter) (*PeerMetrics, error) {
	calls, err := meter.Int64Counter("proverd.peer.calls",
		metric.WithDescription("Peer RPC calls by method and outcome"),
	)
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram("proverd.peer.latency",
		metric.WithDescription("Peer RPC call latency"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	return &PeerMetrics{calls: calls, latency: latency}, nil
}

// Record adds one finished call.
func (m *PeerMetrics) Record(ctx context.Context, method string, started time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("peer.method", method),
		attribute.String("outcome", outcome),
	)
	m.calls.Add(ctx, 1, attrs)
	m.latency.Record(ctx, time.Since(started).Seconds(), attrs)
}
