// Package sink publishes constellation snapshots to external stores:
// NATS JetStream for streaming consumers, Redis for the latest state and
// PostgreSQL for history.
package sink

import (
	"context"

	"github.com/signalsfoundry/leo-constellation-sim/core"
	"github.com/signalsfoundry/leo-constellation-sim/model"
)

// Sink is a snapshot destination that owns a connection.
type Sink interface {
	Name() string
	Publish(ctx context.Context, snap *model.Snapshot) error
	Close() error
}

var (
	_ core.SnapshotSink = (*NATSSink)(nil)
	_ core.SnapshotSink = (*RedisSink)(nil)
	_ core.SnapshotSink = (*PostgresSink)(nil)
	_ Sink              = (*NATSSink)(nil)
	_ Sink              = (*RedisSink)(nil)
	_ Sink              = (*PostgresSink)(nil)
)

// CloseAll closes every sink and returns the first error.
func CloseAll(sinks []Sink) error {
	var first error
	for _, s := range sinks {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// AsSnapshotSinks adapts the list for core.WithSinks.
func AsSnapshotSinks(sinks []Sink) []core.SnapshotSink {
	out := make([]core.SnapshotSink, len(sinks))
	for i, s := range sinks {
		out[i] = s
	}
	return out
}
