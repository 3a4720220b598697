package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/signalsfoundry/leo-constellation-sim/core"
	"github.com/signalsfoundry/leo-constellation-sim/internal/config"
	"github.com/signalsfoundry/leo-constellation-sim/internal/logging"
	"github.com/signalsfoundry/leo-constellation-sim/internal/observability"
	"github.com/signalsfoundry/leo-constellation-sim/model"
)

type memorySink struct {
	snaps []*model.Snapshot
}

func (m *memorySink) Name() string { return "memory" }

func (m *memorySink) Publish(ctx context.Context, snap *model.Snapshot) error {
	m.snaps = append(m.snaps, snap)
	return nil
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Constellation.Planes = 3
	cfg.Constellation.SatellitesPerPlane = 4
	cfg.Simulation.Tick = 50 * time.Millisecond
	cfg.Simulation.Duration = 500 * time.Millisecond
	cfg.Simulation.Accelerated = true
	cfg.Simulation.Start = time.Date(2021, 10, 2, 0, 0, 0, 0, time.UTC)
	return cfg
}

// TestIntegration_AcceleratedRun runs a tiny end-to-end-style simulation.
func TestIntegration_AcceleratedRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := observability.NewConstellationCollector(reg)
	if err != nil {
		t.Fatalf("NewConstellationCollector: %v", err)
	}
	mem := &memorySink{}
	ctx := logging.ContextWithRunID(context.Background(), "run-test")

	if err := run(ctx, testConfig(), runOptions{
		log:     logging.Noop(),
		metrics: collector,
		sinks:   []core.SnapshotSink{mem},
	}); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(mem.snaps) != 10 {
		t.Fatalf("expected 10 snapshots, got %d", len(mem.snaps))
	}
	first, last := mem.snaps[0], mem.snaps[len(mem.snaps)-1]
	if first.RunID != "run-test" || last.Tick != 10 {
		t.Fatalf("unexpected snapshot headers: first %+v, last tick %d", first.RunID, last.Tick)
	}
	if len(last.Satellites) != 12 {
		t.Fatalf("expected 12 satellites, got %d", len(last.Satellites))
	}
	if first.Satellites[0].Position == last.Satellites[0].Position {
		t.Fatalf("expected satellite position to change over time, got %+v first == last", first.Satellites[0].Position)
	}
	if got := testutil.ToFloat64(collector.Satellites); got != 12 {
		t.Fatalf("constellation_satellites = %v, want 12", got)
	}
}

func TestRun_ReferenceTrackFollowsSnapshots(t *testing.T) {
	cfg := testConfig()
	tle1 := "1 25544U 98067A   21275.59097222  .00000204  00000-0  10270-4 0  9990"
	tle2 := "2 25544  51.6459 115.9059 0001817  61.3028  35.9198 15.49370953257760"
	ref, err := core.NewSGP4MotionModel(tle1, tle2, cfg.Simulation.Start)
	if err != nil {
		t.Fatalf("NewSGP4MotionModel: %v", err)
	}

	ticks := 0
	err = run(context.Background(), cfg, runOptions{
		log:        logging.Noop(),
		reference:  ref,
		onSnapshot: func(*model.Snapshot) { ticks++ },
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if ticks != 10 {
		t.Fatalf("expected 10 ticks, got %d", ticks)
	}
	if ref.Velocity() == (core.Vec3{}) {
		t.Fatalf("reference model was never propagated")
	}
}

func TestRun_InvalidConstellation(t *testing.T) {
	cfg := testConfig()
	cfg.Constellation.Planes = 0
	err := run(context.Background(), cfg, runOptions{log: logging.Noop()})
	if !errors.Is(err, core.ErrConfiguration) {
		t.Fatalf("run error = %v, want configuration error", err)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	cfg := testConfig()
	cfg.Simulation.Duration = 0

	ctx, cancel := context.WithCancel(context.Background())
	err := run(ctx, cfg, runOptions{
		log: logging.Noop(),
		onSnapshot: func(s *model.Snapshot) {
			if s.Tick == 5 {
				cancel()
			}
		},
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("run error = %v, want context.Canceled", err)
	}
}

func TestOpenSinks_NoneConfigured(t *testing.T) {
	sinks, err := openSinks(context.Background(), config.SinksConfig{}, logging.Noop())
	if err != nil || len(sinks) != 0 {
		t.Fatalf("openSinks() = %v, %v; want no sinks", sinks, err)
	}
}

func TestServeMetrics_DisabledWithoutAddress(t *testing.T) {
	if srv := serveMetrics("", nil, logging.Noop()); srv != nil {
		t.Fatalf("expected no server without an address")
	}
}

func TestRealMain_CompletesAcceleratedRun(t *testing.T) {
	code := realMain([]string{
		"-planes=2", "-per-plane=3",
		"-accelerated", "-tick=50ms", "-duration=200ms",
		"-metrics-addr=",
	})
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
}

func TestRealMain_ReturnsExitCodeWhenSinkFails(t *testing.T) {
	t.Setenv("LEOSIM_SINKS_NATS_URL", "invalid://url:12345")
	code := realMain([]string{"-accelerated", "-duration=100ms", "-metrics-addr="})
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
}

func TestRealMain_RejectsUnknownFlag(t *testing.T) {
	if code := realMain([]string{"-no-such-flag"}); code != 2 {
		t.Fatalf("exit code = %d, want 2", code)
	}
}
