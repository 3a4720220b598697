package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/leo-constellation-sim/internal/logging"
	"github.com/signalsfoundry/leo-constellation-sim/internal/observability"
	"github.com/signalsfoundry/leo-constellation-sim/kb"
	"github.com/signalsfoundry/leo-constellation-sim/model"
	"github.com/signalsfoundry/leo-constellation-sim/timectrl"
)

// SnapshotSink receives the constellation state after every step.
type SnapshotSink interface {
	Name() string
	Publish(ctx context.Context, snap *model.Snapshot) error
}

// StepRecorder receives per-step measurements. It is satisfied by
// observability.ConstellationCollector.
type StepRecorder interface {
	ObserveStep(d time.Duration, satellites, poleCrossings int, linkDistancesKm []float64, linksUp int)
	IncSinkError(sink string)
}

// EngineOption customises a SimulationEngine.
type EngineOption func(*SimulationEngine)

// WithLogger sets the engine logger.
func WithLogger(l logging.Logger) EngineOption {
	return func(e *SimulationEngine) { e.log = l }
}

// WithMetrics sets the step recorder.
func WithMetrics(m StepRecorder) EngineOption {
	return func(e *SimulationEngine) { e.metrics = m }
}

// WithSinks appends snapshot sinks.
func WithSinks(sinks ...SnapshotSink) EngineOption {
	return func(e *SimulationEngine) { e.sinks = append(e.sinks, sinks...) }
}

// WithRunID sets the run identifier stamped on snapshots.
func WithRunID(id string) EngineOption {
	return func(e *SimulationEngine) { e.runID = id }
}

// WithTracerProvider overrides the global OpenTelemetry tracer provider.
func WithTracerProvider(tp trace.TracerProvider) EngineOption {
	return func(e *SimulationEngine) { e.tracer = tp.Tracer(observability.TracerName) }
}

// SimulationEngine advances the constellation on every clock tick, keeps
// the knowledge base current and fans snapshots out to sinks. Step must
// not be called concurrently.
type SimulationEngine struct {
	Constellation *Constellation
	Topology      *Topology
	KB            *kb.KnowledgeBase

	log     logging.Logger
	metrics StepRecorder
	sinks   []SnapshotSink
	tracer  trace.Tracer
	runID   string

	ticks         int
	tickListeners []func(*model.Snapshot)
}

// NewSimulationEngine registers every satellite of c in store and returns
// an engine ready to step.
func NewSimulationEngine(c *Constellation, topo *Topology, store *kb.KnowledgeBase, opts ...EngineOption) (*SimulationEngine, error) {
	if c == nil || topo == nil || store == nil {
		return nil, errors.New("simulation engine needs a constellation, a topology and a knowledge base")
	}
	se := &SimulationEngine{
		Constellation: c,
		Topology:      topo,
		KB:            store,
		log:           logging.Noop(),
		tracer:        otel.Tracer(observability.TracerName),
	}
	for _, opt := range opts {
		opt(se)
	}
	if se.log == nil {
		se.log = logging.Noop()
	}

	for _, def := range c.Definitions() {
		if err := store.AddSatellite(def); err != nil {
			return nil, fmt.Errorf("register satellite: %w", err)
		}
	}
	links, err := topo.Evaluate(c.Positions())
	if err != nil {
		return nil, fmt.Errorf("initial topology: %w", err)
	}
	store.ReplaceLinks(links)
	return se, nil
}

// RegisterTickListener adds a callback invoked with every snapshot.
func (se *SimulationEngine) RegisterTickListener(fn func(*model.Snapshot)) {
	se.tickListeners = append(se.tickListeners, fn)
}

// Step advances every satellite to orbit time now (seconds), refreshes the
// knowledge base and links, and publishes the resulting snapshot.
func (se *SimulationEngine) Step(ctx context.Context, simTime time.Time, now float64) (*model.Snapshot, error) {
	start := time.Now()
	tick := se.ticks + 1
	ctx, span := se.tracer.Start(ctx, "constellation.step", trace.WithAttributes(
		attribute.Int("tick", tick),
		attribute.Float64("orbit_time_s", now),
		attribute.Int("satellites", se.Constellation.Len()),
	))
	defer span.End()

	snap, err := se.step(ctx, tick, simTime, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	// Only successful steps are numbered.
	se.ticks = tick
	span.SetAttributes(
		attribute.Int("pole_crossings", snap.PoleCrossings),
		attribute.Int("links_up", snap.LinksUp()),
	)

	distances := make([]float64, len(snap.Links))
	for i, l := range snap.Links {
		distances[i] = l.DistanceKm
	}
	if se.metrics != nil {
		se.metrics.ObserveStep(time.Since(start), len(snap.Satellites), snap.PoleCrossings, distances, snap.LinksUp())
	}

	se.publish(ctx, snap)

	se.log.Debug(ctx, "constellation step",
		logging.Int("tick", snap.Tick),
		logging.Float64("orbit_time_s", now),
		logging.Int("pole_crossings", snap.PoleCrossings),
		logging.Int("links_up", snap.LinksUp()),
	)

	for _, fn := range se.tickListeners {
		fn(snap)
	}
	return snap, nil
}

func (se *SimulationEngine) step(ctx context.Context, tick int, simTime time.Time, now float64) (*model.Snapshot, error) {
	positions, crossings, err := se.Constellation.AdvanceAll(now)
	if err != nil {
		return nil, fmt.Errorf("advance constellation: %w", err)
	}

	defs := se.Constellation.Definitions()
	for _, def := range defs {
		if err := se.KB.UpdateSatellitePosition(def.ID, def.Position, def.Direction, def.LastUpdateTime); err != nil {
			return nil, err
		}
	}

	links, err := se.Topology.Evaluate(positions)
	if err != nil {
		return nil, fmt.Errorf("evaluate topology: %w", err)
	}
	se.KB.ReplaceLinks(links)

	return &model.Snapshot{
		RunID:          se.runID,
		Tick:           tick,
		SimTime:        simTime,
		ElapsedSeconds: now - se.Constellation.Config().StartTime,
		Satellites:     defs,
		Links:          links,
		PoleCrossings:  crossings,
	}, nil
}

// publish never fails the step; sink errors are logged and counted.
func (se *SimulationEngine) publish(ctx context.Context, snap *model.Snapshot) {
	for _, sink := range se.sinks {
		if err := sink.Publish(ctx, snap); err != nil {
			se.log.Warn(ctx, "snapshot publish failed",
				logging.String("sink", sink.Name()),
				logging.Int("tick", snap.Tick),
				logging.Err(err),
			)
			if se.metrics != nil {
				se.metrics.IncSinkError(sink.Name())
			}
		}
	}
}

// Run drives the engine from tc until duration of simulated time has
// elapsed, ctx is cancelled, or a step fails.
func (se *SimulationEngine) Run(ctx context.Context, tc *timectrl.TimeController, duration time.Duration) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	startOffset := se.Constellation.Config().StartTime
	var stepErr error
	remove := tc.AddListener(func(tk timectrl.Tick) {
		if stepErr != nil {
			return
		}
		if _, err := se.Step(ctx, tk.SimTime, startOffset+tk.ElapsedSeconds()); err != nil {
			stepErr = err
			cancel()
		}
	})
	defer remove()

	err := tc.Run(ctx, duration)
	if stepErr != nil {
		return stepErr
	}
	return err
}
