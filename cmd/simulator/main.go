package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/signalsfoundry/leo-constellation-sim/core"
	"github.com/signalsfoundry/leo-constellation-sim/internal/config"
	"github.com/signalsfoundry/leo-constellation-sim/internal/logging"
	"github.com/signalsfoundry/leo-constellation-sim/internal/observability"
	"github.com/signalsfoundry/leo-constellation-sim/internal/sink"
	"github.com/signalsfoundry/leo-constellation-sim/kb"
	"github.com/signalsfoundry/leo-constellation-sim/model"
	"github.com/signalsfoundry/leo-constellation-sim/timectrl"
)

func main() {
	os.Exit(realMain(os.Args[1:]))
}

// realMain returns the process exit code so that deferred cleanup (span
// flush, sink close) runs before main exits.
func realMain(args []string) int {
	fs := flag.NewFlagSet("simulator", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a TOML, YAML or JSON config file")
	planes := fs.Int("planes", 0, "number of orbital planes")
	perPlane := fs.Int("per-plane", 0, "satellites per plane")
	altitude := fs.Float64("altitude", 0, "orbit altitude in km")
	maxRange := fs.Float64("max-range", 0, "maximum inter-satellite link range in km (0 = unlimited)")
	duration := fs.Duration("duration", 0, "total simulation duration (0 = until interrupted)")
	tick := fs.Duration("tick", 0, "tick interval")
	accelerated := fs.Bool("accelerated", false, "run in accelerated mode (vs real-time)")
	metricsAddr := fs.String("metrics-addr", "", "HTTP address for Prometheus /metrics (empty disables)")
	tle1 := fs.String("tle1", "", "first TLE line of an SGP4 reference satellite")
	tle2 := fs.String("tle2", "", "second TLE line of an SGP4 reference satellite")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	log := logging.NewFromEnv()
	ctx, log := logging.WithRunLogger(context.Background(), log)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error(ctx, "failed to load configuration", logging.Err(err))
		return 1
	}

	// Flags given on the command line win over file and environment.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "planes":
			cfg.Constellation.Planes = *planes
		case "per-plane":
			cfg.Constellation.SatellitesPerPlane = *perPlane
		case "altitude":
			cfg.Constellation.AltitudeKm = *altitude
		case "max-range":
			cfg.Constellation.MaxLinkRangeKm = *maxRange
		case "duration":
			cfg.Simulation.Duration = *duration
		case "tick":
			cfg.Simulation.Tick = *tick
		case "accelerated":
			cfg.Simulation.Accelerated = *accelerated
		case "metrics-addr":
			cfg.Metrics.Addr = *metricsAddr
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Error(ctx, "invalid configuration", logging.Err(err))
		return 1
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		Exporter:    cfg.Tracing.Exporter,
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRatio: cfg.Tracing.SampleRatio,
	}, log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.Err(err))
		return 1
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	collector, err := observability.NewConstellationCollector(nil)
	if err != nil {
		log.Error(ctx, "failed to initialise metrics collector", logging.Err(err))
		return 1
	}
	metricsSrv := serveMetrics(cfg.Metrics.Addr, collector, log)

	sinks, err := openSinks(ctx, cfg.Sinks, log)
	if err != nil {
		log.Error(ctx, "failed to open snapshot sinks", logging.Err(err))
		return 1
	}
	defer func() {
		if err := sink.CloseAll(sinks); err != nil {
			log.Warn(ctx, "closing sinks", logging.Err(err))
		}
	}()

	var reference core.MobilityModel
	if *tle1 != "" || *tle2 != "" {
		start := cfg.Simulation.Start
		if start.IsZero() {
			start = time.Now().UTC()
		}
		reference, err = core.NewSGP4MotionModel(*tle1, *tle2, start)
		if err != nil {
			log.Error(ctx, "invalid reference TLE", logging.Err(err))
			return 1
		}
	}

	err = run(ctx, cfg, runOptions{
		log:       log,
		metrics:   collector,
		sinks:     sink.AsSnapshotSinks(sinks),
		reference: reference,
	})

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = metricsSrv.Shutdown(shutdownCtx)
		cancel()
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error(ctx, "simulation failed", logging.Err(err))
		return 1
	}
	log.Info(ctx, "simulation complete")
	return 0
}

type runOptions struct {
	log       logging.Logger
	metrics   core.StepRecorder
	sinks     []core.SnapshotSink
	reference core.MobilityModel
	// onSnapshot, when set, is called after every step.
	onSnapshot func(*model.Snapshot)
}

// run builds the constellation described by cfg and drives it until the
// configured duration elapses or ctx is cancelled.
func run(ctx context.Context, cfg config.Config, opts runOptions) error {
	log := opts.log
	if log == nil {
		log = logging.FromContext(ctx)
	}

	start := cfg.Simulation.Start
	if start.IsZero() {
		start = time.Now().UTC()
	}

	constellation, err := core.NewConstellation(core.ConstellationConfig{
		Planes:             cfg.Constellation.Planes,
		SatellitesPerPlane: cfg.Constellation.SatellitesPerPlane,
		AltitudeKm:         cfg.Constellation.AltitudeKm,
	})
	if err != nil {
		return fmt.Errorf("build constellation: %w", err)
	}
	topo, err := core.NewTopology(cfg.Constellation.Planes, cfg.Constellation.SatellitesPerPlane, cfg.Constellation.MaxLinkRangeKm)
	if err != nil {
		return fmt.Errorf("build topology: %w", err)
	}

	engineOpts := []core.EngineOption{
		core.WithLogger(log),
		core.WithRunID(logging.RunIDFromContext(ctx)),
		core.WithSinks(opts.sinks...),
	}
	if opts.metrics != nil {
		engineOpts = append(engineOpts, core.WithMetrics(opts.metrics))
	}
	engine, err := core.NewSimulationEngine(constellation, topo, kb.NewKnowledgeBase(), engineOpts...)
	if err != nil {
		return err
	}

	if opts.reference != nil {
		engine.RegisterTickListener(func(snap *model.Snapshot) {
			pos, err := opts.reference.AdvanceAndGetPosition(snap.ElapsedSeconds)
			if err != nil {
				log.Warn(ctx, "reference propagation failed", logging.Int("tick", snap.Tick), logging.Err(err))
				return
			}
			log.Debug(ctx, "reference position",
				logging.Int("tick", snap.Tick),
				logging.String("source", opts.reference.MotionSource().String()),
				logging.String("position", pos.String()),
			)
		})
	}
	if opts.onSnapshot != nil {
		engine.RegisterTickListener(opts.onSnapshot)
	}

	mode := timectrl.RealTime
	if cfg.Simulation.Accelerated {
		mode = timectrl.Accelerated
	}
	tc := timectrl.NewTimeController(start, cfg.Simulation.Tick, mode)

	log.Info(ctx, "starting simulation",
		logging.Int("planes", cfg.Constellation.Planes),
		logging.Int("satellites_per_plane", cfg.Constellation.SatellitesPerPlane),
		logging.Float64("altitude_km", cfg.Constellation.AltitudeKm),
		logging.Float64("orbital_period_s", core.OrbitalPeriod(cfg.Constellation.AltitudeKm)),
		logging.Int("links", topo.LinkCount()),
		logging.Duration("duration", cfg.Simulation.Duration),
		logging.Duration("tick", cfg.Simulation.Tick),
		logging.String("mode", mode.String()),
		logging.Int("sinks", len(opts.sinks)),
	)
	return engine.Run(ctx, tc, cfg.Simulation.Duration)
}

// openSinks connects every sink whose address is configured. On failure
// the sinks opened so far are closed.
func openSinks(ctx context.Context, cfg config.SinksConfig, log logging.Logger) ([]sink.Sink, error) {
	var sinks []sink.Sink
	fail := func(err error) ([]sink.Sink, error) {
		_ = sink.CloseAll(sinks)
		return nil, err
	}

	if cfg.NATSURL != "" {
		s, err := sink.NewNATSSink(cfg.NATSURL)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, s)
		log.Info(ctx, "publishing snapshots to NATS", logging.String("url", cfg.NATSURL), logging.String("subject", sink.SubjectSnapshot))
	}
	if cfg.RedisAddr != "" {
		s, err := sink.NewRedisSink(cfg.RedisAddr)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, s)
		log.Info(ctx, "caching positions in Redis", logging.String("addr", cfg.RedisAddr))
	}
	if cfg.PostgresDSN != "" {
		s, err := sink.NewPostgresSink(cfg.PostgresDSN)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, s)
		if err := s.EnsureSchema(ctx); err != nil {
			return fail(err)
		}
		log.Info(ctx, "recording history in PostgreSQL")
	}
	return sinks, nil
}

func serveMetrics(addr string, collector *observability.ConstellationCollector, log logging.Logger) *http.Server {
	if collector == nil || addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
