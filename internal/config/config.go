// Package config loads simulator settings from defaults, an optional
// config file, a .env file and LEOSIM_* environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/signalsfoundry/leo-constellation-sim/core"
	"github.com/signalsfoundry/leo-constellation-sim/internal/observability"
)

// EnvPrefix prefixes every environment override, e.g.
// LEOSIM_CONSTELLATION_PLANES.
const EnvPrefix = "LEOSIM"

// Config holds the simulator configuration.
type Config struct {
	Constellation ConstellationConfig
	Simulation    SimulationConfig
	Metrics       MetricsConfig
	Tracing       TracingConfig
	Sinks         SinksConfig
}

type ConstellationConfig struct {
	Planes             int
	SatellitesPerPlane int
	AltitudeKm         float64
	MaxLinkRangeKm     float64
}

type SimulationConfig struct {
	Duration    time.Duration
	Tick        time.Duration
	Accelerated bool
	Start       time.Time
}

type MetricsConfig struct {
	Addr string
}

type TracingConfig struct {
	Enabled     bool
	Exporter    string
	Endpoint    string
	ServiceName string
	SampleRatio float64
}

// SinksConfig enables a sink when its address is non-empty.
type SinksConfig struct {
	NATSURL     string
	RedisAddr   string
	PostgresDSN string
}

// Default returns the built-in settings: a 10-plane, 12-per-plane,
// 2000 km constellation with every sink disabled.
func Default() Config {
	v := viper.New()
	setDefaults(v, observability.DefaultTracingConfig())
	return fromViper(v)
}

// setDefaults seeds v. Tracing defaults come from tr so that SIM_TRACING_*
// variables sit below the config file and LEOSIM_TRACING_*.
func setDefaults(v *viper.Viper, tr observability.TracingConfig) {
	v.SetDefault("constellation.planes", 10)
	v.SetDefault("constellation.satellites_per_plane", 12)
	v.SetDefault("constellation.altitude_km", 2000.0)
	v.SetDefault("constellation.max_link_range_km", 0.0)
	v.SetDefault("simulation.duration", "10s")
	v.SetDefault("simulation.tick", "100ms")
	v.SetDefault("simulation.accelerated", false)
	v.SetDefault("simulation.start", "")
	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("tracing.enabled", tr.Enabled)
	v.SetDefault("tracing.exporter", tr.Exporter)
	v.SetDefault("tracing.endpoint", tr.Endpoint)
	v.SetDefault("tracing.service_name", tr.ServiceName)
	v.SetDefault("tracing.sample_ratio", tr.SampleRatio)
	v.SetDefault("sinks.nats_url", "")
	v.SetDefault("sinks.redis_addr", "")
	v.SetDefault("sinks.postgres_dsn", "")
}

// Load reads the configuration. path may be empty; otherwise the file
// must exist and its extension selects the format (toml, yaml, json).
// A .env file in the working directory is loaded first if present.
func Load(path string) (Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v, observability.TracingConfigFromEnv())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := fromViper(v)
	if raw := v.GetString("simulation.start"); raw != "" {
		start, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return Config{}, &core.ConfigurationError{Field: "simulation.start", Value: raw, Reason: "must be an RFC 3339 timestamp"}
		}
		cfg.Simulation.Start = start.UTC()
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) Config {
	return Config{
		Constellation: ConstellationConfig{
			Planes:             v.GetInt("constellation.planes"),
			SatellitesPerPlane: v.GetInt("constellation.satellites_per_plane"),
			AltitudeKm:         v.GetFloat64("constellation.altitude_km"),
			MaxLinkRangeKm:     v.GetFloat64("constellation.max_link_range_km"),
		},
		Simulation: SimulationConfig{
			Duration:    v.GetDuration("simulation.duration"),
			Tick:        v.GetDuration("simulation.tick"),
			Accelerated: v.GetBool("simulation.accelerated"),
		},
		Metrics: MetricsConfig{Addr: v.GetString("metrics.addr")},
		Tracing: TracingConfig{
			Enabled:     v.GetBool("tracing.enabled"),
			Exporter:    strings.ToLower(v.GetString("tracing.exporter")),
			Endpoint:    v.GetString("tracing.endpoint"),
			ServiceName: v.GetString("tracing.service_name"),
			SampleRatio: v.GetFloat64("tracing.sample_ratio"),
		},
		Sinks: SinksConfig{
			NATSURL:     v.GetString("sinks.nats_url"),
			RedisAddr:   v.GetString("sinks.redis_addr"),
			PostgresDSN: v.GetString("sinks.postgres_dsn"),
		},
	}
}

// Validate checks the settings the orbit model and the clock depend on.
// The constellation shape is checked by core itself.
func (c Config) Validate() error {
	sat := core.SatelliteConfig{
		SatellitesPerPlane: c.Constellation.SatellitesPerPlane,
		NumberOfPlanes:     c.Constellation.Planes,
		AltitudeKm:         c.Constellation.AltitudeKm,
	}
	if err := sat.Validate(); err != nil {
		return err
	}
	if c.Constellation.MaxLinkRangeKm < 0 {
		return &core.ConfigurationError{Field: "constellation.max_link_range_km", Value: c.Constellation.MaxLinkRangeKm, Reason: "must not be negative"}
	}
	if c.Simulation.Tick <= 0 {
		return &core.ConfigurationError{Field: "simulation.tick", Value: c.Simulation.Tick, Reason: "must be positive"}
	}
	if c.Simulation.Duration < 0 {
		return &core.ConfigurationError{Field: "simulation.duration", Value: c.Simulation.Duration, Reason: "must not be negative"}
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return &core.ConfigurationError{Field: "tracing.sample_ratio", Value: c.Tracing.SampleRatio, Reason: "must lie in [0, 1]"}
	}
	switch c.Tracing.Exporter {
	case "stdout", "otlp", "otlpgrpc":
	default:
		return &core.ConfigurationError{Field: "tracing.exporter", Value: c.Tracing.Exporter, Reason: "must be stdout or otlp"}
	}
	return nil
}
