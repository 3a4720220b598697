package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ConstellationCollector bundles Prometheus metrics for a running
// constellation simulation.
type ConstellationCollector struct {
	gatherer prometheus.Gatherer

	Satellites    prometheus.Gauge
	Links         prometheus.Gauge
	LinksUp       prometheus.Gauge
	PoleCrossings prometheus.Counter
	SinkErrors    *prometheus.CounterVec
	StepDuration  prometheus.Histogram
	LinkDistance  prometheus.Histogram
}

// NewConstellationCollector registers constellation metrics against the
// provided registerer, defaulting to the global Prometheus registry when nil.
func NewConstellationCollector(reg prometheus.Registerer) (*ConstellationCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	satellites, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "constellation_satellites",
		Help: "Number of satellites in the constellation.",
	}), "constellation_satellites")
	if err != nil {
		return nil, err
	}
	links, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "constellation_links",
		Help: "Number of inter-satellite links evaluated in the last step.",
	}), "constellation_links")
	if err != nil {
		return nil, err
	}
	linksUp, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "constellation_links_up",
		Help: "Number of inter-satellite links with clear line of sight in range.",
	}), "constellation_links_up")
	if err != nil {
		return nil, err
	}
	crossings, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "constellation_pole_crossings_total",
		Help: "Cumulative number of pole crossings across all satellites.",
	}), "constellation_pole_crossings_total")
	if err != nil {
		return nil, err
	}
	sinkErrors, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "constellation_sink_errors_total",
		Help: "Snapshot publish failures, labeled by sink.",
	}, []string{"sink"}), "constellation_sink_errors_total")
	if err != nil {
		return nil, err
	}
	stepDuration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "constellation_step_duration_seconds",
		Help:    "Wall-clock duration of one simulation step.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}), "constellation_step_duration_seconds")
	if err != nil {
		return nil, err
	}
	linkDistance, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "constellation_link_distance_km",
		Help:    "Great-circle length of inter-satellite links.",
		Buckets: []float64{250, 500, 1000, 2000, 3000, 5000, 7500, 10000, 20000},
	}), "constellation_link_distance_km")
	if err != nil {
		return nil, err
	}

	return &ConstellationCollector{
		gatherer:      gatherer,
		Satellites:    satellites,
		Links:         links,
		LinksUp:       linksUp,
		PoleCrossings: crossings,
		SinkErrors:    sinkErrors,
		StepDuration:  stepDuration,
		LinkDistance:  linkDistance,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *ConstellationCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveStep records the outcome of one simulation step.
func (c *ConstellationCollector) ObserveStep(d time.Duration, satellites, poleCrossings int, linkDistancesKm []float64, linksUp int) {
	if c == nil {
		return
	}
	c.StepDuration.Observe(d.Seconds())
	c.Satellites.Set(float64(satellites))
	c.Links.Set(float64(len(linkDistancesKm)))
	c.LinksUp.Set(float64(linksUp))
	if poleCrossings > 0 {
		c.PoleCrossings.Add(float64(poleCrossings))
	}
	for _, d := range linkDistancesKm {
		c.LinkDistance.Observe(d)
	}
}

// IncSinkError counts one failed publish on the named sink.
func (c *ConstellationCollector) IncSinkError(sink string) {
	if c == nil || c.SinkErrors == nil {
		return
	}
	c.SinkErrors.WithLabelValues(sink).Inc()
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
