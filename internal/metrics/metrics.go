// Package metrics exposes controller state as Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/hydro-controller/internal/controller"
	"github.com/sweeney/hydro-controller/internal/logic"
	"github.com/sweeney/hydro-controller/internal/nutrient"
	"github.com/sweeney/hydro-controller/internal/status"
)

const namespace = "hydro"

// Metrics holds every collector the controller updates.
type Metrics struct {
	registry *prometheus.Registry

	ph         prometheus.Gauge
	ec         prometheus.Gauge
	tds        prometheus.Gauge
	lux        prometheus.Gauge
	pumpOn     prometheus.Gauge
	lightOn    prometheus.Gauge
	halted     prometheus.Gauge
	precedence prometheus.Gauge
	cycle      *prometheus.GaugeVec

	cycleStarts    *prometheus.CounterVec
	commands       *prometheus.CounterVec
	alerts         *prometheus.CounterVec
	sensorErrors   prometheus.Counter
	actuatorErrors prometheus.Counter
}

// New registers the collectors on a private registry, along with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := newMetrics(reg)
	m.registry = reg
	return m
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	gauge := func(name, help string) prometheus.Gauge {
		return f.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
	}

	return &Metrics{
		ph:         gauge("ph", "Last pH reading"),
		ec:         gauge("ec_us_cm", "Last EC reading in µS/cm"),
		tds:        gauge("tds_ppm", "Last TDS estimate in ppm"),
		lux:        gauge("light_lux", "Last light reading in lux"),
		pumpOn:     gauge("pump_on", "1 while the pump relay is energized"),
		lightOn:    gauge("light_on", "1 while the grow light relay is energized"),
		halted:     gauge("halted", "1 while the system is halted"),
		precedence: gauge("flush_precedence", "1 while flushing holds or has claimed the pump"),
		cycle: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cycle_active",
			Help:      "1 while the cycle is active",
		}, []string{"cycle"}),

		cycleStarts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycle_starts_total",
			Help:      "Cycle starts by cycle and trigger",
		}, []string{"cycle", "trigger"}),
		commands: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Operator commands by command and outcome",
		}, []string{"command", "outcome"}),
		alerts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Dosing alerts by channel and new status",
		}, []string{"channel", "status"}),
		sensorErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sensor_read_errors_total",
			Help:      "Failed ADC reads",
		}),
		actuatorErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actuator_write_errors_total",
			Help:      "Ticks where a relay write failed",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Observe records one tick.
func (m *Metrics) Observe(rep controller.Report) {
	m.ObserveState(rep.State)
	for _, r := range rep.Results {
		m.commands.WithLabelValues(string(r.Kind), r.Outcome.String()).Inc()
	}
	for _, e := range rep.Events {
		if e.Type == logic.EventMistingStart || e.Type == logic.EventFlushingStart {
			m.cycleStarts.WithLabelValues(string(e.Cycle), string(e.Trigger)).Inc()
		}
	}
	for _, a := range rep.Alerts {
		m.RecordAlert(a)
	}
	if rep.SensorErr != nil {
		m.sensorErrors.Inc()
	}
	if rep.ActuatorErr != nil {
		m.actuatorErrors.Inc()
	}
}

// ObserveState sets the gauges from a rendered state.
func (m *Metrics) ObserveState(s status.State) {
	if s.HaveSample {
		m.ph.Set(s.Sample.PH)
		m.ec.Set(s.Sample.EC)
		m.tds.Set(s.Sample.TDS)
		m.lux.Set(s.Sample.Lux)
	}
	m.pumpOn.Set(boolFloat(s.Signals.Pump))
	m.lightOn.Set(boolFloat(s.Signals.Light))
	m.halted.Set(boolFloat(s.Halted))
	m.precedence.Set(boolFloat(s.Precedence))
	m.cycle.WithLabelValues(string(logic.CycleMisting)).Set(boolFloat(s.Misting.Active))
	m.cycle.WithLabelValues(string(logic.CycleFlushing)).Set(boolFloat(s.Flushing.Active))
}

// RecordAlert counts one alert.
func (m *Metrics) RecordAlert(a nutrient.Alert) {
	m.alerts.WithLabelValues(string(a.Channel), string(a.Advice.Status)).Inc()
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
