// Package metrics exposes Prometheus counters and gauges for reading
// ingestion, alerting and the live stream.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

// Metric names.
const (
	ReadingsAccepted = "vitalops_readings_accepted_total"
	ReadingsRejected = "vitalops_readings_rejected_total"
	StoreReadings    = "vitalops_store_readings"
	AlertsFired      = "vitalops_alerts_fired_total"
	WSClients        = "vitalops_ws_clients"
)

// Metrics owns a private registry so tests and multiple servers in one
// process never collide on the global default registry.
type Metrics struct {
	reg *prometheus.Registry

	accepted    *prometheus.CounterVec
	rejected    *prometheus.CounterVec
	storeSize   prometheus.Gauge
	alertsFired *prometheus.CounterVec
	wsClients   prometheus.Gauge
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		accepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: ReadingsAccepted,
			Help: "Readings that passed validation and were stored.",
		}, []string{"source"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: ReadingsRejected,
			Help: "Readings rejected by validation, by offending field.",
		}, []string{"source", "field"}),
		storeSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: StoreReadings,
			Help: "Readings currently held in the in-memory store.",
		}),
		alertsFired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: AlertsFired,
			Help: "Alert rule fire events.",
		}, []string{"rule"}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: WSClients,
			Help: "Connected WebSocket stream clients.",
		}),
	}
	m.reg.MustRegister(m.accepted, m.rejected, m.storeSize, m.alertsFired, m.wsClients)
	return m
}

// Accepted counts one stored reading from source and records the new store size.
func (m *Metrics) Accepted(source string, storeSize int) {
	m.accepted.WithLabelValues(source).Inc()
	m.storeSize.Set(float64(storeSize))
}

// Rejected counts one rejection per offending field.
func (m *Metrics) Rejected(source string, fields ...string) {
	if len(fields) == 0 {
		fields = []string{"body"}
	}
	for _, f := range fields {
		m.rejected.WithLabelValues(source, f).Inc()
	}
}

// AlertFired counts one fire of rule.
func (m *Metrics) AlertFired(rule string) {
	m.alertsFired.WithLabelValues(rule).Inc()
}

// SetWSClients records the current number of stream clients.
func (m *Metrics) SetWSClients(n int) {
	m.wsClients.Set(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Totals gathers the registry and sums every counter and gauge family across
// its label sets, keyed by family name.
func (m *Metrics) Totals() (map[string]float64, error) {
	mfs, err := m.reg.Gather()
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(mfs))
	for _, mf := range mfs {
		out[mf.GetName()] = sumFamily(mf)
	}
	return out, nil
}

// sumFamily adds up all counter, gauge, or untyped values in a MetricFamily.
// Returns 0 if mf is nil.
func sumFamily(mf *dto.MetricFamily) float64 {
	if mf == nil {
		return 0
	}
	var total float64
	for _, m := range mf.GetMetric() {
		switch {
		case m.Counter != nil:
			total += m.Counter.GetValue()
		case m.Gauge != nil:
			total += m.Gauge.GetValue()
		case m.Untyped != nil:
			total += m.Untyped.GetValue()
		}
	}
	return total
}
