package receiver

import (
	"log/slog"
	"sync"

	"github.com/vitalops/vitalops/server/internal/alerts"
	"github.com/vitalops/vitalops/server/internal/metrics"
	"github.com/vitalops/vitalops/server/internal/store"
	"github.com/vitalops/vitalops/server/internal/vitals"
)

// Source labels for metrics and logs.
const (
	SourceHTTP = "http"
	SourceMQTT = "mqtt"
)

// Receiver validates readings and writes accepted ones to the store.
// Appends and alert evaluation happen under one lock, so the alert engine
// sees readings in store order.
type Receiver struct {
	mu      sync.Mutex
	store   *store.Store
	alerts  *alerts.Engine
	metrics *metrics.Metrics

	// OnStored, when set before use, is called after every accepted reading
	// has been appended and evaluated.
	OnStored func(vitals.StoredReading)
}

// New creates a Receiver that writes accepted readings to st.
// eng and m may be nil.
func New(st *store.Store, eng *alerts.Engine, m *metrics.Metrics) *Receiver {
	return &Receiver{store: st, alerts: eng, metrics: m}
}

// Accept validates r and, if valid, appends it to the store and returns the
// stored value. A validation failure returns a *vitals.InvalidReading and
// leaves the store untouched.
func (rc *Receiver) Accept(source string, r vitals.Reading) (vitals.StoredReading, error) {
	if err := vitals.Validate(r); err != nil {
		rc.Reject(source, err)
		return vitals.StoredReading{}, err
	}

	rc.mu.Lock()
	stored := rc.store.Append(r)
	if rc.metrics != nil {
		rc.metrics.Accepted(source, rc.store.Count())
	}
	if rc.alerts != nil {
		for _, a := range rc.alerts.Evaluate(stored) {
			if rc.metrics != nil {
				rc.metrics.AlertFired(a.RuleName)
			}
		}
	}
	rc.mu.Unlock()

	if rc.OnStored != nil {
		rc.OnStored(stored)
	}

	slog.Debug("receiver: reading stored",
		"source", source,
		"spo2", stored.SpO2,
		"hr", stored.HR,
		"timestamp_server", stored.TimestampServer,
	)
	return stored, nil
}

// Reject records a reading that never reached validation or failed it.
// Field-level errors are counted per field.
func (rc *Receiver) Reject(source string, err error) {
	var fields []string
	if inv, ok := vitals.AsInvalid(err); ok {
		fields = inv.Fields()
	}
	if rc.metrics != nil {
		rc.metrics.Rejected(source, fields...)
	}
	slog.Debug("receiver: reading rejected", "source", source, "err", err)
}
