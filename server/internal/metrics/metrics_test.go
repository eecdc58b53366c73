package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/prometheus/common/expfmt"
)

func TestCounters(t *testing.T) {
	m := New()

	m.Accepted("http", 1)
	m.Accepted("http", 2)
	m.Accepted("mqtt", 3)
	if got := testutil.ToFloat64(m.accepted.WithLabelValues("http")); got != 2 {
		t.Errorf("accepted{http}: got %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.storeSize); got != 3 {
		t.Errorf("store size: got %v, want 3", got)
	}

	m.Rejected("http", "spo2", "hr")
	m.Rejected("mqtt")
	if got := testutil.ToFloat64(m.rejected.WithLabelValues("http", "spo2")); got != 1 {
		t.Errorf("rejected{http,spo2}: got %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.rejected.WithLabelValues("mqtt", "body")); got != 1 {
		t.Errorf("rejected{mqtt,body}: got %v, want 1", got)
	}

	m.AlertFired("low-spo2")
	m.SetWSClients(4)
	if got := testutil.ToFloat64(m.wsClients); got != 4 {
		t.Errorf("ws clients: got %v, want 4", got)
	}
}

func TestTotals(t *testing.T) {
	m := New()
	m.Accepted("http", 1)
	m.Accepted("mqtt", 2)
	m.Rejected("http", "spo2", "hr")

	totals, err := m.Totals()
	if err != nil {
		t.Fatalf("Totals: %v", err)
	}
	if totals[ReadingsAccepted] != 2 {
		t.Errorf("accepted total: got %v, want 2", totals[ReadingsAccepted])
	}
	if totals[ReadingsRejected] != 2 {
		t.Errorf("rejected total: got %v, want 2", totals[ReadingsRejected])
	}
	if totals[StoreReadings] != 2 {
		t.Errorf("store gauge: got %v, want 2", totals[StoreReadings])
	}
}

func TestHandler_Exposition(t *testing.T) {
	m := New()
	m.Accepted("http", 1)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}

	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(rr.Body)
	if err != nil {
		t.Fatalf("parse exposition: %v", err)
	}
	mf, ok := mfs[ReadingsAccepted]
	if !ok {
		t.Fatalf("%s missing from exposition", ReadingsAccepted)
	}
	if got := sumFamily(mf); got != 1 {
		t.Errorf("%s: got %v, want 1", ReadingsAccepted, got)
	}
	if sumFamily(nil) != 0 {
		t.Error("sumFamily(nil): want 0")
	}
}
