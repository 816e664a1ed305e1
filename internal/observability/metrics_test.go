package observability

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics_IsolatedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)

	m.TradesClosed.WithLabelValues("win").Inc()
	m.TradesClosed.WithLabelValues("win").Inc()

	if got := testutil.ToFloat64(m.TradesClosed.WithLabelValues("win")); got != 2 {
		t.Fatalf("closed win = %v, want 2", got)
	}
}

func TestRecordSell_ClassifiesResult(t *testing.T) {
	before := testutil.ToFloat64(DefaultMetrics.TradesClosed.WithLabelValues("loss"))
	RecordSell(-0.01, "fixed")
	after := testutil.ToFloat64(DefaultMetrics.TradesClosed.WithLabelValues("loss"))
	if after != before+1 {
		t.Fatalf("loss counter = %v, want %v", after, before+1)
	}
	if got := testutil.ToFloat64(DefaultMetrics.OpenPosition); got != 0 {
		t.Fatalf("open position gauge = %v, want 0", got)
	}
}

func TestHandler_ExposesDefaultMetrics(t *testing.T) {
	RecordCycle("traded", 2*time.Second)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if !strings.Contains(rec.Body.String(), "lobbi_agent_cycles_total") {
		t.Fatalf("metrics output missing cycles counter")
	}
}
