package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCounter(t *testing.T) {
	reg := New()
	c := reg.Counter("jobs_total", "Jobs processed")
	c.Inc()
	c.Add(4)
	if c.Value() != 5 {
		t.Errorf("Value = %d, want 5", c.Value())
	}
	if again := reg.Counter("jobs_total", ""); again != c {
		t.Error("same name returned a different counter")
	}
}

func TestGauge(t *testing.T) {
	reg := New()
	g := reg.Gauge("queue_depth", "")
	g.Set(10)
	g.Inc()
	g.Dec()
	g.Dec()
	if g.Value() != 9 {
		t.Errorf("Value = %d, want 9", g.Value())
	}
}

func TestHistogram_CumulativeBuckets(t *testing.T) {
	reg := New()
	h := reg.Histogram("latency_seconds", "", []float64{0.1, 1, 10})
	h.Observe(0.05)
	h.Observe(0.5)
	h.Observe(0.7)
	h.Observe(100) // beyond all buckets, counts only toward +Inf

	out := reg.Render()
	for _, line := range []string{
		`latency_seconds_bucket{le="0.1"} 1`,
		`latency_seconds_bucket{le="1"} 3`,
		`latency_seconds_bucket{le="10"} 3`,
		`latency_seconds_bucket{le="+Inf"} 4`,
		`latency_seconds_count 4`,
	} {
		if !strings.Contains(out, line) {
			t.Errorf("render missing %q:\n%s", line, out)
		}
	}
}

func TestWithLabels(t *testing.T) {
	tests := []struct {
		name string
		kvs  []string
		want string
	}{
		{"plain", nil, "plain"},
		{"m", []string{"k", "v"}, `m{k="v"}`},
		{"m", []string{"a", "1", "b", "2"}, `m{a="1",b="2"}`},
		{"odd", []string{"k"}, "odd"},
	}
	for _, tt := range tests {
		if got := WithLabels(tt.name, tt.kvs...); got != tt.want {
			t.Errorf("WithLabels(%q, %v) = %q, want %q", tt.name, tt.kvs, got, tt.want)
		}
	}
}

func TestRender_LabeledSeriesShareHeader(t *testing.T) {
	reg := New()
	reg.Counter(WithLabels("embeds_total", "status", "success"), "Embed outcomes").Add(3)
	reg.Counter(WithLabels("embeds_total", "status", "error"), "Embed outcomes").Inc()

	out := reg.Render()
	if n := strings.Count(out, "# TYPE embeds_total counter"); n != 1 {
		t.Errorf("TYPE header appears %d times, want 1:\n%s", n, out)
	}
	if !strings.Contains(out, `embeds_total{status="error"} 1`) ||
		!strings.Contains(out, `embeds_total{status="success"} 3`) {
		t.Errorf("labeled series missing:\n%s", out)
	}
	// Sorted series: error before success.
	if strings.Index(out, `status="error"`) > strings.Index(out, `status="success"`) {
		t.Errorf("series not sorted:\n%s", out)
	}
}

func TestRender_InsertionOrder(t *testing.T) {
	reg := New()
	reg.Counter("zed_total", "").Inc()
	reg.Gauge("alpha_depth", "").Set(1)

	out := reg.Render()
	if strings.Index(out, "zed_total") > strings.Index(out, "alpha_depth") {
		t.Errorf("metrics not in registration order:\n%s", out)
	}
}

func TestHandler(t *testing.T) {
	reg := New()
	reg.Counter("hits_total", "").Inc()

	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("content type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "hits_total 1") {
		t.Errorf("body = %q", rec.Body.String())
	}
}
