package mid

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/LexbaseAI/lexbase-mvp/pkg/metrics"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestChain_Order(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		order = append(order, "handler")
	}), mw("outer"), mw("inner"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	want := []string{"outer", "inner", "handler"}
	for i, name := range want {
		if i >= len(order) || order[i] != name {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestRecover_CatchesPanic(t *testing.T) {
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), Recover(discardLogger()))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestLogger_CapturesStatus(t *testing.T) {
	var buf strings.Builder
	log := slog.New(slog.NewTextHandler(&buf, nil))

	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}), Logger(log))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/brew", nil))

	out := buf.String()
	if !strings.Contains(out, "status=418") {
		t.Errorf("log missing status: %q", out)
	}
	if !strings.Contains(out, "path=/brew") {
		t.Errorf("log missing path: %q", out)
	}
}

func TestStatusWriter_DefaultsTo200OnWrite(t *testing.T) {
	var buf strings.Builder
	log := slog.New(slog.NewTextHandler(&buf, nil))

	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok")) // no explicit WriteHeader
	}), Logger(log))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	if !strings.Contains(buf.String(), "status=200") {
		t.Errorf("log = %q, want status 200", buf.String())
	}
}

func TestCORS_Preflight(t *testing.T) {
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler reached on preflight")
	}), CORS("https://app.example.com"))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/", nil))

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("origin header = %q", got)
	}
}

func TestCORS_PassesNonPreflight(t *testing.T) {
	called := false
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
	}), CORS("*"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	if !called {
		t.Error("handler not reached on GET")
	}
}

func TestMetrics_RecordsRequests(t *testing.T) {
	reg := metrics.New()
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}), Metrics(reg, "lexbase"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/missing", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/missing", nil))

	out := reg.Render()
	if !strings.Contains(out, `lexbase_http_requests_total{method="GET",class="4xx"} 2`) {
		t.Errorf("render missing counter:\n%s", out)
	}
	if !strings.Contains(out, "lexbase_http_request_duration_seconds_count 2") {
		t.Errorf("render missing histogram count:\n%s", out)
	}
}
