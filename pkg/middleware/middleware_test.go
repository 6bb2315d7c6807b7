package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"go.opentelemetry.io/otel/attribute"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if matchLabels(m, labels) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func matchLabels(m *dto.Metric, want map[string]string) bool {
	got := make(map[string]string)
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

func newRouter(mw ...func(http.Handler) http.Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(mw...)
	r.Get("/users/{id}", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/boom", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	return r
}

func serve(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestPrometheusLabelsByRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := newRouter(Prometheus(WithRegistry(reg)))

	serve(h, "/users/1")
	serve(h, "/users/2")
	serve(h, "/boom")
	serve(h, "/missing")

	tests := []struct {
		route, code string
		want        float64
	}{
		{"/users/{id}", "2xx", 2},
		{"/boom", "5xx", 1},
		{"unmatched", "4xx", 1},
	}
	for _, tt := range tests {
		got := counterValue(t, reg, "bar_http_requests_total", map[string]string{"route": tt.route, "code": tt.code})
		if got != tt.want {
			t.Errorf("requests{route=%q,code=%q} = %v, want %v", tt.route, tt.code, got, tt.want)
		}
	}
}

func TestPrometheusOptions(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := newRouter(Prometheus(
		WithRegistry(reg),
		WithNamespace("debug"),
		WithSubsystem("api"),
		WithConstLabels(prometheus.Labels{"instance": "a"}),
		WithBuckets([]float64{0.1, 1}),
	))
	serve(h, "/users/1")

	got := counterValue(t, reg, "debug_api_requests_total", map[string]string{"instance": "a", "route": "/users/{id}"})
	if got != 1 {
		t.Errorf("debug_api_requests_total = %v, want 1", got)
	}
}

func TestOpenTelemetryPassesThrough(t *testing.T) {
	var extracted int
	h := newRouter(OpenTelemetry(
		WithTracerName("test"),
		WithAttributeExtractor(func(*http.Request) []attribute.KeyValue { extracted++; return nil }),
	))

	if rec := serve(h, "/users/1"); rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("GET /users/1 = %d %q", rec.Code, rec.Body.String())
	}
	if rec := serve(h, "/boom"); rec.Code != http.StatusInternalServerError {
		t.Errorf("GET /boom = %d", rec.Code)
	}
	if extracted != 2 {
		t.Errorf("extractor called %d times, want 2", extracted)
	}
}

func TestOpenTelemetryFilter(t *testing.T) {
	var extracted int
	h := newRouter(OpenTelemetry(
		WithRequestFilter(func(r *http.Request) bool { return r.URL.Path != "/users/1" }),
		WithAttributeExtractor(func(*http.Request) []attribute.KeyValue { extracted++; return nil }),
	))

	serve(h, "/users/1")
	if extracted != 0 {
		t.Errorf("filtered request was traced")
	}
}

func TestStatusClass(t *testing.T) {
	tests := map[int]string{200: "2xx", 204: "2xx", 301: "3xx", 404: "4xx", 503: "5xx", 42: "unknown"}
	for code, want := range tests {
		if got := statusClass(code); got != want {
			t.Errorf("statusClass(%d) = %q, want %q", code, got, want)
		}
	}
}
