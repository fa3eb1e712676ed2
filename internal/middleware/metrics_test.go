package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Register(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()

	if err := m.Register(reg); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}
	if err := m.Register(reg); err == nil {
		t.Error("expected duplicate registration to fail")
	}
}

func TestMetrics_RateLimitCounters(t *testing.T) {
	m := NewMetrics()

	m.IncRateLimitRequests("global", "ip")
	m.IncRateLimitRequests("global", "ip")
	m.IncRateLimitBlocked("writes", "user")

	if got := testutil.ToFloat64(m.rateLimitRequests.WithLabelValues("global", "ip")); got != 2 {
		t.Errorf("requests = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.rateLimitBlocked.WithLabelValues("writes", "user")); got != 1 {
		t.Errorf("blocked = %v, want 1", got)
	}
}

func TestHTTPMetrics_UsesMatchedPattern(t *testing.T) {
	m := NewMetrics()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /locations/{id}/reviews", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	handler := HTTPMetrics(m)(mux)

	for _, id := range []string{"P01_A", "P02_B", "FS_01"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/locations/"+id+"/reviews", nil))
	}
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	if got := testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/locations/{id}/reviews", "200")); got != 3 {
		t.Errorf("pattern count = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", unmatchedRoute, "404")); got != 1 {
		t.Errorf("unmatched count = %v, want 1", got)
	}
}

func TestHTTPMetrics_SkipsHealth(t *testing.T) {
	m := NewMetrics()
	handler := HTTPMetrics(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	if n := testutil.CollectAndCount(m.httpRequestsTotal); n != 0 {
		t.Errorf("expected no series for health probe, got %d", n)
	}
}

func TestRouteLabel(t *testing.T) {
	tests := []struct {
		pattern string
		want    string
	}{
		{"", unmatchedRoute},
		{"GET /dashboard", "/dashboard"},
		{"/metrics", "/metrics"},
		{"POST campus.example.edu/memories", "/memories"},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Pattern = tt.pattern
		if got := routeLabel(r); got != tt.want {
			t.Errorf("routeLabel(%q) = %q, want %q", tt.pattern, got, tt.want)
		}
	}
}
