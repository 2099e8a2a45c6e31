package metrics

import (
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestHTTPMetricsGroupsByStatusClass(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)

	m.Observe(http.MethodPost, "/api/v1/orders", http.StatusCreated, 20*time.Millisecond)
	m.Observe(http.MethodPost, "/api/v1/orders", http.StatusOK, 10*time.Millisecond)
	m.Observe(http.MethodPost, "/api/v1/orders", http.StatusConflict, 5*time.Millisecond)
	m.Observe(http.MethodGet, "", http.StatusNotFound, time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	requests := family(mfs, "http_requests_total")
	if got := value(requests, map[string]string{"route": "/api/v1/orders", "status": "2xx"}); got != 2 {
		t.Fatalf("expected 2 successful confirms, got %v", got)
	}
	if got := value(requests, map[string]string{"route": "/api/v1/orders", "status": "4xx"}); got != 1 {
		t.Fatalf("expected 1 rejected confirm, got %v", got)
	}
	if got := value(requests, map[string]string{"route": "unmatched"}); got != 1 {
		t.Fatalf("expected unmatched route series, got %v", got)
	}
}

func TestStatusClass(t *testing.T) {
	cases := map[int]string{200: "2xx", 204: "2xx", 409: "4xx", 503: "5xx", 0: "unknown"}
	for status, want := range cases {
		if got := statusClass(status); got != want {
			t.Fatalf("statusClass(%d) = %s, want %s", status, got, want)
		}
	}
}
