package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandlerExposesCheckoutCounter(t *testing.T) {
	CheckoutsTotal.WithLabelValues("cash", "completed").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "possettle_checkout_total") {
		t.Fatalf("expected possettle_checkout_total in exposition output")
	}
}
