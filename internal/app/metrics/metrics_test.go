package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordersUpdateCollectors(t *testing.T) {
	before := testutil.ToFloat64(checkouts.WithLabelValues("success"))
	RecordCheckout(2500, nil)
	RecordCheckout(0, errors.New("empty"))
	if got := testutil.ToFloat64(checkouts.WithLabelValues("success")); got != before+1 {
		t.Fatalf("success checkouts = %v, want %v", got, before+1)
	}

	sweptBefore := testutil.ToFloat64(releasedStock)
	RecordSweep(3)
	if got := testutil.ToFloat64(releasedStock); got != sweptBefore+3 {
		t.Fatalf("released units = %v, want %v", got, sweptBefore+3)
	}

	RecordCartOperation("add", nil)
	RecordHTTPRequest("get", "/records/{id}", "200", 10*time.Millisecond)
	if got := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/records/{id}", "200")); got < 1 {
		t.Fatalf("expected request counted, got %v", got)
	}
}

func TestHandlerExposesNamespace(t *testing.T) {
	RecordCacheLookup(true)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "recordstore_cache_lookups_total") {
		t.Fatal("expected recordstore metrics in output")
	}
}
