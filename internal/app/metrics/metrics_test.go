package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordChainInstruction(t *testing.T) {
	before := testutil.ToFloat64(chainInstructions.WithLabelValues("MINT", "confirmed"))
	RecordChainInstruction("MINT", "confirmed", 0)
	after := testutil.ToFloat64(chainInstructions.WithLabelValues("MINT", "confirmed"))
	if after != before+1 {
		t.Fatalf("counter = %v, want %v", after, before+1)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	RecordHTTPRequest("get", "/v1/tickets/{address}", "200", 10*time.Millisecond)
	RecordLedgerWriteFailure("TRANSFER")
	RecordReconciled("confirmed")
	RecordIdempotentReplay("LIST")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	for _, name := range []string{
		"mintix_http_requests_total",
		"mintix_ledger_write_failures_total",
		"mintix_reconciler_records_total",
		"mintix_ledger_idempotent_replays_total",
	} {
		if !strings.Contains(body, name) {
			t.Fatalf("metric %s missing from exposition", name)
		}
	}
	if !strings.Contains(body, `method="GET"`) {
		t.Fatalf("method label should be upper-cased")
	}
}
