package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveDispatch(t *testing.T) {
	m := New(nil)
	m.ObserveDispatch("WELCOME", OutcomeContinue)
	m.ObserveDispatch("WELCOME", OutcomeContinue)
	m.ObserveDispatch("DEPOSIT_PIN", OutcomeError)

	if got := testutil.ToFloat64(m.dispatches.WithLabelValues("WELCOME", OutcomeContinue)); got != 2 {
		t.Fatalf("expected 2 welcome dispatches, got %v", got)
	}
	if got := testutil.ToFloat64(m.dispatches.WithLabelValues("DEPOSIT_PIN", OutcomeError)); got != 1 {
		t.Fatalf("expected 1 error dispatch, got %v", got)
	}
}

func TestObserveSweepIgnoresEmptyPasses(t *testing.T) {
	m := New(nil)
	m.ObserveSweep(0)
	m.ObserveSweep(3)

	if got := testutil.ToFloat64(m.expired); got != 3 {
		t.Fatalf("expected 3 expired, got %v", got)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveDispatch("WELCOME", OutcomeEnd)
	m.ObserveSweep(1)
	m.ObserveSMS(true)
}

func TestHandlerExposesActiveSessions(t *testing.T) {
	m := New(func() int { return 7 })

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "gkash_ussd_sessions_active 7") {
		t.Fatalf("active sessions gauge missing:\n%s", rr.Body.String())
	}
}
