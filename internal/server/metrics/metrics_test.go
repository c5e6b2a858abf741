package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNew_RegistersInstruments(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.TokensIssuedTotal.Inc()
	m.ExchangesRejectedTotal.WithLabelValues("invalid_credentials").Add(2)
	m.GateDecisionsTotal.WithLabelValues("rejected", "first_login_required").Inc()

	if got := testutil.ToFloat64(m.TokensIssuedTotal); got != 1 {
		t.Fatalf("tokens issued = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ExchangesRejectedTotal.WithLabelValues("invalid_credentials")); got != 2 {
		t.Fatalf("rejected = %v, want 2", got)
	}

	count, err := testutil.GatherAndCount(registry, "khazana_gate_decisions_total")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if count != 1 {
		t.Fatalf("gate decision series = %d, want 1", count)
	}
}

func TestNew_NilRegistry(t *testing.T) {
	if m := New(nil); m == nil || m.registry == nil {
		t.Fatal("expected a private registry")
	}
}

func TestHandler_ServesExposition(t *testing.T) {
	m := New(nil)
	m.TokensIssuedTotal.Inc()

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body, _ := io.ReadAll(rr.Body)
	if !strings.Contains(string(body), "khazana_tokens_issued_total 1") {
		t.Fatalf("exposition missing counter:\n%s", body)
	}
}
