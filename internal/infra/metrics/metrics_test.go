//go:build !integration

package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInit_ServesPrefixedSeries(t *testing.T) {
	// --- Arrange ---
	Init("1.0.0", "abc123", "Worker")
	Init("1.0.0", "abc123", "Worker")
	IncBotReaped()
	srv := httptest.NewServer(Handler())
	defer srv.Close()

	// --- Act ---
	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	// --- Assert ---
	for _, want := range []string{
		`pixmgr_build_info{commit="abc123",role="worker",version="1.0.0"} 1`,
		"pixmgr_bots_reaped_total",
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("expected %q in exposition", want)
		}
	}
}

func TestCounters_NormalizeLabels(t *testing.T) {
	IncPixPayment(" PushInPay ", "Created")
	IncPixPayment("pushinpay", "created")

	if got := testutil.ToFloat64(pixPaymentsTotal.WithLabelValues("pushinpay", "created")); got != 2 {
		t.Errorf("expected 2 created pushinpay payments, got %v", got)
	}
}

func TestStoreBusyRetry(t *testing.T) {
	before := testutil.ToFloat64(storeBusyRetriesTotal.WithLabelValues("insert"))
	IncStoreBusyRetry("INSERT")
	after := testutil.ToFloat64(storeBusyRetriesTotal.WithLabelValues("insert"))
	if after-before != 1 {
		t.Errorf("expected one retry to be counted, got %v", after-before)
	}
}
