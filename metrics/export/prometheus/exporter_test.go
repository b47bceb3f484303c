package prometheus

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	goIdentity "github.com/MrEthical07/goIdentity"
)

type fakeSource struct {
	snapshot goIdentity.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() goIdentity.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                        { return f.dropped }

func scrape(t *testing.T, src fakeSource) (string, string) {
	t.Helper()
	h, err := Handler(NewCollectorFromSource(src))
	if err != nil {
		t.Fatalf("Handler: %v", err)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	return string(body), rec.Header().Get("Content-Type")
}

func TestCollectorEmptyWhenMetricsDisabled(t *testing.T) {
	out, _ := scrape(t, fakeSource{
		snapshot: goIdentity.MetricsSnapshot{
			Counters:   map[goIdentity.MetricID]uint64{},
			Histograms: map[goIdentity.MetricID][]uint64{},
		},
	})
	if strings.Contains(out, "goidentity_") {
		t.Fatalf("expected no engine series, got:\n%s", out)
	}
}

func TestCollectorCountersAndHistogram(t *testing.T) {
	out, contentType := scrape(t, fakeSource{
		snapshot: goIdentity.MetricsSnapshot{
			Counters: map[goIdentity.MetricID]uint64{
				goIdentity.MetricVerifySuccess: 7,
				goIdentity.MetricRefreshFailure: 1,
			},
			Histograms: map[goIdentity.MetricID][]uint64{
				goIdentity.MetricVerifyLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	if !strings.Contains(contentType, "text/plain") {
		t.Fatalf("unexpected content type %q", contentType)
	}
	for _, want := range []string{
		"goidentity_verify_success_total 7",
		"goidentity_refresh_failure_total 1",
		"goidentity_session_cookie_created_total 0",
		`goidentity_verify_latency_seconds_bucket{le="0.005"} 1`,
		`goidentity_verify_latency_seconds_bucket{le="0.5"} 28`,
		`goidentity_verify_latency_seconds_bucket{le="+Inf"} 36`,
		"goidentity_verify_latency_seconds_count 36",
		"goidentity_audit_dropped_total 2",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in output:\n%s", want, out)
		}
	}
}

func TestCollectorSkipsMissingHistogram(t *testing.T) {
	out, _ := scrape(t, fakeSource{
		snapshot: goIdentity.MetricsSnapshot{
			Counters:   map[goIdentity.MetricID]uint64{goIdentity.MetricKeyFetch: 3},
			Histograms: map[goIdentity.MetricID][]uint64{},
		},
	})
	if !strings.Contains(out, "goidentity_key_fetch_total 3") {
		t.Fatalf("missing key fetch counter:\n%s", out)
	}
	if strings.Contains(out, "goidentity_verify_latency_seconds") {
		t.Fatalf("latency histogram must be absent when disabled:\n%s", out)
	}
}

func TestHandlerUsesPrivateRegistry(t *testing.T) {
	c := NewCollectorFromSource(fakeSource{})
	if _, err := Handler(c); err != nil {
		t.Fatalf("first Handler: %v", err)
	}
	// Each handler owns its registry, so the same collector may back two.
	if _, err := Handler(c); err != nil {
		t.Fatalf("second Handler: %v", err)
	}
}
