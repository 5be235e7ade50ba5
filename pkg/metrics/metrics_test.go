package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/papercomputeco/chatrelay/pkg/metrics"
)

var _ = Describe("Metrics", func() {
	var m *metrics.Metrics

	BeforeEach(func() {
		m = metrics.New()
	})

	It("tracks active sessions and outcomes", func() {
		m.SessionStarted()
		m.SessionStarted()
		m.SessionEnded(metrics.OutcomeClosed, "llama3", time.Second)
		m.SessionRejected()

		count, err := testutil.GatherAndCount(m.Registry(), "chatrelay_relay_sessions_total")
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(Equal(2))

		expected := `
# HELP chatrelay_relay_active_sessions Relay sessions currently streaming.
# TYPE chatrelay_relay_active_sessions gauge
chatrelay_relay_active_sessions 1
`
		Expect(testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "chatrelay_relay_active_sessions")).To(Succeed())
	})

	It("is a no-op on a nil receiver", func() {
		var nilMetrics *metrics.Metrics
		Expect(func() {
			nilMetrics.SessionStarted()
			nilMetrics.SessionEnded(metrics.OutcomeFailed, "m", time.Second)
			nilMetrics.SessionRejected()
			nilMetrics.TokensGenerated("m", 1)
			nilMetrics.UpstreamError("timeout")
			nilMetrics.PersistFailed("usage_log")
			nilMetrics.Event(metrics.EventDropped)
			nilMetrics.ModelCacheLookup(true)
			nilMetrics.ObserveHTTP("GET", "/health", 200, time.Millisecond)
		}).NotTo(Panic())
	})

	It("serves the exposition format", func() {
		m.ObserveHTTP("GET", "/health", http.StatusOK, 5*time.Millisecond)
		m.PersistFailed("assistant_message")
		m.Event(metrics.EventPublished)

		rec := httptest.NewRecorder()
		m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		Expect(rec.Code).To(Equal(http.StatusOK))

		body, err := io.ReadAll(rec.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(body)).To(ContainSubstring(`chatrelay_http_requests_total{method="GET",route="/health",status="200"} 1`))
		Expect(string(body)).To(ContainSubstring(`chatrelay_persist_failures_total{op="assistant_message"} 1`))
		Expect(string(body)).To(ContainSubstring(`chatrelay_events_total{result="published"} 1`))
		Expect(string(body)).To(ContainSubstring("go_goroutines"))
	})
})
