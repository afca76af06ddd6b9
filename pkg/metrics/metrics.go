package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// OffersReceived counts every offer seen in an OFFERS event.
	OffersReceived = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rexe_offers_received_total",
			Help: "Total number of resource offers received from the master",
		},
	)

	// OffersAccepted counts offers the scheduler decided to launch on.
	OffersAccepted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rexe_offers_accepted_total",
			Help: "Total number of resource offers accepted",
		},
	)

	// OffersDeclined counts offers the scheduler declined.
	OffersDeclined = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rexe_offers_declined_total",
			Help: "Total number of resource offers declined",
		},
	)

	// CallsTotal counts the ACCEPT, DECLINE, ACKNOWLEDGE and TEARDOWN calls
	// POSTed to the master, by call type and outcome (ok/error). SUBSCRIBE and
	// agent calls are not counted.
	CallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rexe_calls_total",
			Help: "Total number of scheduler calls sent to the master after subscribing",
		},
		[]string{"call", "outcome"},
	)

	// ConsoleBytesStreamed counts bytes written to the local stdout/stderr
	// writers by the console.
	ConsoleBytesStreamed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rexe_console_bytes_streamed_total",
			Help: "Total bytes streamed to the local terminal by stream",
		},
		[]string{"stream"},
	)

	// SchedulingLatency times the span from an offer being seen to the
	// ACCEPT call being sent for it.
	SchedulingLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rexe_scheduling_latency_seconds",
			Help:    "Time from offer received to ACCEPT sent",
			Buckets: prometheus.DefBuckets,
		},
	)

	// RecordReadLatency times a single RecordIO ReadRecord call against the
	// subscribe stream.
	RecordReadLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rexe_record_read_latency_seconds",
			Help:    "Time spent blocked reading a single RecordIO record",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(
		OffersReceived,
		OffersAccepted,
		OffersDeclined,
		CallsTotal,
		ConsoleBytesStreamed,
		SchedulingLatency,
		RecordReadLatency,
	)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed duration to a histogram vec with
// labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
