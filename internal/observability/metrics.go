package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	codesEncoded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qrdrive",
			Subsystem: "encode",
			Name:      "codes_total",
			Help:      "Total symbolic codes produced.",
		},
		[]string{"strength"},
	)
	framesIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qrdrive",
			Subsystem: "decode",
			Name:      "frames_ingested_total",
			Help:      "Frames handed to a reassembly session, by outcome.",
		},
		[]string{"outcome"},
	)
	sessionWarnings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qrdrive",
			Subsystem: "decode",
			Name:      "warnings_total",
			Help:      "Advisory warnings raised during ingestion, by kind.",
		},
		[]string{"kind"},
	)
	bytesRecovered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "qrdrive",
			Subsystem: "decode",
			Name:      "bytes_recovered_total",
			Help:      "Payload bytes recovered by finalized sessions.",
		},
	)
)

// Ingest outcomes for frames_ingested_total.
const (
	OutcomeAccepted  = "accepted"
	OutcomeDuplicate = "duplicate"
	OutcomeForeign   = "foreign"
	OutcomeRejected  = "rejected"
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(codesEncoded, framesIngested, sessionWarnings, bytesRecovered)
	})
}

func RecordCodesEncoded(strength string, count int) {
	RegisterMetrics()
	codesEncoded.WithLabelValues(strength).Add(float64(count))
}

func RecordFrameIngested(outcome string) {
	RegisterMetrics()
	framesIngested.WithLabelValues(outcome).Inc()
}

func RecordWarning(kind string) {
	RegisterMetrics()
	sessionWarnings.WithLabelValues(kind).Inc()
}

func RecordBytesRecovered(n int) {
	RegisterMetrics()
	bytesRecovered.Add(float64(n))
}
