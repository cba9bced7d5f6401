// Package metrics defines the prometheus metric types shared across the
// engine.
package metrics

import (
	"log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SyscallTimeHistogram tracks how long one full request/reply
	// transaction takes, labeled by verb (e.g. "link_add", "addr_show").
	SyscallTimeHistogram = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "rtnl_transaction_time_histogram",
			Help: "netlink transaction latency distribution (seconds)",
			Buckets: []float64{
				0.001, 0.00125, 0.0016, 0.002, 0.0025, 0.0032, 0.004, 0.005, 0.0063, 0.0079,
				0.01, 0.0125, 0.016, 0.02, 0.025, 0.032, 0.04, 0.05, 0.063, 0.079,
				0.1, 0.125, 0.16, 0.2,
			},
		},
		[]string{"verb"})

	// PayloadCountHistogram tracks how many payload messages a
	// transaction yielded, e.g. the number of links in a dump.
	PayloadCountHistogram = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "rtnl_payload_count_histogram",
			Help: "payload messages returned per transaction",
			Buckets: []float64{
				0, 1, 2, 3, 4, 5, 6, 8,
				10, 12.5, 16, 20, 25, 32, 40, 50, 63, 79,
				100, 125, 160, 200, 250, 320, 400, 500, 630, 790,
				1000,
			},
		},
		[]string{"verb"})

	// ErrorCount counts transactions that failed, labeled by the
	// rtnlerr kind responsible (e.g. "KernelError", "SequenceMismatch").
	ErrorCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rtnl_error_total",
			Help: "The total number of netlink transaction errors, by kind.",
		}, []string{"kind"})
)

// init prints a log message to let the user know that the package has
// been loaded and the metrics registered.
func init() {
	log.Println("Prometheus metrics in rtnl.metrics are registered.")
}
