// Package metrics provides service call metrics collection and reporting.
//
// Metrics collects statistics about request latency, success/failure rates,
// and throughput (RPS). It is thread-safe and keeps a bounded ring of
// latency samples for percentile estimates.
//
// # Basic Usage
//
//	m := metrics.New()
//
//	start := time.Now()
//	err := space.WriteValue(id, v)
//	m.Record(err, time.Since(start))
//
//	fmt.Printf("Total: %d, RPS: %.2f, P99: %v\n",
//	    m.TotalRequests(), m.RPS(), m.P99Latency())
//
// # Configuration
//
// Use NewWithConfig for custom settings:
//
//	m := metrics.NewWithConfig(metrics.Config{MaxLatencySamples: 5000})
//
// # Prometheus
//
// Collector keeps one Metrics per service name and mirrors every call into
// Prometheus counters and histograms on its own registry:
//
//	c := metrics.NewCollector(metrics.WithNamespace("uaspace"))
//	c.Observe("Read", "Good", nil, latency)
//	c.GaugeFunc("nodes", "Number of nodes", func() float64 { return float64(space.Len()) })
//	http.Handle("/metrics", c.Handler())
//
// # Thread Safety
//
// All operations are safe for concurrent access.
package metrics
