// Package prometheus exposes engine counters through a
// prometheus/client_golang Collector.
//
//	reg.MustRegister(prometheus.NewCollector(engine))
package prometheus
