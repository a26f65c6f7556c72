package worker

import "github.com/prometheus/client_golang/prometheus"

var (
	poolRunningDesc = prometheus.NewDesc(
		"agritrace_worker_pool_running",
		"Number of workers currently running tasks, by pool.",
		[]string{"pool"}, nil,
	)
	poolFreeDesc = prometheus.NewDesc(
		"agritrace_worker_pool_free",
		"Number of idle worker slots, by pool.",
		[]string{"pool"}, nil,
	)
	poolCapacityDesc = prometheus.NewDesc(
		"agritrace_worker_pool_capacity",
		"Configured worker pool size, by pool.",
		[]string{"pool"}, nil,
	)
)

// Collector exposes the utilisation of every pool as Prometheus gauges. The
// values are read from ants at scrape time.
func (p *Pools) Collector() prometheus.Collector {
	return poolCollector{pools: p}
}

type poolCollector struct {
	pools *Pools
}

func (c poolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- poolRunningDesc
	ch <- poolFreeDesc
	ch <- poolCapacityDesc
}

func (c poolCollector) Collect(ch chan<- prometheus.Metric) {
	for _, pool := range []*Pool{c.pools.General, c.pools.Audit} {
		ch <- prometheus.MustNewConstMetric(poolRunningDesc, prometheus.GaugeValue, float64(pool.pool.Running()), pool.name)
		ch <- prometheus.MustNewConstMetric(poolFreeDesc, prometheus.GaugeValue, float64(pool.pool.Free()), pool.name)
		ch <- prometheus.MustNewConstMetric(poolCapacityDesc, prometheus.GaugeValue, float64(pool.pool.Cap()), pool.name)
	}
}
