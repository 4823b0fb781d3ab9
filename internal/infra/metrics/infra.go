package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		storeBusyRetriesTotal,
		processesSpawnedTotal,
		childProcesses,
	)
}

var (
	storeBusyRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_busy_retries_total",
			Help: "Store operations retried because the database was locked, by operation.",
		},
		[]string{"op"},
	)

	processesSpawnedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "processes_spawned_total",
			Help: "Child processes started, by role.",
		},
		[]string{"role"},
	)

	childProcesses = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "child_processes",
			Help: "Child processes currently supervised by this process.",
		},
	)
)

func IncStoreBusyRetry(op string) {
	storeBusyRetriesTotal.WithLabelValues(norm(op)).Inc()
}

func IncProcessSpawned(role string) {
	processesSpawnedTotal.WithLabelValues(norm(role)).Inc()
}

func SetChildProcesses(n int) {
	childProcesses.Set(float64(n))
}
