package metrics

import (
	"net/http"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric this module exports.
const Namespace = "pixmgr"

var (
	once    sync.Once
	pending []prometheus.Collector
)

// registry is private to the process so every role exposes only its own series.
var registry = prometheus.NewRegistry()

// register is called by init() in each metrics file to enqueue collectors.
func register(cs ...prometheus.Collector) {
	pending = append(pending, cs...)
}

// Init registers the queued collectors plus Go runtime and process
// collectors exactly once, then stamps build_info for role.
func Init(version, commit, role string) {
	once.Do(func() {
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: Namespace}),
		)
		prometheus.WrapRegistererWithPrefix(Namespace+"_", registry).MustRegister(pending...)
	})
	SetBuildInfo(version, commit, role)
}

// Handler serves the process registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
