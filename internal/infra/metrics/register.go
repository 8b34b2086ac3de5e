package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once       sync.Once
	collectors []prometheus.Collector
)

// register is called from init() in each metrics file.
func register(cs ...prometheus.Collector) {
	collectors = append(collectors, cs...)
}

// MustRegister adds every collector to the default registry, once per process.
func MustRegister() {
	once.Do(func() { RegisterOn(prometheus.DefaultRegisterer) })
}

// RegisterOn adds every collector to reg. It panics on a duplicate metric name.
func RegisterOn(reg prometheus.Registerer) {
	reg.MustRegister(collectors...)
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
