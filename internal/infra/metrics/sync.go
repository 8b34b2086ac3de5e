package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(remoteSyncTotal) }

var remoteSyncTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "genmedia_remote_sync_total",
		Help: "Remote mirror operations by collection, op and result.",
	},
	[]string{"collection", "op", "result"}, // op: upsert | delete | fetch
)

func IncRemoteSync(collection, op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	remoteSyncTotal.WithLabelValues(norm(collection), norm(op), result).Inc()
}
