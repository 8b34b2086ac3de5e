package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(buildInfo)
}

var buildInfo = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "genmedia_build_info",
		Help: "A constant metric with labels for version, commit and export format.",
	},
	[]string{"version", "commit", "export_format"},
)

func SetBuildInfo(version, commit, exportFormat string) {
	buildInfo.WithLabelValues(version, commit, exportFormat).Set(1)
}
