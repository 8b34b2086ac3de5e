package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(jobsCreatedTotal, jobPollsTotal, jobPollRetriesTotal, tasksTerminalTotal,
		jobAPILatencyMs, batchesInFlight, importsTotal)
}

var (
	jobsCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genmedia_jobs_created_total",
			Help: "Job creation requests by kind and result.",
		},
		[]string{"kind", "result"}, // result: ok | error
	)

	jobPollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genmedia_job_polls_total",
			Help: "Status queries by outcome.",
		},
		[]string{"outcome"}, // queued | running | success | fetching | network_error | api_error
	)

	jobPollRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "genmedia_job_poll_retries_total",
			Help: "Status queries retried after a network failure.",
		},
	)

	tasksTerminalTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genmedia_tasks_terminal_total",
			Help: "Tasks reaching a terminal status.",
		},
		[]string{"kind", "status"},
	)

	jobAPILatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "genmedia_job_api_latency_ms",
			Help:    "Remote job API latency distribution in milliseconds.",
			Buckets: []float64{25, 50, 100, 200, 400, 800, 1600, 3000, 6000, 15000, 30000},
		},
		[]string{"op", "success"},
	)

	batchesInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "genmedia_batches_in_flight",
			Help: "1 while a batch is being dispatched.",
		},
	)

	importsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genmedia_imports_total",
			Help: "Imported job ids by result.",
		},
		[]string{"result"}, // succeeded | skipped | failed
	)
)

func IncJobCreated(kind string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	jobsCreatedTotal.WithLabelValues(norm(kind), result).Inc()
}

func IncPoll(outcome string) { jobPollsTotal.WithLabelValues(norm(outcome)).Inc() }

func IncPollRetry() { jobPollRetriesTotal.Inc() }

func IncTerminal(kind, status string) {
	tasksTerminalTotal.WithLabelValues(norm(kind), norm(status)).Inc()
}

func ObserveJobAPI(op string, started time.Time, success bool) {
	jobAPILatencyMs.WithLabelValues(norm(op), strconv.FormatBool(success)).
		Observe(float64(time.Since(started).Milliseconds()))
}

func SetBatchInFlight(active bool) {
	if active {
		batchesInFlight.Set(1)
		return
	}
	batchesInFlight.Set(0)
}

func AddImports(result string, n int) {
	if n > 0 {
		importsTotal.WithLabelValues(norm(result)).Add(float64(n))
	}
}
