package website

import (
	"context"
	"time"

	"git.handmade.network/hmn/postmerge/src/db"
	"git.handmade.network/hmn/postmerge/src/hmndata"
	"git.handmade.network/hmn/postmerge/src/jobs"
	"git.handmade.network/hmn/postmerge/src/logging"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "hmn",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Time to serve admin requests, by route and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "status"})

	queuedJobs = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "hmn",
		Subsystem: "job_queue",
		Name:      "queued",
		Help:      "Jobs waiting in job_queue, by type.",
	}, []string{"job_type"})
)

func init() {
	prometheus.MustRegister(requestDuration, queuedJobs)
}

const queueBacklogInterval = 30 * time.Second

// Periodically publishes the size of the job queue, so that a stalled job
// runner shows up next to the merges feeding it.
func MonitorJobQueue(conn db.ConnOrTx) *jobs.Job {
	return jobs.Periodically("job queue monitor", queueBacklogInterval, func(ctx context.Context) {
		updateQueuedJobs(ctx, conn)
	})
}

func updateQueuedJobs(ctx context.Context, conn db.ConnOrTx) {
	counts, err := hmndata.CountQueuedJobs(ctx, conn)
	if err != nil {
		if ctx.Err() == nil {
			logging.ExtractLogger(ctx).Error().Err(err).Msg("failed to measure job queue")
		}
		return
	}

	queuedJobs.Reset()
	for jobType, count := range counts {
		queuedJobs.WithLabelValues(jobType).Set(float64(count))
	}
}
