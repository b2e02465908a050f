package hmndata

import (
	"context"
	"time"

	"git.handmade.network/hmn/postmerge/src/db"
	"git.handmade.network/hmn/postmerge/src/merge"
	"git.handmade.network/hmn/postmerge/src/models"
	"git.handmade.network/hmn/postmerge/src/oops"
)

/*
Queues work for the job runner by inserting into job_queue. Running the jobs
is not this program's business.
*/
type JobQueue struct {
	conn db.ConnOrTx
}

var _ merge.JobQueue = &JobQueue{}

func NewJobQueue(conn db.ConnOrTx) *JobQueue {
	return &JobQueue{conn: conn}
}

func (q *JobQueue) Enqueue(ctx context.Context, jobType string, payload map[string]any) error {
	return enqueueJob(ctx, q.conn, jobType, payload)
}

func enqueueJob(ctx context.Context, conn db.ConnOrTx, jobType string, payload map[string]any) error {
	_, err := conn.Exec(ctx,
		`
		---- Enqueue job
		INSERT INTO job_queue (job_type, payload, queued_date)
		VALUES ($1, $2, $3)
		`,
		jobType,
		payload,
		time.Now(),
	)
	if err != nil {
		return oops.New(err, "failed to enqueue %s job", jobType)
	}
	return nil
}

// Number of jobs waiting in the queue, by type.
func CountQueuedJobs(ctx context.Context, conn db.ConnOrTx) (map[string]int, error) {
	type row struct {
		JobType string `db:"job_type"`
		Count   int    `db:"count"`
	}
	rows, err := db.Query[row](ctx, conn,
		`
		---- Count queued jobs
		SELECT $columns
		FROM (
			SELECT job_type, COUNT(*) AS count
			FROM job_queue
			GROUP BY job_type
		) AS counts
		`,
	)
	if err != nil {
		return nil, oops.New(err, "failed to count queued jobs")
	}

	result := make(map[string]int, len(rows))
	for _, r := range rows {
		result[r.JobType] = r.Count
	}
	return result, nil
}

// Fetches queued jobs in queue order. An empty job type fetches every job.
func FetchQueuedJobs(ctx context.Context, conn db.ConnOrTx, jobType string) ([]*models.QueuedJob, error) {
	var qb db.QueryBuilder
	qb.Add(
		`
		---- Fetch queued jobs
		SELECT $columns
		FROM job_queue
		`,
	)
	if jobType != "" {
		qb.Add(`WHERE job_type = $?`, jobType)
	}
	qb.Add(`ORDER BY queued_date, id`)

	jobs, err := db.Query[models.QueuedJob](ctx, conn, qb.String(), qb.Args()...)
	if err != nil {
		return nil, oops.New(err, "failed to fetch queued jobs")
	}
	return jobs, nil
}
