package models

import "time"

const JobTypeSearchIndex = "SearchIndex"

type QueuedJob struct {
	ID         int            `db:"id"`
	JobType    string         `db:"job_type"`
	Payload    map[string]any `db:"payload"`
	QueuedDate time.Time      `db:"queued_date"`
}
