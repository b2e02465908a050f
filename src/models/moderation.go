package models

import "time"

const (
	ContentTypePost   = "post"
	ContentTypeThread = "thread"
)

const (
	ModActionMergeTarget = "merge_target"
	ModActionMerge       = "merge"
	ModActionDelete      = "delete"
)

type ModeratorLog struct {
	ID int `db:"id"`

	ContentType string         `db:"content_type"`
	ContentID   int            `db:"content_id"`
	Action      string         `db:"action"`
	ActorID     int            `db:"actor_id"`
	Params      map[string]any `db:"params"`
	Date        time.Time      `db:"log_date"`
}

type UserAlert struct {
	ID int `db:"id"`

	ReceiverID  int            `db:"receiver_id"`
	ActorID     int            `db:"actor_id"`
	ContentType string         `db:"content_type"`
	ContentID   int            `db:"content_id"`
	Action      string         `db:"action"`
	Extra       map[string]any `db:"extra"`
	Date        time.Time      `db:"alert_date"`
}

/*
Controls the side effects of deleting posts and threads. Regular moderator
deletes log the action and queue a search index update; bulk bookkeeping such
as a merge sets Silent and handles both itself.
*/
type MutationOptions struct {
	Silent  bool
	ActorID int // The moderator to log, when not silent
}
