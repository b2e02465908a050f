package hmndata

import (
	"context"
	"time"

	"git.handmade.network/hmn/postmerge/src/db"
	"git.handmade.network/hmn/postmerge/src/merge"
	"git.handmade.network/hmn/postmerge/src/models"
	"git.handmade.network/hmn/postmerge/src/oops"
)

func (t *Tx) LogModeratorAction(ctx context.Context, entry models.ModeratorLog) error {
	_, err := t.tx.Exec(ctx,
		`
		---- Log moderator action
		INSERT INTO moderator_log (content_type, content_id, action, actor_id, params, log_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		`,
		entry.ContentType,
		entry.ContentID,
		entry.Action,
		entry.ActorID,
		entry.Params,
		entry.Date,
	)
	if err != nil {
		return oops.New(err, "failed to log %s of %s %d", entry.Action, entry.ContentType, entry.ContentID)
	}
	return nil
}

type ModeratorLogQuery struct {
	ContentType string
	ContentIDs  []int
	ActorID     int

	Limit int
}

// Fetches moderator log entries, oldest first. Zero-valued fields of the query
// do not filter.
func FetchModeratorLog(ctx context.Context, conn db.ConnOrTx, q ModeratorLogQuery) ([]*models.ModeratorLog, error) {
	var qb db.QueryBuilder
	qb.Add(
		`
		---- Fetch moderator log
		SELECT $columns
		FROM moderator_log
		WHERE TRUE
		`,
	)
	if q.ContentType != "" {
		qb.Add(`AND content_type = $?`, q.ContentType)
	}
	if len(q.ContentIDs) > 0 {
		qb.Add(`AND content_id = ANY($?)`, q.ContentIDs)
	}
	if q.ActorID != 0 {
		qb.Add(`AND actor_id = $?`, q.ActorID)
	}
	qb.Add(`ORDER BY log_date, id`)
	if q.Limit > 0 {
		qb.Add(`LIMIT $?`, q.Limit)
	}

	entries, err := db.Query[models.ModeratorLog](ctx, conn, qb.String(), qb.Args()...)
	if err != nil {
		return nil, oops.New(err, "failed to fetch moderator log")
	}
	return entries, nil
}

// Delivers moderator action alerts by storing them for the receiver.
type AlertService struct {
	conn db.ConnOrTx
}

var _ merge.AlertService = &AlertService{}

func NewAlertService(conn db.ConnOrTx) *AlertService {
	return &AlertService{conn: conn}
}

func (a *AlertService) SendModeratorActionAlert(ctx context.Context, receiverID int, post models.Post, action string, reason string, actorID int) error {
	_, err := a.conn.Exec(ctx,
		`
		---- Send moderator action alert
		INSERT INTO user_alert (receiver_id, actor_id, content_type, content_id, action, extra, alert_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		`,
		receiverID,
		actorID,
		models.ContentTypePost,
		post.ID,
		action,
		map[string]any{
			"reason":    reason,
			"thread_id": post.ThreadID,
			"preview":   post.Preview,
		},
		time.Now(),
	)
	if err != nil {
		return oops.New(err, "failed to alert user %d", receiverID)
	}
	return nil
}
