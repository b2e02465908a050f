package merge

import (
	"context"
	"time"

	"git.handmade.network/hmn/postmerge/src/models"
	"git.handmade.network/hmn/postmerge/src/oops"
	"git.handmade.network/hmn/postmerge/src/utils"
)

func logMergeTarget(ctx context.Context, tx Tx, target models.Post, sourceIDs []int, actorID int, now time.Time) error {
	err := tx.LogModeratorAction(ctx, models.ModeratorLog{
		ContentType: models.ContentTypePost,
		ContentID:   target.ID,
		Action:      models.ModActionMergeTarget,
		ActorID:     actorID,
		Params:      map[string]any{"ids": utils.JoinInts(sourceIDs, ", ")},
		Date:        now,
	})
	if err != nil {
		return oops.New(err, "failed to log merge into post %d", target.ID)
	}
	return nil
}

func searchIndexPayload(postIDs []int) map[string]any {
	return map[string]any{
		"content_type": models.ContentTypePost,
		"content_ids":  postIDs,
	}
}

/*
Offers the search index job to the queue until it is accepted or the
attempts run out, waiting between attempts according to the merger's backoff.
*/
func (m *Merger) enqueueSearchIndex(ctx context.Context, postIDs []int) error {
	attempts := utils.IntMax(m.EnqueueAttempts, 1)
	b := m.EnqueueBackoff
	b.Reset()

	payload := searchIndexPayload(postIDs)
	var err error
	for attempt := 1; ; attempt++ {
		err = m.jobs.Enqueue(ctx, models.JobTypeSearchIndex, payload)
		if err == nil {
			return nil
		}
		if attempt >= attempts {
			break
		}

		select {
		case <-time.After(b.Duration()):
		case <-ctx.Done():
			return oops.New(ctx.Err(), "gave up enqueueing search index job")
		}
	}
	return oops.New(err, "failed to enqueue search index job after %d attempts", attempts)
}
