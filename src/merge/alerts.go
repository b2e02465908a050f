package merge

import (
	"context"

	"git.handmade.network/hmn/postmerge/src/logging"
	"git.handmade.network/hmn/postmerge/src/models"
)

/*
Sends one merge alert to each distinct author of a visible source post, never
to the actor. Delivery failures are logged and counted; they do not stop the
remaining alerts. Returns how many alerts were sent.
*/
func sendAlerts(
	ctx context.Context,
	alerts AlertService,
	metrics *Metrics,
	sources []models.Post,
	reason string,
	actorID int,
) int {
	logger := logging.ExtractLogger(ctx)

	alerted := make(map[int]bool)
	sent := 0
	for _, post := range sources {
		if post.AuthorID == nil || post.State != models.MessageStateVisible {
			continue
		}
		authorID := *post.AuthorID
		if authorID == actorID || alerted[authorID] {
			continue
		}
		alerted[authorID] = true

		err := alerts.SendModeratorActionAlert(ctx, authorID, post, models.ModActionMerge, reason, actorID)
		if err != nil {
			logger.Warn().Err(err).
				Int("receiver_id", authorID).
				Int("post_id", post.ID).
				Msg("failed to send merge alert")
			metrics.softFailure(softFailureAlert)
			continue
		}
		sent += 1
	}

	return sent
}
