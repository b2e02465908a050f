package merge

import (
	"context"
	"sort"

	"git.handmade.network/hmn/postmerge/src/models"
	"git.handmade.network/hmn/postmerge/src/oops"
)

type userAdjustments struct {
	// Author id to change in message count.
	MessageCountDeltas map[int]int

	// Posts whose likes start or stop counting.
	EnableLikes  []int
	DisableLikes []int
}

/*
Works out how moving the source posts changes author message counts and like
counting. sourceCounted maps each source thread id to whether it was a counted
context before the merge; targetCounted is the target thread after the merge.
Posts that were not visible never counted and are skipped.
*/
func computeUserAdjustments(sources []models.Post, sourceCounted map[int]bool, targetCounted bool) userAdjustments {
	adj := userAdjustments{
		MessageCountDeltas: make(map[int]int),
	}

	for _, post := range sources {
		if post.State != models.MessageStateVisible {
			continue
		}
		wasCounted := sourceCounted[post.ThreadID]
		if wasCounted == targetCounted {
			continue
		}

		if post.LikeCount > 0 {
			if targetCounted {
				adj.EnableLikes = append(adj.EnableLikes, post.ID)
			} else {
				adj.DisableLikes = append(adj.DisableLikes, post.ID)
			}
		}

		if post.AuthorID != nil {
			delta := -1
			if targetCounted {
				delta = 1
			}
			adj.MessageCountDeltas[*post.AuthorID] += delta
		}
	}

	return adj
}

func applyUserAdjustments(ctx context.Context, tx Tx, adj userAdjustments) error {
	if len(adj.EnableLikes) > 0 {
		if err := tx.SetLikesCounted(ctx, adj.EnableLikes, true); err != nil {
			return oops.New(err, "failed to enable counting of likes")
		}
	}
	if len(adj.DisableLikes) > 0 {
		if err := tx.SetLikesCounted(ctx, adj.DisableLikes, false); err != nil {
			return oops.New(err, "failed to disable counting of likes")
		}
	}

	// Users are updated in id order so that concurrent merges lock them in
	// the same order.
	userIDs := make([]int, 0, len(adj.MessageCountDeltas))
	for userID := range adj.MessageCountDeltas {
		userIDs = append(userIDs, userID)
	}
	sort.Ints(userIDs)

	for _, userID := range userIDs {
		delta := adj.MessageCountDeltas[userID]
		if delta == 0 {
			continue
		}
		if err := tx.AdjustUserMessageCount(ctx, userID, delta); err != nil {
			return oops.New(err, "failed to adjust message count of user %d", userID)
		}
	}

	return nil
}
