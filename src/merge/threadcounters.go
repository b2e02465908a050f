package merge

import (
	"context"
	"fmt"
	"sort"

	"git.handmade.network/hmn/postmerge/src/models"
	"git.handmade.network/hmn/postmerge/src/oops"
)

type ThreadCounters struct {
	// Nil when the thread has no posts left. The stored ids are then kept.
	FirstID *int
	LastID  *int

	ReplyCount   int
	VisibleCount int

	// Post id to position, dense from 0 in (postdate, id) order.
	Positions map[int]int
	// Author id to number of visible posts in the thread.
	UserPostCounts map[int]int
}

/*
Computes the counters of a thread from its non-deleted posts. The opening
post is the earliest one regardless of its moderation state, and only
visible posts after it are replies.
*/
func ComputeThreadCounters(threadID int, posts []models.Post) (ThreadCounters, error) {
	ordered := make([]models.Post, 0, len(posts))
	seen := make(map[int]bool, len(posts))
	for _, post := range posts {
		if post.ThreadID != threadID {
			return ThreadCounters{}, &ConsistencyViolation{
				ThreadID: threadID,
				Problem:  fmt.Sprintf("post %d belongs to thread %d", post.ID, post.ThreadID),
			}
		}
		if seen[post.ID] {
			return ThreadCounters{}, &ConsistencyViolation{
				ThreadID: threadID,
				Problem:  fmt.Sprintf("post %d was listed twice", post.ID),
			}
		}
		seen[post.ID] = true
		if post.Deleted {
			continue
		}
		ordered = append(ordered, post)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].PostDate.Equal(ordered[j].PostDate) {
			return ordered[i].PostDate.Before(ordered[j].PostDate)
		}
		return ordered[i].ID < ordered[j].ID
	})

	counters := ThreadCounters{
		Positions:      make(map[int]int, len(ordered)),
		UserPostCounts: make(map[int]int),
	}
	for i, post := range ordered {
		counters.Positions[post.ID] = i
		if post.State != models.MessageStateVisible {
			continue
		}
		counters.VisibleCount += 1
		if i > 0 {
			counters.ReplyCount += 1
		}
		if post.AuthorID != nil {
			counters.UserPostCounts[*post.AuthorID] += 1
		}
	}
	if len(ordered) > 0 {
		first := ordered[0].ID
		last := ordered[len(ordered)-1].ID
		counters.FirstID = &first
		counters.LastID = &last
	}

	return counters, nil
}

/*
Recomputes and stores a thread's reply count, first and last post, post
positions and per-author post counts. Returns the thread as stored afterward.
Running it twice in a row changes nothing the second time.
*/
func rebuildThread(ctx context.Context, tx Tx, threadID int) (models.Thread, ThreadCounters, error) {
	posts, err := tx.FetchThreadPosts(ctx, threadID)
	if err != nil {
		return models.Thread{}, ThreadCounters{}, oops.New(err, "failed to fetch posts of thread %d", threadID)
	}

	counters, err := ComputeThreadCounters(threadID, posts)
	if err != nil {
		return models.Thread{}, ThreadCounters{}, err
	}

	err = tx.UpdateThreadCounters(ctx, threadID, counters)
	if err != nil {
		return models.Thread{}, ThreadCounters{}, oops.New(err, "failed to update counters of thread %d", threadID)
	}

	changed := make(map[int]int)
	for _, post := range posts {
		if pos, ok := counters.Positions[post.ID]; ok && pos != post.Position {
			changed[post.ID] = pos
		}
	}
	if len(changed) > 0 {
		err = tx.UpdatePostPositions(ctx, changed)
		if err != nil {
			return models.Thread{}, ThreadCounters{}, oops.New(err, "failed to update post positions in thread %d", threadID)
		}
	}

	err = tx.ReplaceThreadUserPostCounts(ctx, threadID, counters.UserPostCounts)
	if err != nil {
		return models.Thread{}, ThreadCounters{}, oops.New(err, "failed to update user post counts of thread %d", threadID)
	}

	thread, err := tx.FetchThreadForUpdate(ctx, threadID)
	if err != nil {
		return models.Thread{}, ThreadCounters{}, oops.New(err, "failed to re-read thread %d", threadID)
	}
	if err := checkThread(thread, counters); err != nil {
		return models.Thread{}, ThreadCounters{}, err
	}

	return thread, counters, nil
}

// Rebuilds the counters of a thread outside of a merge, for repairs and seeding.
func RebuildThread(ctx context.Context, tx Tx, threadID int) (models.Thread, error) {
	thread, _, err := rebuildThread(ctx, tx, threadID)
	return thread, err
}

func checkThread(thread models.Thread, counters ThreadCounters) error {
	if thread.ReplyCount != counters.ReplyCount {
		return &ConsistencyViolation{
			ThreadID: thread.ID,
			Problem:  fmt.Sprintf("reply count is %d after rebuilding to %d", thread.ReplyCount, counters.ReplyCount),
		}
	}
	if counters.ReplyCount > counters.VisibleCount {
		return &ConsistencyViolation{
			ThreadID: thread.ID,
			Problem:  fmt.Sprintf("%d replies but only %d visible posts", counters.ReplyCount, counters.VisibleCount),
		}
	}
	if counters.FirstID != nil && (thread.FirstID == nil || *thread.FirstID != *counters.FirstID) {
		return &ConsistencyViolation{
			ThreadID: thread.ID,
			Problem:  fmt.Sprintf("first post was not updated to %d", *counters.FirstID),
		}
	}
	if counters.LastID != nil && (thread.LastID == nil || *thread.LastID != *counters.LastID) {
		return &ConsistencyViolation{
			ThreadID: thread.ID,
			Problem:  fmt.Sprintf("last post was not updated to %d", *counters.LastID),
		}
	}
	return nil
}
