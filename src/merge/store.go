package merge

import (
	"context"

	"git.handmade.network/hmn/postmerge/src/models"
)

/*
The storage the merge engine runs against. Every method on Tx takes part in
the same transaction; nothing is visible to other transactions until Commit.

Fetch methods never return deleted rows. Single-row fetches return an error
wrapping db.NotFound when the row is missing or deleted.
*/
type Database interface {
	Begin(ctx context.Context) (Tx, error)
}

type Tx interface {
	// Row-locks the given posts. Missing and deleted posts are left out of
	// the result, which is ordered by id.
	FetchPostsForUpdate(ctx context.Context, postIDs []int) ([]models.Post, error)
	FetchThreadForUpdate(ctx context.Context, threadID int) (models.Thread, error)
	FetchForum(ctx context.Context, forumID int) (models.Forum, error)
	// All non-deleted posts in the thread, in any moderation state.
	FetchThreadPosts(ctx context.Context, threadID int) ([]models.Post, error)

	// Moves attachments of the source posts to the target and returns how
	// many were moved. Does not touch attach_count.
	RelocateAttachments(ctx context.Context, sourceIDs []int, targetID int) (int, error)
	IncrementAttachCount(ctx context.Context, postID int, delta int) error

	DeletePosts(ctx context.Context, postIDs []int, opts models.MutationOptions) error
	DeleteThread(ctx context.Context, threadID int, opts models.MutationOptions) error
	// Stores a new version of a post's text and makes it current.
	CreatePostVersion(ctx context.Context, version models.PostVersion, preview string) (int, error)

	// Writes reply_count, and first_id/last_id when they are set.
	UpdateThreadCounters(ctx context.Context, threadID int, counters ThreadCounters) error
	// Maps post id to new position.
	UpdatePostPositions(ctx context.Context, positions map[int]int) error
	// Replaces the per-author post counts of a thread. Maps user id to count.
	ReplaceThreadUserPostCounts(ctx context.Context, threadID int, counts map[int]int) error
	// Recomputes thread_count, message_count and last_post_id from the
	// forum's visible threads.
	RebuildForumCounters(ctx context.Context, forumID int) error

	// Sets is_counted on every like of the given posts.
	SetLikesCounted(ctx context.Context, postIDs []int, counted bool) error
	// Adds delta to a user's message count, flooring the result at zero.
	AdjustUserMessageCount(ctx context.Context, userID int, delta int) error
	LogModeratorAction(ctx context.Context, entry models.ModeratorLog) error

	Commit(ctx context.Context) error
	// Rolls back the transaction. Calling it after Commit does nothing.
	Rollback(ctx context.Context) error
}

type JobQueue interface {
	Enqueue(ctx context.Context, jobType string, payload map[string]any) error
}

type AlertService interface {
	SendModeratorActionAlert(ctx context.Context, receiverID int, post models.Post, action string, reason string, actorID int) error
}
