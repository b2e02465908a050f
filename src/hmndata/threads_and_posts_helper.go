package hmndata

import (
	"context"
	"time"

	"git.handmade.network/hmn/postmerge/src/db"
	"git.handmade.network/hmn/postmerge/src/merge"
	"git.handmade.network/hmn/postmerge/src/models"
	"git.handmade.network/hmn/postmerge/src/oops"
	"github.com/jackc/pgx/v5"
)

/*
Fetches posts by id, in the order the ids are given. Fails with an error
wrapping db.NotFound if any of them is missing or deleted. Used to turn ids
from the command line or an API request into posts for a merge.
*/
func FetchPostsByID(ctx context.Context, conn db.ConnOrTx, postIDs []int) ([]models.Post, error) {
	posts, err := db.Query[models.Post](ctx, conn,
		`
		---- Fetch posts by id
		SELECT $columns
		FROM post
		WHERE
			id = ANY($1)
			AND NOT deleted
		`,
		postIDs,
	)
	if err != nil {
		return nil, oops.New(err, "failed to fetch posts")
	}

	byID := make(map[int]*models.Post, len(posts))
	for _, post := range posts {
		byID[post.ID] = post
	}

	result := make([]models.Post, 0, len(postIDs))
	for _, id := range postIDs {
		post, ok := byID[id]
		if !ok {
			return nil, oops.New(db.NotFound, "post %d not found", id)
		}
		result = append(result, *post)
	}
	return result, nil
}

func FetchPost(ctx context.Context, conn db.ConnOrTx, postID int) (models.Post, error) {
	posts, err := FetchPostsByID(ctx, conn, []int{postID})
	if err != nil {
		return models.Post{}, err
	}
	return posts[0], nil
}

func (t *Tx) FetchPostsForUpdate(ctx context.Context, postIDs []int) ([]models.Post, error) {
	posts, err := db.Query[models.Post](ctx, t.tx,
		`
		---- Lock posts for merge
		SELECT $columns
		FROM post
		WHERE
			id = ANY($1)
			AND NOT deleted
		ORDER BY id
		FOR UPDATE
		`,
		postIDs,
	)
	if err != nil {
		return nil, err
	}
	return derefAll(posts), nil
}

func (t *Tx) FetchThreadForUpdate(ctx context.Context, threadID int) (models.Thread, error) {
	thread, err := db.QueryOne[models.Thread](ctx, t.tx,
		`
		---- Lock thread
		SELECT $columns
		FROM thread
		WHERE
			id = $1
			AND NOT deleted
		FOR UPDATE
		`,
		threadID,
	)
	if err != nil {
		return models.Thread{}, oops.New(err, "failed to fetch thread %d", threadID)
	}
	return *thread, nil
}

func (t *Tx) FetchThreadPosts(ctx context.Context, threadID int) ([]models.Post, error) {
	posts, err := db.Query[models.Post](ctx, t.tx,
		`
		---- Fetch thread posts
		SELECT $columns
		FROM post
		WHERE
			thread_id = $1
			AND NOT deleted
		ORDER BY postdate, id
		`,
		threadID,
	)
	if err != nil {
		return nil, err
	}
	return derefAll(posts), nil
}

func (t *Tx) FetchForum(ctx context.Context, forumID int) (models.Forum, error) {
	forum, err := db.QueryOne[models.Forum](ctx, t.tx,
		`
		---- Fetch forum
		SELECT $columns
		FROM forum
		WHERE id = $1
		`,
		forumID,
	)
	if err != nil {
		return models.Forum{}, oops.New(err, "failed to fetch forum %d", forumID)
	}
	return *forum, nil
}

/*
Marks posts as deleted. Unless the delete is silent, each post also gets a
moderator log entry by the acting user and a search index job.
*/
func (t *Tx) DeletePosts(ctx context.Context, postIDs []int, opts models.MutationOptions) error {
	_, err := t.tx.Exec(ctx,
		`
		---- Delete posts
		UPDATE post
		SET deleted = TRUE
		WHERE id = ANY($1)
		`,
		postIDs,
	)
	if err != nil {
		return oops.New(err, "failed to mark posts as deleted")
	}

	if opts.Silent {
		return nil
	}
	for _, postID := range postIDs {
		err := t.logDelete(ctx, models.ContentTypePost, postID, opts.ActorID)
		if err != nil {
			return err
		}
	}
	return enqueueJob(ctx, t.tx, models.JobTypeSearchIndex, map[string]any{
		"content_type": models.ContentTypePost,
		"content_ids":  postIDs,
	})
}

func (t *Tx) DeleteThread(ctx context.Context, threadID int, opts models.MutationOptions) error {
	_, err := t.tx.Exec(ctx,
		`
		---- Delete thread
		UPDATE thread
		SET deleted = TRUE
		WHERE id = $1
		`,
		threadID,
	)
	if err != nil {
		return oops.New(err, "failed to mark thread as deleted")
	}

	if opts.Silent {
		return nil
	}
	return t.logDelete(ctx, models.ContentTypeThread, threadID, opts.ActorID)
}

func (t *Tx) logDelete(ctx context.Context, contentType string, contentID int, actorID int) error {
	return t.LogModeratorAction(ctx, models.ModeratorLog{
		ContentType: contentType,
		ContentID:   contentID,
		Action:      models.ModActionDelete,
		ActorID:     actorID,
		Params:      map[string]any{},
		Date:        time.Now(),
	})
}

func (t *Tx) CreatePostVersion(ctx context.Context, version models.PostVersion, preview string) (versionID int, err error) {
	err = t.tx.QueryRow(ctx,
		`
		---- Create post version
		INSERT INTO post_version (post_id, text_raw, text_parsed, date, edit_reason, editor_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
		`,
		version.PostID,
		version.TextRaw,
		version.TextParsed,
		version.Date,
		version.EditReason,
		version.EditorID,
	).Scan(&versionID)
	if err != nil {
		return 0, oops.New(err, "failed to create post version")
	}

	_, err = t.tx.Exec(ctx,
		`
		---- Set current post version
		UPDATE post
		SET current_id = $1, preview = $2
		WHERE id = $3
		`,
		versionID,
		preview,
		version.PostID,
	)
	if err != nil {
		return 0, oops.New(err, "failed to set current post version and preview")
	}

	return versionID, nil
}

func (t *Tx) UpdateThreadCounters(ctx context.Context, threadID int, counters merge.ThreadCounters) error {
	_, err := t.tx.Exec(ctx,
		`
		---- Update thread counters
		UPDATE thread
		SET
			reply_count = $2,
			first_id = COALESCE($3, first_id),
			last_id = COALESCE($4, last_id)
		WHERE id = $1
		`,
		threadID,
		counters.ReplyCount,
		counters.FirstID,
		counters.LastID,
	)
	return err
}

func (t *Tx) UpdatePostPositions(ctx context.Context, positions map[int]int) error {
	ids := make([]int, 0, len(positions))
	newPositions := make([]int, 0, len(positions))
	for id, position := range positions {
		ids = append(ids, id)
		newPositions = append(newPositions, position)
	}

	_, err := t.tx.Exec(ctx,
		`
		---- Update post positions
		UPDATE post
		SET position = new.position
		FROM unnest($1::INT[], $2::INT[]) AS new(id, position)
		WHERE post.id = new.id
		`,
		ids,
		newPositions,
	)
	return err
}

func (t *Tx) ReplaceThreadUserPostCounts(ctx context.Context, threadID int, counts map[int]int) error {
	_, err := t.tx.Exec(ctx,
		`
		---- Clear thread user post counts
		DELETE FROM thread_user_post
		WHERE thread_id = $1
		`,
		threadID,
	)
	if err != nil {
		return err
	}

	var rows [][]any
	for userID, count := range counts {
		rows = append(rows, []any{threadID, userID, count})
	}
	_, err = t.tx.CopyFrom(ctx, pgx.Identifier{"thread_user_post"}, []string{"thread_id", "user_id", "post_count"}, pgx.CopyFromRows(rows))
	return err
}

/*
Counts only visible threads and their visible posts, matching what readers
of the forum see. Each thread contributes its opening post plus its replies.
*/
func (t *Tx) RebuildForumCounters(ctx context.Context, forumID int) error {
	_, err := t.tx.Exec(ctx,
		`
		---- Rebuild forum counters
		UPDATE forum
		SET
			thread_count = counts.thread_count,
			message_count = counts.message_count,
			last_post_id = (
				SELECT post.id
				FROM
					post
					JOIN thread ON thread.id = post.thread_id
				WHERE
					thread.forum_id = $1
					AND NOT thread.deleted
					AND thread.discussion_state = $2
					AND NOT post.deleted
					AND post.state = $2
				ORDER BY post.postdate DESC, post.id DESC
				LIMIT 1
			)
		FROM (
			SELECT
				COUNT(*) AS thread_count,
				COALESCE(SUM(reply_count + 1), 0) AS message_count
			FROM thread
			WHERE
				forum_id = $1
				AND NOT deleted
				AND discussion_state = $2
		) AS counts
		WHERE forum.id = $1
		`,
		forumID,
		models.MessageStateVisible,
	)
	return err
}

func derefAll[T any](ptrs []*T) []T {
	result := make([]T, 0, len(ptrs))
	for _, p := range ptrs {
		result = append(result, *p)
	}
	return result
}
