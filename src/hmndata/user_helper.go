package hmndata

import (
	"context"

	"git.handmade.network/hmn/postmerge/src/db"
	"git.handmade.network/hmn/postmerge/src/models"
	"git.handmade.network/hmn/postmerge/src/oops"
)

func FetchUser(ctx context.Context, conn db.ConnOrTx, userID int) (*models.User, error) {
	user, err := db.QueryOne[models.User](ctx, conn,
		`
		---- Fetch user
		SELECT $columns
		FROM hmn_user
		WHERE id = $1
		`,
		userID,
	)
	if err != nil {
		return nil, oops.New(err, "failed to fetch user %d", userID)
	}
	return user, nil
}

func (t *Tx) AdjustUserMessageCount(ctx context.Context, userID int, delta int) error {
	_, err := t.tx.Exec(ctx,
		`
		---- Adjust user message count
		UPDATE hmn_user
		SET message_count = GREATEST(0, message_count + $1)
		WHERE id = $2
		`,
		delta,
		userID,
	)
	return err
}

func (t *Tx) SetLikesCounted(ctx context.Context, postIDs []int, counted bool) error {
	_, err := t.tx.Exec(ctx,
		`
		---- Set likes counted
		UPDATE post_like
		SET is_counted = $2
		WHERE post_id = ANY($1)
		`,
		postIDs,
		counted,
	)
	return err
}

func (t *Tx) RelocateAttachments(ctx context.Context, sourceIDs []int, targetID int) (int, error) {
	tag, err := t.tx.Exec(ctx,
		`
		---- Relocate attachments
		UPDATE attachment
		SET post_id = $1
		WHERE post_id = ANY($2)
		`,
		targetID,
		sourceIDs,
	)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (t *Tx) IncrementAttachCount(ctx context.Context, postID int, delta int) error {
	_, err := t.tx.Exec(ctx,
		`
		---- Increment attach count
		UPDATE post
		SET attach_count = attach_count + $1
		WHERE id = $2
		`,
		delta,
		postID,
	)
	return err
}
