package merge

import (
	"context"

	"git.handmade.network/hmn/postmerge/src/oops"
)

// Moves every attachment of the source posts onto the target and bumps the
// target's attach_count by the number moved.
func relocateAttachments(ctx context.Context, tx Tx, sourceIDs []int, targetID int) (int, error) {
	moved, err := tx.RelocateAttachments(ctx, sourceIDs, targetID)
	if err != nil {
		return 0, oops.New(err, "failed to relocate attachments to post %d", targetID)
	}
	if moved == 0 {
		return 0, nil
	}

	err = tx.IncrementAttachCount(ctx, targetID, moved)
	if err != nil {
		return 0, oops.New(err, "failed to update attachment count of post %d", targetID)
	}

	return moved, nil
}
