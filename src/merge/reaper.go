package merge

import (
	"git.handmade.network/hmn/postmerge/src/models"
)

/*
A source thread goes away when its opening post was merged out and it has no
replies left. Rebuilding only moves first_id while posts remain, so a thread
whose first_id still names a merged post is empty.
*/
func shouldDeleteThread(rebuilt models.Thread, mergedIDs map[int]bool) bool {
	if rebuilt.FirstID == nil || !mergedIDs[*rebuilt.FirstID] {
		return false
	}
	return rebuilt.ReplyCount == 0
}
