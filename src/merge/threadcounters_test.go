package merge

import (
	"testing"
	"time"

	"git.handmade.network/hmn/postmerge/src/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeThreadCounters(t *testing.T) {
	at := func(minutes int) time.Time {
		return fixtureTime.Add(time.Duration(minutes) * time.Minute)
	}
	post := func(id int, minutes int, author *int, state models.MessageState) models.Post {
		return models.Post{ID: id, ThreadID: 7, AuthorID: author, State: state, PostDate: at(minutes)}
	}

	t.Run("ordering", func(t *testing.T) {
		counters, err := ComputeThreadCounters(7, []models.Post{
			post(5, 3, intPtr(1), models.MessageStateVisible),
			post(9, 1, intPtr(2), models.MessageStateVisible),
			post(4, 3, intPtr(1), models.MessageStateVisible), // same time as 5, lower id first
			post(6, 2, nil, models.MessageStateVisible),
		})
		require.Nil(t, err)

		assert.Equal(t, intPtr(9), counters.FirstID)
		assert.Equal(t, intPtr(5), counters.LastID)
		assert.Equal(t, map[int]int{9: 0, 6: 1, 4: 2, 5: 3}, counters.Positions)
		assert.Equal(t, 3, counters.ReplyCount)
		assert.Equal(t, 4, counters.VisibleCount)
		assert.Equal(t, map[int]int{1: 2, 2: 1}, counters.UserPostCounts)
	})
	t.Run("hidden posts keep positions but are not replies", func(t *testing.T) {
		counters, err := ComputeThreadCounters(7, []models.Post{
			post(1, 1, intPtr(1), models.MessageStateModerated),
			post(2, 2, intPtr(2), models.MessageStateVisible),
			post(3, 3, intPtr(2), models.MessageStateDeleted),
			post(4, 4, intPtr(3), models.MessageStateVisible),
		})
		require.Nil(t, err)

		assert.Equal(t, intPtr(1), counters.FirstID, "the opening post is the earliest in any state")
		assert.Equal(t, 2, counters.ReplyCount)
		assert.Equal(t, 2, counters.VisibleCount)
		assert.Equal(t, map[int]int{1: 0, 2: 1, 3: 2, 4: 3}, counters.Positions)
		assert.Equal(t, map[int]int{2: 1, 3: 1}, counters.UserPostCounts)
	})
	t.Run("deleted rows are skipped", func(t *testing.T) {
		gone := post(1, 1, intPtr(1), models.MessageStateVisible)
		gone.Deleted = true
		counters, err := ComputeThreadCounters(7, []models.Post{gone, post(2, 2, intPtr(2), models.MessageStateVisible)})
		require.Nil(t, err)

		assert.Equal(t, intPtr(2), counters.FirstID)
		assert.Equal(t, 0, counters.ReplyCount)
		assert.Equal(t, map[int]int{2: 0}, counters.Positions)
	})
	t.Run("empty", func(t *testing.T) {
		counters, err := ComputeThreadCounters(7, nil)
		require.Nil(t, err)

		assert.Nil(t, counters.FirstID)
		assert.Nil(t, counters.LastID)
		assert.Zero(t, counters.ReplyCount)
		assert.Empty(t, counters.Positions)
		assert.NotNil(t, counters.UserPostCounts)
	})
	t.Run("post from another thread", func(t *testing.T) {
		stray := post(1, 1, nil, models.MessageStateVisible)
		stray.ThreadID = 8
		_, err := ComputeThreadCounters(7, []models.Post{stray})

		var violation *ConsistencyViolation
		require.ErrorAs(t, err, &violation)
		assert.Equal(t, 7, violation.ThreadID)
	})
	t.Run("duplicate post", func(t *testing.T) {
		p := post(1, 1, nil, models.MessageStateVisible)
		_, err := ComputeThreadCounters(7, []models.Post{p, p})

		var violation *ConsistencyViolation
		assert.ErrorAs(t, err, &violation)
	})
}

func TestShouldDeleteThread(t *testing.T) {
	merged := map[int]bool{20: true}

	assert.True(t, shouldDeleteThread(models.Thread{FirstID: intPtr(20)}, merged))
	assert.False(t, shouldDeleteThread(models.Thread{FirstID: intPtr(21)}, merged), "opening post survived")
	assert.False(t, shouldDeleteThread(models.Thread{FirstID: intPtr(20), ReplyCount: 1}, merged))
	assert.False(t, shouldDeleteThread(models.Thread{}, merged))
}
