package merge

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"git.handmade.network/hmn/postmerge/src/config"
	"git.handmade.network/hmn/postmerge/src/db"
	"git.handmade.network/hmn/postmerge/src/logging"
	"git.handmade.network/hmn/postmerge/src/models"
	"git.handmade.network/hmn/postmerge/src/oops"
	"git.handmade.network/hmn/postmerge/src/parsing"
	"git.handmade.network/hmn/postmerge/src/perf"
	"git.handmade.network/hmn/postmerge/src/utils"
	"github.com/google/uuid"
	"github.com/jpillora/backoff"
)

const MergeEditReason = "Merged posts"

/*
Merges source posts into a target post. A Merger holds no per-merge state and
may be shared between goroutines.
*/
type Merger struct {
	db     Database
	alerts AlertService
	jobs   JobQueue

	EnqueueAttempts int
	EnqueueBackoff  backoff.Backoff
	Metrics         *Metrics

	Now func() time.Time
}

func NewMerger(database Database, alerts AlertService, jobs JobQueue) *Merger {
	return &Merger{
		db:     database,
		alerts: alerts,
		jobs:   jobs,

		EnqueueAttempts: config.Config.Merge.EnqueueAttempts,
		EnqueueBackoff: backoff.Backoff{
			Min:    config.Config.Merge.EnqueueBackoffMin,
			Max:    config.Config.Merge.EnqueueBackoffMax,
			Factor: 2,
			Jitter: true,
		},
		Metrics: DefaultMetrics,
		Now:     time.Now,
	}
}

type threadSnapshot struct {
	Thread models.Thread
	Forum  models.Forum
}

func (s threadSnapshot) counted() bool {
	return models.IsCountedContext(s.Forum, s.Thread)
}

// Everything one merge learns and decides, in phase order.
type mergeState struct {
	target    models.Post
	sources   []models.Post
	sourceIDs []int
	mergedIDs map[int]bool

	// Source threads as they were before the merge, in the order the
	// sources first mention them.
	sourceThreads []threadSnapshot
	threads       map[int]threadSnapshot

	attachmentsMoved int
	targetThread     models.Thread
	targetCounted    bool
	threadsDeleted   []int
	adjustments      userAdjustments
}

/*
Merges the source posts into the target in one transaction: attachments move
to the target, the sources are deleted, every affected thread, forum, user and
like is brought back in line, and the merge is logged if requested. Alerts and
the search index job follow the commit and never fail the merge.

Returns false with no error, and changes nothing, when sources is empty.
Returns true once the transaction has committed. Posts that no longer exist
fail with an error wrapping db.NotFound.
*/
func (m *Merger) Merge(ctx context.Context, target models.Post, sources []models.Post, opts Options) (bool, error) {
	if len(sources) == 0 {
		m.Metrics.outcome(outcomeEmpty)
		return false, nil
	}
	if err := validateRequest(target, sources, opts); err != nil {
		m.Metrics.outcome(outcomeInvalid)
		return false, err
	}

	mergeID := uuid.New()
	logger := logging.ExtractLogger(ctx).With().
		Str("merge_id", mergeID.String()).
		Int("target_id", target.ID).
		Logger()
	ctx = logging.AttachLoggerToContext(&logger, ctx)

	p := perf.MakeNewRequestPerf("Merge", "", fmt.Sprintf("post %d", target.ID))
	ctx = perf.AttachPerf(ctx, p)

	state, err := m.mergeInTx(ctx, target, sources, opts)
	if err != nil {
		m.Metrics.outcome(failureOutcome(err))
		logger.Error().Err(err).Ints("source_ids", postIDs(sources)).Msg("post merge failed")
		return false, err
	}

	// The merge is committed. Nothing below may fail it, and the caller
	// going away must not cut it short.
	afterCtx := context.WithoutCancel(ctx)

	alertsSent := 0
	if opts.SendAlert {
		b := p.StartBlock("MERGE", "alerts")
		alertsSent = sendAlerts(afterCtx, m.alerts, m.Metrics, state.sources, opts.AlertReason, opts.ActorID)
		b.End()
	}

	b := p.StartBlock("MERGE", "enqueue")
	if err := m.enqueueSearchIndex(afterCtx, state.sourceIDs); err != nil {
		logger.Error().Err(err).Msg("merged posts will not be reindexed")
		m.Metrics.softFailure(softFailureEnqueue)
	}
	b.End()

	p.EndRequest()
	m.Metrics.outcome(outcomeMerged)
	m.Metrics.Duration.Observe(p.End.Sub(p.Start).Seconds())
	m.Metrics.PostsMerged.Add(float64(len(state.sourceIDs)))
	m.Metrics.ThreadsDeleted.Add(float64(len(state.threadsDeleted)))

	logEvent := logger.Info().
		Ints("source_ids", state.sourceIDs).
		Int("attachments_moved", state.attachmentsMoved).
		Ints("threads_deleted", state.threadsDeleted).
		Int("alerts_sent", alertsSent)
	p.MarshalBlocks(logEvent, "MERGE").Msg("merged posts")

	return true, nil
}

func (m *Merger) mergeInTx(ctx context.Context, target models.Post, sources []models.Post, opts Options) (*mergeState, error) {
	p := perf.ExtractPerf(ctx)

	tx, err := m.db.Begin(ctx)
	if err != nil {
		return nil, oops.New(err, "failed to start merge transaction")
	}
	defer tx.Rollback(ctx)

	b := p.StartBlock("MERGE", "lock")
	state, err := partition(ctx, tx, target, sources)
	if err != nil {
		return nil, err
	}
	b.End()

	b = p.StartBlock("MERGE", "move")
	if err := m.moveDataToTarget(ctx, tx, state, opts); err != nil {
		return nil, err
	}
	b.End()

	b = p.StartBlock("MERGE", "target thread")
	state.targetThread, _, err = rebuildThread(ctx, tx, state.target.ThreadID)
	if err != nil {
		return nil, err
	}
	state.targetCounted = models.IsCountedContext(state.threads[state.target.ThreadID].Forum, state.targetThread)
	b.End()

	b = p.StartBlock("MERGE", "source threads")
	if err := updateSourceThreads(ctx, tx, state); err != nil {
		return nil, err
	}
	b.End()

	b = p.StartBlock("MERGE", "user counters")
	if err := updateUserCounters(ctx, tx, state); err != nil {
		return nil, err
	}
	b.End()

	if opts.Log {
		err := logMergeTarget(ctx, tx, state.target, state.sourceIDs, opts.ActorID, m.Now())
		if err != nil {
			return nil, err
		}
	}

	b = p.StartBlock("MERGE", "commit")
	if err := tx.Commit(ctx); err != nil {
		return nil, oops.New(err, "failed to commit merge")
	}
	b.End()

	return state, nil
}

/*
Locks the posts and threads involved and snapshots them. Rows are re-read
inside the transaction so a merge never works from stale copies, and posts
consumed by a concurrent merge are reported as missing. Threads are locked in
id order.
*/
func partition(ctx context.Context, tx Tx, target models.Post, sources []models.Post) (*mergeState, error) {
	ids := append([]int{target.ID}, postIDs(sources)...)
	locked, err := tx.FetchPostsForUpdate(ctx, ids)
	if err != nil {
		return nil, oops.New(err, "failed to lock posts")
	}
	byID := make(map[int]models.Post, len(locked))
	for _, post := range locked {
		byID[post.ID] = post
	}

	state := &mergeState{
		mergedIDs: make(map[int]bool, len(sources)),
		threads:   make(map[int]threadSnapshot),
	}

	var ok bool
	if state.target, ok = byID[target.ID]; !ok {
		return nil, oops.New(db.NotFound, "target post %d not found", target.ID)
	}
	for _, source := range sources {
		post, ok := byID[source.ID]
		if !ok {
			return nil, oops.New(db.NotFound, "source post %d not found", source.ID)
		}
		state.sources = append(state.sources, post)
		state.sourceIDs = append(state.sourceIDs, post.ID)
		state.mergedIDs[post.ID] = true
	}

	threadOrder := []int{state.target.ThreadID}
	seen := map[int]bool{state.target.ThreadID: true}
	for _, post := range state.sources {
		if !seen[post.ThreadID] {
			seen[post.ThreadID] = true
			threadOrder = append(threadOrder, post.ThreadID)
		}
	}
	threadIDs := distinctSorted(append([]int(nil), threadOrder...))

	for _, threadID := range threadIDs {
		thread, err := tx.FetchThreadForUpdate(ctx, threadID)
		if err != nil {
			return nil, oops.New(err, "failed to lock thread %d", threadID)
		}
		forum, err := tx.FetchForum(ctx, thread.ForumID)
		if err != nil {
			return nil, oops.New(err, "failed to fetch forum %d", thread.ForumID)
		}
		state.threads[threadID] = threadSnapshot{Thread: thread, Forum: forum}
	}

	for _, threadID := range threadOrder[1:] {
		state.sourceThreads = append(state.sourceThreads, state.threads[threadID])
	}
	if sourceInTarget(state) {
		state.sourceThreads = append([]threadSnapshot{state.threads[state.target.ThreadID]}, state.sourceThreads...)
	}

	return state, nil
}

func sourceInTarget(state *mergeState) bool {
	for _, post := range state.sources {
		if post.ThreadID == state.target.ThreadID {
			return true
		}
	}
	return false
}

func (m *Merger) moveDataToTarget(ctx context.Context, tx Tx, state *mergeState, opts Options) error {
	moved, err := relocateAttachments(ctx, tx, state.sourceIDs, state.target.ID)
	if err != nil {
		return err
	}
	state.attachmentsMoved = moved

	err = tx.DeletePosts(ctx, state.sourceIDs, models.MutationOptions{Silent: true})
	if err != nil {
		return oops.New(err, "failed to delete source posts")
	}

	if opts.Message != nil {
		content := parsing.PreparePostContent(*opts.Message)
		actorID := opts.ActorID
		_, err := tx.CreatePostVersion(ctx, models.PostVersion{
			PostID:     state.target.ID,
			TextRaw:    content.Raw,
			TextParsed: content.Parsed,
			Date:       m.Now(),
			EditReason: MergeEditReason,
			EditorID:   &actorID,
		}, content.Preview)
		if err != nil {
			return oops.New(err, "failed to update text of post %d", state.target.ID)
		}
	}

	return nil
}

// Rebuilds or deletes every source thread other than the target's, then
// rebuilds each affected forum once.
func updateSourceThreads(ctx context.Context, tx Tx, state *mergeState) error {
	forumIDs := []int{state.targetThread.ForumID}

	for _, snapshot := range state.sourceThreads {
		threadID := snapshot.Thread.ID
		forumIDs = append(forumIDs, snapshot.Thread.ForumID)
		if threadID == state.target.ThreadID {
			continue
		}

		rebuilt, _, err := rebuildThread(ctx, tx, threadID)
		if err != nil {
			return err
		}

		if shouldDeleteThread(rebuilt, state.mergedIDs) {
			err := tx.DeleteThread(ctx, threadID, models.MutationOptions{Silent: true})
			if err != nil {
				return oops.New(err, "failed to delete emptied thread %d", threadID)
			}
			state.threadsDeleted = append(state.threadsDeleted, threadID)
		}
	}

	forumIDs = distinctSorted(forumIDs)
	for _, forumID := range forumIDs {
		if err := tx.RebuildForumCounters(ctx, forumID); err != nil {
			return oops.New(err, "failed to rebuild counters of forum %d", forumID)
		}
	}

	return nil
}

func updateUserCounters(ctx context.Context, tx Tx, state *mergeState) error {
	sourceCounted := make(map[int]bool, len(state.sourceThreads))
	for _, snapshot := range state.sourceThreads {
		sourceCounted[snapshot.Thread.ID] = snapshot.counted()
	}

	state.adjustments = computeUserAdjustments(state.sources, sourceCounted, state.targetCounted)
	return applyUserAdjustments(ctx, tx, state.adjustments)
}

func failureOutcome(err error) string {
	var consistency *ConsistencyViolation
	switch {
	case errors.Is(err, ErrValidation):
		return outcomeInvalid
	case errors.Is(err, db.NotFound):
		return outcomeNotFound
	case errors.As(err, &consistency):
		return outcomeInconsistent
	default:
		return outcomeFailed
	}
}

func postIDs(posts []models.Post) []int {
	ids := make([]int, 0, len(posts))
	for _, post := range posts {
		ids = append(ids, post.ID)
	}
	return ids
}

func distinctSorted(ids []int) []int {
	result := utils.Distinct(ids)
	sort.Ints(result)
	return result
}
