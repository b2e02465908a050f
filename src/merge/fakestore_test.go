package merge

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"git.handmade.network/hmn/postmerge/src/db"
	"git.handmade.network/hmn/postmerge/src/models"
	"git.handmade.network/hmn/postmerge/src/oops"
	"github.com/google/uuid"
)

var errFake = errors.New("the database is on fire")

var fixtureTime = time.Date(2022, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeData struct {
	Posts           map[int]models.Post
	Threads         map[int]models.Thread
	Forums          map[int]models.Forum
	Users           map[int]models.User
	Likes           []models.Like
	Attachments     []models.Attachment
	ThreadUserPosts map[int]map[int]int
	Versions        []models.PostVersion
	ModeratorLogs   []models.ModeratorLog

	// Side effects of deletes that were not silent.
	LoudMutations []string
}

func newFakeData() *fakeData {
	return &fakeData{
		Posts:           make(map[int]models.Post),
		Threads:         make(map[int]models.Thread),
		Forums:          make(map[int]models.Forum),
		Users:           make(map[int]models.User),
		ThreadUserPosts: make(map[int]map[int]int),
	}
}

func (d *fakeData) clone() *fakeData {
	c := newFakeData()
	for id, p := range d.Posts {
		c.Posts[id] = p
	}
	for id, t := range d.Threads {
		c.Threads[id] = t
	}
	for id, f := range d.Forums {
		c.Forums[id] = f
	}
	for id, u := range d.Users {
		c.Users[id] = u
	}
	for threadID, counts := range d.ThreadUserPosts {
		cc := make(map[int]int, len(counts))
		for userID, n := range counts {
			cc[userID] = n
		}
		c.ThreadUserPosts[threadID] = cc
	}
	c.Likes = append(c.Likes, d.Likes...)
	c.Attachments = append(c.Attachments, d.Attachments...)
	c.Versions = append(c.Versions, d.Versions...)
	c.ModeratorLogs = append(c.ModeratorLogs, d.ModeratorLogs...)
	c.LoudMutations = append(c.LoudMutations, d.LoudMutations...)
	return c
}

// Builder helpers for test fixtures.

func (d *fakeData) addForum(id int, countMessages bool) {
	d.Forums[id] = models.Forum{ID: id, Slug: "forum", Name: "Forum", CountMessages: countMessages}
}

func (d *fakeData) addThread(id, forumID int, state models.MessageState) {
	d.Threads[id] = models.Thread{ID: id, ForumID: forumID, Title: "Thread", DiscussionState: state}
}

func (d *fakeData) addUser(id, messageCount int) {
	d.Users[id] = models.User{ID: id, Username: "user", MessageCount: messageCount}
}

func (d *fakeData) addPost(id, threadID int, authorID *int, state models.MessageState) {
	// Post ids double as creation order.
	d.Posts[id] = models.Post{
		ID:       id,
		ThreadID: threadID,
		AuthorID: authorID,
		State:    state,
		PostDate: fixtureTime.Add(time.Duration(id) * time.Minute),
	}
}

func (d *fakeData) addAttachments(postID, n int) {
	for i := 0; i < n; i++ {
		d.Attachments = append(d.Attachments, models.Attachment{ID: uuid.New(), PostID: postID, Filename: "file.txt", Size: 10})
	}
	p := d.Posts[postID]
	p.AttachCount += n
	d.Posts[postID] = p
}

func (d *fakeData) addLikes(postID int, likers []int, counted bool) {
	p := d.Posts[postID]
	for _, liker := range likers {
		d.Likes = append(d.Likes, models.Like{
			ID:              len(d.Likes) + 1,
			PostID:          postID,
			LikeUserID:      liker,
			ContentAuthorID: p.AuthorID,
			IsCounted:       counted,
		})
	}
	p.LikeCount += len(likers)
	d.Posts[postID] = p
}

/*
Brings every thread and forum up to date, the way a consistent database would
look before a merge.
*/
func (d *fakeData) settle() {
	for threadID := range d.Threads {
		var posts []models.Post
		for _, p := range d.Posts {
			if p.ThreadID == threadID && !p.Deleted {
				posts = append(posts, p)
			}
		}
		counters, err := ComputeThreadCounters(threadID, posts)
		if err != nil {
			panic(err)
		}
		t := d.Threads[threadID]
		t.ReplyCount = counters.ReplyCount
		t.FirstID = counters.FirstID
		t.LastID = counters.LastID
		d.Threads[threadID] = t
		for postID, pos := range counters.Positions {
			p := d.Posts[postID]
			p.Position = pos
			d.Posts[postID] = p
		}
		d.ThreadUserPosts[threadID] = counters.UserPostCounts
	}
	for forumID := range d.Forums {
		d.rebuildForum(forumID)
	}
	for i, like := range d.Likes {
		d.Likes[i].IsCounted = d.postCounted(d.Posts[like.PostID], nil)
	}
	for userID, u := range d.Users {
		u.MessageCount = d.countedMessages(userID, nil)
		d.Users[userID] = u
	}
}

// Post ids whose content now lives in another thread, mapped to that thread.
type mergedContent map[int]int

// Whether a post adds to its author's message count and its likes count.
func (d *fakeData) postCounted(p models.Post, merged mergedContent) bool {
	if p.State != models.MessageStateVisible {
		return false
	}
	threadID := p.ThreadID
	if p.Deleted {
		into, ok := merged[p.ID]
		if !ok {
			return false
		}
		threadID = into
	}
	t := d.Threads[threadID]
	return models.IsCountedContext(d.Forums[t.ForumID], t)
}

func (d *fakeData) countedMessages(userID int, merged mergedContent) int {
	n := 0
	for _, p := range d.Posts {
		if p.AuthorID != nil && *p.AuthorID == userID && d.postCounted(p, merged) {
			n += 1
		}
	}
	return n
}

func (d *fakeData) rebuildForum(forumID int) {
	f := d.Forums[forumID]
	f.ThreadCount = 0
	f.MessageCount = 0
	f.LastPostID = nil

	var lastPost *models.Post
	for _, t := range d.Threads {
		if t.ForumID != forumID || t.Deleted || t.DiscussionState != models.MessageStateVisible {
			continue
		}
		f.ThreadCount += 1
		f.MessageCount += t.ReplyCount + 1
		for _, p := range d.Posts {
			p := p
			if p.ThreadID != t.ID || !p.IsVisible() {
				continue
			}
			if lastPost == nil || p.PostDate.After(lastPost.PostDate) ||
				(p.PostDate.Equal(lastPost.PostDate) && p.ID > lastPost.ID) {
				lastPost = &p
			}
		}
	}
	if lastPost != nil {
		id := lastPost.ID
		f.LastPostID = &id
	}
	d.Forums[forumID] = f
}

type fakeDB struct {
	mu   sync.Mutex
	data *fakeData

	BeginErr error
	// Name of a Tx method that should fail.
	FailOn string
	// Makes UpdateThreadCounters store a wrong reply count.
	CorruptThreadCounters bool

	Commits int
}

var _ Database = &fakeDB{}

func newFakeDB(data *fakeData) *fakeDB {
	return &fakeDB{data: data}
}

// A copy of the committed state.
func (f *fakeDB) snapshot() *fakeData {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data.clone()
}

func (f *fakeDB) Begin(ctx context.Context) (Tx, error) {
	if f.BeginErr != nil {
		return nil, f.BeginErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return &fakeTx{db: f, data: f.data.clone()}, nil
}

type fakeTx struct {
	db   *fakeDB
	data *fakeData
	done bool
}

var _ Tx = &fakeTx{}

func (tx *fakeTx) check(method string) error {
	if tx.done {
		return errors.New("transaction already closed")
	}
	if tx.db.FailOn == method {
		return errFake
	}
	return nil
}

func (tx *fakeTx) FetchPostsForUpdate(ctx context.Context, postIDs []int) ([]models.Post, error) {
	if err := tx.check("FetchPostsForUpdate"); err != nil {
		return nil, err
	}
	var result []models.Post
	for _, id := range postIDs {
		if p, ok := tx.data.Posts[id]; ok && !p.Deleted {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (tx *fakeTx) FetchThreadForUpdate(ctx context.Context, threadID int) (models.Thread, error) {
	if err := tx.check("FetchThreadForUpdate"); err != nil {
		return models.Thread{}, err
	}
	t, ok := tx.data.Threads[threadID]
	if !ok || t.Deleted {
		return models.Thread{}, oops.New(db.NotFound, "thread %d", threadID)
	}
	return t, nil
}

func (tx *fakeTx) FetchForum(ctx context.Context, forumID int) (models.Forum, error) {
	if err := tx.check("FetchForum"); err != nil {
		return models.Forum{}, err
	}
	f, ok := tx.data.Forums[forumID]
	if !ok {
		return models.Forum{}, oops.New(db.NotFound, "forum %d", forumID)
	}
	return f, nil
}

func (tx *fakeTx) FetchThreadPosts(ctx context.Context, threadID int) ([]models.Post, error) {
	if err := tx.check("FetchThreadPosts"); err != nil {
		return nil, err
	}
	var result []models.Post
	for _, p := range tx.data.Posts {
		if p.ThreadID == threadID && !p.Deleted {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (tx *fakeTx) RelocateAttachments(ctx context.Context, sourceIDs []int, targetID int) (int, error) {
	if err := tx.check("RelocateAttachments"); err != nil {
		return 0, err
	}
	sources := make(map[int]bool)
	for _, id := range sourceIDs {
		sources[id] = true
	}
	moved := 0
	for i := range tx.data.Attachments {
		if sources[tx.data.Attachments[i].PostID] {
			tx.data.Attachments[i].PostID = targetID
			moved += 1
		}
	}
	return moved, nil
}

func (tx *fakeTx) IncrementAttachCount(ctx context.Context, postID int, delta int) error {
	if err := tx.check("IncrementAttachCount"); err != nil {
		return err
	}
	p := tx.data.Posts[postID]
	p.AttachCount += delta
	tx.data.Posts[postID] = p
	return nil
}

func (tx *fakeTx) DeletePosts(ctx context.Context, postIDs []int, opts models.MutationOptions) error {
	if err := tx.check("DeletePosts"); err != nil {
		return err
	}
	for _, id := range postIDs {
		p := tx.data.Posts[id]
		p.Deleted = true
		tx.data.Posts[id] = p
		if !opts.Silent {
			tx.data.LoudMutations = append(tx.data.LoudMutations, "delete post")
		}
	}
	return nil
}

func (tx *fakeTx) DeleteThread(ctx context.Context, threadID int, opts models.MutationOptions) error {
	if err := tx.check("DeleteThread"); err != nil {
		return err
	}
	t := tx.data.Threads[threadID]
	t.Deleted = true
	tx.data.Threads[threadID] = t
	if !opts.Silent {
		tx.data.LoudMutations = append(tx.data.LoudMutations, "delete thread")
	}
	return nil
}

func (tx *fakeTx) CreatePostVersion(ctx context.Context, version models.PostVersion, preview string) (int, error) {
	if err := tx.check("CreatePostVersion"); err != nil {
		return 0, err
	}
	version.ID = len(tx.data.Versions) + 1
	tx.data.Versions = append(tx.data.Versions, version)
	p := tx.data.Posts[version.PostID]
	p.CurrentID = version.ID
	p.Preview = preview
	tx.data.Posts[version.PostID] = p
	return version.ID, nil
}

func (tx *fakeTx) UpdateThreadCounters(ctx context.Context, threadID int, counters ThreadCounters) error {
	if err := tx.check("UpdateThreadCounters"); err != nil {
		return err
	}
	t := tx.data.Threads[threadID]
	t.ReplyCount = counters.ReplyCount
	if tx.db.CorruptThreadCounters {
		t.ReplyCount += 1
	}
	if counters.FirstID != nil {
		t.FirstID = counters.FirstID
	}
	if counters.LastID != nil {
		t.LastID = counters.LastID
	}
	tx.data.Threads[threadID] = t
	return nil
}

func (tx *fakeTx) UpdatePostPositions(ctx context.Context, positions map[int]int) error {
	if err := tx.check("UpdatePostPositions"); err != nil {
		return err
	}
	for id, pos := range positions {
		p := tx.data.Posts[id]
		p.Position = pos
		tx.data.Posts[id] = p
	}
	return nil
}

func (tx *fakeTx) ReplaceThreadUserPostCounts(ctx context.Context, threadID int, counts map[int]int) error {
	if err := tx.check("ReplaceThreadUserPostCounts"); err != nil {
		return err
	}
	c := make(map[int]int, len(counts))
	for userID, n := range counts {
		c[userID] = n
	}
	tx.data.ThreadUserPosts[threadID] = c
	return nil
}

func (tx *fakeTx) RebuildForumCounters(ctx context.Context, forumID int) error {
	if err := tx.check("RebuildForumCounters"); err != nil {
		return err
	}
	tx.data.rebuildForum(forumID)
	return nil
}

func (tx *fakeTx) SetLikesCounted(ctx context.Context, postIDs []int, counted bool) error {
	if err := tx.check("SetLikesCounted"); err != nil {
		return err
	}
	posts := make(map[int]bool)
	for _, id := range postIDs {
		posts[id] = true
	}
	for i := range tx.data.Likes {
		if posts[tx.data.Likes[i].PostID] {
			tx.data.Likes[i].IsCounted = counted
		}
	}
	return nil
}

func (tx *fakeTx) AdjustUserMessageCount(ctx context.Context, userID int, delta int) error {
	if err := tx.check("AdjustUserMessageCount"); err != nil {
		return err
	}
	u := tx.data.Users[userID]
	u.MessageCount += delta
	if u.MessageCount < 0 {
		u.MessageCount = 0
	}
	tx.data.Users[userID] = u
	return nil
}

func (tx *fakeTx) LogModeratorAction(ctx context.Context, entry models.ModeratorLog) error {
	if err := tx.check("LogModeratorAction"); err != nil {
		return err
	}
	entry.ID = len(tx.data.ModeratorLogs) + 1
	tx.data.ModeratorLogs = append(tx.data.ModeratorLogs, entry)
	return nil
}

func (tx *fakeTx) Commit(ctx context.Context) error {
	if err := tx.check("Commit"); err != nil {
		return err
	}
	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()
	tx.db.data = tx.data
	tx.db.Commits += 1
	tx.done = true
	return nil
}

func (tx *fakeTx) Rollback(ctx context.Context) error {
	tx.done = true
	return nil
}

type enqueuedJob struct {
	JobType string
	Payload map[string]any
}

type fakeJobQueue struct {
	// Number of calls that fail before one succeeds. Negative fails forever.
	FailTimes int
	Calls     int
	Jobs      []enqueuedJob
}

func (q *fakeJobQueue) Enqueue(ctx context.Context, jobType string, payload map[string]any) error {
	q.Calls += 1
	if q.FailTimes < 0 || q.Calls <= q.FailTimes {
		return errFake
	}
	q.Jobs = append(q.Jobs, enqueuedJob{JobType: jobType, Payload: payload})
	return nil
}

type sentAlert struct {
	ReceiverID int
	PostID     int
	Action     string
	Reason     string
	ActorID    int
}

type fakeAlerts struct {
	Err  error
	Sent []sentAlert
}

func (a *fakeAlerts) SendModeratorActionAlert(ctx context.Context, receiverID int, post models.Post, action string, reason string, actorID int) error {
	if a.Err != nil {
		return a.Err
	}
	a.Sent = append(a.Sent, sentAlert{
		ReceiverID: receiverID,
		PostID:     post.ID,
		Action:     action,
		Reason:     reason,
		ActorID:    actorID,
	})
	return nil
}
