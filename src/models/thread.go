package models

type Thread struct {
	ID int `db:"id"`

	ForumID int `db:"forum_id"`

	Title           string       `db:"title"`
	ReplyCount      int          `db:"reply_count"`
	DiscussionState MessageState `db:"discussion_state"`
	Deleted         bool         `db:"deleted"`

	FirstID *int `db:"first_id"`
	LastID  *int `db:"last_id"`
}

// Tracks how many of a thread's visible posts each author wrote.
type ThreadUserPost struct {
	ThreadID  int `db:"thread_id"`
	UserID    int `db:"user_id"`
	PostCount int `db:"post_count"`
}
