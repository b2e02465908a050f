package models

type Forum struct {
	ID int `db:"id"`

	Slug  string `db:"slug"`
	Name  string `db:"name"`
	Blurb string `db:"blurb"`

	// Whether posts in this forum add to their author's message count.
	CountMessages bool `db:"count_messages"`

	ThreadCount  int  `db:"thread_count"`
	MessageCount int  `db:"message_count"`
	LastPostID   *int `db:"last_post_id"`
}

/*
Reports whether posts in the given thread contribute to author message counts
and like counts. Both the forum and the thread must agree.
*/
func IsCountedContext(forum Forum, thread Thread) bool {
	return forum.CountMessages && thread.DiscussionState == MessageStateVisible && !thread.Deleted
}
