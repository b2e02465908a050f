package models

import (
	"time"
)

type MessageState int

const (
	MessageStateVisible   MessageState = 1
	MessageStateModerated MessageState = 2 // Awaiting approval
	MessageStateDeleted   MessageState = 3 // Soft-deleted by a moderator, still shown to staff
)

func (s MessageState) String() string {
	switch s {
	case MessageStateVisible:
		return "visible"
	case MessageStateModerated:
		return "moderated"
	case MessageStateDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

type Post struct {
	ID int `db:"id"`

	AuthorID  *int `db:"author_id"` // nil for system posts
	ThreadID  int  `db:"thread_id"`
	CurrentID int  `db:"current_id"` // The id of the current PostVersion

	State   MessageState `db:"state"`
	Deleted bool         `db:"deleted"` // Consumed by a merge or removed; never returned by fetches

	PostDate time.Time `db:"postdate"`
	Position int       `db:"position"`

	LikeCount   int `db:"like_count"`
	AttachCount int `db:"attach_count"`

	Preview string `db:"preview"`
}

func (p *Post) IsVisible() bool {
	return p.State == MessageStateVisible && !p.Deleted
}

type PostVersion struct {
	ID     int `db:"id"`
	PostID int `db:"post_id"`

	TextRaw    string `db:"text_raw"`
	TextParsed string `db:"text_parsed"`

	Date       time.Time `db:"date"`
	EditReason string    `db:"edit_reason"`
	EditorID   *int      `db:"editor_id"`
}
