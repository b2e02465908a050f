package models

import (
	"github.com/google/uuid"
)

type Attachment struct {
	ID       uuid.UUID `db:"id"`
	PostID   int       `db:"post_id"`
	Filename string    `db:"filename"`
	Size     int       `db:"size"`
	MimeType string    `db:"mime_type"`
}
