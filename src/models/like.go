package models

import "time"

type Like struct {
	ID int `db:"id"`

	PostID          int  `db:"post_id"`
	LikeUserID      int  `db:"like_user_id"`
	ContentAuthorID *int `db:"content_author_id"`

	LikeDate  time.Time `db:"like_date"`
	IsCounted bool      `db:"is_counted"`
}
