package models

import (
	"time"
)

type User struct {
	ID int `db:"id"`

	Username   string    `db:"username"`
	Name       string    `db:"name"`
	DateJoined time.Time `db:"date_joined"`
	IsStaff    bool      `db:"is_staff"`

	// Visible posts in counted contexts. Never negative.
	MessageCount int `db:"message_count"`
}
