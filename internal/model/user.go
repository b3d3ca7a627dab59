package model

import "time"

// User represents an account and its page quota balance.
type User struct {
	ID           int64     `db:"uid" json:"uid"`
	Username     string    `db:"username" json:"username"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Quota        int       `db:"quota" json:"quota"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
