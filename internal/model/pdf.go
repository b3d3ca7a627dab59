package model

import "time"

// PDFFile is an uploaded or merged document owned by a user.
type PDFFile struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	Filename  string    `db:"filename" json:"filename"`
	FilePath  string    `db:"file_path" json:"file_path"`
	FileSize  int64     `db:"file_size" json:"file_size"`
	PageCount int       `db:"page_count" json:"page_count"`
	QuotaUsed int       `db:"quota_used" json:"quota_used"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
