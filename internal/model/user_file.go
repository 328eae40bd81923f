package model

import "time"

// UserFile stores the extracted plain text of an uploaded document.
// Only the most recent file per user is consulted when assembling chat context.
type UserFile struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"not null;index" json:"user_id"`
	FileName   string    `gorm:"size:256;not null" json:"file_name"`
	Content    string    `gorm:"type:longtext;not null" json:"-"`
	UploadedAt time.Time `gorm:"index" json:"uploaded_at"`
}
