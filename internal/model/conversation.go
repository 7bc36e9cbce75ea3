package model

import "time"

type Conversation struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"not null;index" json:"user_id"`
	DocumentID uint      `gorm:"not null;index" json:"document_id"`
	Title      string    `gorm:"size:128;not null" json:"title"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
