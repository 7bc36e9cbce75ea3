package model

import (
	"time"

	"gorm.io/datatypes"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Citation points an assistant answer back at a retrieved chunk.
type Citation struct {
	ChunkID    uint    `json:"chunk_id"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float64 `json:"score"`
	Excerpt    string  `json:"excerpt"`
}

type Message struct {
	ID             uint                          `gorm:"primaryKey" json:"id"`
	ConversationID uint                          `gorm:"not null;index" json:"conversation_id"`
	Role           string                        `gorm:"size:16;not null" json:"role"`
	Content        string                        `gorm:"type:text;not null" json:"content"`
	Citations      datatypes.JSONSlice[Citation] `json:"citations,omitempty"`
	CreatedAt      time.Time                     `json:"created_at"`
}
