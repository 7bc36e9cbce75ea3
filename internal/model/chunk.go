package model

import (
	"time"

	"gorm.io/datatypes"
)

// Chunk is a position-tracked slice of a document's extracted text.
// Embedding stays empty until the provider returns a vector for it.
type Chunk struct {
	ID            uint                         `gorm:"primaryKey" json:"id"`
	DocumentID    uint                         `gorm:"not null;uniqueIndex:idx_chunk_document_index" json:"document_id"`
	ChunkIndex    int                          `gorm:"not null;uniqueIndex:idx_chunk_document_index" json:"chunk_index"`
	Content       string                       `gorm:"type:text;not null" json:"content"`
	StartPosition *int                         `json:"start_position,omitempty"`
	EndPosition   *int                         `json:"end_position,omitempty"`
	PageNumber    *int                         `json:"page_number,omitempty"`
	Embedding     datatypes.JSONSlice[float32] `json:"-"`
	CreatedAt     time.Time                    `json:"created_at"`
}

// EmbeddingVector returns the stored embedding; nil when absent.
func (c *Chunk) EmbeddingVector() []float32 {
	if len(c.Embedding) == 0 {
		return nil
	}
	return []float32(c.Embedding)
}

// SetEmbedding stores the embedding; an empty vector clears it.
func (c *Chunk) SetEmbedding(vec []float32) {
	if len(vec) == 0 {
		c.Embedding = nil
		return
	}
	c.Embedding = datatypes.NewJSONSlice(vec)
}
