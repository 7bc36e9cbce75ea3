package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"docinsight/internal/model"
)

const chunkInsertBatchSize = 100

type ChunkRepository struct {
	db *gorm.DB
}

func NewChunkRepository(db *gorm.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

func (r *ChunkRepository) CreateBatch(ctx context.Context, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).CreateInBatches(&chunks, chunkInsertBatchSize).Error; err != nil {
		return fmt.Errorf("create chunks batch failed: %w", err)
	}
	return nil
}

// ListByDocumentID returns the document's chunks in index order.
func (r *ChunkRepository) ListByDocumentID(ctx context.Context, documentID uint) ([]model.Chunk, error) {
	var chunks []model.Chunk
	if err := r.db.WithContext(ctx).Where("document_id = ?", documentID).Order("chunk_index ASC").Find(&chunks).Error; err != nil {
		return nil, fmt.Errorf("list chunks failed: %w", err)
	}
	return chunks, nil
}

func (r *ChunkRepository) UpdateEmbedding(ctx context.Context, id uint, vec []float32) error {
	var c model.Chunk
	c.SetEmbedding(vec)
	res := r.db.WithContext(ctx).Model(&model.Chunk{}).Where("id = ?", id).Update("embedding", c.Embedding)
	if res.Error != nil {
		return fmt.Errorf("update chunk embedding failed: %w", res.Error)
	}
	return nil
}

func (r *ChunkRepository) DeleteByDocumentID(ctx context.Context, documentID uint) error {
	if err := r.db.WithContext(ctx).Where("document_id = ?", documentID).Delete(&model.Chunk{}).Error; err != nil {
		return fmt.Errorf("delete chunks by document failed: %w", err)
	}
	return nil
}
