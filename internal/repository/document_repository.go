package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"docinsight/internal/model"
)

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(ctx context.Context, doc *model.Document) error {
	if err := r.db.WithContext(ctx).Create(doc).Error; err != nil {
		return fmt.Errorf("create document failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id uint) (*model.Document, error) {
	var doc model.Document
	if err := r.db.WithContext(ctx).First(&doc, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document failed: %w", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) GetByIDAndUserID(ctx context.Context, id, userID uint) (*model.Document, error) {
	var doc model.Document
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document failed: %w", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) ListByUserID(ctx context.Context, userID uint) ([]model.Document, error) {
	var list []model.Document
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC, id DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list documents failed: %w", err)
	}
	return list, nil
}

// UpdateStatus sets the status and error message. Legality of the transition
// is the caller's concern.
func (r *DocumentRepository) UpdateStatus(ctx context.Context, id uint, status model.DocumentStatus, message string) error {
	res := r.db.WithContext(ctx).Model(&model.Document{}).Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "error_message": message})
	if res.Error != nil {
		return fmt.Errorf("update document status failed: %w", res.Error)
	}
	return nil
}

// SetChunkStats records the segmentation result and resets progress.
func (r *DocumentRepository) SetChunkStats(ctx context.Context, id uint, totalChunks, wordCount int) error {
	res := r.db.WithContext(ctx).Model(&model.Document{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"total_chunks":     totalChunks,
			"processed_chunks": 0,
			"word_count":       wordCount,
		})
	if res.Error != nil {
		return fmt.Errorf("update document chunk stats failed: %w", res.Error)
	}
	return nil
}

func (r *DocumentRepository) IncrementProcessed(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Model(&model.Document{}).Where("id = ?", id).
		UpdateColumn("processed_chunks", gorm.Expr("processed_chunks + ?", 1))
	if res.Error != nil {
		return fmt.Errorf("increment processed chunks failed: %w", res.Error)
	}
	return nil
}

// DeleteCascade removes the document and every row it owns in one transaction.
func (r *DocumentRepository) DeleteCascade(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		conversations := tx.Model(&model.Conversation{}).Select("id").Where("document_id = ?", id)
		if err := tx.Where("conversation_id IN (?)", conversations).Delete(&model.Message{}).Error; err != nil {
			return err
		}
		owned := []interface{}{
			&model.Conversation{},
			&model.DocumentReport{},
			&model.ChunkAnalysis{},
			&model.Chunk{},
		}
		for _, m := range owned {
			if err := tx.Where("document_id = ?", id).Delete(m).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&model.Document{}, id).Error
	})
	if err != nil {
		return fmt.Errorf("delete document failed: %w", err)
	}
	return nil
}
