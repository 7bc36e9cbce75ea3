package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"docinsight/internal/model"
)

type AnalysisRepository struct {
	db *gorm.DB
}

func NewAnalysisRepository(db *gorm.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

func (r *AnalysisRepository) Create(ctx context.Context, analysis *model.ChunkAnalysis) error {
	if err := r.db.WithContext(ctx).Create(analysis).Error; err != nil {
		return fmt.Errorf("create chunk analysis failed: %w", err)
	}
	return nil
}

// ListByDocumentID returns analyses in chunk order.
func (r *AnalysisRepository) ListByDocumentID(ctx context.Context, documentID uint) ([]model.ChunkAnalysis, error) {
	var list []model.ChunkAnalysis
	if err := r.db.WithContext(ctx).Where("document_id = ?", documentID).Order("chunk_index ASC, id ASC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list chunk analyses failed: %w", err)
	}
	return list, nil
}

func (r *AnalysisRepository) CountByDocumentID(ctx context.Context, documentID uint) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.ChunkAnalysis{}).Where("document_id = ?", documentID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count chunk analyses failed: %w", err)
	}
	return n, nil
}

func (r *AnalysisRepository) DeleteByDocumentID(ctx context.Context, documentID uint) error {
	if err := r.db.WithContext(ctx).Where("document_id = ?", documentID).Delete(&model.ChunkAnalysis{}).Error; err != nil {
		return fmt.Errorf("delete chunk analyses by document failed: %w", err)
	}
	return nil
}
