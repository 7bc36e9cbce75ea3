package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"docinsight/internal/model"
)

type ReportRepository struct {
	db *gorm.DB
}

func NewReportRepository(db *gorm.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

func (r *ReportRepository) Create(ctx context.Context, report *model.DocumentReport) error {
	if err := r.db.WithContext(ctx).Create(report).Error; err != nil {
		return fmt.Errorf("create report failed: %w", err)
	}
	return nil
}

// GetByDocumentID returns the newest report of a document.
func (r *ReportRepository) GetByDocumentID(ctx context.Context, documentID uint) (*model.DocumentReport, error) {
	var report model.DocumentReport
	if err := r.db.WithContext(ctx).Where("document_id = ?", documentID).Order("id DESC").First(&report).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get report failed: %w", err)
	}
	return &report, nil
}
