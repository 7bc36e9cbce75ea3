package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"docinsight/internal/model"
)

type ConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) Create(ctx context.Context, conversation *model.Conversation) error {
	if err := r.db.WithContext(ctx).Create(conversation).Error; err != nil {
		return fmt.Errorf("create conversation failed: %w", err)
	}
	return nil
}

func (r *ConversationRepository) ListByDocumentAndUser(ctx context.Context, documentID, userID uint) ([]model.Conversation, error) {
	var list []model.Conversation
	if err := r.db.WithContext(ctx).Where("document_id = ? AND user_id = ?", documentID, userID).
		Order("updated_at DESC, id DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list conversations failed: %w", err)
	}
	return list, nil
}

func (r *ConversationRepository) GetByIDAndUserID(ctx context.Context, id, userID uint) (*model.Conversation, error) {
	var conversation model.Conversation
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&conversation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get conversation failed: %w", err)
	}
	return &conversation, nil
}
