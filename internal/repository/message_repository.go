package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"docinsight/internal/model"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create stores the message and bumps its conversation's updated_at.
func (r *MessageRepository) Create(ctx context.Context, message *model.Message) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(message).Error; err != nil {
			return err
		}
		return tx.Model(&model.Conversation{}).Where("id = ?", message.ConversationID).
			UpdateColumn("updated_at", time.Now()).Error
	})
	if err != nil {
		return fmt.Errorf("create message failed: %w", err)
	}
	return nil
}

func (r *MessageRepository) ListByConversationID(ctx context.Context, conversationID uint, limit int) ([]model.Message, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}

	var messages []model.Message
	if err := r.db.WithContext(ctx).Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").Limit(limit).Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("list messages failed: %w", err)
	}
	return messages, nil
}

// ListRecent returns the newest limit messages, oldest first.
func (r *MessageRepository) ListRecent(ctx context.Context, conversationID uint, limit int) ([]model.Message, error) {
	var messages []model.Message
	if err := r.db.WithContext(ctx).Where("conversation_id = ?", conversationID).
		Order("created_at DESC, id DESC").Limit(limit).Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("list recent messages failed: %w", err)
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
