package repository

import (
	"context"

	"campusconnect.id/communityhub/internal/model"
	"gorm.io/gorm"
)

type MessageRepository interface {
	Create(ctx context.Context, message *model.Message) error
	// ListRecent returns the most recent limit messages in ascending
	// (created_at, seq) order. This is the point-in-time history read;
	// live messages flow through the hub.
	ListRecent(ctx context.Context, limit int) ([]model.Message, error)
}

type messageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, message *model.Message) error {
	return r.db.WithContext(ctx).Create(message).Error
}

func (r *messageRepository) ListRecent(ctx context.Context, limit int) ([]model.Message, error) {
	var messages []model.Message
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Order("seq DESC").
		Limit(limit).
		Find(&messages).Error; err != nil {
		return nil, err
	}

	// Query is newest-first for the limit; reverse to ascending for the caller.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}
