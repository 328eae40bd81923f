package repository

import (
	"fmt"

	"gorm.io/gorm"

	"ziabot/internal/model"
)

type ChatEventRepository struct {
	db *gorm.DB
}

func NewChatEventRepository(db *gorm.DB) *ChatEventRepository {
	return &ChatEventRepository{db: db}
}

func (r *ChatEventRepository) Create(event *model.ChatEvent) error {
	if err := r.db.Create(event).Error; err != nil {
		return fmt.Errorf("create chat event failed: %w", err)
	}
	return nil
}
