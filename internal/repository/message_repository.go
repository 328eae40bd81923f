package repository

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"ziabot/internal/model"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) ListBySessionID(sessionID uint) ([]model.Message, error) {
	var messages []model.Message
	if err := r.db.Where("session_id = ?", sessionID).Order("created_at ASC, id ASC").Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("list messages failed: %w", err)
	}
	return messages, nil
}

func (r *MessageRepository) ListByUserID(userID uint) ([]model.Message, error) {
	var messages []model.Message
	if err := r.db.Where("user_id = ?", userID).Order("created_at ASC, id ASC").Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("list messages by user failed: %w", err)
	}
	return messages, nil
}

// pairTimestamps returns the creation times for one user/assistant turn pair.
// The column is DATETIME(3), so the assistant turn is placed a full
// millisecond later; anything finer collapses to equality once stored.
func pairTimestamps(now time.Time) (userAt, assistantAt time.Time) {
	return now, now.Add(time.Millisecond)
}

// AppendPair commits the user query and the assistant reply for one chat call
// as a single transaction. Timestamps are strictly increasing within the pair.
func (r *MessageRepository) AppendPair(sessionID, userID uint, query, reply string) ([]model.Message, error) {
	userAt, assistantAt := pairTimestamps(time.Now())

	pair := []model.Message{
		{SessionID: sessionID, UserID: userID, Role: "user", Content: query, CreatedAt: userAt},
		{SessionID: sessionID, UserID: userID, Role: "assistant", Content: reply, CreatedAt: assistantAt},
	}

	err := r.db.Transaction(func(tx *gorm.DB) error {
		for i := range pair {
			if err := tx.Create(&pair[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("append message pair failed: %w", err)
	}
	return pair, nil
}
