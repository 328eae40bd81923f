package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"ziabot/internal/model"
)

type FileRepository struct {
	db *gorm.DB
}

func NewFileRepository(db *gorm.DB) *FileRepository {
	return &FileRepository{db: db}
}

func (r *FileRepository) Create(file *model.UserFile) error {
	if err := r.db.Create(file).Error; err != nil {
		return fmt.Errorf("create user file failed: %w", err)
	}
	return nil
}

// GetLatestByUserID returns the user's most recently uploaded file,
// or nil when the user has never uploaded one.
func (r *FileRepository) GetLatestByUserID(userID uint) (*model.UserFile, error) {
	var file model.UserFile
	err := r.db.Where("user_id = ?", userID).Order("uploaded_at DESC, id DESC").First(&file).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query latest user file failed: %w", err)
	}
	return &file, nil
}
