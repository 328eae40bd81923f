package app

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"ziabot/internal/model"
	"ziabot/internal/pkg/pdfextract"
)

var (
	ErrUnsupportedFileType = errors.New("only .txt and .pdf files are supported")
	ErrEmptyFileContent    = errors.New("no extractable text in uploaded file")
)

// UploadStore is the subset of the file repository the upload flow needs.
type UploadStore interface {
	Create(file *model.UserFile) error
	GetLatestByUserID(userID uint) (*model.UserFile, error)
}

type FileService struct {
	files UploadStore
}

func NewFileService(files UploadStore) *FileService {
	return &FileService{files: files}
}

// Upload extracts text from a .txt or .pdf upload eagerly and persists it.
// Files whose extracted text is empty or whitespace-only are rejected.
func (s *FileService) Upload(userID uint, filename string, r io.Reader) (*model.UserFile, error) {
	if userID == 0 || strings.TrimSpace(filename) == "" {
		return nil, ErrInvalidInput
	}

	content, err := extractText(filename, r)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyFileContent
	}

	file := &model.UserFile{
		UserID:     userID,
		FileName:   filepath.Base(filename),
		Content:    content,
		UploadedAt: time.Now(),
	}
	if err := s.files.Create(file); err != nil {
		return nil, err
	}
	return file, nil
}

func extractText(filename string, r io.Reader) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt":
		raw, err := io.ReadAll(r)
		if err != nil {
			return "", fmt.Errorf("read txt upload failed: %w", err)
		}
		return string(raw), nil
	case ".pdf":
		text, err := pdfextract.ExtractText(r)
		if err != nil {
			return "", fmt.Errorf("extract pdf text failed: %w", err)
		}
		return text, nil
	default:
		return "", ErrUnsupportedFileType
	}
}
