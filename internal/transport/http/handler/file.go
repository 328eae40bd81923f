package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ziabot/internal/app"
	"ziabot/internal/transport/http/middleware"
	"ziabot/internal/transport/http/response"
)

type FileHandler struct {
	fileService *app.FileService
	maxFileSize int64
}

func NewFileHandler(fileService *app.FileService, maxFileSize int64) *FileHandler {
	if maxFileSize <= 0 {
		maxFileSize = 10 << 20
	}
	return &FileHandler{
		fileService: fileService,
		maxFileSize: maxFileSize,
	}
}

// Upload accepts a multipart .txt or .pdf upload, extracts its text eagerly
// and rejects files with no extractable content.
func (h *FileHandler) Upload(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "user not resolved")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing file field")
		return
	}
	if fileHeader.Size > h.maxFileSize {
		response.Error(c, http.StatusBadRequest, response.CodeFileInvalid, "file too large")
		return
	}

	opened, err := fileHeader.Open()
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "unreadable upload")
		return
	}
	defer opened.Close()

	file, err := h.fileService.Upload(userID, fileHeader.Filename, opened)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrUnsupportedFileType), errors.Is(err, app.ErrEmptyFileContent):
			response.Error(c, http.StatusBadRequest, response.CodeFileInvalid, err.Error())
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "upload failed")
		}
		return
	}

	username, _ := c.Get(middleware.ContextUsernameKey)
	response.OK(c, gin.H{
		"message":     "file uploaded successfully",
		"username":    username,
		"filename":    file.FileName,
		"upload_time": file.UploadedAt,
	})
}
