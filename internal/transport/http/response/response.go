package response

import "github.com/gin-gonic/gin"

// Numeric codes refine the HTTP status; clients should key on the HTTP
// status first and treat these as diagnostics.
const (
	CodeOK                 = 0
	CodeBadRequest         = 40000
	CodeUsernameExists     = 40001
	CodeFileInvalid        = 40002
	CodeUnauthorized       = 40100
	CodeInvalidCredentials = 40101
	CodeSessionNotFound    = 40401
	CodeInternalServer     = 50000
)

type APIResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(200, APIResponse{
		Code:    CodeOK,
		Message: "ok",
		Data:    data,
	})
}

func Error(c *gin.Context, httpStatus, code int, message string) {
	c.JSON(httpStatus, APIResponse{
		Code:    code,
		Message: message,
	})
}
