package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ziabot/internal/app"
	"ziabot/internal/pkg/jwtutil"
	"ziabot/internal/transport/http/response"
)

const (
	ContextUserIDKey   = "user_id"
	ContextUsernameKey = "username"
)

// Auth resolves the caller's account, either from a Bearer token or from the
// username/password query parameters the original client sends on every call.
// Query credentials are revalidated against the stored hash per request.
func Auth(authService *app.AuthService, jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if header := strings.TrimSpace(c.GetHeader("Authorization")); header != "" {
			const prefix = "Bearer "
			if !strings.HasPrefix(header, prefix) {
				response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid authorization scheme")
				c.Abort()
				return
			}
			token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
			claims, err := jwtutil.ParseToken(jwtSecret, token)
			if err != nil {
				response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid or expired token")
				c.Abort()
				return
			}
			c.Set(ContextUserIDKey, claims.UserID)
			c.Set(ContextUsernameKey, claims.Username)
			c.Next()
			return
		}

		username := c.Query("username")
		password := c.Query("password")
		if username == "" || password == "" {
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "missing credentials")
			c.Abort()
			return
		}

		user, err := authService.Authenticate(username, password)
		if err != nil {
			// A storage failure is not the caller's fault; only a rejected
			// credential maps to 401.
			if errors.Is(err, app.ErrInvalidCredential) {
				response.Error(c, http.StatusUnauthorized, response.CodeInvalidCredentials, "invalid username or password")
			} else {
				response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "authentication failed")
			}
			c.Abort()
			return
		}

		c.Set(ContextUserIDKey, user.ID)
		c.Set(ContextUsernameKey, user.Username)
		c.Next()
	}
}
