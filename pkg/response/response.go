package response

import (
	"net/http"

	"anoa.com/tutorhub/internal/entity"
	"anoa.com/tutorhub/pkg/apperror"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// GetUserID retrieves the authenticated user ID from the context
func GetUserID(c *gin.Context) (uuid.UUID, error) {
	userIDStr, exists := c.Get("user_id")
	if !exists {
		return uuid.Nil, apperror.ErrUnauthorized
	}

	s, ok := userIDStr.(string)
	if !ok {
		return uuid.Nil, apperror.ErrUnauthorized
	}

	userID, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, apperror.ErrUnauthorized
	}

	return userID, nil
}

// GetViewer returns the user loaded by the auth middleware.
func GetViewer(c *gin.Context) (*entity.User, error) {
	v, exists := c.Get("user")
	if !exists {
		return nil, apperror.ErrUnauthorized
	}
	user, ok := v.(*entity.User)
	if !ok || user == nil {
		return nil, apperror.ErrUnauthorized
	}
	return user, nil
}

// ResponseError standardized error response
func ResponseError(c *gin.Context, err error) {
	code := apperror.MapErrorToStatus(err)

	if code >= http.StatusInternalServerError {
		logger(c).Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Int("status", code),
			zap.Error(err),
		)
	}

	c.JSON(code, gin.H{
		"error":   apperror.Kind(err),
		"message": apperror.PublicMessage(err),
	})
}

func logger(c *gin.Context) *zap.Logger {
	if v, ok := c.Get("logger"); ok {
		if l, ok := v.(*zap.Logger); ok {
			return l
		}
	}
	return zap.L()
}
