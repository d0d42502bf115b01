package middleware

import (
	"fmt"
	"net/http"
	"slices"
	"strings"

	"anoa.com/tutorhub/internal/entity"
	userRepo "anoa.com/tutorhub/internal/modules/user/repository"
	"anoa.com/tutorhub/pkg/apperror"
	"anoa.com/tutorhub/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

type AuthMiddleware struct {
	userRepo userRepo.UserRepository
	secret   string
}

func NewAuthMiddleware(userRepo userRepo.UserRepository, secret string) *AuthMiddleware {
	return &AuthMiddleware{
		userRepo: userRepo,
		secret:   secret,
	}
}

func unauthorized(message string) error {
	return apperror.New(http.StatusUnauthorized, message, apperror.ErrUnauthorized)
}

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ""
		authHeader := c.GetHeader("Authorization")

		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}

		// Fallback to query parameter "token" (useful for WebSockets)
		if tokenString == "" {
			tokenString = c.Query("token")
		}

		if tokenString == "" {
			response.ResponseError(c, unauthorized("authorization required"))
			c.Abort()
			return
		}
		token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(m.secret), nil
		})

		if err != nil || !token.Valid {
			response.ResponseError(c, unauthorized("invalid or expired token"))
			c.Abort()
			return
		}

		claims, ok := token.Claims.(*jwt.RegisteredClaims)
		if !ok || claims.Subject == "" {
			response.ResponseError(c, unauthorized("invalid token claims"))
			c.Abort()
			return
		}

		c.Set("user_id", claims.Subject)
		c.Next()
	}
}

// LoadUser resolves the authenticated user and stores it under "user".
func (m *AuthMiddleware) LoadUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := response.GetUserID(c)
		if err != nil {
			response.ResponseError(c, err)
			c.Abort()
			return
		}

		user, err := m.userRepo.FindByID(c.Request.Context(), userID)
		if err != nil {
			response.ResponseError(c, unauthorized("user not found"))
			c.Abort()
			return
		}

		c.Set("user", user)
		c.Next()
	}
}

// RequireRole lets the request through only for the given roles. It expects
// LoadUser to have run.
func (m *AuthMiddleware) RequireRole(roles ...entity.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := response.GetViewer(c)
		if err != nil {
			response.ResponseError(c, err)
			c.Abort()
			return
		}

		if !slices.Contains(roles, user.Role) {
			response.ResponseError(c, fmt.Errorf("%s access required: %w", roles[0], apperror.ErrForbidden))
			c.Abort()
			return
		}

		c.Next()
	}
}

func (m *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return m.RequireRole(entity.RoleAdmin)
}
