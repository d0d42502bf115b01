package dto

import (
	"anoa.com/tutorhub/internal/entity"
)

type LoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int64        `json:"expires_in"`
	User        *entity.User `json:"user"`
	// InboxPath is where the front end should send the user after login.
	InboxPath string `json:"inbox_path"`
}
