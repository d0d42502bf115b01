package http

import (
	"net/http"

	"anoa.com/tutorhub/internal/modules/user/dto"
	"anoa.com/tutorhub/internal/modules/user/service"
	"anoa.com/tutorhub/pkg/apperror"
	"anoa.com/tutorhub/pkg/response"
	"anoa.com/tutorhub/pkg/validator"
	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService service.AuthService
}

func NewAuthHandler(authService service.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

func (h *AuthHandler) Login(c *gin.Context) {
	var input dto.LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.ResponseError(c, apperror.Validation(validator.FormatValidationError(err)))
		return
	}

	res, err := h.authService.Login(c.Request.Context(), input)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}
