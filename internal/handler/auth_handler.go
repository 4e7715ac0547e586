package handler

import (
	"net/http"

	"campusconnect.id/communityhub/internal/dto"
	"campusconnect.id/communityhub/internal/service"
	"campusconnect.id/communityhub/pkg/apperror"
	"campusconnect.id/communityhub/pkg/response"
	"campusconnect.id/communityhub/pkg/validator"
	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	service service.AuthService
}

func NewAuthHandler(service service.AuthService) *AuthHandler {
	return &AuthHandler{service: service}
}

func (h *AuthHandler) Login(c *gin.Context) {
	var input dto.LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.ResponseError(c, apperror.Wrap(apperror.ErrValidation, validator.FormatValidationError(err)))
		return
	}

	resp, err := h.service.Login(c.Request.Context(), input)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
