package handler

import (
	"net/http"

	"campusconnect.id/communityhub/internal/service"
	"campusconnect.id/communityhub/pkg/response"
	"github.com/gin-gonic/gin"
)

type ProfileHandler struct {
	service service.ProfileService
}

func NewProfileHandler(service service.ProfileService) *ProfileHandler {
	return &ProfileHandler{service: service}
}

// GetDirectory returns every profile with presence, online users first.
func (h *ProfileHandler) GetDirectory(c *gin.Context) {
	profiles, err := h.service.Directory(c.Request.Context())
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": profiles})
}
