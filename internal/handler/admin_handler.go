package handler

import (
	"io"
	"net/http"

	"campusconnect.id/communityhub/internal/dto"
	"campusconnect.id/communityhub/internal/service"
	"campusconnect.id/communityhub/pkg/apperror"
	"campusconnect.id/communityhub/pkg/response"
	"campusconnect.id/communityhub/pkg/validator"
	"github.com/gin-gonic/gin"
)

const maxRosterSize = 1 << 20 // 1 MiB

type AdminHandler struct {
	provisioner service.ProvisionService
	profiles    service.ProfileService
}

func NewAdminHandler(provisioner service.ProvisionService, profiles service.ProfileService) *AdminHandler {
	return &AdminHandler{
		provisioner: provisioner,
		profiles:    profiles,
	}
}

func (h *AdminHandler) CreateUser(c *gin.Context) {
	caller, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var input dto.CreateUserInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.ResponseError(c, apperror.Wrap(apperror.ErrValidation, validator.FormatValidationError(err)))
		return
	}

	resp, err := h.provisioner.CreateAccount(c.Request.Context(), caller, input)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *AdminHandler) BulkCreateUsers(c *gin.Context) {
	caller, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var input dto.BulkCreateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.ResponseError(c, apperror.Wrap(apperror.ErrValidation, validator.FormatValidationError(err)))
		return
	}

	resp, err := h.provisioner.BulkCreate(c.Request.Context(), caller, input.Users)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ImportUsers ingests a roster file (multipart field "file") and feeds
// the parsed records through the bulk pipeline.
func (h *AdminHandler) ImportUsers(c *gin.Context) {
	caller, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.ResponseError(c, apperror.Wrap(apperror.ErrValidation, "roster file required"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.ResponseError(c, apperror.Wrap(apperror.ErrValidation, "could not read roster file"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxRosterSize))
	if err != nil {
		response.ResponseError(c, apperror.Wrap(apperror.ErrValidation, "could not read roster file"))
		return
	}

	users := service.ParseRoster(string(data))
	if len(users) == 0 {
		response.ResponseError(c, apperror.Wrap(apperror.ErrValidation, "no valid users found in file"))
		return
	}

	resp, err := h.provisioner.BulkCreate(c.Request.Context(), caller, users)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *AdminHandler) GetAllUsers(c *gin.Context) {
	profiles, err := h.profiles.ListAccounts(c.Request.Context())
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": profiles})
}
