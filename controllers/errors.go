// File: /controllers/errors.go
package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"trailcatalog-api/models"
	"trailcatalog-api/repositories"
	"trailcatalog-api/services"
	"trailcatalog-api/utils"
)

// respondError maps a domain error onto the error envelope. Unknown errors
// are handed to the ErrorHandler middleware.
func respondError(c *gin.Context, err error) {
	var fieldErrs services.FieldErrors

	switch {
	case errors.As(err, &fieldErrs):
		utils.SendFieldErrors(c, fieldErrs)
	case errors.Is(err, models.ErrImageLimit):
		utils.SendErrorMessage(c, http.StatusUnprocessableEntity, "Image limit exceeded", err.Error())
	case errors.Is(err, models.ErrEmptyName),
		errors.Is(err, models.ErrUnrepresentable),
		errors.Is(err, models.ErrUnknownFacet),
		errors.Is(err, services.ErrAssistPrecondition),
		errors.Is(err, services.ErrInvalidEmail),
		errors.Is(err, services.ErrWeakPassword),
		errors.Is(err, services.ErrInvalidOAuthState):
		utils.SendValidationError(c, err.Error())
	case errors.Is(err, services.ErrUnverifiedEmail):
		utils.SendErrorMessage(c, http.StatusForbidden, "Email not verified", err.Error())
	case errors.Is(err, repositories.ErrPermissionDenied):
		utils.SendErrorMessage(c, http.StatusForbidden, "Permission denied", "You do not have permission to change this route")
	case errors.Is(err, repositories.ErrNotFound):
		utils.SendError(c, http.StatusNotFound, "Route not found")
	case errors.Is(err, services.ErrNoRedirectResult):
		utils.SendError(c, http.StatusNotFound, "No pending sign-in")
	case errors.Is(err, repositories.ErrProfileNotFound):
		utils.SendError(c, http.StatusNotFound, "User not found")
	case errors.Is(err, repositories.ErrUnauthenticated),
		errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, services.ErrInvalidToken),
		errors.Is(err, services.ErrTokenRevoked):
		utils.SendErrorMessage(c, http.StatusUnauthorized, "Unauthorized", err.Error())
	case errors.Is(err, services.ErrEmailInUse):
		utils.SendError(c, http.StatusConflict, "Email already registered")
	case errors.Is(err, services.ErrSuperseded):
		utils.SendErrorMessage(c, http.StatusConflict, "Superseded", err.Error())
	case errors.Is(err, services.ErrAssistUnavailable), errors.Is(err, services.ErrOAuthExchange):
		utils.SendErrorMessage(c, http.StatusBadGateway, "Upstream service failed", err.Error())
	case errors.Is(err, services.ErrOAuthDisabled), errors.Is(err, repositories.ErrQueueClosed):
		utils.SendErrorMessage(c, http.StatusServiceUnavailable, "Service unavailable", err.Error())
	default:
		c.Error(err)
	}
}
