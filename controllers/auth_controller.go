// File: /controllers/auth_controller.go
package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"trailcatalog-api/middleware"
	"trailcatalog-api/services"
	"trailcatalog-api/utils"
)

type AuthController struct {
	auth *services.AuthService
}

func NewAuthController(auth *services.AuthService) *AuthController {
	return &AuthController{auth: auth}
}

type SignUpRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=6"`
	DisplayName string `json:"display_name"`
}

type SignInRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type OAuthStartResponse struct {
	URL   string `json:"url"`
	State string `json:"state"`
}

func (ac *AuthController) SignUp(c *gin.Context) {
	var req SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := ac.auth.SignUpWithEmail(c.Request.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (ac *AuthController) SignIn(c *gin.Context) {
	var req SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := ac.auth.SignInWithEmail(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// OAuthStart returns the provider URL. The client navigates there and
// later claims the outcome with the returned state.
func (ac *AuthController) OAuthStart(c *gin.Context) {
	url, state, err := ac.auth.BeginOAuthRedirect(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if c.Query("redirect") == "1" {
		c.Redirect(http.StatusFound, url)
		return
	}
	c.JSON(http.StatusOK, OAuthStartResponse{URL: url, State: state})
}

func (ac *AuthController) OAuthCallback(c *gin.Context) {
	if providerErr := c.Query("error"); providerErr != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Sign-in was cancelled", "message": providerErr})
		return
	}

	_, err := ac.auth.CompleteOAuthRedirect(c.Request.Context(), c.Query("state"), c.Query("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SendSuccess(c, "Sign-in complete, you can return to the application", nil)
}

// OAuthResult hands out a completed redirect sign-in once.
func (ac *AuthController) OAuthResult(c *gin.Context) {
	result, err := ac.auth.RedirectResult(c.Request.Context(), c.Query("state"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (ac *AuthController) SignOut(c *gin.Context) {
	if err := ac.auth.SignOut(c.Request.Context(), c.GetString(middleware.ContextToken)); err != nil {
		respondError(c, err)
		return
	}
	utils.SendSuccess(c, "Successfully signed out", nil)
}

func (ac *AuthController) Me(c *gin.Context) {
	profile, err := ac.auth.CurrentProfile(c.Request.Context(), c.GetString(middleware.ContextUserID))
	if err != nil {
		respondError(c, err)
		return
	}
	scope := middleware.ScopeFrom(c)
	c.JSON(http.StatusOK, gin.H{"user": profile, "is_admin": scope.IsAdmin})
}
