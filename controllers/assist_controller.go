// File: /controllers/assist_controller.go
package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"trailcatalog-api/middleware"
	"trailcatalog-api/services"
)

type AssistController struct {
	assist *services.AssistService
}

func NewAssistController(assist *services.AssistService) *AssistController {
	return &AssistController{assist: assist}
}

type CaptionRequest struct {
	Images []string `json:"images"`
	// Description, when set, is returned with the captions appended.
	Description *string `json:"description"`
}

func (ac *AssistController) GenerateDescription(c *gin.Context) {
	var input services.DescriptionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	out, err := ac.assist.GenerateDescription(c.Request.Context(), c.GetString(middleware.ContextUserID), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (ac *AssistController) SuggestCaptions(c *gin.Context) {
	var req CaptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	out, err := ac.assist.SuggestCaptions(c.Request.Context(), c.GetString(middleware.ContextUserID), services.CaptionInput{Images: req.Images})
	if err != nil {
		respondError(c, err)
		return
	}

	resp := gin.H{
		"captions":      out.Captions,
		"requested":     out.Requested,
		"succeeded":     out.Succeeded,
		"promptVersion": out.PromptVersion,
	}
	if req.Description != nil {
		resp["description"] = services.MergeCaptions(*req.Description, out.Captions)
	}
	c.JSON(http.StatusOK, resp)
}
