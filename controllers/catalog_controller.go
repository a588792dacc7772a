// File: /controllers/catalog_controller.go
package controllers

import (
	"html"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"trailcatalog-api/repositories"
	"trailcatalog-api/services"
)

// CatalogController serves the read-only public catalog.
type CatalogController struct {
	store repositories.RouteStore
}

func NewCatalogController(store repositories.RouteStore) *CatalogController {
	return &CatalogController{store: store}
}

func (cc *CatalogController) ListRoutes(c *gin.Context) {
	filter, err := services.ParseCatalogFilter(c.Request.URL.Query())
	if err != nil {
		respondError(c, err)
		return
	}

	routes, err := cc.store.List(c.Request.Context(), repositories.PublicScope())
	if err != nil {
		respondError(c, err)
		return
	}
	visible := services.FilterRoutes(routes, filter)

	c.JSON(http.StatusOK, gin.H{
		"routes": visible,
		"count":  len(visible),
		"total":  len(routes),
		"filter": filter,
	})
}

func (cc *CatalogController) GetRoute(c *gin.Context) {
	route, err := cc.store.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, route)
}

// GetEmbed returns the map widget markup of a route. A bare URL is wrapped in an iframe.
func (cc *CatalogController) GetEmbed(c *gin.Context) {
	route, err := cc.store.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if strings.TrimSpace(route.EmbedURL) == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "Route has no map"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": route.ID, "embed": EmbedMarkup(route.EmbedURL)})
}

func EmbedMarkup(embed string) string {
	embed = strings.TrimSpace(embed)
	if strings.HasPrefix(strings.ToLower(embed), "<iframe") {
		return embed
	}
	return `<iframe src="` + html.EscapeString(embed) + `" width="100%" height="450" style="border:0" loading="lazy" allowfullscreen></iframe>`
}
