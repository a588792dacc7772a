// File: /routes/routes.go
package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"trailcatalog-api/config"
	"trailcatalog-api/controllers"
	"trailcatalog-api/middleware"
	"trailcatalog-api/repositories"
	"trailcatalog-api/services"
)

// Dependencies are the services the HTTP surface is built from.
type Dependencies struct {
	Config      *config.Config
	Log         *zap.Logger
	Store       repositories.RouteStore
	Auth        *services.AuthService
	Assist      *services.AssistService
	RateLimiter *middleware.RateLimiter
}

func SetupRoutes(r *gin.Engine, deps Dependencies) {
	authController := controllers.NewAuthController(deps.Auth)
	routeController := controllers.NewRouteController(deps.Store, services.NewRouteForm(), deps.Log)
	catalogController := controllers.NewCatalogController(deps.Store)
	assistController := controllers.NewAssistController(deps.Assist)

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message":  "pong",
			"status":   "healthy",
			"backend":  deps.Config.StoreBackend,
			"blocking": deps.Store.Blocking(),
		})
	})

	v1 := r.Group("/api/v1")
	v1.Use(middleware.ValidateJSON("/images"))

	requireAuth := middleware.AuthMiddleware(deps.Auth)

	// Auth routes
	auth := v1.Group("/auth")
	{
		auth.POST("/signup", authController.SignUp)
		auth.POST("/signin", authController.SignIn)
		auth.GET("/oauth/start", authController.OAuthStart)
		auth.GET("/oauth/callback", authController.OAuthCallback)
		auth.GET("/oauth/result", authController.OAuthResult)
		auth.POST("/signout", requireAuth, authController.SignOut)
		auth.GET("/me", requireAuth, authController.Me)
	}

	// Public catalog
	catalog := v1.Group("/routes")
	{
		catalog.GET("", catalogController.ListRoutes)
		catalog.GET("/:id", catalogController.GetRoute)
		catalog.GET("/:id/embed", catalogController.GetEmbed)
	}

	// Admin routes
	admin := v1.Group("/admin", requireAuth)
	{
		routes := admin.Group("/routes")
		{
			routes.GET("", routeController.GetRoutes)
			routes.GET("/stream", routeController.StreamRoutes)
			routes.GET("/form", routeController.GetFormSchema)
			routes.POST("", routeController.CreateRoute)
			routes.GET("/:id", routeController.GetRoute)
			routes.PUT("/:id", routeController.UpdateRoute)
			routes.PATCH("/:id", routeController.UpdateRoute)
			routes.DELETE("/:id", routeController.DeleteRoute)
			routes.POST("/:id/images", routeController.UploadImages)
			routes.DELETE("/:id/images/:index", routeController.RemoveImage)
		}
	}

	// AI assist
	assist := v1.Group("/assist", requireAuth, middleware.RateLimit(deps.RateLimiter, deps.Config.AssistRatePerMinute))
	{
		assist.POST("/description", assistController.GenerateDescription)
		assist.POST("/captions", assistController.SuggestCaptions)
	}
}

// SetupCORS allows the catalog front-end to call the API from the browser.
func SetupCORS(allowedOrigin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if allowedOrigin == "*" || origin == allowedOrigin {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
