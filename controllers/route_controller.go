// File: /controllers/route_controller.go
package controllers

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"trailcatalog-api/middleware"
	"trailcatalog-api/models"
	"trailcatalog-api/repositories"
	"trailcatalog-api/services"
	"trailcatalog-api/utils"
)

const maxImageBytes = 5 << 20

type RouteController struct {
	store    repositories.RouteStore
	form     *services.RouteForm
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewRouteController(store repositories.RouteStore, form *services.RouteForm, log *zap.Logger) *RouteController {
	return &RouteController{
		store: store,
		form:  form,
		log:   log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// GetRoutes lists the routes visible to the caller.
func (rc *RouteController) GetRoutes(c *gin.Context) {
	filter, err := services.ParseCatalogFilter(c.Request.URL.Query())
	if err != nil {
		respondError(c, err)
		return
	}

	routes, err := rc.store.List(c.Request.Context(), middleware.ScopeFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	routes = services.FilterRoutes(routes, filter)

	c.JSON(http.StatusOK, gin.H{
		"routes": routes,
		"count":  len(routes),
	})
}

func (rc *RouteController) GetRoute(c *gin.Context) {
	route, ok := rc.loadOwned(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, route)
}

func (rc *RouteController) GetFormSchema(c *gin.Context) {
	fields := make([]gin.H, 0, len(rc.form.Fields()))
	for _, f := range rc.form.Fields() {
		fields = append(fields, gin.H{"name": f.Name, "required": f.Required, "rules": f.Tag})
	}
	c.JSON(http.StatusOK, gin.H{
		"fields":      fields,
		"maxImages":   models.MaxImages,
		"difficulty":  []models.Difficulty{models.DifficultyEasy, models.DifficultyMedium, models.DifficultyHard},
		"routeType":   []models.RouteType{models.RouteTypeLoop, models.RouteTypeTraverse},
		"suitableFor": models.SuitabilityVocabulary,
	})
}

func (rc *RouteController) CreateRoute(c *gin.Context) {
	var input services.RouteFormInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	route, fieldErrs := rc.form.Resolve(input)
	if fieldErrs != nil {
		respondError(c, fieldErrs)
		return
	}

	created, err := rc.store.Create(c.Request.Context(), middleware.ScopeFrom(c), route)
	if err != nil {
		respondError(c, err)
		return
	}

	if rc.store.Blocking() {
		c.JSON(http.StatusCreated, created)
		return
	}
	c.JSON(http.StatusAccepted, created)
}

// UpdateRoute merges the submitted fields into the stored route.
func (rc *RouteController) UpdateRoute(c *gin.Context) {
	var input services.RouteFormInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	patch, fieldErrs := rc.form.ResolvePatch(input)
	if fieldErrs != nil {
		respondError(c, fieldErrs)
		return
	}
	rc.applyPatch(c, c.Param("id"), patch)
}

func (rc *RouteController) DeleteRoute(c *gin.Context) {
	if err := rc.store.Delete(c.Request.Context(), middleware.ScopeFrom(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	if rc.store.Blocking() {
		c.Status(http.StatusNoContent)
		return
	}
	utils.SendAccepted(c, "Delete queued", gin.H{"id": c.Param("id")})
}

// UploadImages appends multipart images to the route. A batch that would
// exceed the image limit is rejected whole.
func (rc *RouteController) UploadImages(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid multipart form"})
		return
	}
	files := form.File["images"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No images provided"})
		return
	}

	route, ok := rc.loadOwned(c)
	if !ok {
		return
	}
	if len(route.Images)+len(files) > models.MaxImages {
		respondError(c, models.ErrImageLimit)
		return
	}

	batch := make([]string, 0, len(files))
	for _, fh := range files {
		if fh.Size > maxImageBytes {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s is larger than %d MB", fh.Filename, maxImageBytes>>20)})
			return
		}
		f, err := fh.Open()
		if err != nil {
			c.Error(err)
			return
		}
		data, err := io.ReadAll(io.LimitReader(f, maxImageBytes+1))
		f.Close()
		if err != nil {
			c.Error(err)
			return
		}

		mimeType := http.DetectContentType(data)
		if !strings.HasPrefix(mimeType, "image/") {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s is not an image", fh.Filename)})
			return
		}
		batch = append(batch, services.EncodeDataURI(mimeType, data))
	}

	images, err := models.AppendImages(route.Images, batch)
	if err != nil {
		respondError(c, err)
		return
	}
	rc.applyPatch(c, route.ID, models.RoutePatch{Images: &images})
}

// RemoveImage drops the image at the given position.
func (rc *RouteController) RemoveImage(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid image index"})
		return
	}

	route, ok := rc.loadOwned(c)
	if !ok {
		return
	}
	if index < 0 || index >= len(route.Images) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Image not found"})
		return
	}

	images := make([]string, 0, len(route.Images)-1)
	images = append(images, route.Images[:index]...)
	images = append(images, route.Images[index+1:]...)
	rc.applyPatch(c, route.ID, models.RoutePatch{Images: &images})
}

// StreamRoutes pushes the caller's live route list over a websocket until
// the client disconnects.
func (rc *RouteController) StreamRoutes(c *gin.Context) {
	scope := middleware.ScopeFrom(c)
	conn, err := rc.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		rc.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	sub, err := rc.store.Subscribe(c.Request.Context(), scope)
	if err != nil {
		conn.WriteJSON(gin.H{"type": "error", "error": err.Error()})
		return
	}
	defer sub.Unsubscribe()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case snap, ok := <-sub.Updates():
			if !ok {
				return
			}
			msg := gin.H{"type": "snapshot", "seq": snap.Seq, "routes": snap.Routes}
			if snap.Err != nil {
				msg = gin.H{"type": "error", "seq": snap.Seq, "error": snap.Err.Error()}
			}
			if err := rc.write(conn, msg); err != nil {
				return
			}
		case ev, ok := <-sub.Failures():
			if !ok {
				return
			}
			if err := rc.write(conn, gin.H{"type": "write_failed", "routeId": ev.RouteID, "code": ev.Code}); err != nil {
				return
			}
		}
	}
}

func (rc *RouteController) write(conn *websocket.Conn, msg gin.H) error {
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := conn.WriteJSON(msg); err != nil {
		rc.log.Debug("websocket write failed", zap.Error(err))
		return err
	}
	return nil
}

// loadOwned fetches the route named by :id and checks that the caller may
// edit it. Records without an owner belong to everyone.
func (rc *RouteController) loadOwned(c *gin.Context) (models.RoutePoint, bool) {
	route, err := rc.store.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return models.RoutePoint{}, false
	}
	scope := middleware.ScopeFrom(c)
	if route.CreatedBy != "" && !scope.CanWrite(route.CreatedBy) {
		respondError(c, repositories.ErrPermissionDenied)
		return models.RoutePoint{}, false
	}
	return route, true
}

func (rc *RouteController) applyPatch(c *gin.Context, id string, patch models.RoutePatch) {
	updated, err := rc.store.Update(c.Request.Context(), middleware.ScopeFrom(c), id, patch)
	if err != nil {
		respondError(c, err)
		return
	}

	if rc.store.Blocking() {
		c.JSON(http.StatusOK, updated)
		return
	}
	c.JSON(http.StatusAccepted, updated)
}
