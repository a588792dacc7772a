package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"trailcatalog-api/repositories"
	"trailcatalog-api/services"
)

type fakeSessions struct {
	admins map[string]bool
}

func (f fakeSessions) ValidateToken(_ context.Context, token string) (*services.Claims, error) {
	if !strings.HasPrefix(token, "valid-") {
		return nil, services.ErrInvalidToken
	}
	return &services.Claims{UserID: strings.TrimPrefix(token, "valid-")}, nil
}

func (f fakeSessions) IsAdmin(_ context.Context, userID string) (bool, error) {
	return f.admins[userID], nil
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(handlers...)
	r.Any("/*path", func(c *gin.Context) {
		scope := ScopeFrom(c)
		c.JSON(http.StatusOK, gin.H{"actor": scope.ActorID, "admin": scope.IsAdmin, "public": scope.Public})
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	r := newRouter(AuthMiddleware(fakeSessions{admins: map[string]bool{"root": true}}))

	tests := []struct {
		name   string
		header string
		query  string
		status int
		body   string
	}{
		{"missing token", "", "", http.StatusUnauthorized, ""},
		{"invalid token", "Bearer nope", "", http.StatusUnauthorized, ""},
		{"user", "Bearer valid-alice", "", http.StatusOK, `{"actor":"alice","admin":false,"public":false}`},
		{"admin", "Bearer valid-root", "", http.StatusOK, `{"actor":"root","admin":true,"public":false}`},
		{"query token", "", "?access_token=valid-bob", http.StatusOK, `{"actor":"bob","admin":false,"public":false}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/x"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.body != "" {
				assert.JSONEq(t, tt.body, w.Body.String())
			}
		})
	}
}

func TestScopeFromDefaultsToPublic(t *testing.T) {
	r := newRouter()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.JSONEq(t, `{"actor":"","admin":false,"public":true}`, w.Body.String())
	assert.Equal(t, repositories.PublicScope(), repositories.Scope{Public: true})
}

func TestRateLimit(t *testing.T) {
	limiter := NewRateLimiter(1, 2)
	r := newRouter(RateLimit(limiter, 1))

	codes := []int{}
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/assist", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	assert.Equal(t, 0, limiter.CleanupLimiters(time.Hour))
	assert.Equal(t, 1, limiter.CleanupLimiters(0))
}

func TestValidateJSON(t *testing.T) {
	r := newRouter(ValidateJSON("/images"))

	post := func(path, contentType string) int {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader("x=1"))
		req.Header.Set("Content-Type", contentType)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusBadRequest, post("/routes", "text/plain"))
	assert.Equal(t, http.StatusOK, post("/routes", "application/json; charset=utf-8"))
	assert.Equal(t, http.StatusOK, post("/routes/1/images", "multipart/form-data; boundary=x"))
}

func TestRequestLoggerAndErrorHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger(zap.NewNop()), ErrorHandler(zap.NewNop()), SecurityHeaders())
	r.GET("/boom", func(c *gin.Context) {
		c.Error(assert.AnError)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}
