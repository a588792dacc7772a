package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"trailcatalog-api/models"
)

type fakeAPI struct {
	mu          sync.Mutex
	validToken  string
	pending     map[string]string
	calls       []string
	meFailsWith int
	onResult    func()
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{validToken: "tok-1", pending: map[string]string{}}
}

func (f *fakeAPI) record(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, path)
}

func (f *fakeAPI) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAPI) handler() http.Handler {
	writeJSON := func(w http.ResponseWriter, status int, v interface{}) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
	auth := func(email, token string) map[string]interface{} {
		return map[string]interface{}{
			"user":       models.Profile{ID: "u-" + email, Email: email},
			"token":      token,
			"expires_at": time.Now().Add(time.Hour),
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/signin", func(w http.ResponseWriter, r *http.Request) {
		f.record("signin")
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "Secret1!" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
			return
		}
		writeJSON(w, http.StatusOK, auth(body["email"], f.validToken))
	})
	mux.HandleFunc("/api/v1/auth/signup", func(w http.ResponseWriter, r *http.Request) {
		f.record("signup")
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		writeJSON(w, http.StatusCreated, auth(body["email"], f.validToken))
	})
	mux.HandleFunc("/api/v1/auth/oauth/start", func(w http.ResponseWriter, r *http.Request) {
		f.record("oauth/start")
		writeJSON(w, http.StatusOK, map[string]string{"url": "https://provider.test/auth?state=st-1", "state": "st-1"})
	})
	mux.HandleFunc("/api/v1/auth/oauth/result", func(w http.ResponseWriter, r *http.Request) {
		f.record("oauth/result")
		if f.onResult != nil {
			f.onResult()
		}
		f.mu.Lock()
		email, ok := f.pending[r.URL.Query().Get("state")]
		delete(f.pending, r.URL.Query().Get("state"))
		f.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "No pending sign-in"})
			return
		}
		writeJSON(w, http.StatusOK, auth(email, f.validToken))
	})
	mux.HandleFunc("/api/v1/auth/me", func(w http.ResponseWriter, r *http.Request) {
		f.record("me")
		if f.meFailsWith != 0 {
			writeJSON(w, f.meFailsWith, map[string]string{"error": "boom"})
			return
		}
		if r.Header.Get("Authorization") != "Bearer "+f.validToken {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid token"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"user": models.Profile{ID: "u-1", Email: "eva@example.com"}, "is_admin": false})
	})
	mux.HandleFunc("/api/v1/auth/signout", func(w http.ResponseWriter, r *http.Request) {
		f.record("signout")
		writeJSON(w, http.StatusOK, map[string]string{"message": "Successfully signed out"})
	})
	mux.HandleFunc("/api/v1/routes", func(w http.ResponseWriter, r *http.Request) {
		f.record("routes?" + r.URL.RawQuery)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"routes": []models.RoutePoint{{ID: "abc1234", Name: "Sněžka"}},
			"count":  1,
			"total":  1,
		})
	})
	return mux
}

func newTestClient(t *testing.T, api *fakeAPI) (*Client, *TokenFile) {
	t.Helper()
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)

	tokens := NewTokenFile(filepath.Join(t.TempDir(), "session.json"))
	return New(srv.URL, tokens, zap.NewNop()), tokens
}

func TestStartWithoutSessionPublishesSignedOut(t *testing.T) {
	c, _ := newTestClient(t, newFakeAPI())
	assert.True(t, c.State().Loading)

	var seen []SessionState
	c.Observe(func(s SessionState) { seen = append(seen, s) })

	require.NoError(t, c.Start(context.Background()))
	require.Len(t, seen, 1)
	assert.False(t, seen[0].Loading)
	assert.Nil(t, seen[0].User)
}

func TestStartRestoresPersistedSession(t *testing.T) {
	api := newFakeAPI()
	c, tokens := newTestClient(t, api)
	require.NoError(t, tokens.Save(Session{Token: "tok-1"}))

	require.NoError(t, c.Start(context.Background()))

	state := c.State()
	require.NotNil(t, state.User)
	assert.Equal(t, "eva@example.com", state.User.Email)
	assert.Equal(t, "tok-1", c.Token())
}

func TestStartDropsRejectedToken(t *testing.T) {
	api := newFakeAPI()
	c, tokens := newTestClient(t, api)
	require.NoError(t, tokens.Save(Session{Token: "stale"}))

	require.NoError(t, c.Start(context.Background()))
	assert.Nil(t, c.State().User)

	_, err := os.Stat(tokens.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestStartReturnsTransportFailures(t *testing.T) {
	api := newFakeAPI()
	api.meFailsWith = http.StatusInternalServerError
	c, tokens := newTestClient(t, api)
	require.NoError(t, tokens.Save(Session{Token: "tok-1"}))

	err := c.Start(context.Background())
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusInternalServerError))
	assert.False(t, c.State().Loading)
}

func TestStartChecksRedirectResultBeforeToken(t *testing.T) {
	api := newFakeAPI()
	api.pending["st-1"] = "oauth@example.com"
	c, tokens := newTestClient(t, api)
	require.NoError(t, tokens.Save(Session{PendingState: "st-1"}))

	require.NoError(t, c.Start(context.Background()))

	assert.Equal(t, []string{"oauth/result", "me"}, api.recorded())
	require.NotNil(t, c.State().User)

	saved, err := tokens.Load()
	require.NoError(t, err)
	assert.Equal(t, "tok-1", saved.Token)
	assert.Empty(t, saved.PendingState)
}

func TestStartPublishesWhenRedirectSessionCannotBeSaved(t *testing.T) {
	api := newFakeAPI()
	api.pending["st-1"] = "oauth@example.com"
	c, tokens := newTestClient(t, api)
	require.NoError(t, tokens.Save(Session{PendingState: "st-1"}))
	api.onResult = func() {
		// a directory in place of the session file makes the write fail
		_ = os.Remove(tokens.Path())
		_ = os.Mkdir(tokens.Path(), 0700)
	}

	var seen []SessionState
	c.Observe(func(s SessionState) { seen = append(seen, s) })

	require.Error(t, c.Start(context.Background()))
	require.Len(t, seen, 1)
	assert.False(t, seen[0].Loading)
	assert.False(t, c.State().Loading)
	assert.Nil(t, c.State().User)
}

func TestStartClearsUnknownPendingState(t *testing.T) {
	api := newFakeAPI()
	c, tokens := newTestClient(t, api)
	require.NoError(t, tokens.Save(Session{PendingState: "gone"}))

	require.NoError(t, c.Start(context.Background()))
	assert.Nil(t, c.State().User)

	saved, err := tokens.Load()
	require.NoError(t, err)
	assert.Empty(t, saved.PendingState)
}

func TestSignInPersistsAndPublishes(t *testing.T) {
	c, tokens := newTestClient(t, newFakeAPI())

	var published []SessionState
	unsubscribe := c.Observe(func(s SessionState) { published = append(published, s) })

	user, err := c.SignInWithEmail(context.Background(), "eva@example.com", "Secret1!")
	require.NoError(t, err)
	assert.Equal(t, "eva@example.com", user.Email)
	require.Len(t, published, 1)

	saved, err := tokens.Load()
	require.NoError(t, err)
	assert.Equal(t, "tok-1", saved.Token)

	info, err := os.Stat(tokens.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	unsubscribe()
	require.NoError(t, c.SignOut(context.Background()))
	assert.Len(t, published, 1)
}

func TestSignInFailureIsReturned(t *testing.T) {
	c, tokens := newTestClient(t, newFakeAPI())

	_, err := c.SignInWithEmail(context.Background(), "eva@example.com", "wrong")
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusUnauthorized))
	assert.Contains(t, err.Error(), "Invalid credentials")

	saved, err := tokens.Load()
	require.NoError(t, err)
	assert.Empty(t, saved.Token)
}

func TestSignUpEstablishesSession(t *testing.T) {
	c, _ := newTestClient(t, newFakeAPI())

	user, err := c.SignUpWithEmail(context.Background(), "new@example.com", "Secret1!", "Nový")
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", user.Email)
	assert.Equal(t, "tok-1", c.Token())
}

func TestSignInWithOAuthRedirectPersistsPendingState(t *testing.T) {
	c, tokens := newTestClient(t, newFakeAPI())

	url, err := c.SignInWithOAuthRedirect(context.Background())
	require.NoError(t, err)
	assert.Contains(t, url, "provider.test")

	saved, err := tokens.Load()
	require.NoError(t, err)
	assert.Equal(t, "st-1", saved.PendingState)
}

func TestSignOutRevokesAndClears(t *testing.T) {
	api := newFakeAPI()
	c, tokens := newTestClient(t, api)
	_, err := c.SignInWithEmail(context.Background(), "eva@example.com", "Secret1!")
	require.NoError(t, err)

	require.NoError(t, c.SignOut(context.Background()))
	assert.Contains(t, api.recorded(), "signout")
	assert.Nil(t, c.State().User)
	assert.Empty(t, c.Token())

	_, err = os.Stat(tokens.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestListRoutesForwardsFilter(t *testing.T) {
	api := newFakeAPI()
	c, _ := newTestClient(t, api)

	routes, err := c.ListRoutes(context.Background(), map[string][]string{"difficulty": {"Lehká"}})
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Equal(t, "Sněžka", routes[0].Name)
	assert.Contains(t, api.recorded()[0], "difficulty=")
}

func TestTokenFileCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{nope"), 0600))

	_, err := NewTokenFile(path).Load()
	assert.Error(t, err)
}
