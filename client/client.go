// File: /client/client.go
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"trailcatalog-api/models"
)

// SessionState is what observers see. Loading stays true until Start
// has finished resolving the persisted session.
type SessionState struct {
	User    *models.Profile
	Loading bool
}

// APIError is a non-2xx answer from the API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

type authResponse struct {
	User      models.Profile `json:"user"`
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	IsNewUser bool           `json:"is_new_user"`
}

type meResponse struct {
	User    models.Profile `json:"user"`
	IsAdmin bool           `json:"is_admin"`
}

type routesResponse struct {
	Routes []models.RoutePoint `json:"routes"`
	Count  int                 `json:"count"`
	Total  int                 `json:"total"`
}

// Client talks to the catalog API and keeps the local session in sync.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     *TokenFile
	log        *zap.Logger

	mu        sync.Mutex
	state     SessionState
	session   Session
	observers map[int]func(SessionState)
	nextID    int
}

func New(baseURL string, tokens *TokenFile, log *zap.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/") + "/api/v1",
		httpClient: &http.Client{Timeout: 30 * time.Second},
		tokens:     tokens,
		log:        log,
		state:      SessionState{Loading: true},
		observers:  make(map[int]func(SessionState)),
	}
}

func (c *Client) State() SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Token is the bearer token of the current session, if any.
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Token
}

// Observe registers fn for every published state change.
func (c *Client) Observe(fn func(SessionState)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	c.observers[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.observers, id)
	}
}

// Start resolves the session: a pending redirect sign-in first, then the
// persisted token. The resulting state is published once both are done.
func (c *Client) Start(ctx context.Context) error {
	sess, err := c.tokens.Load()
	if err != nil {
		c.publish(Session{})
		return err
	}

	if sess.PendingState != "" {
		var result authResponse
		err := c.do(ctx, http.MethodGet, "/auth/oauth/result?state="+url.QueryEscape(sess.PendingState), "", nil, &result)
		switch {
		case err == nil:
			sess = sessionFrom(result)
			c.log.Info("redirect sign-in completed", zap.String("email", result.User.Email))
		case IsStatus(err, http.StatusNotFound):
			sess.PendingState = ""
		default:
			c.publish(sess)
			return fmt.Errorf("failed to check redirect result: %w", err)
		}
		if err := c.tokens.Save(sess); err != nil {
			c.publish(Session{})
			return fmt.Errorf("failed to save session: %w", err)
		}
	}

	if sess.Token != "" {
		var me meResponse
		err := c.do(ctx, http.MethodGet, "/auth/me", sess.Token, nil, &me)
		switch {
		case err == nil:
			sess.User = &me.User
		case IsStatus(err, http.StatusUnauthorized):
			c.log.Debug("persisted session is no longer valid")
			sess = Session{}
			if err := c.tokens.Clear(); err != nil {
				c.publish(sess)
				return err
			}
		default:
			c.publish(Session{})
			return fmt.Errorf("failed to validate session: %w", err)
		}
	}

	c.publish(sess)
	return nil
}

func (c *Client) SignUpWithEmail(ctx context.Context, email, password, displayName string) (*models.Profile, error) {
	body := map[string]string{"email": email, "password": password, "display_name": displayName}
	return c.establish(ctx, "/auth/signup", body)
}

func (c *Client) SignInWithEmail(ctx context.Context, email, password string) (*models.Profile, error) {
	body := map[string]string{"email": email, "password": password}
	return c.establish(ctx, "/auth/signin", body)
}

// SignInWithOAuthRedirect returns the provider URL to open. The state is
// persisted so the next Start picks up the result.
func (c *Client) SignInWithOAuthRedirect(ctx context.Context) (string, error) {
	var start struct {
		URL   string `json:"url"`
		State string `json:"state"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/oauth/start", "", nil, &start); err != nil {
		return "", err
	}

	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()
	sess.PendingState = start.State
	if err := c.tokens.Save(sess); err != nil {
		return "", err
	}
	return start.URL, nil
}

// SignOut revokes the server session and forgets the local one. A token
// the server already rejects counts as signed out.
func (c *Client) SignOut(ctx context.Context) error {
	token := c.Token()
	if token != "" {
		err := c.do(ctx, http.MethodPost, "/auth/signout", token, nil, nil)
		if err != nil && !IsStatus(err, http.StatusUnauthorized) {
			return err
		}
	}
	if err := c.tokens.Clear(); err != nil {
		return err
	}
	c.publish(Session{})
	return nil
}

// ListRoutes reads the public catalog with optional filter query values.
func (c *Client) ListRoutes(ctx context.Context, filter url.Values) ([]models.RoutePoint, error) {
	path := "/routes"
	if len(filter) > 0 {
		path += "?" + filter.Encode()
	}
	var resp routesResponse
	if err := c.do(ctx, http.MethodGet, path, "", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Routes, nil
}

func (c *Client) establish(ctx context.Context, path string, body interface{}) (*models.Profile, error) {
	var result authResponse
	if err := c.do(ctx, http.MethodPost, path, "", body, &result); err != nil {
		return nil, err
	}
	sess := sessionFrom(result)
	if err := c.tokens.Save(sess); err != nil {
		return nil, err
	}
	c.publish(sess)
	return sess.User, nil
}

func (c *Client) publish(sess Session) {
	c.mu.Lock()
	c.session = sess
	c.state = SessionState{User: sess.User, Loading: false}
	state := c.state
	observers := make([]func(SessionState), 0, len(c.observers))
	for _, fn := range c.observers {
		observers = append(observers, fn)
	}
	c.mu.Unlock()

	for _, fn := range observers {
		fn(state)
	}
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		data, _ := io.ReadAll(resp.Body)
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			msg = e.Error
			if e.Message != "" {
				msg += ": " + e.Message
			}
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func sessionFrom(result authResponse) Session {
	user := result.User
	return Session{Token: result.Token, ExpiresAt: result.ExpiresAt, User: &user}
}
