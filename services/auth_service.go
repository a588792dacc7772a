// File: /services/auth_service.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"trailcatalog-api/config"
	"trailcatalog-api/models"
	"trailcatalog-api/repositories"
	"trailcatalog-api/utils"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailInUse         = errors.New("email already registered")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrWeakPassword       = errors.New("password must be at least 6 characters and mix 3 of: upper, lower, digit, symbol")
	ErrOAuthDisabled      = errors.New("oauth sign-in is not configured")
	ErrInvalidOAuthState  = errors.New("unknown or expired oauth state")
	ErrOAuthExchange      = errors.New("oauth provider rejected the sign-in")
	ErrNoRedirectResult   = errors.New("no pending redirect result")
	ErrUnverifiedEmail    = errors.New("provider has not verified this email, sign in with your password instead")
)

// AuthResult is what a successful sign-in hands back to the caller.
type AuthResult struct {
	Profile   models.Profile `json:"user"`
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	IsNewUser bool           `json:"is_new_user"`
}

type ProfileStore interface {
	FindByID(ctx context.Context, id string) (models.Profile, error)
	FindByEmail(ctx context.Context, email string) (models.Profile, error)
	Upsert(ctx context.Context, profile *models.Profile) (bool, error)
}

type RoleStore interface {
	IsAdmin(ctx context.Context, actorID string) (bool, error)
	Grant(ctx context.Context, actorID string) error
}

type oauthUserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

type AuthService struct {
	profiles    ProfileStore
	roles       RoleStore
	tokens      *TokenManager
	denylist    Denylist
	states      *StateStore
	oauth       *oauth2.Config
	userInfoURL string
	mailer      WelcomeMailer
	adminEmails map[string]struct{}
	log         *zap.Logger
	now         func() time.Time
}

// NewAuthService wires the sign-in flows. mailer may be nil when SMTP is not configured.
func NewAuthService(cfg *config.Config, profiles ProfileStore, roles RoleStore, denylist Denylist, states *StateStore, mailer WelcomeMailer, log *zap.Logger) *AuthService {
	s := &AuthService{
		profiles:    profiles,
		roles:       roles,
		tokens:      NewTokenManager(cfg.JWTSecret, cfg.TokenTTL),
		denylist:    denylist,
		states:      states,
		userInfoURL: cfg.OAuthUserInfoURL,
		mailer:      mailer,
		adminEmails: map[string]struct{}{},
		log:         log,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, email := range cfg.AdminEmails {
		s.adminEmails[strings.ToLower(email)] = struct{}{}
	}
	if cfg.OAuthEnabled() {
		s.oauth = &oauth2.Config{
			ClientID:     cfg.OAuthClientID,
			ClientSecret: cfg.OAuthClientSecret,
			RedirectURL:  cfg.OAuthRedirectURL,
			Endpoint:     google.Endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		}
	}
	return s
}

func (s *AuthService) SignUpWithEmail(ctx context.Context, email, password, displayName string) (AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !utils.IsValidEmail(email) {
		return AuthResult{}, ErrInvalidEmail
	}
	if !utils.IsValidPassword(password) {
		return AuthResult{}, ErrWeakPassword
	}

	_, err := s.profiles.FindByEmail(ctx, email)
	if err == nil {
		return AuthResult{}, ErrEmailInUse
	}
	if !errors.Is(err, repositories.ErrProfileNotFound) {
		return AuthResult{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return AuthResult{}, fmt.Errorf("hash password: %w", err)
	}

	return s.establishSession(ctx, models.Profile{
		ID:           uuid.NewString(),
		Email:        email,
		DisplayName:  displayName,
		Provider:     models.ProviderPassword,
		PasswordHash: string(hash),
	})
}

func (s *AuthService) SignInWithEmail(ctx context.Context, email, password string) (AuthResult, error) {
	profile, err := s.profiles.FindByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, repositories.ErrProfileNotFound) {
		return AuthResult{}, ErrInvalidCredentials
	}
	if err != nil {
		return AuthResult{}, err
	}
	// Accounts created through OAuth have no password.
	if profile.PasswordHash == "" {
		return AuthResult{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte(password)); err != nil {
		return AuthResult{}, ErrInvalidCredentials
	}

	profile.Provider = models.ProviderPassword
	return s.establishSession(ctx, profile)
}

// BeginOAuthRedirect returns the provider URL the browser must be sent to and
// the state that identifies the redirect.
func (s *AuthService) BeginOAuthRedirect(ctx context.Context) (string, string, error) {
	if s.oauth == nil {
		return "", "", ErrOAuthDisabled
	}
	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()
	s.states.PutState(state, verifier)

	url := s.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline, oauth2.S256ChallengeOption(verifier))
	return url, state, nil
}

// CompleteOAuthRedirect finishes the provider callback and parks the result
// until the originating client asks for it.
func (s *AuthService) CompleteOAuthRedirect(ctx context.Context, state, code string) (AuthResult, error) {
	if s.oauth == nil {
		return AuthResult{}, ErrOAuthDisabled
	}
	verifier, ok := s.states.TakeState(state)
	if !ok {
		return AuthResult{}, ErrInvalidOAuthState
	}

	token, err := s.oauth.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return AuthResult{}, fmt.Errorf("%w: %v", ErrOAuthExchange, err)
	}

	info, err := s.fetchUserInfo(ctx, token)
	if err != nil {
		return AuthResult{}, err
	}

	profile := models.Profile{
		ID:          uuid.NewString(),
		Email:       strings.ToLower(info.Email),
		DisplayName: info.Name,
		Provider:    models.ProviderGoogle,
	}
	if info.Picture != "" {
		profile.AvatarURL = &info.Picture
	}
	// Link to an existing account with the same email.
	existing, err := s.profiles.FindByEmail(ctx, profile.Email)
	switch {
	case err == nil:
		if !info.EmailVerified {
			s.log.Warn("refused to link unverified oauth email", zap.String("user_id", existing.ID))
			return AuthResult{}, ErrUnverifiedEmail
		}
		profile.ID = existing.ID
	case !errors.Is(err, repositories.ErrProfileNotFound):
		return AuthResult{}, err
	}

	result, err := s.establishSession(ctx, profile)
	if err != nil {
		return AuthResult{}, err
	}
	s.states.PutResult(state, result)
	return result, nil
}

// RedirectResult hands out the outcome of a completed redirect once.
func (s *AuthService) RedirectResult(_ context.Context, state string) (AuthResult, error) {
	result, ok := s.states.TakeResult(state)
	if !ok {
		return AuthResult{}, ErrNoRedirectResult
	}
	return result, nil
}

func (s *AuthService) SignOut(ctx context.Context, tokenString string) error {
	claims, err := s.tokens.Parse(tokenString)
	if err != nil {
		return err
	}
	if err := s.denylist.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return err
	}
	s.log.Info("signed out", zap.String("user_id", claims.UserID))
	return nil
}

// ValidateToken returns the claims of a live, unrevoked token.
func (s *AuthService) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	claims, err := s.tokens.Parse(tokenString)
	if err != nil {
		return nil, err
	}
	revoked, err := s.denylist.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

func (s *AuthService) CurrentProfile(ctx context.Context, userID string) (models.Profile, error) {
	return s.profiles.FindByID(ctx, userID)
}

func (s *AuthService) IsAdmin(ctx context.Context, userID string) (bool, error) {
	return s.roles.IsAdmin(ctx, userID)
}

// establishSession upserts the profile and issues a token. Every successful
// sign-in passes through here exactly once.
func (s *AuthService) establishSession(ctx context.Context, profile models.Profile) (AuthResult, error) {
	now := s.now()
	profile.LastSignInAt = &now
	profile.DisplayName = models.DisplayNameFallback(profile.DisplayName, profile.Email)

	created, err := s.profiles.Upsert(ctx, &profile)
	if errors.Is(err, repositories.ErrDuplicateEmail) {
		// lost a concurrent sign-up for the same address
		return AuthResult{}, ErrEmailInUse
	}
	if err != nil {
		return AuthResult{}, err
	}

	if _, ok := s.adminEmails[strings.ToLower(profile.Email)]; ok {
		if err := s.roles.Grant(ctx, profile.ID); err != nil {
			return AuthResult{}, err
		}
	}

	if created && s.mailer != nil {
		if err := s.mailer.SendWelcomeEmail(profile.Email, profile.DisplayName); err != nil {
			s.log.Warn("failed to send welcome email", zap.String("email", profile.Email), zap.Error(err))
		}
	}

	token, expiresAt, err := s.tokens.Issue(profile)
	if err != nil {
		return AuthResult{}, err
	}

	s.log.Info("session established",
		zap.String("user_id", profile.ID),
		zap.String("provider", profile.Provider),
		zap.Bool("new_user", created))

	return AuthResult{
		Profile:   profile,
		Token:     token,
		ExpiresAt: expiresAt,
		IsNewUser: created,
	}, nil
}

func (s *AuthService) fetchUserInfo(ctx context.Context, token *oauth2.Token) (oauthUserInfo, error) {
	client := s.oauth.Client(ctx, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.userInfoURL, nil)
	if err != nil {
		return oauthUserInfo{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return oauthUserInfo{}, fmt.Errorf("%w: userinfo: %v", ErrOAuthExchange, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return oauthUserInfo{}, fmt.Errorf("%w: userinfo status %d", ErrOAuthExchange, resp.StatusCode)
	}

	var info oauthUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return oauthUserInfo{}, fmt.Errorf("%w: decode userinfo: %v", ErrOAuthExchange, err)
	}
	if info.Email == "" {
		return oauthUserInfo{}, fmt.Errorf("%w: provider returned no email", ErrOAuthExchange)
	}
	return info, nil
}
