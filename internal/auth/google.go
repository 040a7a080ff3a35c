package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"contract-analyzer/internal/shared/server/respond"
	"contract-analyzer/internal/shared/telemetry"
	"contract-analyzer/internal/users"
)

const (
	userInfoURL     = "https://www.googleapis.com/oauth2/v2/userinfo"
	loginStateTTL   = 5 * time.Minute
	providerTimeout = 10 * time.Second
)

// GoogleService signs reviewers in with Google. The Google account is linked
// to a local user by its subject id, and the browser is sent back to the UI
// with an API token in the "token" query parameter.
type GoogleService struct {
	oauthConfig *oauth2.Config
	uiRedirect  string
	logins      *pendingLogins
	users       *users.Service
	userInfoURL string
}

// NewGoogleService builds a GoogleService. Login is refused until the client
// id, secret, redirect URL and user service are all set.
func NewGoogleService(clientID, clientSecret, redirectURL, uiRedirect string, userSvc *users.Service) *GoogleService {
	return &GoogleService{
		oauthConfig: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
		uiRedirect:  uiRedirect,
		logins:      newPendingLogins(loginStateTTL, time.Now),
		users:       userSvc,
		userInfoURL: userInfoURL,
	}
}

// RegisterRoutes attaches the Google login routes.
func (s *GoogleService) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/auth/google/start", s.beginLogin)
	rg.GET("/auth/google/callback", s.completeLogin)
}

func (s *GoogleService) configured() bool {
	cfg := s.oauthConfig
	return cfg.ClientID != "" && cfg.ClientSecret != "" && cfg.RedirectURL != "" && s.users != nil
}

func (s *GoogleService) beginLogin(c *gin.Context) {
	if !s.configured() {
		respond.Error(c, http.StatusInternalServerError, "auth_not_configured", "Google sign-in is not configured", nil)
		return
	}
	state := s.logins.open()
	c.Redirect(http.StatusFound, s.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOnline))
}

func (s *GoogleService) completeLogin(c *gin.Context) {
	state, code := c.Query("state"), c.Query("code")
	if state == "" || code == "" {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "missing state or code", nil)
		return
	}
	if !s.logins.close(state) {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "login expired or already used, start again", nil)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), providerTimeout)
	defer cancel()

	token, err := s.oauthConfig.Exchange(ctx, code)
	if err != nil {
		telemetry.Warn("auth.google.exchange_failed", map[string]any{"error": err})
		respond.Error(c, http.StatusBadRequest, "invalid_request", "failed to exchange code", nil)
		return
	}
	profile, err := s.fetchProfile(ctx, token)
	if err != nil {
		telemetry.Warn("auth.google.profile_failed", map[string]any{"error": err})
		respond.Error(c, http.StatusBadGateway, "auth_failed", "failed to fetch Google profile", nil)
		return
	}

	apiToken, user, err := s.users.UpsertFromProvider(ctx, profile.toUser())
	if err != nil {
		telemetry.Error("auth.google.upsert_failed", map[string]any{"error": err})
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to sign in", nil)
		return
	}
	telemetry.Info("auth.google.login", map[string]any{"user_id": user.ID})

	target, err := appendToken(s.uiRedirect, apiToken)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to redirect", nil)
		return
	}
	c.Redirect(http.StatusFound, target)
}

type googleProfile struct {
	Sub           string `json:"sub"`
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// toUser keeps the email only when Google has verified it.
func (p googleProfile) toUser() users.User {
	u := users.User{
		Name:        p.Name,
		PictureURL:  p.Picture,
		Provider:    users.ProviderGoogle,
		ProviderSub: p.Sub,
	}
	if p.VerifiedEmail {
		u.Email = p.Email
	}
	return u
}

func (s *GoogleService) fetchProfile(ctx context.Context, token *oauth2.Token) (googleProfile, error) {
	resp, err := s.oauthConfig.Client(ctx, token).Get(s.userInfoURL)
	if err != nil {
		return googleProfile{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return googleProfile{}, fmt.Errorf("userinfo status %d", resp.StatusCode)
	}

	var p googleProfile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return googleProfile{}, fmt.Errorf("decode userinfo: %w", err)
	}
	// The v2 endpoint returns "id"; OpenID responses use "sub".
	if p.Sub == "" {
		p.Sub = p.ID
	}
	if p.Sub == "" {
		return googleProfile{}, errors.New("userinfo has no subject")
	}
	return p, nil
}

// pendingLogins holds single-use OAuth states until they expire.
type pendingLogins struct {
	mu     sync.Mutex
	states map[string]time.Time
	ttl    time.Duration
	now    func() time.Time
}

func newPendingLogins(ttl time.Duration, now func() time.Time) *pendingLogins {
	return &pendingLogins{states: make(map[string]time.Time), ttl: ttl, now: now}
}

// open issues a new state and drops any that have expired.
func (p *pendingLogins) open() string {
	state := uuid.NewString()
	now := p.now()
	p.mu.Lock()
	defer p.mu.Unlock()
	for s, exp := range p.states {
		if now.After(exp) {
			delete(p.states, s)
		}
	}
	p.states[state] = now.Add(p.ttl)
	return state
}

// close consumes state and reports whether it was issued and still live.
func (p *pendingLogins) close(state string) bool {
	p.mu.Lock()
	exp, ok := p.states[state]
	delete(p.states, state)
	p.mu.Unlock()
	return ok && !p.now().After(exp)
}

func (p *pendingLogins) pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.states)
}

func appendToken(rawURL, token string) (string, error) {
	if rawURL == "" {
		return "", errors.New("redirect url required")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
