package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"planethero/internal/models"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	googleAuthURL     = "https://accounts.google.com/o/oauth2/auth"
	googleTokenURL    = "https://oauth2.googleapis.com/token"
	googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
)

// GoogleConfig configures the Google resolver. The URL fields default to
// Google's public endpoints.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
}

// GoogleResolver implements Resolver with the OAuth2 authorization code flow
// and the OpenID Connect userinfo endpoint.
type GoogleResolver struct {
	oauth       *oauth2.Config
	userInfoURL string
	logger      *zap.Logger
}

// googleUserInfo is the subset of the userinfo response we use
type googleUserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

// NewGoogleResolver creates a Google-backed Resolver
func NewGoogleResolver(cfg GoogleConfig, logger *zap.Logger) *GoogleResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	authURL := cfg.AuthURL
	if authURL == "" {
		authURL = googleAuthURL
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = googleTokenURL
	}
	userInfoURL := cfg.UserInfoURL
	if userInfoURL == "" {
		userInfoURL = googleUserInfoURL
	}

	return &GoogleResolver{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint: oauth2.Endpoint{
				AuthURL:   authURL,
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		userInfoURL: userInfoURL,
		logger:      logger,
	}
}

// SignInURL returns the consent page URL carrying state
func (g *GoogleResolver) SignInURL(state string) string {
	return g.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
}

// CompleteRedirect exchanges code for a token and reads the user's profile
func (g *GoogleResolver) CompleteRedirect(ctx context.Context, code string) (*models.Identity, error) {
	if strings.TrimSpace(code) == "" {
		return nil, ErrMissingCode
	}

	token, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		g.logger.Warn("Google token exchange failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}

	client := g.oauth.Client(ctx, token)
	resp, err := client.Get(g.userInfoURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user info request returned status %d", resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}
	if info.Sub == "" {
		return nil, ErrInvalidIdentity
	}

	name := info.Name
	if name == "" {
		name = strings.Split(info.Email, "@")[0]
	}

	return &models.Identity{
		SubjectID:   info.Sub,
		Email:       info.Email,
		DisplayName: name,
	}, nil
}

// SignOut is a no-op for Google: the session lives only in our cookie.
func (g *GoogleResolver) SignOut(ctx context.Context, subjectID string) error {
	g.logger.Debug("Google sign-out", zap.String("subject_id", subjectID))
	return nil
}
