// ===============================
// FILE: internal/handlers/api/v1/auth/auth_controller.go
// ===============================

package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"planethero/internal/config"
	"planethero/internal/contextutils"
	"planethero/internal/events"
	"planethero/internal/identity"
	"planethero/internal/models"
	"planethero/internal/response"
	"planethero/internal/services"

	"github.com/gofrs/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"
)

const (
	stateCookieMaxAge = 10 * time.Minute
	eventBuffer       = 8
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingInterval      = (pongWait * 9) / 10
)

// TokenIssuer signs session tokens for bound identities
type TokenIssuer interface {
	Issue(id *models.Identity) (string, time.Time, error)
}

// TokenRevoker rejects a session token before it expires
type TokenRevoker interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
}

// Dependencies are the collaborators of the auth endpoints. Revocations is
// optional; without it a signed-out token stays valid until it expires.
type Dependencies struct {
	Resolver    identity.Resolver
	Binding     services.BindingService
	Tokens      TokenIssuer
	Revocations TokenRevoker
	Notifier    *identity.Notifier
	Events      events.EventBus
}

// AuthController handles the identity provider redirect flow, sign-out and
// the auth-state stream
type AuthController struct {
	deps            Dependencies
	config          config.AuthConfig
	upgrader        websocket.Upgrader
	responseBuilder *response.Builder
	logger          *zap.Logger
	now             func() time.Time
}

// NewAuthController creates the auth controller
func NewAuthController(deps Dependencies, cfg config.AuthConfig, allowedOrigins []string, responseBuilder *response.Builder, logger *zap.Logger) *AuthController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthController{
		deps:   deps,
		config: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || slices.Contains(allowedOrigins, "*") || slices.Contains(allowedOrigins, origin)
			},
		},
		responseBuilder: responseBuilder,
		logger:          logger,
		now:             time.Now,
	}
}

// ===============================
// REDIRECT FLOW
// ===============================

// Login starts the provider redirect - GET /auth/google/login
func (c *AuthController) Login(w http.ResponseWriter, r *http.Request) {
	state, err := uuid.NewV4()
	if err != nil {
		c.responseBuilder.WriteError(w, r, services.NewInternalError("could not create sign-in state"))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     c.config.StateCookieName,
		Value:    state.String(),
		Path:     "/auth",
		MaxAge:   int(stateCookieMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   c.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, c.deps.Resolver.SignInURL(state.String()), http.StatusFound)
}

// Callback completes the provider redirect - GET /auth/google/callback
func (c *AuthController) Callback(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	logger := contextutils.GetLogger(r.Context(), c.logger).With(zap.String("endpoint", "auth_callback"))
	query := r.URL.Query()

	if providerErr := query.Get("error"); providerErr != "" {
		logger.Warn("Identity provider returned an error", zap.String("error", providerErr))
		c.responseBuilder.WriteError(w, r, services.NewUnauthorizedError("Sign-in was cancelled or denied"))
		return
	}

	stateCookie, err := r.Cookie(c.config.StateCookieName)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != query.Get("state") {
		logger.Warn("OAuth state mismatch")
		c.responseBuilder.WriteError(w, r, services.NewUnauthorizedError("Sign-in state is invalid or expired"))
		return
	}
	c.clearCookie(w, c.config.StateCookieName, "/auth", "")

	id, err := c.deps.Resolver.CompleteRedirect(ctx, query.Get("code"))
	if err != nil {
		logger.Warn("Could not complete sign-in", zap.Error(err))
		c.responseBuilder.WriteError(w, r, resolverError(err))
		return
	}

	bound, err := c.deps.Binding.Bind(ctx, id)
	if err != nil {
		logger.Error("Could not bind profile", zap.String("subject_id", id.SubjectID), zap.Error(err))
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	token, expiresAt, err := c.deps.Tokens.Issue(id)
	if err != nil {
		logger.Error("Could not issue session token", zap.Error(err))
		c.responseBuilder.WriteError(w, r, services.NewInternalError("could not issue session"))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     c.config.CookieName,
		Value:    token,
		Path:     "/",
		Domain:   c.config.CookieDomain,
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   c.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	now := c.now()
	c.deps.Notifier.Publish(identity.SignedInTransition(id.SubjectID, now))
	c.publish(ctx, events.NewUserSignedInEvent(id.SubjectID, bound.Created, now))

	logger.Info("User signed in",
		zap.String("subject_id", id.SubjectID),
		zap.Bool("first_sign_in", bound.Created),
	)

	redirect := c.config.PostLoginRedirect
	if redirect == "" {
		redirect = "/"
	}
	http.Redirect(w, r, redirect, http.StatusFound)
}

// Logout ends the session - POST /auth/logout
func (c *AuthController) Logout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	session, ok := contextutils.SessionFrom(r.Context())
	if !ok {
		c.responseBuilder.WriteError(w, r, services.NewUnauthorizedError("Authentication required"))
		return
	}

	c.clearCookie(w, c.config.CookieName, "/", c.config.CookieDomain)

	logger := contextutils.GetLogger(r.Context(), c.logger)
	if c.deps.Revocations != nil {
		if err := c.deps.Revocations.Revoke(ctx, session.TokenID, session.ExpiresAt); err != nil {
			logger.Warn("Failed to revoke session token",
				zap.String("subject_id", session.SubjectID),
				zap.Error(err),
			)
		}
	}

	if err := c.deps.Resolver.SignOut(ctx, session.SubjectID); err != nil {
		logger.Warn("Provider sign-out failed",
			zap.String("subject_id", session.SubjectID),
			zap.Error(err),
		)
	}

	now := c.now()
	c.deps.Notifier.Publish(identity.SignedOutTransition(session.SubjectID, now))
	c.publish(ctx, events.NewUserSignedOutEvent(session.SubjectID, now))

	c.responseBuilder.WriteSuccess(w, r, map[string]bool{"signed_out": true})
}

// ===============================
// AUTH STATE STREAM
// ===============================

// Events streams auth transitions of the signed-in account - GET /auth/events.
// The current state is sent first; the stream ends after a sign-out.
func (c *AuthController) Events(w http.ResponseWriter, r *http.Request) {
	session, ok := contextutils.SessionFrom(r.Context())
	if !ok {
		c.responseBuilder.WriteError(w, r, services.NewUnauthorizedError("Authentication required"))
		return
	}
	logger := contextutils.GetLogger(r.Context(), c.logger).With(zap.String("subject_id", session.SubjectID))

	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	transitions, unsubscribe := c.deps.Notifier.Subscribe(eventBuffer)
	defer unsubscribe()

	if err := c.writeJSON(conn, identity.SignedInTransition(session.SubjectID, c.now())); err != nil {
		return
	}

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			logger.Debug("Auth event stream closed by client")
			return

		case t, open := <-transitions:
			if !open {
				c.writeClose(conn, websocket.CloseGoingAway, "server shutting down")
				return
			}
			if t.Account != session.SubjectID {
				continue
			}
			if err := c.writeJSON(conn, t); err != nil {
				return
			}
			if !t.SignedIn() {
				c.writeClose(conn, websocket.CloseNormalClosure, "signed out")
				return
			}

		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// ===============================
// HELPERS
// ===============================

func (c *AuthController) writeJSON(conn *websocket.Conn, v interface{}) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

func (c *AuthController) writeClose(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(writeWait))
}

func (c *AuthController) clearCookie(w http.ResponseWriter, name, path, domain string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		Domain:   domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c *AuthController) publish(ctx context.Context, event events.Event) {
	if c.deps.Events == nil {
		return
	}
	if err := c.deps.Events.PublishAsync(ctx, event); err == nil {
		return
	}
	if err := c.deps.Events.Publish(ctx, event); err != nil {
		c.logger.Warn("Failed to publish auth event",
			zap.String("event_type", event.GetEventType()),
			zap.Error(err),
		)
	}
}

// resolverError maps identity resolver failures to API errors
func resolverError(err error) error {
	switch {
	case errors.Is(err, identity.ErrMissingCode):
		return services.NewValidationError("Authorization code is missing", err)
	case errors.Is(err, identity.ErrExchangeFailed), errors.Is(err, identity.ErrInvalidIdentity):
		return services.NewUnauthorizedError("Sign-in could not be verified")
	default:
		return services.NewServiceUnavailableError("Identity provider is unavailable")
	}
}
