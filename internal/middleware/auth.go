// file: internal/middleware/auth.go
package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"planethero/internal/contextutils"
	"planethero/internal/identity"
	"planethero/internal/models"
	"planethero/internal/response"
	"planethero/internal/services"

	"go.uber.org/zap"
	"golang.org/x/exp/slices"
)

// TokenParser verifies session tokens
type TokenParser interface {
	Parse(token string) (*models.Identity, error)
}

// RevocationChecker reports signed-out session tokens
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenID string) bool
}

// Authenticator builds the explicit models.Session for a request from the
// session cookie or a Bearer token. The role is read from the profile on
// every request so a role change takes effect without a new sign-in.
type Authenticator struct {
	tokens     TokenParser
	roles      services.RoleLookup
	revoked    RevocationChecker
	cookieName string
	builder    *response.Builder
	logger     *zap.Logger
}

// NewAuthenticator creates the session middleware
func NewAuthenticator(tokens TokenParser, roles services.RoleLookup, cookieName string, builder *response.Builder, logger *zap.Logger) *Authenticator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if builder == nil {
		builder = response.NewBuilder(nil, logger)
	}
	return &Authenticator{
		tokens:     tokens,
		roles:      roles,
		cookieName: cookieName,
		builder:    builder,
		logger:     logger,
	}
}

// WithRevocations rejects tokens listed by r
func (a *Authenticator) WithRevocations(r RevocationChecker) *Authenticator {
	a.revoked = r
	return a
}

// Authenticate resolves the session. With required set, requests without a
// valid session are rejected with 401; otherwise they continue anonymously.
func (a *Authenticator) Authenticate(required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestLogger := contextutils.GetLogger(ctx, a.logger)

			session, err := a.SessionFromRequest(r)
			if err == nil {
				next.ServeHTTP(w, r.WithContext(contextutils.WithSession(ctx, session)))
				return
			}

			if services.IsStoreError(err) {
				a.builder.WriteError(w, r, err)
				return
			}

			if !required {
				next.ServeHTTP(w, r)
				return
			}

			requestLogger.Warn("Authentication required but failed", zap.Error(err))
			a.builder.WriteError(w, r, services.NewUnauthorizedError("Authentication required"))
		})
	}
}

// RequireSession rejects requests without a signed-in user
func (a *Authenticator) RequireSession() func(http.Handler) http.Handler {
	return a.Authenticate(true)
}

// OptionalSession attaches the session when one is present
func (a *Authenticator) OptionalSession() func(http.Handler) http.Handler {
	return a.Authenticate(false)
}

// RequireRole admits only sessions holding one of roles. It must run after
// RequireSession.
func (a *Authenticator) RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, ok := contextutils.SessionFrom(r.Context())
			if !ok {
				a.builder.WriteError(w, r, services.NewUnauthorizedError("Authentication required"))
				return
			}

			if !slices.Contains(roles, session.Role) {
				contextutils.GetLogger(r.Context(), a.logger).Warn("Insufficient role",
					zap.String("subject_id", session.SubjectID),
					zap.String("role", string(session.Role)),
				)
				a.builder.WriteError(w, r, services.NewForbiddenError("This action is not available for your role"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// SessionFromRequest verifies the request token and loads the stored role
func (a *Authenticator) SessionFromRequest(r *http.Request) (models.Session, error) {
	token := extractToken(r, a.cookieName)
	if token == "" {
		return models.Session{}, identity.ErrInvalidToken
	}

	id, err := a.tokens.Parse(token)
	if err != nil {
		return models.Session{}, err
	}
	if a.revoked != nil && a.revoked.IsRevoked(r.Context(), id.TokenID) {
		return models.Session{}, fmt.Errorf("%w: signed out", identity.ErrInvalidToken)
	}

	role, err := a.roles.RoleOf(r.Context(), id.SubjectID)
	if err != nil {
		var serviceErr *services.ServiceError
		if errors.As(err, &serviceErr) {
			return models.Session{}, err
		}
		return models.Session{}, services.NewStoreError("could not load profile role", err)
	}

	return models.Session{
		SubjectID: id.SubjectID,
		Email:     id.Email,
		Name:      id.DisplayName,
		Role:      role,
		TokenID:   id.TokenID,
		ExpiresAt: id.ExpiresAt,
	}, nil
}

// extractToken prefers a Bearer token and falls back to the session cookie
func extractToken(r *http.Request, cookieName string) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}

	if cookieName == "" {
		return ""
	}
	cookie, err := r.Cookie(cookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}
