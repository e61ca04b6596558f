package middleware

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"planethero/internal/cache"
	"planethero/internal/contextutils"
	"planethero/internal/identity"
	"planethero/internal/models"
	"planethero/internal/response"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeRoles struct {
	roles map[string]models.Role
	err   error
}

func (f *fakeRoles) RoleOf(_ context.Context, subjectID string) (models.Role, error) {
	if f.err != nil {
		return "", f.err
	}
	if role, ok := f.roles[subjectID]; ok {
		return role, nil
	}
	return models.RoleStudent, nil
}

func newAuth(t *testing.T, roles *fakeRoles) (*Authenticator, *identity.TokenIssuer) {
	t.Helper()
	issuer := identity.NewTokenIssuer("test-secret", "planethero-test", time.Hour)
	return NewAuthenticator(issuer, roles, "session", nil, zap.NewNop()), issuer
}

func issue(t *testing.T, issuer *identity.TokenIssuer, subjectID string) string {
	t.Helper()
	token, _, err := issuer.Issue(&models.Identity{SubjectID: subjectID, Email: subjectID + "@school.org", DisplayName: "Ada"})
	require.NoError(t, err)
	return token
}

func errorType(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body response.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Error)
	return body.Error.Type
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = contextutils.GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(HeaderXRequestID))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderXCorrelationID, "upstream-7")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "upstream-7", seen)
	assert.Equal(t, "upstream-7", rec.Header().Get(HeaderXRequestID))
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	assert.Equal(t, "10.0.0.1:1234", getClientIP(req))

	req.Header.Set("X-Real-IP", "10.0.0.2")
	assert.Equal(t, "10.0.0.2", getClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.3")
	assert.Equal(t, "203.0.113.9", getClientIP(req))
}

func TestStructuredLogging_LevelByStatus(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)

	h := RequestID(logger)(StructuredLogging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("missing"))
	})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	completed := logs.FilterMessage("Request completed").All()
	require.Len(t, completed, 1)
	assert.Equal(t, zap.WarnLevel, completed[0].Level)
	assert.Equal(t, int64(http.StatusNotFound), completed[0].ContextMap()["status"])
	assert.Equal(t, int64(7), completed[0].ContextMap()["response_size"])
	assert.Equal(t, "/nope", completed[0].ContextMap()["path"])
}

type hijackableRecorder struct {
	*httptest.ResponseRecorder
	hijacked bool
}

func (h *hijackableRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h.hijacked = true
	return nil, nil, nil
}

func TestStructuredResponseWriter_Hijack(t *testing.T) {
	inner := &hijackableRecorder{ResponseRecorder: httptest.NewRecorder()}
	w := &StructuredResponseWriter{ResponseWriter: inner}
	_, _, err := w.Hijack()
	require.NoError(t, err)
	assert.True(t, inner.hijacked)
	assert.Equal(t, http.StatusSwitchingProtocols, w.Status())

	plain := &StructuredResponseWriter{ResponseWriter: httptest.NewRecorder()}
	_, _, err = plain.Hijack()
	assert.Error(t, err)
}

func TestRecovery(t *testing.T) {
	h := Recovery(nil, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("broken handler")
	}))

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL_ERROR", errorType(t, rec))
	assert.NotContains(t, rec.Body.String(), "broken handler")
}

func TestCORS(t *testing.T) {
	h := CORS(DefaultCORSConfig([]string{"https://app.school.org", "*.planethero.dev"}), zap.NewNop())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) }))

	tests := []struct {
		name       string
		method     string
		origin     string
		preflight  bool
		wantAllow  string
		wantStatus int
	}{
		{name: "no origin", method: http.MethodGet, wantStatus: http.StatusTeapot},
		{name: "allowed", method: http.MethodGet, origin: "https://app.school.org", wantAllow: "https://app.school.org", wantStatus: http.StatusTeapot},
		{name: "pattern", method: http.MethodGet, origin: "https://beta.planethero.dev", wantAllow: "https://beta.planethero.dev", wantStatus: http.StatusTeapot},
		{name: "denied", method: http.MethodGet, origin: "https://evil.example", wantStatus: http.StatusTeapot},
		{name: "preflight", method: http.MethodOptions, origin: "https://app.school.org", preflight: true, wantAllow: "https://app.school.org", wantStatus: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/v1/profile", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantAllow, rec.Header().Get("Access-Control-Allow-Origin"))
			if tt.preflight {
				assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
				assert.Equal(t, "43200", rec.Header().Get("Access-Control-Max-Age"))
			}
		})
	}
}

func TestSecureHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SecureHeaders(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestAuthenticator_RequireSession(t *testing.T) {
	auth, issuer := newAuth(t, &fakeRoles{roles: map[string]models.Role{"t1": models.RoleTeacher}})

	var got models.Session
	h := auth.RequireSession()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = contextutils.SessionFrom(r.Context())
	}))

	t.Run("cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "session", Value: issue(t, issuer, "u1")})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "u1", got.SubjectID)
		assert.Equal(t, "u1@school.org", got.Email)
		assert.Equal(t, "Ada", got.Name)
		assert.Equal(t, models.RoleStudent, got.Role)
		assert.NotEmpty(t, got.TokenID)
		assert.WithinDuration(t, time.Now().Add(time.Hour), got.ExpiresAt, 5*time.Second)
	})

	t.Run("bearer with stored role", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+issue(t, issuer, "t1"))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, models.RoleTeacher, got.Role)
	})

	t.Run("missing", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "UNAUTHORIZED", errorType(t, rec))
	})

	t.Run("forged", func(t *testing.T) {
		other := identity.NewTokenIssuer("other-secret", "planethero-test", time.Hour)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "session", Value: issue(t, other, "u1")})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestAuthenticator_RejectsRevokedToken(t *testing.T) {
	c := cache.NewMemoryCache(cache.DefaultConfig(), nil)
	t.Cleanup(func() { _ = c.Close() })
	revocations := identity.NewRevocations(c, "test:", nil)

	auth, issuer := newAuth(t, &fakeRoles{})
	auth.WithRevocations(revocations)

	var got models.Session
	h := auth.RequireSession()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = contextutils.SessionFrom(r.Context())
	}))
	serve := func(token string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "session", Value: token})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	signedOut := issue(t, issuer, "u1")
	kept := issue(t, issuer, "u1")
	require.Equal(t, http.StatusOK, serve(signedOut))
	require.NoError(t, revocations.Revoke(context.Background(), got.TokenID, got.ExpiresAt))

	assert.Equal(t, http.StatusUnauthorized, serve(signedOut))
	assert.Equal(t, http.StatusOK, serve(kept))
}

func TestAuthenticator_RoleLookupFailure(t *testing.T) {
	auth, issuer := newAuth(t, &fakeRoles{err: errors.New("store offline")})
	h := auth.OptionalSession()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: issue(t, issuer, "u1")})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "STORE_ERROR", errorType(t, rec))
}

func TestAuthenticator_OptionalSession(t *testing.T) {
	auth, _ := newAuth(t, &fakeRoles{})
	called := false
	h := auth.OptionalSession()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := contextutils.SessionFrom(r.Context())
		assert.False(t, ok)
		called = true
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, called)
}

func TestAuthenticator_RequireRole(t *testing.T) {
	auth, issuer := newAuth(t, &fakeRoles{roles: map[string]models.Role{"t1": models.RoleTeacher}})
	h := auth.RequireSession()(auth.RequireRole(models.RoleTeacher)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })))

	tests := []struct {
		subject    string
		wantStatus int
	}{
		{subject: "t1", wantStatus: http.StatusNoContent},
		{subject: "s1", wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.subject, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.AddCookie(&http.Cookie{Name: "session", Value: issue(t, issuer, tt.subject)})
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}

	rec := httptest.NewRecorder()
	auth.RequireRole(models.RoleTeacher)(http.NotFoundHandler()).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
