// Package identity resolves browser sign-ins to subject identities, issues
// session tokens and broadcasts sign-in/sign-out transitions.
package identity

import (
	"context"
	"errors"

	"planethero/internal/models"
)

var (
	// ErrMissingCode is returned when the redirect carries no authorization code.
	ErrMissingCode = errors.New("identity: authorization code missing")
	// ErrExchangeFailed is returned when the provider rejects the code.
	ErrExchangeFailed = errors.New("identity: code exchange failed")
	// ErrInvalidIdentity is returned when the provider's profile lacks a subject id.
	ErrInvalidIdentity = errors.New("identity: provider returned no subject id")
	// ErrInvalidToken is returned for session tokens that fail verification.
	ErrInvalidToken = errors.New("identity: invalid session token")
)

// Resolver authenticates a browser session against an external identity
// provider and yields a stable subject id plus profile fields.
type Resolver interface {
	// SignInURL is where the browser is redirected to start signing in.
	SignInURL(state string) string
	// CompleteRedirect finishes the redirect flow for the returned code.
	CompleteRedirect(ctx context.Context, code string) (*models.Identity, error)
	// SignOut ends the provider side of a session, if the provider has one.
	SignOut(ctx context.Context, subjectID string) error
}
