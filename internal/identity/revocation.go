package identity

import (
	"context"
	"time"

	"planethero/internal/cache"

	"go.uber.org/zap"
)

// Revocations remembers signed-out session tokens until they would have
// expired on their own
type Revocations struct {
	cache     cache.Cache
	keyPrefix string
	now       func() time.Time
	logger    *zap.Logger
}

// NewRevocations creates a revocation list kept in c
func NewRevocations(c cache.Cache, keyPrefix string, logger *zap.Logger) *Revocations {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Revocations{
		cache:     c,
		keyPrefix: keyPrefix,
		now:       time.Now,
		logger:    logger,
	}
}

func (r *Revocations) key(tokenID string) string {
	return r.keyPrefix + "revoked:" + tokenID
}

// Revoke rejects tokenID until expiresAt. Tokens already expired are ignored.
func (r *Revocations) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if tokenID == "" {
		return nil
	}
	ttl := expiresAt.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	return r.cache.Set(ctx, r.key(tokenID), []byte{1}, ttl)
}

// IsRevoked reports whether tokenID was signed out
func (r *Revocations) IsRevoked(ctx context.Context, tokenID string) bool {
	if tokenID == "" {
		return false
	}
	_, found := r.cache.Get(ctx, r.key(tokenID))
	return found
}
