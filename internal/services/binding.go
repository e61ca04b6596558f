package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"planethero/internal/events"
	"planethero/internal/models"
	"planethero/internal/store"

	"go.uber.org/zap"
)

// BindResult is the outcome of binding a sign-in to a profile
type BindResult struct {
	Profile *models.Profile `json:"profile"`
	Created bool            `json:"created"`
}

// SessionBinding creates the profile on first sign-in and refreshes
// lastActive on every later one.
type SessionBinding struct {
	store    store.DocumentStore
	profiles *ProfileRepository
	events   events.EventBus
	now      func() time.Time
	logger   *zap.Logger
}

// NewSessionBinding creates a SessionBinding
func NewSessionBinding(st store.DocumentStore, profiles *ProfileRepository, bus events.EventBus, logger *zap.Logger) *SessionBinding {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionBinding{
		store:    st,
		profiles: profiles,
		events:   bus,
		now:      time.Now,
		logger:   logger,
	}
}

// Bind upserts the profile for identity. An existing profile only has its
// lastActive timestamp touched; points, badges and role are never rewritten.
func (b *SessionBinding) Bind(ctx context.Context, identity *models.Identity) (*BindResult, error) {
	if identity == nil || strings.TrimSpace(identity.SubjectID) == "" {
		return nil, NewValidationError("identity has no subject id", nil)
	}

	subjectID := identity.SubjectID
	now := b.now()

	fields := map[string]interface{}{
		models.FieldEmail:       identity.Email,
		models.FieldName:        identity.DisplayName,
		models.FieldRole:        string(models.RoleStudent),
		models.FieldTotalPoints: int64(0),
		models.FieldBadges:      []string{},
		models.FieldLevel:       int64(models.DefaultLevel),
		models.FieldCreatedAt:   now,
		models.FieldLastActive:  now,
	}

	created := true
	err := b.store.CreateDocument(ctx, models.UsersCollection, subjectID, fields)
	switch {
	case err == nil:
		b.logger.Info("Profile created",
			zap.String("subject_id", subjectID),
			zap.String("email", identity.Email))
	case errors.Is(err, store.ErrAlreadyExists):
		created = false
		touch := map[string]interface{}{models.FieldLastActive: now}
		if err := b.store.SetDocument(ctx, models.UsersCollection, subjectID, touch, true); err != nil {
			b.logger.Error("Failed to refresh last active", zap.Error(err), zap.String("subject_id", subjectID))
			return nil, NewStoreError("failed to update profile", err)
		}
	default:
		b.logger.Error("Failed to create profile", zap.Error(err), zap.String("subject_id", subjectID))
		return nil, NewStoreError("failed to create profile", err)
	}

	b.profiles.Invalidate(ctx, subjectID)

	if created && b.events != nil {
		event := events.NewProfileCreatedEvent(subjectID, identity.Email, identity.DisplayName, string(models.RoleStudent), now)
		if err := b.events.Publish(ctx, event); err != nil {
			b.logger.Warn("Failed to publish profile created event", zap.Error(err), zap.String("subject_id", subjectID))
		}
	}

	profile, err := b.profiles.Load(ctx, subjectID)
	if err != nil {
		return nil, NewStoreError("failed to read profile", err)
	}

	return &BindResult{Profile: profile, Created: created}, nil
}
