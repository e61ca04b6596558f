package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"planethero/internal/cache"
	"planethero/internal/events"
	"planethero/internal/models"
	"planethero/internal/store"

	"go.uber.org/zap"
)

// ProfileRepository reads and writes profile documents. Reads through Get
// are cached; Load always goes to the store.
type ProfileRepository struct {
	store     store.DocumentStore
	cache     cache.Cache
	events    events.EventBus
	ttl       time.Duration
	keyPrefix string
	logger    *zap.Logger
}

// NewProfileRepository creates a ProfileRepository. A nil cache disables caching.
func NewProfileRepository(st store.DocumentStore, c cache.Cache, ttl time.Duration, keyPrefix string, logger *zap.Logger) *ProfileRepository {
	if c == nil {
		c, _ = cache.NewCache(&cache.Config{Provider: "none"}, logger)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileRepository{
		store:     st,
		cache:     c,
		ttl:       ttl,
		keyPrefix: keyPrefix,
		logger:    logger,
	}
}

// WithEvents publishes profile changes made through the repository on bus
func (r *ProfileRepository) WithEvents(bus events.EventBus) *ProfileRepository {
	r.events = bus
	return r
}

func (r *ProfileRepository) cacheKey(subjectID string) string {
	return r.keyPrefix + "profile:" + subjectID
}

// Get returns the profile for subjectID. A missing document yields an error
// matching store.ErrNotFound.
func (r *ProfileRepository) Get(ctx context.Context, subjectID string) (*models.Profile, error) {
	key := r.cacheKey(subjectID)
	if raw, found := r.cache.Get(ctx, key); found {
		var p models.Profile
		if err := json.Unmarshal(raw, &p); err == nil {
			r.logger.Debug("Profile retrieved from cache", zap.String("subject_id", subjectID))
			return &p, nil
		}
		r.logger.Warn("Discarding undecodable cached profile", zap.String("key", key))
	}

	p, err := r.Load(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	r.remember(ctx, p)
	return p, nil
}

// Refresh reads the profile from the store and overwrites the cached copy,
// so a stale entry written back by a concurrent Get cannot survive it.
func (r *ProfileRepository) Refresh(ctx context.Context, subjectID string) (*models.Profile, error) {
	p, err := r.Load(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	r.remember(ctx, p)
	return p, nil
}

func (r *ProfileRepository) remember(ctx context.Context, p *models.Profile) {
	raw, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, r.cacheKey(p.ID), raw, r.ttl); err != nil {
		r.logger.Warn("Failed to cache profile", zap.Error(err), zap.String("subject_id", p.ID))
	}
}

// Load reads the profile straight from the store
func (r *ProfileRepository) Load(ctx context.Context, subjectID string) (*models.Profile, error) {
	doc, err := r.store.GetDocument(ctx, models.UsersCollection, subjectID)
	if err != nil {
		return nil, fmt.Errorf("load profile %s: %w", subjectID, err)
	}
	return ProfileFromDocument(doc), nil
}

// RoleOf returns the stored role. A subject without a profile is a student.
func (r *ProfileRepository) RoleOf(ctx context.Context, subjectID string) (models.Role, error) {
	p, err := r.Get(ctx, subjectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.RoleStudent, nil
		}
		return "", err
	}
	return p.Role, nil
}

// List returns every stored profile
func (r *ProfileRepository) List(ctx context.Context) ([]*models.Profile, error) {
	docs, err := r.store.ListDocuments(ctx, models.UsersCollection)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	out := make([]*models.Profile, 0, len(docs))
	for _, doc := range docs {
		out = append(out, ProfileFromDocument(doc))
	}
	return out, nil
}

// SetRole changes the role of an existing profile
func (r *ProfileRepository) SetRole(ctx context.Context, subjectID string, role models.Role) error {
	if !role.Valid() {
		return NewValidationError(fmt.Sprintf("unknown role %q", role), nil)
	}
	if _, err := r.store.GetDocument(ctx, models.UsersCollection, subjectID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NewNotFoundError("profile not found").WithDetail("subject_id", subjectID)
		}
		return NewStoreError("failed to read profile", err)
	}

	fields := map[string]interface{}{models.FieldRole: string(role)}
	if err := r.store.SetDocument(ctx, models.UsersCollection, subjectID, fields, true); err != nil {
		return NewStoreError("failed to update role", err)
	}
	r.Invalidate(ctx, subjectID)

	if r.events != nil {
		if err := r.events.Publish(ctx, events.NewRoleChangedEvent(subjectID, string(role), time.Now())); err != nil {
			r.logger.Warn("Failed to publish role change", zap.Error(err), zap.String("subject_id", subjectID))
		}
	}
	return nil
}

// Invalidate drops the cached profile
func (r *ProfileRepository) Invalidate(ctx context.Context, subjectID string) {
	if err := r.cache.Delete(ctx, r.cacheKey(subjectID)); err != nil {
		r.logger.Warn("Failed to invalidate cache", zap.Error(err), zap.String("subject_id", subjectID))
	}
}

// ProfileFromDocument maps a users document onto a Profile
func ProfileFromDocument(doc *store.Document) *models.Profile {
	p := &models.Profile{
		ID:          doc.ID,
		Email:       doc.String(models.FieldEmail),
		Name:        doc.String(models.FieldName),
		Role:        models.Role(doc.String(models.FieldRole)),
		TotalPoints: doc.Int(models.FieldTotalPoints),
		Level:       int(doc.Int(models.FieldLevel)),
		CreatedAt:   doc.Time(models.FieldCreatedAt),
		LastActive:  doc.Time(models.FieldLastActive),
		Badges:      []models.BadgeKind{},
	}
	if p.Role == "" {
		p.Role = models.RoleStudent
	}
	if p.Level == 0 {
		p.Level = models.DefaultLevel
	}
	for _, b := range doc.Strings(models.FieldBadges) {
		p.Badges = append(p.Badges, models.BadgeKind(b))
	}
	return p
}
