package services

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"planethero/internal/cache"
	"planethero/internal/config"
	"planethero/internal/events"
	"planethero/internal/models"
	"planethero/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestProfileView_MissingProfileRendersDefaults(t *testing.T) {
	env := newTestEnv(t)
	svc := NewProfileService(env.profiles, nil)

	view, err := svc.View(context.Background(), models.Session{SubjectID: "new", Name: "Newcomer", Role: models.RoleStudent})
	require.NoError(t, err)

	assert.False(t, view.HasStoredData)
	assert.Zero(t, view.Profile.TotalPoints)
	assert.Equal(t, "Newcomer", view.Profile.Name)
	assert.Equal(t, "Seedling", view.Rank)
	assert.Equal(t, int64(100), view.PointsToNext)
	assert.Len(t, view.Gallery, 6)
	assert.Zero(t, view.EarnedBadges)
}

func TestProfileView_GalleryAndUnknownBadges(t *testing.T) {
	env := newTestEnv(t)
	svc := NewProfileService(env.profiles, nil)
	ctx := context.Background()
	env.signIn(t, "u1")

	_, err := env.completion.CompleteGame(ctx, "u1", models.GamePlantTree, 260)
	require.NoError(t, err)
	require.NoError(t, env.base.AppendToSet(ctx, models.UsersCollection, "u1", models.FieldBadges, "moon_walker"))
	env.profiles.Invalidate(ctx, "u1")

	view, err := svc.View(ctx, models.Session{SubjectID: "u1"})
	require.NoError(t, err)

	assert.True(t, view.HasStoredData)
	assert.Equal(t, "Sapling", view.Rank)
	assert.Equal(t, int64(240), view.PointsToNext)
	assert.Equal(t, 2, view.EarnedBadges)

	earned := map[models.BadgeKind]bool{}
	for _, slot := range view.Gallery {
		earned[slot.Kind] = slot.Earned
	}
	assert.True(t, earned[models.BadgeGreenThumb])
	assert.False(t, earned[models.BadgeWaterSaver])

	require.Len(t, view.OtherBadges, 1)
	assert.Equal(t, models.FallbackBadgeIcon, view.OtherBadges[0].Icon)
	assert.Equal(t, "moon_walker", view.OtherBadges[0].Name)
}

func TestProfileView_Errors(t *testing.T) {
	env := newTestEnv(t)
	svc := NewProfileService(env.profiles, nil)

	_, err := svc.View(context.Background(), models.Session{})
	assert.True(t, IsErrorType(err, ErrorTypeUnauthorized))

	env.store.fail["get"] = errStoreDown
	_, err = svc.View(context.Background(), models.Session{SubjectID: "u1"})
	assert.True(t, IsStoreError(err))
}

func TestProfileRepository_RoleOfAndSetRole(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	role, err := env.profiles.RoleOf(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, role)

	env.signIn(t, "u1")
	require.NoError(t, env.profiles.SetRole(ctx, "u1", models.RoleTeacher))

	role, err = env.profiles.RoleOf(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleTeacher, role)

	assert.True(t, IsValidationError(env.profiles.SetRole(ctx, "u1", models.Role("admin"))))
	assert.True(t, IsNotFoundError(env.profiles.SetRole(ctx, "nobody", models.RoleTeacher)))
}

func TestProfileFromDocument_Defaults(t *testing.T) {
	p := ProfileFromDocument(&store.Document{ID: "x", Fields: map[string]interface{}{}})
	assert.Equal(t, models.RoleStudent, p.Role)
	assert.Equal(t, models.DefaultLevel, p.Level)
	assert.NotNil(t, p.Badges)
}

func TestServiceErrors(t *testing.T) {
	cause := errors.New("boom")
	err := NewStoreError("failed", cause)

	assert.Equal(t, http.StatusServiceUnavailable, err.GetStatusCode())
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "STORE_ERROR")

	wrapped := errors.Join(errors.New("context"), err)
	assert.True(t, IsServiceError(wrapped))
	assert.True(t, IsStoreError(wrapped))

	generic := GetServiceError(errors.New("plain"))
	assert.Equal(t, ErrorTypeInternal, generic.Type)
	assert.Equal(t, http.StatusInternalServerError, (&ServiceError{}).GetStatusCode())

	detailed := NewDetailedValidationError("bad", []FieldError{{Field: "score", Message: "too low"}})
	assert.Equal(t, http.StatusBadRequest, detailed.StatusCode)
	assert.Len(t, detailed.Details["fields"], 1)
	assert.False(t, IsErrorType(nil, ErrorTypeInternal))
}

func TestServiceCollection_Lifecycle(t *testing.T) {
	cfg := &config.Config{
		Cache: config.CacheConfig{DefaultTTL: time.Minute, KeyPrefix: "test:"},
		Games: config.GamesConfig{SessionMaxAge: time.Minute},
	}
	st := store.NewMemoryStore(nil)
	c := cache.NewMemoryCache(cache.DefaultConfig(), nil)
	defer c.Close()
	bus := events.NewEventBus(nil, nil)

	sc, err := NewServiceCollection(st, c, bus, cfg, zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, sc.Start(ctx))

	_, err = sc.Binding.Bind(ctx, &models.Identity{SubjectID: "u1", DisplayName: "Ada"})
	require.NoError(t, err)

	summary, err := sc.Analytics.ClassSummary(ctx)
	require.NoError(t, err)
	assert.Zero(t, summary.TotalPoints)

	_, err = sc.Completion.CompleteGame(ctx, "u1", models.GameWaterSaver, 30)
	require.NoError(t, err)

	summary, err = sc.Analytics.ClassSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(30), summary.TotalPoints, "game.completed invalidates the cached summary")

	health := sc.HealthCheck(ctx)
	assert.Equal(t, "healthy", health.Status)
	assert.Contains(t, health.Dependencies, "store")

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, sc.Shutdown(stopCtx))

	require.NoError(t, st.Close())
	assert.Equal(t, "unhealthy", sc.HealthCheck(ctx).Status)
}

func TestServiceCollection_RoleChangeRefreshesClassSummary(t *testing.T) {
	cfg := &config.Config{
		Cache: config.CacheConfig{DefaultTTL: time.Minute, KeyPrefix: "test:"},
		Games: config.GamesConfig{SessionMaxAge: time.Minute},
	}
	c := cache.NewMemoryCache(cache.DefaultConfig(), nil)
	defer c.Close()
	bus := events.NewEventBus(nil, nil)

	sc, err := NewServiceCollection(store.NewMemoryStore(nil), c, bus, cfg, zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	for _, id := range []string{"u1", "u2"} {
		_, err := sc.Binding.Bind(ctx, &models.Identity{SubjectID: id, DisplayName: id})
		require.NoError(t, err)
	}
	_, err = sc.Completion.CompleteGame(ctx, "u2", models.GamePlantTree, 40)
	require.NoError(t, err)

	summary, err := sc.Analytics.ClassSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.StudentCount)
	assert.Equal(t, int64(40), summary.TotalPoints)

	require.NoError(t, sc.Profiles.SetRole(ctx, "u2", models.RoleTeacher))

	summary, err = sc.Analytics.ClassSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.StudentCount)
	assert.Zero(t, summary.TotalPoints)
}

func TestServiceCollection_ShutdownRemovesSubscriptions(t *testing.T) {
	cfg := &config.Config{Games: config.GamesConfig{SessionMaxAge: time.Minute}}
	bus := events.NewEventBus(nil, nil)

	sc, err := NewServiceCollection(store.NewMemoryStore(nil), nil, bus, cfg, zap.NewNop())
	require.NoError(t, err)
	registered := bus.Stats().HandlersCount
	require.Greater(t, registered, 1)

	require.NoError(t, sc.Shutdown(context.Background()))
	assert.Equal(t, 1, bus.Stats().HandlersCount, "only the audit pattern handler remains")
	require.NoError(t, sc.Shutdown(context.Background()))
}

func TestNewServiceCollection_RequiresDependencies(t *testing.T) {
	_, err := NewServiceCollection(nil, nil, nil, &config.Config{}, zap.NewNop())
	assert.Error(t, err)

	_, err = NewServiceCollection(store.NewMemoryStore(nil), nil, nil, nil, zap.NewNop())
	assert.Error(t, err)
}
