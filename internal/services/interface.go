package services

import (
	"context"

	"planethero/internal/models"
)

// ===============================
// SERVICE INTERFACES
// ===============================

// BindingService binds identity-provider sign-ins to profiles
type BindingService interface {
	Bind(ctx context.Context, identity *models.Identity) (*BindResult, error)
}

// CompletionService applies finished games to profiles
type CompletionService interface {
	CompleteGame(ctx context.Context, subjectID string, gameType models.GameType, score int64) (*CompletionOutcome, error)
}

// ProfileViewService renders the signed-in user's dashboard
type ProfileViewService interface {
	View(ctx context.Context, session models.Session) (*ProfileView, error)
}

// AnalyticsService summarises the class for teachers
type AnalyticsService interface {
	ClassSummary(ctx context.Context) (*ClassSummary, error)
}

// RoleLookup resolves the stored role of a subject
type RoleLookup interface {
	RoleOf(ctx context.Context, subjectID string) (models.Role, error)
}

// HealthChecker is implemented by dependencies that can report health
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
	ServiceName() string
}

var (
	_ BindingService     = (*SessionBinding)(nil)
	_ CompletionService  = (*CompletionHandler)(nil)
	_ ProfileViewService = (*ProfileService)(nil)
	_ AnalyticsService   = (*Analytics)(nil)
	_ RoleLookup         = (*ProfileRepository)(nil)
)
