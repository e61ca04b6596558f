package services

import (
	"context"
	"errors"

	"planethero/internal/models"
	"planethero/internal/store"

	"go.uber.org/zap"
)

// BadgeSlot is one entry of the badge gallery
type BadgeSlot struct {
	models.BadgeInfo
	Earned bool `json:"earned"`
}

// ProfileView is the student dashboard summary
type ProfileView struct {
	Profile        *models.Profile    `json:"profile"`
	Rank           string             `json:"rank"`
	PointsToNext   int64              `json:"points_to_next_rank"`
	Gallery        []BadgeSlot        `json:"gallery"`
	OtherBadges    []models.BadgeInfo `json:"other_badges,omitempty"`
	EarnedBadges   int                `json:"earned_badges"`
	HasStoredData  bool               `json:"has_stored_data"`
	AvailableGames []models.GameType  `json:"available_games"`
}

// ProfileService renders profile reads for the presentation layer
type ProfileService struct {
	profiles *ProfileRepository
	logger   *zap.Logger
}

// NewProfileService creates a ProfileService
func NewProfileService(profiles *ProfileRepository, logger *zap.Logger) *ProfileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileService{profiles: profiles, logger: logger}
}

// View returns the dashboard for the session's user. A missing profile is
// not an error: it renders as zero points and no badges.
func (s *ProfileService) View(ctx context.Context, session models.Session) (*ProfileView, error) {
	if session.SubjectID == "" {
		return nil, NewUnauthorizedError("sign in required")
	}

	profile, err := s.profiles.Get(ctx, session.SubjectID)
	switch {
	case err == nil:
		return BuildProfileView(profile, true), nil
	case errors.Is(err, store.ErrNotFound):
		return BuildProfileView(&models.Profile{
			ID:     session.SubjectID,
			Email:  session.Email,
			Name:   session.Name,
			Role:   session.Role,
			Level:  models.DefaultLevel,
			Badges: []models.BadgeKind{},
		}, false), nil
	default:
		s.logger.Error("Failed to read profile", zap.Error(err), zap.String("subject_id", session.SubjectID))
		return nil, NewStoreError("failed to read profile", err)
	}
}

// BuildProfileView derives the dashboard from a profile
func BuildProfileView(p *models.Profile, stored bool) *ProfileView {
	view := &ProfileView{
		Profile:        p,
		Rank:           models.Rank(p.TotalPoints),
		PointsToNext:   models.NextRankPoints(p.TotalPoints),
		HasStoredData:  stored,
		AvailableGames: models.KnownGameTypes(),
	}

	for _, kind := range models.AllBadgeKinds() {
		earned := p.HasBadge(kind)
		if earned {
			view.EarnedBadges++
		}
		view.Gallery = append(view.Gallery, BadgeSlot{BadgeInfo: kind.Display(), Earned: earned})
	}
	for _, b := range p.Badges {
		if !b.Valid() {
			view.OtherBadges = append(view.OtherBadges, b.Display())
			view.EarnedBadges++
		}
	}
	return view
}
