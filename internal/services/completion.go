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
	"golang.org/x/exp/slices"
)

// ===============================
// AWARD RULE
// ===============================

// AwardFor returns the badge a completion earns, if any. Unknown game types
// earn nothing.
func AwardFor(gameType models.GameType, score int64) (models.BadgeKind, bool) {
	switch gameType {
	case models.GameWasteSorting:
		if score >= 50 {
			return models.BadgeWasteWarrior, true
		}
	case models.GameWaterSaver:
		if score >= 25 {
			return models.BadgeWaterSaver, true
		}
	case models.GamePlantTree:
		if score >= 100 {
			return models.BadgeGreenThumb, true
		}
	}
	return "", false
}

// AwardRule describes the score a game needs to earn its badge
type AwardRule struct {
	GameType models.GameType  `json:"game_type"`
	Badge    models.BadgeInfo `json:"badge"`
	MinScore int64            `json:"min_score"`
}

// AwardRules lists the badge threshold of every playable game
func AwardRules() []AwardRule {
	return []AwardRule{
		{GameType: models.GameWasteSorting, Badge: models.BadgeWasteWarrior.Display(), MinScore: 50},
		{GameType: models.GameWaterSaver, Badge: models.BadgeWaterSaver.Display(), MinScore: 25},
		{GameType: models.GamePlantTree, Badge: models.BadgeGreenThumb.Display(), MinScore: 100},
	}
}

// ===============================
// COMPLETION HANDLER
// ===============================

// CompletionOutcome describes what a completed game changed
type CompletionOutcome struct {
	SubjectID    string           `json:"subject_id"`
	GameType     models.GameType  `json:"game_type"`
	PointsAdded  int64            `json:"points_added"`
	Badge        models.BadgeKind `json:"badge,omitempty"`
	BadgeAwarded bool             `json:"badge_awarded"`
	Fact         models.EcoFact   `json:"fact"`
	Profile      *models.Profile  `json:"profile,omitempty"`
}

// CompletionHandler applies a finished game to the player's profile.
//
// The badge check uses the profile read before the points increment. Two
// concurrent qualifying completions may both see the badge as missing and
// both append it; AppendToSet's set semantics keep the badge unique.
type CompletionHandler struct {
	store    store.DocumentStore
	profiles *ProfileRepository
	events   events.EventBus
	facts    *FactPicker
	now      func() time.Time
	logger   *zap.Logger
}

// NewCompletionHandler creates a CompletionHandler
func NewCompletionHandler(st store.DocumentStore, profiles *ProfileRepository, bus events.EventBus, facts *FactPicker, logger *zap.Logger) *CompletionHandler {
	if facts == nil {
		facts = NewFactPicker(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CompletionHandler{
		store:    st,
		profiles: profiles,
		events:   bus,
		facts:    facts,
		now:      time.Now,
		logger:   logger,
	}
}

// CompleteGame records score for subjectID and awards the game's badge when
// the threshold is met. The first store failure stops the remaining writes
// and is returned as a STORE_ERROR; nothing already written is rolled back.
func (h *CompletionHandler) CompleteGame(ctx context.Context, subjectID string, gameType models.GameType, score int64) (*CompletionOutcome, error) {
	if strings.TrimSpace(subjectID) == "" {
		return nil, NewValidationError("subject id is required", nil)
	}
	if score < 0 {
		return nil, NewValidationError("score must not be negative", nil).WithDetail("score", score)
	}

	log := h.logger.With(
		zap.String("subject_id", subjectID),
		zap.String("game_type", string(gameType)),
		zap.Int64("score", score))

	pre, err := h.store.GetDocument(ctx, models.UsersCollection, subjectID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		log.Error("Failed to read profile before completion", zap.Error(err))
		return nil, NewStoreError("failed to read profile", err)
	}

	if err := h.store.IncrementField(ctx, models.UsersCollection, subjectID, models.FieldTotalPoints, score); err != nil {
		log.Error("Failed to record points", zap.Error(err))
		return nil, NewStoreError("failed to record points", err)
	}

	touch := map[string]interface{}{models.FieldLastActive: h.now()}
	if err := h.store.SetDocument(ctx, models.UsersCollection, subjectID, touch, true); err != nil {
		log.Error("Failed to refresh last active after recording points", zap.Error(err))
		h.profiles.Invalidate(ctx, subjectID)
		return nil, NewStoreError("failed to update profile", err).WithDetail("points_recorded", true)
	}

	h.publish(ctx, events.NewGameCompletedEvent(subjectID, string(gameType), score, h.now()))

	outcome := &CompletionOutcome{
		SubjectID:   subjectID,
		GameType:    gameType,
		PointsAdded: score,
	}

	if badge, ok := AwardFor(gameType, score); ok {
		outcome.Badge = badge
		if !slices.Contains(pre.Strings(models.FieldBadges), string(badge)) {
			if err := h.store.AppendToSet(ctx, models.UsersCollection, subjectID, models.FieldBadges, string(badge)); err != nil {
				log.Error("Failed to award badge after recording points",
					zap.String("badge", string(badge)),
					zap.Error(err))
				h.profiles.Invalidate(ctx, subjectID)
				return nil, NewStoreError("failed to award badge", err).WithDetail("points_recorded", true)
			}
			outcome.BadgeAwarded = true
			h.publish(ctx, events.NewBadgeAwardedEvent(subjectID, string(badge), string(gameType), h.now()))
		}
	}

	outcome.Fact = h.facts.Pick()

	profile, err := h.profiles.Refresh(ctx, subjectID)
	if err != nil {
		log.Warn("Failed to re-read profile after completion", zap.Error(err))
		h.profiles.Invalidate(ctx, subjectID)
	} else {
		outcome.Profile = profile
	}

	log.Info("Game completion recorded",
		zap.Bool("badge_awarded", outcome.BadgeAwarded),
		zap.String("badge", string(outcome.Badge)))

	return outcome, nil
}

func (h *CompletionHandler) publish(ctx context.Context, event events.Event) {
	if h.events == nil {
		return
	}
	if err := h.events.Publish(ctx, event); err != nil {
		h.logger.Warn("Failed to publish event",
			zap.String("event_type", event.GetEventType()),
			zap.String("subject_id", event.GetSubjectID()),
			zap.Error(err))
	}
}
