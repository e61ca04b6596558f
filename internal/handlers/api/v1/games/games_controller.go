// ===============================
// FILE: internal/handlers/api/v1/games/games_controller.go
// ===============================

package games

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"planethero/internal/contextutils"
	"planethero/internal/games"
	"planethero/internal/models"
	"planethero/internal/response"
	"planethero/internal/services"
	"planethero/internal/validation"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 10

// Runner tracks the active game of each subject
type Runner interface {
	Start(subjectID string, gameType models.GameType) (*games.Session, error)
	Finish(subjectID, sessionID string, score int64) (models.CompletionEvent, error)
	Abandon(subjectID, sessionID string) error
	Active(subjectID string) (*games.Session, bool)
}

// FactSource supplies the fact shown when a completion could not be recorded
type FactSource interface {
	Pick() models.EcoFact
}

// CompleteRequest is the body of a game completion
type CompleteRequest struct {
	Score int64 `json:"score" validate:"gte=0,lte=100000"`
}

// CompletionResponse reports what a finished game changed
type CompletionResponse struct {
	Recorded       bool              `json:"recorded"`
	PointsRecorded bool              `json:"points_recorded"`
	GameType       models.GameType   `json:"game_type"`
	Score          int64             `json:"score"`
	BadgeAwarded   bool              `json:"badge_awarded"`
	Badge          *models.BadgeInfo `json:"badge,omitempty"`
	Fact           models.EcoFact    `json:"fact"`
	TotalPoints    *int64            `json:"total_points,omitempty"`
	Rank           string            `json:"rank,omitempty"`
	Message        string            `json:"message,omitempty"`
}

// GameInfo describes a playable game and the badge it can earn
type GameInfo struct {
	services.AwardRule
	Active *games.Session `json:"active,omitempty"`
}

// GamesController exposes the game session lifecycle
type GamesController struct {
	runner          Runner
	completion      services.CompletionService
	facts           FactSource
	responseBuilder *response.Builder
	logger          *zap.Logger
}

// NewGamesController creates the games controller
func NewGamesController(runner Runner, completion services.CompletionService, facts FactSource, responseBuilder *response.Builder, logger *zap.Logger) *GamesController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GamesController{
		runner:          runner,
		completion:      completion,
		facts:           facts,
		responseBuilder: responseBuilder,
		logger:          logger,
	}
}

// ListGames returns every game with its badge threshold - GET /api/v1/games
func (c *GamesController) ListGames(w http.ResponseWriter, r *http.Request) {
	session, ok := c.session(w, r)
	if !ok {
		return
	}

	active, _ := c.runner.Active(session.SubjectID)
	rules := services.AwardRules()
	out := make([]GameInfo, 0, len(rules))
	for _, rule := range rules {
		info := GameInfo{AwardRule: rule}
		if active != nil && active.GameType == rule.GameType {
			info.Active = active
		}
		out = append(out, info)
	}
	c.responseBuilder.WriteSuccess(w, r, out)
}

// StartGame opens a game session - POST /api/v1/games/{gameType}/sessions
func (c *GamesController) StartGame(w http.ResponseWriter, r *http.Request) {
	session, ok := c.session(w, r)
	if !ok {
		return
	}

	gameType := mux.Vars(r)["gameType"]
	if err := validation.ValidateVar("game_type", gameType, "required,gametype"); err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	started, err := c.runner.Start(session.SubjectID, models.GameType(gameType))
	if err != nil {
		c.responseBuilder.WriteError(w, r, runnerError(err))
		return
	}

	c.responseBuilder.WriteCreated(w, r, started)
}

// CompleteGame finishes the session and records the score -
// POST /api/v1/games/sessions/{id}/complete
func (c *GamesController) CompleteGame(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	session, ok := c.session(w, r)
	if !ok {
		return
	}
	logger := contextutils.GetLogger(r.Context(), c.logger)
	sessionID := mux.Vars(r)["id"]

	var req CompleteRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		c.responseBuilder.WriteError(w, r, services.NewValidationError("Invalid request body", err))
		return
	}
	if err := validation.ValidateStruct(&req); err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	event, err := c.runner.Finish(session.SubjectID, sessionID, req.Score)
	if err != nil {
		c.responseBuilder.WriteError(w, r, runnerError(err))
		return
	}

	outcome, err := c.completion.CompleteGame(ctx, session.SubjectID, event.GameType, event.Score)
	if err != nil {
		if !services.IsStoreError(err) {
			c.responseBuilder.WriteError(w, r, err)
			return
		}

		// the session is already closed, so answer 202 with a fact
		serviceErr := services.GetServiceError(err)
		pointsRecorded, _ := serviceErr.Details["points_recorded"].(bool)
		logger.Warn("Game completion not fully recorded",
			zap.String("game_type", string(event.GameType)),
			zap.Int64("score", event.Score),
			zap.Bool("points_recorded", pointsRecorded),
		)
		c.responseBuilder.WriteAccepted(w, r, &CompletionResponse{
			Recorded:       false,
			PointsRecorded: pointsRecorded,
			GameType:       event.GameType,
			Score:          event.Score,
			Fact:           c.facts.Pick(),
			Message:        "Your progress could not be saved right now",
		})
		return
	}

	resp := &CompletionResponse{
		Recorded:       true,
		PointsRecorded: true,
		GameType:       outcome.GameType,
		Score:          outcome.PointsAdded,
		BadgeAwarded:   outcome.BadgeAwarded,
		Fact:           outcome.Fact,
	}
	if outcome.BadgeAwarded {
		info := outcome.Badge.Display()
		resp.Badge = &info
	}
	if outcome.Profile != nil {
		total := outcome.Profile.TotalPoints
		resp.TotalPoints = &total
		resp.Rank = models.Rank(total)
	}

	c.responseBuilder.WriteSuccess(w, r, resp)
}

// AbandonGame discards the session - DELETE /api/v1/games/sessions/{id}
func (c *GamesController) AbandonGame(w http.ResponseWriter, r *http.Request) {
	session, ok := c.session(w, r)
	if !ok {
		return
	}

	if err := c.runner.Abandon(session.SubjectID, mux.Vars(r)["id"]); err != nil {
		c.responseBuilder.WriteError(w, r, runnerError(err))
		return
	}

	c.responseBuilder.WriteSuccess(w, r, map[string]bool{"abandoned": true})
}

// ===============================
// HELPERS
// ===============================

func (c *GamesController) session(w http.ResponseWriter, r *http.Request) (models.Session, bool) {
	session, ok := contextutils.SessionFrom(r.Context())
	if !ok {
		c.responseBuilder.WriteError(w, r, services.NewUnauthorizedError("Authentication required"))
	}
	return session, ok
}

// runnerError maps game runner failures to API errors
func runnerError(err error) error {
	switch {
	case errors.Is(err, games.ErrUnknownGame), errors.Is(err, games.ErrInvalidScore):
		return services.NewValidationError(err.Error(), err)
	case errors.Is(err, games.ErrGameInProgress):
		return services.NewConflictError("Another game is already in progress", "GAME_IN_PROGRESS")
	case errors.Is(err, games.ErrSessionMismatch):
		return services.NewConflictError("The game session is not the active one", "SESSION_MISMATCH")
	case errors.Is(err, games.ErrNoActiveGame):
		return services.NewNotFoundError("No active game session")
	default:
		return services.NewInternalError(err.Error())
	}
}
