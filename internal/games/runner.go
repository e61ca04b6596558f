// Package games runs mini-game sessions. Each subject may have one active
// game at a time, and every session yields at most one completion event.
package games

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"planethero/internal/models"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"
)

var (
	ErrUnknownGame     = errors.New("games: unknown game type")
	ErrGameInProgress  = errors.New("games: another game is already in progress")
	ErrNoActiveGame    = errors.New("games: no active game")
	ErrSessionMismatch = errors.New("games: session does not match the active game")
	ErrInvalidScore    = errors.New("games: score must not be negative")
)

// DefaultMaxAge is used when the runner is built with a non-positive max age.
const DefaultMaxAge = 30 * time.Minute

// Session is one running mini-game.
type Session struct {
	ID        string          `json:"id"`
	SubjectID string          `json:"subject_id"`
	GameType  models.GameType `json:"game_type"`
	StartedAt time.Time       `json:"started_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// Runner tracks active game sessions in memory.
type Runner struct {
	mu       sync.Mutex
	sessions map[string]*Session // keyed by subject id
	maxAge   time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// NewRunner creates a Runner whose sessions expire after maxAge
func NewRunner(maxAge time.Duration, logger *zap.Logger) *Runner {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		sessions: make(map[string]*Session),
		maxAge:   maxAge,
		now:      time.Now,
		logger:   logger,
	}
}

// Start opens a session for subjectID. An expired session is discarded first.
func (r *Runner) Start(subjectID string, gameType models.GameType) (*Session, error) {
	if !gameType.Known() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGame, gameType)
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session id: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if current := r.activeLocked(subjectID, now); current != nil {
		return nil, ErrGameInProgress
	}

	s := &Session{
		ID:        id.String(),
		SubjectID: subjectID,
		GameType:  gameType,
		StartedAt: now,
		ExpiresAt: now.Add(r.maxAge),
	}
	r.sessions[subjectID] = s

	r.logger.Debug("Game session started",
		zap.String("subject_id", subjectID),
		zap.String("session_id", s.ID),
		zap.String("game_type", string(gameType)))

	out := *s
	return &out, nil
}

// Finish ends the session and returns its completion event. The session is
// torn down, so a second Finish returns ErrNoActiveGame.
func (r *Runner) Finish(subjectID, sessionID string, score int64) (models.CompletionEvent, error) {
	if score < 0 {
		return models.CompletionEvent{}, ErrInvalidScore
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.activeLocked(subjectID, r.now())
	if current == nil {
		return models.CompletionEvent{}, ErrNoActiveGame
	}
	if current.ID != sessionID {
		return models.CompletionEvent{}, ErrSessionMismatch
	}

	delete(r.sessions, subjectID)
	return models.CompletionEvent{GameType: current.GameType, Score: score}, nil
}

// Abandon discards the session without committing a score
func (r *Runner) Abandon(subjectID, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.activeLocked(subjectID, r.now())
	if current == nil {
		return ErrNoActiveGame
	}
	if current.ID != sessionID {
		return ErrSessionMismatch
	}

	delete(r.sessions, subjectID)
	r.logger.Debug("Game session abandoned",
		zap.String("subject_id", subjectID),
		zap.String("session_id", sessionID))
	return nil
}

// Active returns the subject's current session, if any
func (r *Runner) Active(subjectID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.activeLocked(subjectID, r.now())
	if current == nil {
		return nil, false
	}
	out := *current
	return &out, true
}

// Sweep removes every expired session and returns how many were removed
func (r *Runner) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	removed := 0
	for subjectID, s := range r.sessions {
		if !now.Before(s.ExpiresAt) {
			delete(r.sessions, subjectID)
			removed++
		}
	}
	return removed
}

// activeLocked must be called with r.mu held
func (r *Runner) activeLocked(subjectID string, now time.Time) *Session {
	s, ok := r.sessions[subjectID]
	if !ok {
		return nil
	}
	if !now.Before(s.ExpiresAt) {
		delete(r.sessions, subjectID)
		r.logger.Debug("Expired game session discarded",
			zap.String("subject_id", subjectID),
			zap.String("session_id", s.ID))
		return nil
	}
	return s
}
