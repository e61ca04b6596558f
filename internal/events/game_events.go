package events

import "time"

const (
	EventGameCompleted = "game.completed"
	EventBadgeAwarded  = "badge.awarded"
)

// GameCompletedEvent is emitted once a completion's points are recorded
type GameCompletedEvent struct {
	BaseEvent
	GameType string `json:"game_type"`
	Score    int64  `json:"score"`
}

// NewGameCompletedEvent creates a new GameCompletedEvent
func NewGameCompletedEvent(subjectID, gameType string, score int64, at time.Time) *GameCompletedEvent {
	return &GameCompletedEvent{
		BaseEvent: newBaseEvent(EventGameCompleted, subjectID, at),
		GameType:  gameType,
		Score:     score,
	}
}

// BadgeAwardedEvent is emitted after a badge append succeeds
type BadgeAwardedEvent struct {
	BaseEvent
	Badge    string `json:"badge"`
	GameType string `json:"game_type"`
}

// NewBadgeAwardedEvent creates a new BadgeAwardedEvent
func NewBadgeAwardedEvent(subjectID, badge, gameType string, at time.Time) *BadgeAwardedEvent {
	return &BadgeAwardedEvent{
		BaseEvent: newBaseEvent(EventBadgeAwarded, subjectID, at),
		Badge:     badge,
		GameType:  gameType,
	}
}
