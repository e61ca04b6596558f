// file: internal/models/models.go
package models

import (
	"time"
)

// ===============================
// CORE ENTITIES
// ===============================

// Role is the access role stored on a profile.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleTeacher
}

// UsersCollection is the document collection holding profiles.
const UsersCollection = "users"

// Persisted field names of a profile document.
const (
	FieldEmail       = "email"
	FieldName        = "name"
	FieldRole        = "role"
	FieldTotalPoints = "totalPoints"
	FieldBadges      = "badges"
	FieldLevel       = "level"
	FieldCreatedAt   = "createdAt"
	FieldLastActive  = "lastActive"
)

// DefaultLevel is the level a new profile starts at.
const DefaultLevel = 1

// Profile is the persisted per-user record of points, badges, role and activity.
type Profile struct {
	ID          string      `json:"id"`
	Email       string      `json:"email"`
	Name        string      `json:"name"`
	Role        Role        `json:"role"`
	TotalPoints int64       `json:"total_points"`
	Badges      []BadgeKind `json:"badges"`
	Level       int         `json:"level"`
	CreatedAt   time.Time   `json:"created_at"`
	LastActive  time.Time   `json:"last_active"`
}

// HasBadge reports whether the badge is in the profile's badge set.
func (p *Profile) HasBadge(kind BadgeKind) bool {
	if p == nil {
		return false
	}
	for _, b := range p.Badges {
		if b == kind {
			return true
		}
	}
	return false
}

// Identity is what the identity resolver yields for an authenticated browser session.
type Identity struct {
	SubjectID   string `json:"subject_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`

	// set when the identity was read from a session token
	TokenID   string    `json:"-"`
	ExpiresAt time.Time `json:"-"`
}

// Session is the explicit per-request view of the signed-in user.
// It is built by the auth middleware and handed to each component that needs it.
type Session struct {
	SubjectID string `json:"subject_id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      Role   `json:"role"`

	TokenID   string    `json:"-"`
	ExpiresAt time.Time `json:"-"`
}

// ===============================
// GAMES
// ===============================

// GameType names one of the mini-games.
type GameType string

const (
	GameWasteSorting GameType = "waste_sorting"
	GameWaterSaver   GameType = "water_saver"
	GamePlantTree    GameType = "plant_tree"
)

// KnownGameTypes lists the playable mini-games.
func KnownGameTypes() []GameType {
	return []GameType{GameWasteSorting, GameWaterSaver, GamePlantTree}
}

// Known reports whether g is a playable mini-game.
func (g GameType) Known() bool {
	switch g {
	case GameWasteSorting, GameWaterSaver, GamePlantTree:
		return true
	}
	return false
}

// CompletionEvent is the single terminal result of a game session.
type CompletionEvent struct {
	GameType GameType `json:"game_type"`
	Score    int64    `json:"score"`
}

// EcoFact is an educational fact shown after a game.
type EcoFact struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// ===============================
// PRESENTATION HELPERS
// ===============================

// Rank returns a display title for a point total. It is derived, never stored.
func Rank(points int64) string {
	switch {
	case points >= 1000:
		return "Forest"
	case points >= 500:
		return "Tree"
	case points >= 250:
		return "Sapling"
	case points >= 100:
		return "Sprout"
	default:
		return "Seedling"
	}
}

// NextRankPoints returns the points still needed to reach the next rank, 0 at the top.
func NextRankPoints(points int64) int64 {
	for _, threshold := range []int64{100, 250, 500, 1000} {
		if points < threshold {
			return threshold - points
		}
	}
	return 0
}
