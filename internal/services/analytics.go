package services

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"planethero/internal/cache"
	"planethero/internal/models"

	"go.uber.org/zap"
)

// TopStudentsLimit is how many students ClassSummary ranks
const TopStudentsLimit = 5

// BadgeCount is the number of students holding a badge
type BadgeCount struct {
	Badge   models.BadgeInfo `json:"badge"`
	Holders int              `json:"holders"`
}

// StudentStanding is one row of the class leaderboard
type StudentStanding struct {
	SubjectID   string `json:"subject_id"`
	Name        string `json:"name"`
	TotalPoints int64  `json:"total_points"`
	BadgeCount  int    `json:"badge_count"`
	Rank        string `json:"rank"`
}

// ClassSummary aggregates student profiles for the teacher dashboard
type ClassSummary struct {
	StudentCount  int               `json:"student_count"`
	TotalPoints   int64             `json:"total_points"`
	AveragePoints float64           `json:"average_points"`
	Badges        []BadgeCount      `json:"badges"`
	TopStudents   []StudentStanding `json:"top_students"`
}

// Analytics computes class-wide statistics. Summaries are cached until a
// profile changes or the TTL passes.
type Analytics struct {
	profiles  *ProfileRepository
	cache     cache.Cache
	ttl       time.Duration
	keyPrefix string
	logger    *zap.Logger
}

// NewAnalytics creates an Analytics service. A nil cache disables caching.
func NewAnalytics(profiles *ProfileRepository, c cache.Cache, ttl time.Duration, keyPrefix string, logger *zap.Logger) *Analytics {
	if c == nil {
		c, _ = cache.NewCache(&cache.Config{Provider: "none"}, logger)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analytics{profiles: profiles, cache: c, ttl: ttl, keyPrefix: keyPrefix, logger: logger}
}

func (a *Analytics) summaryKey() string {
	return a.keyPrefix + "analytics:class"
}

// ClassSummary summarises every student profile
func (a *Analytics) ClassSummary(ctx context.Context) (*ClassSummary, error) {
	if raw, found := a.cache.Get(ctx, a.summaryKey()); found {
		var cached ClassSummary
		if err := json.Unmarshal(raw, &cached); err == nil {
			return &cached, nil
		}
	}

	profiles, err := a.profiles.List(ctx)
	if err != nil {
		a.logger.Error("Failed to list profiles for analytics", zap.Error(err))
		return nil, NewStoreError("failed to load profiles", err)
	}
	summary := Summarize(profiles)

	if raw, err := json.Marshal(summary); err == nil {
		if err := a.cache.Set(ctx, a.summaryKey(), raw, a.ttl); err != nil {
			a.logger.Warn("Failed to cache class summary", zap.Error(err))
		}
	}
	return summary, nil
}

// Invalidate drops cached summaries
func (a *Analytics) Invalidate(ctx context.Context) {
	if err := a.cache.DeletePattern(ctx, a.keyPrefix+"analytics:*"); err != nil {
		a.logger.Warn("Failed to invalidate analytics cache", zap.Error(err))
	}
}

// Summarize builds a ClassSummary from profiles. Teachers are skipped.
func Summarize(profiles []*models.Profile) *ClassSummary {
	holders := make(map[models.BadgeKind]int)
	standings := make([]StudentStanding, 0, len(profiles))
	summary := &ClassSummary{}

	for _, p := range profiles {
		if p.Role != models.RoleStudent {
			continue
		}
		summary.StudentCount++
		summary.TotalPoints += p.TotalPoints
		for _, b := range p.Badges {
			holders[b]++
		}
		standings = append(standings, StudentStanding{
			SubjectID:   p.ID,
			Name:        p.Name,
			TotalPoints: p.TotalPoints,
			BadgeCount:  len(p.Badges),
			Rank:        models.Rank(p.TotalPoints),
		})
	}

	if summary.StudentCount > 0 {
		summary.AveragePoints = float64(summary.TotalPoints) / float64(summary.StudentCount)
	}

	for _, kind := range models.AllBadgeKinds() {
		summary.Badges = append(summary.Badges, BadgeCount{Badge: kind.Display(), Holders: holders[kind]})
	}

	sort.SliceStable(standings, func(i, j int) bool {
		if standings[i].TotalPoints != standings[j].TotalPoints {
			return standings[i].TotalPoints > standings[j].TotalPoints
		}
		if standings[i].Name != standings[j].Name {
			return standings[i].Name < standings[j].Name
		}
		return standings[i].SubjectID < standings[j].SubjectID
	})
	if len(standings) > TopStudentsLimit {
		standings = standings[:TopStudentsLimit]
	}
	summary.TopStudents = standings

	return summary
}
