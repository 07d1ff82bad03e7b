// Package ledger holds the points, experience, level and rank rules. Everything here
// is pure: callers load a Standing, apply a change, and persist it together with the
// Transaction row describing it.
package ledger

import (
	"math"

	"ewaste-backend/internal/apperr"
	"ewaste-backend/internal/models"
)

const (
	BaseExp       = 100
	ExpMultiplier = 1.5
)

// NextLevelExp is the experience needed to leave level.
func NextLevelExp(level int) int {
	if level < 1 {
		level = 1
	}
	return int(math.Floor(BaseExp * math.Pow(float64(level), ExpMultiplier)))
}

// ApplyExp adds gain to exp and levels up while the carried experience covers the
// next boundary. Negative gains are ignored.
func ApplyExp(exp, level, gain int) (int, int) {
	if level < 1 {
		level = 1
	}
	if exp < 0 {
		exp = 0
	}
	if gain > 0 {
		exp += gain
	}
	for exp >= NextLevelExp(level) {
		exp -= NextLevelExp(level)
		level++
	}
	return exp, level
}

// RankPolicy maps levels to rank tiers. A zero threshold disables that tier.
type RankPolicy struct {
	Pro    int
	Expert int
	Master int
}

// DefaultRankPolicy: 10 → pro, 15 → expert, 20 → master.
var DefaultRankPolicy = RankPolicy{Pro: 10, Expert: 15, Master: 20}

func (p RankPolicy) Rank(level int) models.Rank {
	switch {
	case p.Master > 0 && level >= p.Master:
		return models.RankMaster
	case p.Expert > 0 && level >= p.Expert:
		return models.RankExpert
	case p.Pro > 0 && level >= p.Pro:
		return models.RankPro
	default:
		return models.RankRookie
	}
}

// Grant is one reward amount.
type Grant struct {
	Points int
	Exp    int
}

// Rewards is the settlement configuration. Citizen-approve and auto-confirm use the
// same values.
type Rewards struct {
	Citizen   Grant
	Volunteer Grant
	Report    Grant
}

// DefaultRewards follows the citizen-approve path: the volunteer earns 15 points and
// 50 exp per confirmed task.
var DefaultRewards = Rewards{
	Citizen:   Grant{Points: 10, Exp: 30},
	Volunteer: Grant{Points: 15, Exp: 50},
	Report:    Grant{Points: 10},
}

// Outcome describes what an Award changed.
type Outcome struct {
	LevelsGained int
	RankChanged  bool
}

// Award credits a grant to s: points count toward both the spendable and lifetime
// totals, exp runs through the level-up loop and rank is recomputed.
func Award(s *models.Standing, g Grant, policy RankPolicy) Outcome {
	if s.Level < 1 {
		s.Level = 1
	}
	if g.Points > 0 {
		s.Points += g.Points
		s.TotalPoints += g.Points
	}
	before := s.Level
	prevRank := s.Rank
	s.Exp, s.Level = ApplyExp(s.Exp, s.Level, g.Exp)
	s.Rank = policy.Rank(s.Level)
	return Outcome{LevelsGained: s.Level - before, RankChanged: s.Rank != prevRank}
}

// Redeem spends points. Lifetime totals are untouched.
func Redeem(s *models.Standing, cost int) error {
	if cost <= 0 {
		return apperr.Validation("redemption cost must be positive")
	}
	if s.Points < cost {
		return apperr.ErrInsufficientPoints
	}
	s.Points -= cost
	return nil
}

// Progress is the level progress shown on profiles.
type Progress struct {
	Level        int         `json:"level"`
	Exp          int         `json:"exp"`
	NextLevelExp int         `json:"next_level_exp"`
	Rank         models.Rank `json:"rank"`
}

func ProgressOf(s models.Standing) Progress {
	return Progress{Level: s.Level, Exp: s.Exp, NextLevelExp: NextLevelExp(s.Level), Rank: s.Rank}
}
