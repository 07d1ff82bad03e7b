package ledger

import (
	"errors"
	"testing"

	"ewaste-backend/internal/apperr"
	"ewaste-backend/internal/models"
)

func TestNextLevelExp(t *testing.T) {
	tests := []struct {
		level int
		want  int
	}{
		{1, 100},
		{2, 282},
		{3, 519},
		{4, 800},
		{10, 3162},
	}

	for _, tt := range tests {
		if got := NextLevelExp(tt.level); got != tt.want {
			t.Errorf("NextLevelExp(%d) = %d, want %d", tt.level, got, tt.want)
		}
	}

	for level := 1; level < 200; level++ {
		if NextLevelExp(level+1) <= NextLevelExp(level) {
			t.Fatalf("NextLevelExp not strictly increasing at level %d", level)
		}
	}
}

// referenceApply is the plain repeated-subtraction definition.
func referenceApply(exp, level, gain int) (int, int) {
	exp += gain
	for {
		need := NextLevelExp(level)
		if exp < need {
			return exp, level
		}
		exp -= need
		level++
	}
}

func TestApplyExpMatchesReference(t *testing.T) {
	for level := 1; level <= 12; level++ {
		for exp := 0; exp < NextLevelExp(level); exp += 37 {
			for _, gain := range []int{0, 1, 30, 50, 99, 100, 500, 2500, 10000} {
				gotExp, gotLevel := ApplyExp(exp, level, gain)
				wantExp, wantLevel := referenceApply(exp, level, gain)
				if gotExp != wantExp || gotLevel != wantLevel {
					t.Fatalf("ApplyExp(%d, %d, %d) = (%d, %d), want (%d, %d)",
						exp, level, gain, gotExp, gotLevel, wantExp, wantLevel)
				}
				if gotExp < 0 {
					t.Fatalf("ApplyExp(%d, %d, %d) left negative exp %d", exp, level, gain, gotExp)
				}
				if gotExp >= NextLevelExp(gotLevel) {
					t.Fatalf("ApplyExp(%d, %d, %d) stopped below a reachable boundary", exp, level, gain)
				}
			}
		}
	}
}

func TestApplyExpBoundaries(t *testing.T) {
	tests := []struct {
		name               string
		exp, level, gain   int
		wantExp, wantLevel int
	}{
		{"just below first boundary", 0, 1, 99, 99, 1},
		{"exactly on first boundary", 0, 1, 100, 0, 2},
		{"crosses two levels", 0, 1, 100 + 282, 0, 3},
		{"negative gain ignored", 50, 1, -20, 50, 1},
		{"carry over", 90, 1, 30, 20, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotExp, gotLevel := ApplyExp(tt.exp, tt.level, tt.gain)
			if gotExp != tt.wantExp || gotLevel != tt.wantLevel {
				t.Errorf("got (%d, %d), want (%d, %d)", gotExp, gotLevel, tt.wantExp, tt.wantLevel)
			}
		})
	}
}

func TestRankBoundaries(t *testing.T) {
	tests := []struct {
		level int
		want  models.Rank
	}{
		{1, models.RankRookie},
		{9, models.RankRookie},
		{10, models.RankPro},
		{14, models.RankPro},
		{15, models.RankExpert},
		{19, models.RankExpert},
		{20, models.RankMaster},
		{80, models.RankMaster},
	}

	for _, tt := range tests {
		if got := DefaultRankPolicy.Rank(tt.level); got != tt.want {
			t.Errorf("Rank(%d) = %s, want %s", tt.level, got, tt.want)
		}
	}
}

func TestRankMonotonic(t *testing.T) {
	order := map[models.Rank]int{
		models.RankRookie: 0,
		models.RankPro:    1,
		models.RankExpert: 2,
		models.RankMaster: 3,
	}
	policies := []RankPolicy{DefaultRankPolicy, {Pro: 5, Expert: 15, Master: 20}, {Expert: 15, Master: 20}}
	for _, p := range policies {
		prev := 0
		for level := 1; level <= 40; level++ {
			cur := order[p.Rank(level)]
			if cur < prev {
				t.Fatalf("policy %+v: rank decreased at level %d", p, level)
			}
			prev = cur
		}
	}
}

func TestAward(t *testing.T) {
	s := models.NewStanding()
	s.Exp = 80

	out := Award(&s, Grant{Points: 15, Exp: 50}, DefaultRankPolicy)

	if s.Points != 15 || s.TotalPoints != 15 {
		t.Errorf("points = %d/%d, want 15/15", s.Points, s.TotalPoints)
	}
	if s.Level != 2 || s.Exp != 30 {
		t.Errorf("level/exp = %d/%d, want 2/30", s.Level, s.Exp)
	}
	if out.LevelsGained != 1 {
		t.Errorf("LevelsGained = %d, want 1", out.LevelsGained)
	}
	if s.Rank != models.RankRookie {
		t.Errorf("rank = %s, want rookie", s.Rank)
	}
}

func TestAwardPromotesRank(t *testing.T) {
	s := models.Standing{Level: 9, Rank: models.RankRookie}
	out := Award(&s, Grant{Exp: NextLevelExp(9)}, DefaultRankPolicy)
	if s.Level != 10 || s.Rank != models.RankPro || !out.RankChanged {
		t.Errorf("got level %d rank %s changed %v, want 10 pro true", s.Level, s.Rank, out.RankChanged)
	}
}

func TestRedeem(t *testing.T) {
	s := models.Standing{Points: 40, TotalPoints: 120, Level: 1}

	if err := Redeem(&s, 50); !errors.Is(err, apperr.ErrInsufficientPoints) {
		t.Fatalf("Redeem over balance error = %v, want ErrInsufficientPoints", err)
	}
	if err := Redeem(&s, 0); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("Redeem zero error = %v, want validation", err)
	}
	if err := Redeem(&s, 30); err != nil {
		t.Fatalf("Redeem() error = %v", err)
	}
	if s.Points != 10 || s.TotalPoints != 120 {
		t.Errorf("points = %d/%d, want 10/120", s.Points, s.TotalPoints)
	}
}
