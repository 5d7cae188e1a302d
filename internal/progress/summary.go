package progress

import "github.com/example/khutwa/pkg/models"

// pointsPerLevel is the number of points needed to gain a level
const pointsPerLevel = 20

// Badge is an achievement shown on the progress screen
type Badge struct {
	ID          string
	Title       string
	Icon        string
	Requirement string
	Earned      bool
}

// Summary is the derived view of a progress record
type Summary struct {
	TotalPoints   int
	StreakDays    int
	Completed     int
	TotalUnits    int
	Level         int
	NextLevelAt   int     // Points needed to reach the next level
	LevelProgress float64 // Percent of the way through the current level
	Badges        []Badge
}

// Summarize computes level and badges for record against a catalog of
// totalUnits units
func Summarize(record models.ProgressRecord, totalUnits int) Summary {
	level := record.TotalPoints/pointsPerLevel + 1

	s := Summary{
		TotalPoints:   record.TotalPoints,
		StreakDays:    record.StreakDays,
		Completed:     len(record.CompletedUnitIDs),
		TotalUnits:    totalUnits,
		Level:         level,
		NextLevelAt:   level * pointsPerLevel,
		LevelProgress: float64(record.TotalPoints%pointsPerLevel) / pointsPerLevel * 100,
	}

	s.Badges = []Badge{
		{ID: "active", Title: "متعلم نشيط", Icon: "🏅", Requirement: "10 نقاط", Earned: record.TotalPoints >= 10},
		{ID: "reader", Title: "قارئ صغير", Icon: "📚", Requirement: "50 نقطة", Earned: record.TotalPoints >= 50},
		{ID: "outstanding", Title: "متفوق", Icon: "⭐", Requirement: "100 نقطة", Earned: record.TotalPoints >= 100},
		{ID: "persistent", Title: "مثابر", Icon: "🔥", Requirement: "7 أيام متتالية", Earned: record.StreakDays >= 7},
		{ID: "champion", Title: "بطل القراءة", Icon: "🏆", Requirement: "أكمل جميع الدروس",
			Earned: totalUnits > 0 && s.Completed >= totalUnits},
	}
	return s
}

// EarnedBadges returns only the badges already earned
func (s Summary) EarnedBadges() []Badge {
	var out []Badge
	for _, b := range s.Badges {
		if b.Earned {
			out = append(out, b)
		}
	}
	return out
}
