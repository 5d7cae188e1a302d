package models

import "time"

// ProgressRecord is the persisted progress of a single learner
type ProgressRecord struct {
	TotalPoints      int        `json:"total_points" db:"total_points"`
	StreakDays       int        `json:"streak_days" db:"streak_days"`
	CompletedUnitIDs []string   `json:"completed_unit_ids" db:"completed_unit_ids"` // Membership only, no duplicates
	LastCompletedAt  *time.Time `json:"last_completed_at,omitempty" db:"last_completed_at"`
}

// HasCompleted reports whether unitID is in the completed set
func (r ProgressRecord) HasCompleted(unitID string) bool {
	for _, id := range r.CompletedUnitIDs {
		if id == unitID {
			return true
		}
	}
	return false
}

// CompletedSet returns the completed unit ids as a lookup set
func (r ProgressRecord) CompletedSet() map[string]bool {
	set := make(map[string]bool, len(r.CompletedUnitIDs))
	for _, id := range r.CompletedUnitIDs {
		set[id] = true
	}
	return set
}

// Clone returns a deep copy of the record
func (r ProgressRecord) Clone() ProgressRecord {
	out := r
	if r.CompletedUnitIDs != nil {
		out.CompletedUnitIDs = append([]string(nil), r.CompletedUnitIDs...)
	}
	if r.LastCompletedAt != nil {
		t := *r.LastCompletedAt
		out.LastCompletedAt = &t
	}
	return out
}
