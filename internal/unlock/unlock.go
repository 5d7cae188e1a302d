// Package unlock derives which catalog units a learner may enter.
//
// The rule is linear: the first unit is always open, every other unit opens
// once the unit before it is completed. Results are computed on demand from
// the current record and are never cached.
package unlock

import "github.com/example/khutwa/pkg/models"

// State is the navigability of one catalog unit
type State struct {
	UnitID    string
	Index     int
	Locked    bool
	Completed bool
}

// Resolve returns the state of every unit in catalog order
func Resolve(units []models.UnitContent, completedIDs []string) []State {
	completed := make(map[string]bool, len(completedIDs))
	for _, id := range completedIDs {
		completed[id] = true
	}

	states := make([]State, len(units))
	for i, u := range units {
		states[i] = State{
			UnitID:    u.ID,
			Index:     i,
			Locked:    i > 0 && !completed[units[i-1].ID],
			Completed: completed[u.ID],
		}
	}
	return states
}

// IsUnlocked reports whether unitID may be entered. Unknown ids are locked.
func IsUnlocked(units []models.UnitContent, completedIDs []string, unitID string) bool {
	for _, s := range Resolve(units, completedIDs) {
		if s.UnitID == unitID {
			return !s.Locked
		}
	}
	return false
}

// Next returns the unit following currentID and whether it is unlocked.
// ok is false when currentID is last or unknown.
func Next(units []models.UnitContent, completedIDs []string, currentID string) (next models.UnitContent, unlocked bool, ok bool) {
	states := Resolve(units, completedIDs)
	for i, u := range units {
		if u.ID != currentID {
			continue
		}
		if i+1 >= len(units) {
			return models.UnitContent{}, false, false
		}
		return units[i+1], !states[i+1].Locked, true
	}
	return models.UnitContent{}, false, false
}

// FirstOpen returns the first unlocked unit that is not yet completed
func FirstOpen(units []models.UnitContent, completedIDs []string) (models.UnitContent, bool) {
	for i, s := range Resolve(units, completedIDs) {
		if !s.Locked && !s.Completed {
			return units[i], true
		}
	}
	return models.UnitContent{}, false
}
