package engine

import (
	"maps"
	"slices"

	"github.com/google/uuid"

	"github.com/cory-johannsen/d20sheet/internal/game/change"
	"github.com/cory-johannsen/d20sheet/internal/game/item"
	"github.com/cory-johannsen/d20sheet/internal/game/sheet"
)

// FeatureSync lists the auto-granted feature items to create and delete.
type FeatureSync struct {
	Create []*item.Feat `json:"create,omitempty"`
	Delete []string     `json:"delete,omitempty"`
}

// Empty reports whether nothing needs to change.
func (f FeatureSync) Empty() bool { return len(f.Create) == 0 && len(f.Delete) == 0 }

// Result is the value object returned by a pass. The caller persists it;
// the engine performs no I/O.
type Result struct {
	PassID      uuid.UUID          `json:"pass_id"`
	CharacterID string             `json:"character_id"`
	Sheet       *sheet.Sheet       `json:"-"`
	Values      map[string]float64 `json:"values"`
	// Diff holds the values that differ from the persisted document.
	Diff          map[string]float64 `json:"diff"`
	Removed       []string           `json:"removed,omitempty"`
	SourceDetails sheet.Details      `json:"source_details"`
	Flags         []change.Flag      `json:"flags,omitempty"`
	Warnings      []Warning          `json:"warnings,omitempty"`
	// Notice is the single user-facing message for dropped changes.
	Notice      string      `json:"notice,omitempty"`
	FeatureSync FeatureSync `json:"feature_sync"`
	HPValue     float64     `json:"hp_value"`
	Records     int         `json:"records"`
}

// Value returns the value at a dotted path.
func (r *Result) Value(path string) float64 { return r.Values[path] }

func diff(prev, next map[string]float64) (changed map[string]float64, removed []string) {
	changed = make(map[string]float64)
	for k, v := range next {
		if old, ok := prev[k]; !ok || old != v {
			changed[k] = v
		}
	}
	for k := range prev {
		if _, ok := next[k]; !ok {
			removed = append(removed, k)
		}
	}
	slices.Sort(removed)
	return changed, removed
}

// Paths returns the dotted paths of the result in lexical order.
func (r *Result) Paths() []string {
	return slices.Sorted(maps.Keys(r.Values))
}
