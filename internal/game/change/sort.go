package change

import (
	"cmp"
	"slices"
)

// Rank places a target in the pass order: Category first, then Index within
// the category. Targets the ranker does not know sort after all known ones.
type Rank struct {
	Category int
	Index    int
}

// Ranker ranks symbolic targets.
type Ranker interface {
	Rank(target string) (Rank, bool)
}

// Sort orders records for application: category, target index, target name,
// bonus-type priority, then source name, item id and formula. Records are
// sorted before evaluation, so values play no part.
// Records sharing a target end up contiguous, and the order never depends
// on the input order.
func Sort(records []Record, ranker Ranker) {
	unknown := Rank{Category: 1 << 30}
	rank := func(t string) Rank {
		if r, ok := ranker.Rank(t); ok {
			return r
		}
		return unknown
	}
	slices.SortStableFunc(records, func(a, b Record) int {
		ra, rb := rank(a.Target), rank(b.Target)
		return cmp.Or(
			cmp.Compare(ra.Category, rb.Category),
			cmp.Compare(ra.Index, rb.Index),
			cmp.Compare(a.Target, b.Target),
			cmp.Compare(a.Type.Priority(), b.Type.Priority()),
			cmp.Compare(a.Source.Name, b.Source.Name),
			cmp.Compare(a.Source.ItemID, b.Source.ItemID),
			cmp.Compare(a.Formula, b.Formula),
		)
	})
}

// Runs splits sorted records into contiguous same-target runs.
func Runs(records []Record) [][]Record {
	var out [][]Record
	for i := 0; i < len(records); {
		j := i + 1
		for j < len(records) && records[j].Target == records[i].Target {
			j++
		}
		out = append(out, records[i:j])
		i = j
	}
	return out
}
