// Package stacking consolidates the contributions of one target run under
// the bonus-type stacking rules.
package stacking

import (
	"slices"

	"github.com/cory-johannsen/d20sheet/internal/game/change"
)

// Entry is one contribution kept for provenance.
type Entry struct {
	Name  string
	Value float64
	Type  change.BonusType
}

// Bucket is a same-signed sum and the entries that make it up.
type Bucket struct {
	Value   float64
	Sources []Entry
}

func (b *Bucket) add(e Entry) {
	b.Value += e.Value
	b.Sources = append(b.Sources, e)
}

// Totals are the positive and negative buckets of one bonus type.
type Totals struct {
	Positive Bucket
	Negative Bucket
}

// Net returns Positive.Value + Negative.Value.
func (t Totals) Net() float64 { return t.Positive.Value + t.Negative.Value }

// Aggregator accumulates one contiguous target run. The zero value is not
// usable; call New.
type Aggregator struct {
	target  string
	byType  map[change.BonusType]*Totals
	replace *Entry
}

// New returns an Aggregator for target.
func New(target string) *Aggregator {
	return &Aggregator{target: target, byType: make(map[change.BonusType]*Totals)}
}

// Target returns the target the aggregator was created for.
func (a *Aggregator) Target() string { return a.target }

// Add folds r into the run. Zero values are ignored.
//
// Precondition: r.Target equals the aggregator's target.
func (a *Aggregator) Add(r change.Record) {
	if r.Target != a.target {
		panic("stacking: record for " + r.Target + " added to run for " + a.target)
	}
	if r.Value == 0 {
		return
	}
	e := Entry{Name: r.Source.Name, Value: r.Value, Type: r.Type}

	if r.Type == change.Replace {
		if a.replace == nil || e.Value > a.replace.Value {
			a.replace = &e
		}
		return
	}

	t, ok := a.byType[r.Type]
	if !ok {
		t = &Totals{}
		a.byType[r.Type] = t
	}
	if r.Type.Stacks() {
		if e.Value > 0 {
			t.Positive.add(e)
		} else {
			t.Negative.add(e)
		}
		return
	}
	// Typed bonuses keep one winner per sign; ties keep the earlier entry.
	if e.Value > 0 {
		if e.Value > t.Positive.Value {
			t.Positive = Bucket{Value: e.Value, Sources: []Entry{e}}
		}
	} else if e.Value < t.Negative.Value {
		t.Negative = Bucket{Value: e.Value, Sources: []Entry{e}}
	}
}

// Result is the consolidated output of a run.
type Result struct {
	Target string
	// Types lists the non-replace bonus types present, in priority order.
	Types  []change.BonusType
	ByType map[change.BonusType]Totals
	// Positive and Negative merge the winners of every type.
	Positive Bucket
	Negative Bucket
	// Replace is the largest replace value, if any.
	Replace *Entry
}

// Net returns the merged positive plus negative total.
func (r Result) Net() float64 { return r.Positive.Value + r.Negative.Value }

// Result returns the consolidated totals of the run.
func (a *Aggregator) Result() Result {
	res := Result{
		Target: a.target,
		ByType: make(map[change.BonusType]Totals, len(a.byType)),
	}
	for bt, t := range a.byType {
		if len(t.Positive.Sources) == 0 && len(t.Negative.Sources) == 0 {
			continue
		}
		res.Types = append(res.Types, bt)
		res.ByType[bt] = *t
	}
	slices.SortFunc(res.Types, func(x, y change.BonusType) int { return x.Priority() - y.Priority() })
	for _, bt := range res.Types {
		t := res.ByType[bt]
		res.Positive.Value += t.Positive.Value
		res.Positive.Sources = append(res.Positive.Sources, t.Positive.Sources...)
		res.Negative.Value += t.Negative.Value
		res.Negative.Sources = append(res.Negative.Sources, t.Negative.Sources...)
	}
	if a.replace != nil {
		r := *a.replace
		res.Replace = &r
	}
	return res
}

// Aggregate runs records (all sharing one target) through a fresh
// Aggregator.
func Aggregate(records []change.Record) Result {
	if len(records) == 0 {
		return Result{ByType: map[change.BonusType]Totals{}}
	}
	a := New(records[0].Target)
	for _, r := range records {
		a.Add(r)
	}
	return a.Result()
}
