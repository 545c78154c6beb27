package engine

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/d20sheet/internal/game/change"
	"github.com/cory-johannsen/d20sheet/internal/game/formula"
	"github.com/cory-johannsen/d20sheet/internal/game/sheet"
	"github.com/cory-johannsen/d20sheet/internal/game/stacking"
	"github.com/cory-johannsen/d20sheet/internal/game/target"
)

// delta is the consolidated contribution to one concrete path within a run.
type delta struct {
	Positive float64
	Negative float64
	Sources  []stacking.Entry
}

func (d *delta) net() float64 { return d.Positive + d.Negative }

// apply sorts the records and folds each contiguous target run into the
// sheet.
func (p *pass) apply() {
	change.Sort(p.records, target.Ranker{})
	for _, run := range change.Runs(p.records) {
		p.applyRun(run)
	}
	p.forceSpeeds()
}

// forceSpeeds sets every replaced speed to its replacement, discarding the
// additive speed bonuses of every run, allSpeeds included.
func (p *pass) forceSpeeds() {
	for _, mode := range sheet.Speeds {
		if r := p.s.Get(sheet.Of(sheet.SpeedReplace, mode)); r != 0 {
			p.s.Set(sheet.Of(sheet.SpeedTotal, mode), r)
		}
	}
}

func (p *pass) applyRun(run []change.Record) {
	tgt := run[0].Target
	spec, ok := target.Lookup(tgt)
	if !ok {
		panic("engine: record with unknown target " + tgt + " reached apply")
	}
	live := formula.Masked{Scope: p.s, Prefixes: spec.Masks}

	agg := stacking.New(tgt)
	for _, r := range run {
		scope := formula.Layered{p.itemValues[r.Source.ItemID], live, p.ambient}
		v, ok := p.evaluate(r.Formula, scope, p.recordSeed(r), r.Source.Name, tgt)
		if !ok || v == 0 {
			continue
		}
		agg.Add(r.WithValue(v))
	}
	res := agg.Result()
	if len(res.Types) == 0 && res.Replace == nil {
		return
	}
	p.fold(tgt, res)

	switch {
	case target.IsAbility(tgt):
		p.refreshAbility(tgt)
		p.syncDependents()
	case tgt == "bab":
		p.syncDependents()
	}
}

func (p *pass) recordSeed(r change.Record) uint64 {
	return p.seed(r.Source.ItemID, r.Source.Name, r.Target, r.Formula)
}

// consolidate maps each bonus type's totals onto its concrete paths. The
// returned order is the first-seen order of the paths.
func (p *pass) consolidate(tgt string, res stacking.Result) (map[sheet.Path]*delta, []sheet.Path) {
	deltas := make(map[sheet.Path]*delta)
	var order []sheet.Path
	for _, bt := range res.Types {
		paths, err := target.Resolve(tgt, bt, p.s)
		if err != nil {
			p.unresolved(err, sourceNames(res.ByType[bt]), tgt)
			continue
		}
		t := res.ByType[bt]
		for _, path := range paths {
			d, ok := deltas[path]
			if !ok {
				d = &delta{}
				deltas[path] = d
				order = append(order, path)
			}
			d.Positive += t.Positive.Value
			d.Negative += t.Negative.Value
			d.Sources = append(d.Sources, t.Positive.Sources...)
			d.Sources = append(d.Sources, t.Negative.Sources...)
		}
	}
	return deltas, order
}

func sourceNames(t stacking.Totals) string {
	if len(t.Positive.Sources) > 0 {
		return t.Positive.Sources[0].Name
	}
	if len(t.Negative.Sources) > 0 {
		return t.Negative.Sources[0].Name
	}
	return ""
}

// governed returns the total a replace path overrides, and whether
// additive contributions still apply on top of the replacement.
func governed(replace sheet.Path) (sheet.Path, bool, bool) {
	switch replace.Attr {
	case sheet.AbilityReplace:
		return sheet.Of(sheet.AbilityTotal, replace.Key), true, true
	case sheet.SpeedReplace:
		return sheet.Of(sheet.SpeedTotal, replace.Key), false, true
	case sheet.BABReplace:
		return sheet.At(sheet.BAB), false, true
	}
	return sheet.Path{}, false, false
}

// fold writes the run's consolidated deltas into the sheet exactly once per
// path, then applies any replacement.
func (p *pass) fold(tgt string, res stacking.Result) {
	s := p.s
	deltas, order := p.consolidate(tgt, res)

	var replacePaths []sheet.Path
	before := map[sheet.Path]float64{}
	if res.Replace != nil {
		paths, err := target.Resolve(tgt, change.Replace, s)
		if err != nil {
			p.unresolved(err, res.Replace.Name, tgt)
		}
		replacePaths = paths
		for _, rp := range paths {
			if gov, _, ok := governed(rp); ok {
				before[gov] = s.Get(gov)
			}
		}
	}

	for _, path := range order {
		d := deltas[path]
		s.Add(path, d.net())
		name := path.String()
		for _, e := range d.Sources {
			p.details.Add(name, sheet.SourceDetail{Name: e.Name, Value: e.Value, Note: e.Type.Label()})
		}
	}
	if target.IsAbility(tgt) {
		s.Set(sheet.Of(sheet.AbilityOrigTotal, tgt), s.Get(sheet.Of(sheet.AbilityTotal, tgt)))
	}

	for _, rp := range replacePaths {
		r := res.Replace
		s.Set(rp, r.Value)
		gov, additive, ok := governed(rp)
		if !ok {
			continue
		}
		v := r.Value
		if additive {
			v += s.Get(gov) - before[gov]
		}
		s.Set(gov, v)
		p.details.Add(gov.String(), sheet.SourceDetail{Name: r.Name, Value: r.Value, Note: change.Replace.Label()})
		p.e.logger.Debug("replace applied",
			zap.String("character", p.c.ID),
			zap.String("target", tgt),
			zap.String("source", r.Name),
			zap.Float64("value", r.Value),
		)
	}
}
