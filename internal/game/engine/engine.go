// Package engine recomputes a character's derived sheet from its raw
// document, its items and the ruleset.
package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/cory-johannsen/d20sheet/internal/game/change"
	"github.com/cory-johannsen/d20sheet/internal/game/character"
	"github.com/cory-johannsen/d20sheet/internal/game/condition"
	"github.com/cory-johannsen/d20sheet/internal/game/formula"
	"github.com/cory-johannsen/d20sheet/internal/game/item"
	"github.com/cory-johannsen/d20sheet/internal/game/ruleset"
	"github.com/cory-johannsen/d20sheet/internal/game/sheet"
)

const tracerName = "github.com/cory-johannsen/d20sheet/internal/game/engine"

// Engine runs recompute passes. It is safe for concurrent use; each pass
// owns its own working sheet.
type Engine struct {
	cfg        Config
	rules      *ruleset.Registry
	conditions *condition.Registry
	eval       *formula.Evaluator
	context    ContextProvider
	logger     *zap.Logger
	tracer     trace.Tracer
}

// Option configures an Engine.
type Option func(*Engine)

// WithEvaluator replaces the default formula evaluator.
func WithEvaluator(ev *formula.Evaluator) Option { return func(e *Engine) { e.eval = ev } }

// WithContextProvider replaces DefaultContext.
func WithContextProvider(cp ContextProvider) Option { return func(e *Engine) { e.context = cp } }

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithTracer sets the tracer used for pass spans.
func WithTracer(t trace.Tracer) Option { return func(e *Engine) { e.tracer = t } }

// New returns an Engine.
//
// Precondition: rules and conditions must be non-nil.
func New(cfg Config, rules *ruleset.Registry, conditions *condition.Registry, opts ...Option) *Engine {
	if rules == nil || conditions == nil {
		panic("engine.New: precondition violated: rules and conditions must be non-nil")
	}
	e := &Engine{
		cfg:        cfg,
		rules:      rules,
		conditions: conditions,
		context:    DefaultContext{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.eval == nil {
		e.eval = formula.New(formula.WithLogger(e.logger))
	}
	if e.tracer == nil {
		e.tracer = otel.Tracer(tracerName)
	}
	return e
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// Evaluator returns the formula evaluator used by passes.
func (e *Engine) Evaluator() *formula.Evaluator { return e.eval }

// Input is the raw data of one pass.
type Input struct {
	Character *character.Character
	// Master is the linked master of a minion, if any.
	Master *character.Character
}

// Recompute derives the full sheet for in.Character. It performs no I/O and
// does not mutate its input; ctx is used for tracing only.
func (e *Engine) Recompute(ctx context.Context, in Input) (*Result, error) {
	if in.Character == nil {
		return nil, errors.New("recompute: character must not be nil")
	}
	_, span := e.tracer.Start(ctx, "engine.Recompute",
		trace.WithAttributes(attribute.String("character.id", in.Character.ID)))
	defer span.End()

	p := newPass(e, in)
	p.prepare()
	p.baseline()
	p.extract()
	p.apply()
	p.finalize()

	res := p.result()
	span.SetAttributes(
		attribute.String("pass.id", res.PassID.String()),
		attribute.Int("records", res.Records),
		attribute.Int("warnings", len(res.Warnings)),
		attribute.Int("features.create", len(res.FeatureSync.Create)),
		attribute.Int("features.delete", len(res.FeatureSync.Delete)),
	)
	if res.Notice != "" {
		span.SetStatus(codes.Error, res.Notice)
	}
	e.logger.Debug("recompute pass",
		zap.String("pass_id", res.PassID.String()),
		zap.String("character", in.Character.ID),
		zap.Int("records", res.Records),
		zap.Int("warnings", len(res.Warnings)),
	)
	return res, nil
}

// classInfo is a held class with its template merged in.
type classInfo struct {
	item     *item.Class
	template *ruleset.Class
	prog     ruleset.Progression
	name     string
}

// pass is the state of one recompute. It is owned by a single goroutine.
type pass struct {
	e      *Engine
	c      *character.Character
	master *character.Character

	s       *sheet.Sheet
	details sheet.Details
	flags   change.Flags

	conds       *condition.ActiveSet
	polymorphed bool
	size        ruleset.Size
	classes     []classInfo
	race        *ruleset.Race

	ambient    formula.Values
	itemValues map[string]formula.Values
	records    []change.Record

	warnings []Warning
	// dropped counts records lost to formula or dependency failures.
	dropped int
	// maxDex is the lowest armor cap, nil when uncapped.
	maxDex *float64
}

func newPass(e *Engine, in Input) *pass {
	return &pass{
		e:          e,
		c:          in.Character,
		master:     in.Master,
		s:          sheet.New(),
		details:    sheet.Details{},
		flags:      change.Flags{},
		itemValues: make(map[string]formula.Values),
	}
}

// prepare resolves templates, conditions, flags and size: everything the
// baseline needs before any change is evaluated.
func (p *pass) prepare() {
	for _, cl := range p.c.Classes() {
		ci := classInfo{item: cl, name: cl.Name, prog: ruleset.Progression{}.Merge(cl.Progression)}
		if cl.ClassID != "" {
			if tmpl, ok := p.e.rules.Class(cl.ClassID); ok {
				ci.template = tmpl
				ci.prog = tmpl.Progression.Merge(cl.Progression)
				if ci.name == "" {
					ci.name = tmpl.Name
				}
			} else {
				p.warn(Warning{
					Code:    WarnUnknownTemplate,
					Message: fmt.Sprintf("unknown class template %q", cl.ClassID),
					Source:  cl.Name,
				})
			}
		}
		p.classes = append(p.classes, ci)
	}
	if r, ok := p.c.Race(); ok && r.RaceID != "" {
		if tmpl, ok := p.e.rules.Race(r.RaceID); ok {
			p.race = tmpl
		} else {
			p.warn(Warning{
				Code:    WarnUnknownTemplate,
				Message: fmt.Sprintf("unknown race template %q", r.RaceID),
				Source:  r.Name,
			})
		}
	}

	ids := slices.Clone(p.c.Conditions)
	for _, it := range p.c.Items {
		if it.Contributes() {
			ids = append(ids, it.Base().ConditionFlags...)
		}
	}
	p.conds = condition.Resolve(p.e.conditions, ids)
	for _, id := range p.conds.Unknown() {
		p.warn(Warning{Code: WarnUnknownCondition, Message: fmt.Sprintf("unknown condition %q", id)})
	}
	p.polymorphed = condition.Polymorphed(p.conds)
	p.collectFlags()
	p.size = p.effectiveSize()

	p.ambient = p.e.context.Ambient(Env{Character: p.c, Master: p.master, Size: p.size})
	if p.ambient == nil {
		p.ambient = formula.Values{}
	}
	for _, ci := range p.classes {
		if id := ci.item.ClassID; id != "" {
			p.ambient["classes."+id+".level"] += float64(ci.item.Level)
		}
	}
}

// collectFlags unions condition flags and item change flags, and seeds the
// provenance map with their sources.
func (p *pass) collectFlags() {
	for _, def := range p.conds.All() {
		for _, f := range def.Flags {
			p.flags.Set(f)
			p.details.Add(flagPath(f), sheet.SourceDetail{Name: def.Name, Note: change.FlagLabels[f]})
		}
		for _, n := range def.Notes {
			p.details.Add(n.Path, sheet.SourceDetail{Name: def.Name, Note: n.Text})
		}
	}
	for _, it := range p.c.Items {
		if !it.Contributes() {
			continue
		}
		b := it.Base()
		for _, f := range b.ChangeFlags {
			p.flags.Set(f)
			p.details.Add(flagPath(f), sheet.SourceDetail{Name: b.Name, Note: change.FlagLabels[f]})
		}
	}
}

func flagPath(f change.Flag) string { return "flags." + string(f) }

// effectiveSize is the race or document size, overridden by the last active
// buff that sets one.
func (p *pass) effectiveSize() ruleset.Size {
	key := p.c.Size
	if r, ok := p.c.Race(); ok && key == "" {
		key = r.Size
		if key == "" && p.race != nil {
			key = p.race.Size
		}
	}
	for _, it := range p.c.Items {
		if b, ok := it.(*item.Buff); ok && b.Active && b.SizeOverride != "" {
			key = b.SizeOverride
		}
	}
	size, err := ruleset.ParseSize(key)
	if err != nil {
		p.warn(Warning{Code: WarnConfiguration, Message: err.Error(), Err: err})
		return ruleset.Medium
	}
	return size
}

func (p *pass) warn(w Warning) {
	p.warnings = append(p.warnings, w)
}

// evaluate runs f against scope with a pinned seed. Failures become
// warnings and count as dropped.
func (p *pass) evaluate(f string, scope formula.Scope, seed uint64, source, tgt string) (float64, bool) {
	v, err := p.e.eval.Evaluate(f, formula.WithSeed(scope, seed))
	if err != nil {
		p.dropped++
		p.warn(warningFor(err, source, tgt))
		p.e.logger.Warn("formula error",
			zap.String("character", p.c.ID),
			zap.String("source", source),
			zap.String("target", tgt),
			zap.String("formula", f),
			zap.Error(err),
		)
		return 0, false
	}
	return v, true
}

func (p *pass) result() *Result {
	values := p.s.Flatten()
	changed, removed := diff(p.c.Derived, values)
	res := &Result{
		PassID:        uuid.New(),
		CharacterID:   p.c.ID,
		Sheet:         p.s,
		Values:        values,
		Diff:          changed,
		Removed:       removed,
		SourceDetails: p.details,
		Flags:         p.flags.List(),
		Warnings:      p.warnings,
		FeatureSync:   p.featureSync(),
		HPValue:       p.hpValue(),
		Records:       len(p.records),
	}
	if p.dropped > 0 {
		res.Notice = fmt.Sprintf("%d change(s) could not be applied and were skipped", p.dropped)
		p.e.logger.Warn(res.Notice, zap.String("character", p.c.ID))
	}
	return res
}
