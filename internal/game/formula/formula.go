// Package formula evaluates sheet formulas such as
// "floor(@attributes.hd.total / 2) + 1d6" against a scope of named values.
//
// Evaluation is referentially transparent: dice draw from a source seeded by
// the scope (or the formula text), so the same formula against the same
// scope always yields the same number.
package formula

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"go.uber.org/zap"

	"github.com/cory-johannsen/d20sheet/internal/game/dice"
)

// Helper is a named numeric function callable from formulas.
type Helper func(args ...float64) (float64, error)

type program struct {
	formula string
	vars    []string
	prog    *vm.Program
}

// Evaluator compiles and runs formulas. It is safe for concurrent use.
type Evaluator struct {
	cache   *programCache
	options []expr.Option
	helpers []string
	logger  *zap.Logger
}

// Option configures an Evaluator.
type Option func(*evaluatorConfig)

type evaluatorConfig struct {
	cacheSize int
	helpers   map[string]Helper
	logger    *zap.Logger
}

// WithCacheSize bounds the compiled-program cache.
func WithCacheSize(n int) Option {
	return func(c *evaluatorConfig) { c.cacheSize = n }
}

// WithHelper registers a helper function under name.
func WithHelper(name string, fn Helper) Option {
	return func(c *evaluatorConfig) { c.helpers[name] = fn }
}

// WithLogger sets the logger used for compile diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(c *evaluatorConfig) { c.logger = l }
}

// New builds an Evaluator. Helpers that would shadow a builtin are skipped
// with a warning.
func New(opts ...Option) *Evaluator {
	cfg := evaluatorConfig{cacheSize: DefaultCacheSize, helpers: map[string]Helper{}, logger: zap.NewNop()}
	for _, o := range opts {
		o(&cfg)
	}

	e := &Evaluator{
		cache:  newProgramCache(cfg.cacheSize),
		logger: cfg.logger,
		options: append([]expr.Option{
			expr.Env(map[string]any{}),
			expr.AllowUndefinedVariables(),
		}, builtinOptions()...),
	}
	for name, fn := range cfg.helpers {
		if reserved[name] || seededFuncs[name] || strings.HasPrefix(name, "_") || isBuiltinHelper(name) {
			e.logger.Warn("formula: helper shadows a builtin, skipped", zap.String("helper", name))
			continue
		}
		e.options = append(e.options, expr.Function(name, helperAdapter(fn)))
		e.helpers = append(e.helpers, name)
	}
	return e
}

func isBuiltinHelper(name string) bool {
	switch name {
	case "sizeDieMax", "pow", "clamp", "mod":
		return true
	}
	return false
}

func helperAdapter(fn Helper) func(args ...any) (any, error) {
	return func(args ...any) (any, error) {
		f, err := floats(args)
		if err != nil {
			return nil, err
		}
		return fn(f...)
	}
}

var defaultEvaluator = New()

// Evaluate evaluates formula against scope with the default Evaluator.
func Evaluate(formula string, scope Scope) (float64, error) {
	return defaultEvaluator.Evaluate(formula, scope)
}

// Evaluate evaluates formula against scope. An empty formula is 0.
//
// Postcondition: on failure the returned error is a *Error and the value is 0.
func (e *Evaluator) Evaluate(formula string, scope Scope) (float64, error) {
	src := strings.TrimSpace(formula)
	if src == "" {
		return 0, nil
	}
	if f, err := strconv.ParseFloat(src, 64); err == nil {
		return f, nil
	}

	p, err := e.compile(src)
	if err != nil {
		return 0, newError(formula, err)
	}

	env := make(map[string]any, len(p.vars)+1)
	for i, path := range p.vars {
		var v float64
		if scope != nil {
			v, _ = scope.Lookup(path)
		}
		env["_v"+strconv.Itoa(i)] = v
	}
	env["_seed"] = seedOf(src, scope)

	out, err := expr.Run(p.prog, env)
	if err != nil {
		return 0, newError(formula, err)
	}
	f, err := toFloat(out)
	if err != nil {
		return 0, newError(formula, fmt.Errorf("result: %w", err))
	}
	return f, nil
}

// Check compiles formula without running it.
func (e *Evaluator) Check(formula string) error {
	src := strings.TrimSpace(formula)
	if src == "" {
		return nil
	}
	if _, err := strconv.ParseFloat(src, 64); err == nil {
		return nil
	}
	if _, err := e.compile(src); err != nil {
		return newError(formula, err)
	}
	return nil
}

// Helpers lists the registered helper names.
func (e *Evaluator) Helpers() []string {
	return append([]string(nil), e.helpers...)
}

// Stats reports compiled-program cache statistics.
func (e *Evaluator) Stats() CacheStats {
	return e.cache.stats()
}

func (e *Evaluator) compile(src string) (*program, error) {
	if p, ok := e.cache.get(src); ok {
		return p, nil
	}
	rw, err := rewrite(src)
	if err != nil {
		return nil, err
	}
	prog, err := expr.Compile(rw.Source, e.options...)
	if err != nil {
		e.logger.Debug("formula: compile failed",
			zap.String("formula", src),
			zap.String("rewritten", rw.Source),
			zap.Error(err),
		)
		return nil, err
	}
	p := &program{formula: src, vars: rw.Vars, prog: prog}
	e.cache.put(p)
	return p, nil
}

func seedOf(src string, scope Scope) uint64 {
	if s, ok := scope.(Seeder); ok {
		return dice.SeedFor(strconv.FormatUint(s.Seed(), 16), src)
	}
	return dice.SeedFor(src)
}
