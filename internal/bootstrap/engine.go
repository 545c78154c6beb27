// Package bootstrap assembles the recompute engine from configuration for
// the binaries.
package bootstrap

import (
	"fmt"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/cory-johannsen/d20sheet/internal/config"
	"github.com/cory-johannsen/d20sheet/internal/game/condition"
	"github.com/cory-johannsen/d20sheet/internal/game/engine"
	"github.com/cory-johannsen/d20sheet/internal/game/formula"
	"github.com/cory-johannsen/d20sheet/internal/game/ruleset"
	"github.com/cory-johannsen/d20sheet/internal/scripting"
)

// Engine is a configured engine with the evaluator it uses.
type Engine struct {
	Engine    *engine.Engine
	Evaluator *formula.Evaluator
	Rules     *ruleset.Registry
	scripts   *scripting.Manager
}

// Close releases the Lua VM, if any.
func (e *Engine) Close() {
	if e.scripts != nil {
		e.scripts.Close()
	}
}

// NewEngine loads ruleset content and helper scripts and builds an engine.
// Invalid rules settings are logged and replaced by their defaults.
//
// Precondition: logger must be non-nil; tracer may be nil.
// Postcondition: Returns a ready Engine or a non-nil error.
func NewEngine(cfg config.Config, logger *zap.Logger, tracer trace.Tracer) (*Engine, error) {
	start := time.Now()

	rules, err := ruleset.LoadRegistry(cfg.Content.Dir)
	if err != nil {
		return nil, fmt.Errorf("loading ruleset: %w", err)
	}
	conds, err := condition.Load(filepath.Join(cfg.Content.Dir, "conditions"))
	if err != nil {
		return nil, fmt.Errorf("loading conditions: %w", err)
	}
	logger.Info("ruleset loaded",
		zap.String("dir", cfg.Content.Dir),
		zap.Duration("elapsed", time.Since(start)),
	)

	evalOpts := []formula.Option{
		formula.WithCacheSize(cfg.Formula.CacheSize),
		formula.WithLogger(logger.Named("formula")),
	}
	var scripts *scripting.Manager
	if cfg.Content.ScriptsDir != "" {
		scripts = scripting.NewManager(logger.Named("scripting"))
		if err := scripts.LoadDir(cfg.Content.ScriptsDir, cfg.Formula.InstructionLimit); err != nil {
			return nil, err
		}
		evalOpts = append(evalOpts, scripts.Helpers()...)
	}
	eval := formula.New(evalOpts...)

	engineCfg, errs := cfg.Rules.EngineConfig()
	for _, err := range errs {
		logger.Warn("invalid rules setting", zap.Error(err))
	}

	opts := []engine.Option{
		engine.WithEvaluator(eval),
		engine.WithLogger(logger.Named("engine")),
	}
	if tracer != nil {
		opts = append(opts, engine.WithTracer(tracer))
	}
	return &Engine{
		Engine:    engine.New(engineCfg, rules, conds, opts...),
		Evaluator: eval,
		Rules:     rules,
		scripts:   scripts,
	}, nil
}
