package engine

import (
	"errors"
	"fmt"

	"github.com/cory-johannsen/d20sheet/internal/game/formula"
	"github.com/cory-johannsen/d20sheet/internal/game/target"
)

// MissingDependencyError reports records dropped because a linked entity,
// such as a minion's master, is absent.
type MissingDependencyError struct {
	Dependency string
	Records    int
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("missing %s: %d change(s) dropped", e.Dependency, e.Records)
}

// WarningCode classifies a Warning.
type WarningCode string

const (
	WarnFormula           WarningCode = "formula"
	WarnUnresolvedTarget  WarningCode = "unresolved_target"
	WarnMissingDependency WarningCode = "missing_dependency"
	WarnUnknownCondition  WarningCode = "unknown_condition"
	WarnUnknownTemplate   WarningCode = "unknown_template"
	WarnConfiguration     WarningCode = "configuration"
)

// Warning is a non-fatal problem found during a pass.
type Warning struct {
	Code    WarningCode `json:"code"`
	Message string      `json:"message"`
	Source  string      `json:"source,omitempty"`
	Target  string      `json:"target,omitempty"`
	Err     error       `json:"-"`
}

func (w Warning) Error() string { return w.Message }

func (w Warning) Unwrap() error { return w.Err }

// warningFor classifies err.
func warningFor(err error, source, tgt string) Warning {
	w := Warning{Message: err.Error(), Source: source, Target: tgt, Err: err}
	var (
		fe  *formula.Error
		ute *target.UnresolvedTargetError
		mde *MissingDependencyError
	)
	switch {
	case errors.As(err, &fe):
		w.Code = WarnFormula
	case errors.As(err, &ute):
		w.Code = WarnUnresolvedTarget
	case errors.As(err, &mde):
		w.Code = WarnMissingDependency
	default:
		w.Code = WarnConfiguration
	}
	return w
}
