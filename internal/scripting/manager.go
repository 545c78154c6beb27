package scripting

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/d20sheet/internal/game/formula"
)

// ErrUnknownFunction is returned by Call for names no script defined.
var ErrUnknownFunction = errors.New("scripting: unknown function")

// Manager owns one sandboxed LState holding every loaded helper script.
//
// Manager is safe for concurrent Call; calls are serialized because an
// LState is single-threaded.
type Manager struct {
	mu        sync.Mutex
	L         *lua.LState
	instLimit int
	functions map[string]*lua.LFunction
	logger    *zap.Logger
}

// NewManager creates a Manager with an empty VM.
//
// Precondition: logger must be non-nil.
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{logger: logger, functions: map[string]*lua.LFunction{}}
}

// LoadDir creates a fresh VM, registers the d20 module, executes every *.lua
// file in dir in lexicographic order and records each global Lua function
// the scripts defined. A previously loaded VM is replaced.
//
// Precondition: dir must be a readable directory.
func (m *Manager) LoadDir(dir string, instLimit int) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("scripting: reading script dir %q: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	L, cancel := NewSandboxedState(instLimit)
	RegisterModules(L)
	for _, path := range files {
		if err := L.DoFile(path); err != nil {
			cancel()
			L.Close()
			return fmt.Errorf("scripting: loading %q: %w", path, err)
		}
	}
	// The load context counted opcodes for the scripts; calls get their own.
	cancel()

	functions := map[string]*lua.LFunction{}
	L.G.Global.ForEach(func(k, v lua.LValue) {
		if fn, ok := v.(*lua.LFunction); ok && !fn.IsG {
			functions[k.String()] = fn
		}
	})

	m.mu.Lock()
	if m.L != nil {
		m.L.Close()
	}
	m.L, m.instLimit, m.functions = L, instLimit, functions
	m.mu.Unlock()

	m.logger.Info("scripting: helpers loaded",
		zap.String("dir", dir),
		zap.Int("files", len(files)),
		zap.Strings("functions", m.Functions()),
	)
	return nil
}

// Functions returns the sorted names of loaded helper functions.
func (m *Manager) Functions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.functions))
	for n := range m.functions {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Call invokes the named helper with numeric arguments under a fresh
// instruction budget.
//
// Postcondition: Returns the helper's first return value as a number, or an
// error for unknown helpers, Lua runtime errors, exhausted budgets and
// non-numeric results.
func (m *Manager) Call(name string, args ...float64) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fn, ok := m.functions[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownFunction, name)
	}
	ctx, cancel := newCountingContext(limitOrDefault(m.instLimit))
	defer cancel()
	m.L.SetContext(ctx)

	largs := make([]lua.LValue, len(args))
	for i, a := range args {
		largs[i] = lua.LNumber(a)
	}
	if err := m.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, largs...); err != nil {
		m.logger.Warn("scripting: Lua runtime error",
			zap.String("function", name),
			zap.Error(err),
		)
		return 0, fmt.Errorf("scripting: %s: %w", name, err)
	}
	ret := m.L.Get(-1)
	m.L.Pop(1)

	n, ok := ret.(lua.LNumber)
	if !ok {
		return 0, fmt.Errorf("scripting: %s returned %s, want number", name, ret.Type())
	}
	return float64(n), nil
}

// Helpers exposes every loaded function as a formula helper.
func (m *Manager) Helpers() []formula.Option {
	var opts []formula.Option
	for _, name := range m.Functions() {
		name := name
		opts = append(opts, formula.WithHelper(name, func(args ...float64) (float64, error) {
			return m.Call(name, args...)
		}))
	}
	return opts
}

// Close releases the VM.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.L != nil {
		m.L.Close()
		m.L = nil
	}
	m.functions = map[string]*lua.LFunction{}
}
