// Package condition defines the conditions that impose penalties and flags
// on a character, and the set of conditions active during a pass.
package condition

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/d20sheet/internal/game/change"
)

// ConditionDef is the static definition of a condition.
type ConditionDef struct {
	ID          string        `yaml:"id"`
	Name        string        `yaml:"name"`
	Description string        `yaml:"description"`
	Changes     []change.Spec `yaml:"changes"`
	Flags       []change.Flag `yaml:"flags"`
	// Supersedes lists conditions this one replaces while active
	// (exhausted supersedes fatigued).
	Supersedes []string `yaml:"supersedes"`
	// Notes are provenance lines shown on the given dotted paths.
	Notes []Note `yaml:"notes"`
}

// Note is a provenance line a condition adds without changing a value.
type Note struct {
	Path string `yaml:"path"`
	Text string `yaml:"text"`
}

// Registry holds all known ConditionDefs keyed by ID.
type Registry struct {
	defs map[string]*ConditionDef
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*ConditionDef)}
}

// Register adds def to the registry, overwriting any existing entry with the same ID.
// Precondition: def must not be nil and def.ID must not be empty.
func (r *Registry) Register(def *ConditionDef) {
	if def == nil || def.ID == "" {
		panic("condition.Registry.Register: precondition violated: def must be non-nil with an ID")
	}
	r.defs[def.ID] = def
}

// Get returns the ConditionDef for id, or (nil, false) if not found.
func (r *Registry) Get(id string) (*ConditionDef, bool) {
	d, ok := r.defs[id]
	return d, ok
}

// All returns a snapshot slice of all registered ConditionDefs, sorted by ID.
func (r *Registry) All() []*ConditionDef {
	out := make([]*ConditionDef, 0, len(r.defs))
	for _, d := range r.defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Merge registers every definition of other into r.
func (r *Registry) Merge(other *Registry) {
	for _, d := range other.defs {
		r.Register(d)
	}
}

// LoadDirectory reads every *.yaml file in dir, parses each as a ConditionDef,
// and returns a populated Registry.
// Precondition: dir must be a readable directory.
// Postcondition: Returns a non-nil Registry, or an error if any file fails to parse.
func LoadDirectory(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading condition dir %q: %w", dir, err)
	}
	reg := NewRegistry()
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}
		var def ConditionDef
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&def); err != nil {
			return nil, fmt.Errorf("parsing %q: %w", path, err)
		}
		if def.ID == "" {
			return nil, fmt.Errorf("parsing %q: missing id", path)
		}
		reg.Register(&def)
	}
	return reg, nil
}

// Load returns the built-in conditions overridden by any definitions in dir.
// A missing dir yields the built-ins alone.
func Load(dir string) (*Registry, error) {
	reg := Builtin()
	if dir == "" {
		return reg, nil
	}
	extra, err := LoadDirectory(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return reg, nil
		}
		return nil, err
	}
	reg.Merge(extra)
	return reg, nil
}
