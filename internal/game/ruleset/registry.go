package ruleset

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Registry provides lookup of class and race templates by ID.
type Registry struct {
	classes map[string]*Class
	races   map[string]*Race
}

// NewRegistry returns an empty Registry.
//
// Postcondition: Returns a non-nil *Registry ready to accept registrations.
func NewRegistry() *Registry {
	return &Registry{classes: make(map[string]*Class), races: make(map[string]*Race)}
}

// RegisterClass adds c to the registry; the last registration for an ID wins.
//
// Precondition: c must be non-nil with a non-empty ID.
func (r *Registry) RegisterClass(c *Class) {
	if c == nil {
		panic("Registry.RegisterClass: precondition violated: class must be non-nil")
	}
	if c.ID == "" {
		panic("Registry.RegisterClass: precondition violated: class ID must be non-empty")
	}
	r.classes[c.ID] = c
}

// RegisterRace adds race to the registry; the last registration for an ID wins.
//
// Precondition: race must be non-nil with a non-empty ID.
func (r *Registry) RegisterRace(race *Race) {
	if race == nil {
		panic("Registry.RegisterRace: precondition violated: race must be non-nil")
	}
	if race.ID == "" {
		panic("Registry.RegisterRace: precondition violated: race ID must be non-empty")
	}
	r.races[race.ID] = race
}

// Class returns the class template for id.
func (r *Registry) Class(id string) (*Class, bool) {
	c, ok := r.classes[id]
	return c, ok
}

// Race returns the race template for id.
func (r *Registry) Race(id string) (*Race, bool) {
	race, ok := r.races[id]
	return race, ok
}

// ClassIDs returns the registered class IDs, sorted.
func (r *Registry) ClassIDs() []string {
	ids := make([]string, 0, len(r.classes))
	for id := range r.classes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// LoadRegistry loads dir/classes and dir/races. Missing subdirectories are
// skipped.
//
// Postcondition: Returns a non-nil Registry, or an error if any file fails to parse.
func LoadRegistry(dir string) (*Registry, error) {
	reg := NewRegistry()
	classDir := filepath.Join(dir, "classes")
	if exists(classDir) {
		classes, err := LoadClasses(classDir)
		if err != nil {
			return nil, err
		}
		for _, c := range classes {
			if c.ID == "" {
				return nil, fmt.Errorf("class %q in %s has no id", c.Name, classDir)
			}
			reg.RegisterClass(c)
		}
	}
	raceDir := filepath.Join(dir, "races")
	if exists(raceDir) {
		races, err := LoadRaces(raceDir)
		if err != nil {
			return nil, err
		}
		for _, race := range races {
			if race.ID == "" {
				return nil, fmt.Errorf("race %q in %s has no id", race.Name, raceDir)
			}
			reg.RegisterRace(race)
		}
	}
	return reg, nil
}

func exists(dir string) bool {
	fi, err := os.Stat(dir)
	return err == nil && fi.IsDir()
}

func yamlFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml") {
			paths = append(paths, filepath.Join(dir, name))
		}
	}
	return paths, nil
}
