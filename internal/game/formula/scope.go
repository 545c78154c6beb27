package formula

import "strings"

// Scope resolves @path references. Missing paths evaluate to 0.
type Scope interface {
	Lookup(path string) (float64, bool)
}

// Seeder is implemented by scopes that pin the dice seed. Without it the
// seed is derived from the formula text alone.
type Seeder interface {
	Seed() uint64
}

// Values is a flat Scope keyed by dotted path.
type Values map[string]float64

// Lookup returns the value stored under path.
func (v Values) Lookup(path string) (float64, bool) {
	f, ok := v[path]
	return f, ok
}

// Layered consults each scope in order and returns the first hit.
type Layered []Scope

// Lookup returns the value from the first scope that knows path.
func (l Layered) Lookup(path string) (float64, bool) {
	for _, s := range l {
		if s == nil {
			continue
		}
		if f, ok := s.Lookup(path); ok {
			return f, true
		}
	}
	return 0, false
}

// Masked hides every path under one of Prefixes, so those paths read as 0.
type Masked struct {
	Scope    Scope
	Prefixes []string
}

// Lookup returns (0, false) for masked paths.
func (m Masked) Lookup(path string) (float64, bool) {
	for _, p := range m.Prefixes {
		if path == p || strings.HasPrefix(path, p+".") {
			return 0, false
		}
	}
	return m.Scope.Lookup(path)
}

type seeded struct {
	Scope
	seed uint64
}

func (s seeded) Seed() uint64 { return s.seed }

// WithSeed pins the dice seed used when evaluating against scope.
func WithSeed(scope Scope, seed uint64) Scope {
	return seeded{Scope: scope, seed: seed}
}
