package target

import (
	"sort"
	"sync"

	semver "github.com/Masterminds/semver/v3"

	"github.com/orizon-lang/iris/internal/errors"
	"github.com/orizon-lang/iris/internal/ir"
)

// Factory builds a backend for one target descriptor.
type Factory func(t ir.Target) (Backend, error)

// Entry is one registered backend implementation.
type Entry struct {
	Arch    ir.Arch
	Systems []ir.System
	Version *semver.Version
	New     Factory
}

func (e *Entry) supports(sys ir.System) bool {
	for _, s := range e.Systems {
		if s == sys {
			return true
		}
	}

	return false
}

// Registry maps architectures to versioned backend factories.
type Registry struct {
	mu      sync.RWMutex
	entries map[ir.Arch][]*Entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[ir.Arch][]*Entry)}
}

// Default is the process-wide registry backends add themselves to.
var Default = NewRegistry()

// Register adds a backend implementation. version must be valid semver.
func (r *Registry) Register(arch ir.Arch, version string, systems []ir.System, fn Factory) error {
	v, err := semver.NewVersion(version)
	if err != nil {
		return errors.Wrapf(err, "backend %s: bad version %q", arch, version)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.entries[arch] {
		if e.Version.Equal(v) {
			return errors.New("backend " + string(arch) + " " + v.String() + " registered twice")
		}
	}

	r.entries[arch] = append(r.entries[arch], &Entry{Arch: arch, Systems: systems, Version: v, New: fn})
	sort.Slice(r.entries[arch], func(i, j int) bool {
		return r.entries[arch][i].Version.GreaterThan(r.entries[arch][j].Version)
	})

	return nil
}

// MustRegister is Register for package init functions.
func (r *Registry) MustRegister(arch ir.Arch, version string, systems []ir.System, fn Factory) {
	if err := r.Register(arch, version, systems, fn); err != nil {
		panic(err)
	}
}

// Lookup builds the newest backend for t whose version satisfies
// constraint. An empty constraint accepts any version.
func (r *Registry) Lookup(t ir.Target, constraint string) (Backend, *semver.Version, error) {
	var c *semver.Constraints

	if constraint != "" {
		var err error
		if c, err = semver.NewConstraint(constraint); err != nil {
			return nil, nil, errors.Wrapf(err, "bad backend version constraint %q", constraint)
		}
	}

	r.mu.RLock()
	candidates := r.entries[t.Arch]
	r.mu.RUnlock()

	for _, e := range candidates {
		if !e.supports(t.System) {
			continue
		}

		if c != nil && !c.Check(e.Version) {
			continue
		}

		be, err := e.New(t)
		if err != nil {
			return nil, nil, err
		}

		return be, e.Version, nil
	}

	return nil, nil, errors.UnsupportedTarget(string(t.Arch), string(t.System), constraint)
}

// Entries lists every registered backend, newest first within an arch.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	archs := make([]string, 0, len(r.entries))
	for a := range r.entries {
		archs = append(archs, string(a))
	}

	sort.Strings(archs)

	var out []Entry
	for _, a := range archs {
		for _, e := range r.entries[ir.Arch(a)] {
			out = append(out, *e)
		}
	}

	return out
}
