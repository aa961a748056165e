// Package module implements the module loader contract from spec.md §6:
// "given a module name, returns a module value (namespace mapping)...
// The VM caches loaded modules and detects circular imports." File
// resolution and compilation are out of scope (spec.md §1) and are
// pushed behind the Source interface a caller supplies.
//
// Grounded on the teacher's ModuleLoader (cache map guarded by a mutex,
// search-path list, per-name builtin dispatch), generalized from a
// hardcoded switch over builtin module names plus direct .sn file
// compilation to a pluggable Source and singleflight-coalesced loading.
package module

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"corevm/internal/value"
)

// Source resolves one path component of a module name into its bytecode
// entry point's execution result (a namespace mapping, already run) or an
// error. A hierarchical name like "collections.abc" is split on "." and
// resolved one segment at a time so "collections" loads once even if
// both "collections" and "collections.abc" are imported.
type Source interface {
	Load(name string) (value.Value, error)
}

// SourceFunc adapts a plain function to Source.
type SourceFunc func(name string) (value.Value, error)

func (f SourceFunc) Load(name string) (value.Value, error) { return f(name) }

// Loader caches module values by fully-qualified name, coalesces
// concurrent first-loads of the same name via singleflight (so two
// goroutines racing to import the same module run the loader once), and
// rejects a name that is still on its own loading path — spec.md §6's
// "re-entering a module currently on the loading set fails with an
// import error."
type Loader struct {
	source Source

	mu       sync.RWMutex
	cache    map[string]value.Value
	loading  map[string]bool
	inflight singleflight.Group
}

func NewLoader(source Source) *Loader {
	return &Loader{
		source:  source,
		cache:   make(map[string]value.Value),
		loading: make(map[string]bool),
	}
}

// Load resolves a (possibly dotted) module name to its namespace value.
func (l *Loader) Load(name string) (value.Value, error) {
	l.mu.RLock()
	if v, ok := l.cache[name]; ok {
		l.mu.RUnlock()
		return v, nil
	}
	circular := l.loading[name]
	l.mu.RUnlock()
	if circular {
		return value.Nil(), fmt.Errorf("import-failure: circular import of %q", name)
	}

	result, err, _ := l.inflight.Do(name, func() (interface{}, error) {
		l.mu.Lock()
		l.loading[name] = true
		l.mu.Unlock()
		defer func() {
			l.mu.Lock()
			delete(l.loading, name)
			l.mu.Unlock()
		}()

		v, err := l.loadPath(name)
		if err != nil {
			return nil, err
		}

		l.mu.Lock()
		l.cache[name] = v
		l.mu.Unlock()
		return v, nil
	})
	if err != nil {
		return value.Nil(), err
	}
	return result.(value.Value), nil
}

// loadPath resolves each dotted segment in turn. Intermediate segments
// are loaded (and cached) but only the final segment's value is returned
// to the importer; a parent package's own load failure propagates.
func (l *Loader) loadPath(name string) (value.Value, error) {
	parts := strings.Split(name, ".")
	prefix := parts[0]
	v, err := l.loadSegment(prefix)
	if err != nil {
		return value.Nil(), err
	}
	for _, part := range parts[1:] {
		prefix = prefix + "." + part
		v, err = l.loadSegment(prefix)
		if err != nil {
			return value.Nil(), err
		}
	}
	return v, nil
}

func (l *Loader) loadSegment(path string) (value.Value, error) {
	l.mu.RLock()
	if v, ok := l.cache[path]; ok {
		l.mu.RUnlock()
		return v, nil
	}
	l.mu.RUnlock()
	v, err := l.source.Load(path)
	if err != nil {
		return value.Nil(), fmt.Errorf("import-failure: %w", err)
	}
	l.mu.Lock()
	l.cache[path] = v
	l.mu.Unlock()
	return v, nil
}

// ExportedNames returns the names a `from mod import *` pulls in: the
// module's own `__all__` list if it declared one, otherwise every
// exported name that doesn't start with an underscore (DESIGN.md Open
// Question #5).
func ExportedNames(mod *value.ModuleObj) []string {
	if len(mod.All) > 0 {
		return mod.All
	}
	names := make([]string, 0, len(mod.Exports))
	for name := range mod.Exports {
		if !strings.HasPrefix(name, "_") {
			names = append(names, name)
		}
	}
	return names
}
