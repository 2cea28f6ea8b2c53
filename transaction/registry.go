package transaction

import (
	"fmt"
	"sort"

	"github.com/gaborage/go-bricks-data/config"
	"github.com/gaborage/go-bricks-data/database/types"
)

// Registry holds the transaction definitions of named operations, loaded once
// at startup.
type Registry struct {
	defs map[string]Definition
}

// NewRegistry builds definitions from configuration. NoRollbackFor entries
// name errors in knownErrors; an unknown name is a configuration error.
func NewRegistry(cfgs map[string]config.TransactionConfig, knownErrors map[string]error) (*Registry, error) {
	r := &Registry{defs: make(map[string]Definition, len(cfgs))}
	for name, c := range cfgs {
		def, err := definitionFromConfig(name, c, knownErrors)
		if err != nil {
			return nil, fmt.Errorf("transactions.%s: %w", name, err)
		}
		r.defs[name] = def
	}
	return r, nil
}

func definitionFromConfig(name string, c config.TransactionConfig, knownErrors map[string]error) (Definition, error) {
	propagation, err := ParsePropagation(c.Propagation)
	if err != nil {
		return Definition{}, err
	}
	isolation, err := types.ParseIsolationLevel(c.Isolation)
	if err != nil {
		return Definition{}, err
	}
	def := Definition{
		Name:        name,
		Propagation: propagation,
		Isolation:   isolation,
		ReadOnly:    c.ReadOnly,
		Timeout:     c.Timeout,
	}
	for _, errName := range c.NoRollbackFor {
		target, ok := knownErrors[errName]
		if !ok {
			return Definition{}, fmt.Errorf("unknown error %q in norollbackfor", errName)
		}
		def.NoRollbackFor = append(def.NoRollbackFor, target)
	}
	return def, nil
}

// Lookup returns the definition registered for name.
func (r *Registry) Lookup(name string) (Definition, bool) {
	def, ok := r.defs[name]
	return def, ok
}

// Definition returns the definition for name, or a default definition
// carrying the name.
func (r *Registry) Definition(name string) Definition {
	if def, ok := r.defs[name]; ok {
		return def
	}
	return Definition{Name: name}
}

// Names returns the registered operation names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.defs))
	for n := range r.defs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
