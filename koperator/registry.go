package koperator

import (
	"fmt"
	"slices"
	"sync"
)

// Factory builds an operator from its id and parameters.
type Factory func(id string, params Params) (Operator, error)

// Registry maps operator type names to factories. A registry is created once,
// filled with explicit Register calls and then passed to whatever builds
// programs. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory. Registering a taken name fails with
// ErrTypeAlreadyRegistered.
func (r *Registry) Register(typeName string, f Factory) error {
	if typeName == "" {
		return fmt.Errorf("%w: empty type name", ErrInvalidParameter)
	}
	if f == nil {
		return fmt.Errorf("%w: nil factory for %q", ErrInvalidParameter, typeName)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[typeName]; exists {
		return fmt.Errorf("%w: %q", ErrTypeAlreadyRegistered, typeName)
	}
	r.factories[typeName] = f
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(typeName string, f Factory) {
	if err := r.Register(typeName, f); err != nil {
		panic(err)
	}
}

func (r *Registry) Lookup(typeName string) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[typeName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, typeName)
	}
	return f, nil
}

// Build looks up typeName and runs its factory.
func (r *Registry) Build(typeName, id string, params Params) (Operator, error) {
	f, err := r.Lookup(typeName)
	if err != nil {
		return nil, err
	}
	op, err := f(id, params)
	if err != nil {
		return nil, fmt.Errorf("%s %q: %w", typeName, id, err)
	}
	return op, nil
}

// Types returns the registered type names, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for name := range r.factories {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}
