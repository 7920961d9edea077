package backend

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

type registration struct {
	description string
	factory     Factory
}

var (
	registry = make(map[string]registration)
	mu       sync.RWMutex
)

// Register adds a backend factory to the registry.
func Register(name, description string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = registration{description: description, factory: factory}
}

// Open builds the named backend.
func Open(ctx context.Context, name string, cfg Config) (Backend, error) {
	mu.RLock()
	reg, ok := registry[name]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown backend: %s", name)
	}
	return reg.factory(ctx, cfg)
}

// Describe returns the description of a registered backend.
func Describe(name string) (string, error) {
	mu.RLock()
	defer mu.RUnlock()

	reg, ok := registry[name]
	if !ok {
		return "", fmt.Errorf("unknown backend: %s", name)
	}
	return reg.description, nil
}

// List returns all registered backend names, sorted.
func List() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
