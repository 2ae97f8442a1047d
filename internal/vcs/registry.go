package vcs

import (
	"fmt"
	"sync"
)

// Constructor creates a Repo instance rooted at the given directory.
// Implementations register themselves with Register().
type Constructor func(dir string) (Repo, error)

var (
	registry      = make(map[Type]Constructor)
	registryMutex sync.RWMutex
)

// Register registers a repository adapter constructor. It is called from
// init() functions in implementation packages.
//
// Example:
//
//	func init() {
//	    vcs.Register(vcs.TypeGit, New)
//	}
func Register(t Type, constructor Constructor) {
	registryMutex.Lock()
	defer registryMutex.Unlock()

	if constructor == nil {
		panic(fmt.Sprintf("vcs: Register constructor is nil for type %s", t))
	}

	if _, exists := registry[t]; exists {
		panic(fmt.Sprintf("vcs: Register called twice for type %s", t))
	}

	registry[t] = constructor
}

// getConstructor retrieves the constructor for an adapter type.
// Returns nil if the type is not registered.
func getConstructor(t Type) Constructor {
	registryMutex.RLock()
	defer registryMutex.RUnlock()
	return registry[t]
}

// IsRegistered returns true if a constructor is registered for the type.
func IsRegistered(t Type) bool {
	registryMutex.RLock()
	defer registryMutex.RUnlock()
	_, exists := registry[t]
	return exists
}

// RegisteredTypes returns all registered adapter types.
func RegisteredTypes() []Type {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	types := make([]Type, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	return types
}

// Open creates a Repo of the given type rooted at dir.
func Open(t Type, dir string) (Repo, error) {
	constructor := getConstructor(t)
	if constructor == nil {
		return nil, fmt.Errorf("no registered adapter for type %s (available: %v)", t, RegisteredTypes())
	}

	r, err := constructor(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s repository: %w", t, err)
	}
	return r, nil
}
