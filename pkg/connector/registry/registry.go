// Package registry manages backend registration and connector instantiation.
// Each backend package registers itself in an init function; the process-wide
// registry is populated during startup and read-only from the perspective of
// callers opening connections afterwards.
package registry

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/evhart/preserve/pkg/connector/core"
	"github.com/evhart/preserve/pkg/errors"
	"github.com/evhart/preserve/pkg/logger"
)

// Param describes one recognized connector parameter.
type Param struct {
	Type        string      `json:"type"`
	Required    bool        `json:"required"`
	Default     interface{} `json:"default,omitempty"`
	Description string      `json:"description"`
}

// Descriptor is a registry entry: a backend name, the factory that constructs
// connectors for it, and the schema of recognized parameters. Immutable once
// registered.
type Descriptor struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Factory     core.Factory     `json:"-"`
	Params      map[string]Param `json:"params"`
}

// Registry maps backend names to descriptors.
type Registry struct {
	backends map[string]*Descriptor
	mu       sync.RWMutex
	logger   *zap.Logger
}

// Global registry instance
var globalRegistry = NewRegistry()

// NewRegistry creates a new backend registry
func NewRegistry() *Registry {
	return &Registry{
		backends: make(map[string]*Descriptor),
		logger:   logger.Get().With(zap.String("component", "connector_registry")),
	}
}

// Register adds a backend descriptor. It fails with a duplicate_backend error
// if the name is already taken.
func (r *Registry) Register(desc *Descriptor) error {
	if desc == nil || desc.Name == "" || desc.Factory == nil {
		return errors.New(errors.ErrorTypeConfig, "descriptor requires a name and a factory")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.backends[desc.Name]; exists {
		return errors.Newf(errors.ErrorTypeDuplicateBackend, "backend %s already registered", desc.Name)
	}

	r.backends[desc.Name] = desc
	r.logger.Debug("backend registered", zap.String("name", desc.Name))
	return nil
}

// Lookup returns the descriptor for a backend name, or an unknown_backend
// error if it is not registered.
func (r *Registry) Lookup(name string) (*Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	desc, exists := r.backends[name]
	if !exists {
		return nil, errors.Newf(errors.ErrorTypeUnknownBackend, "backend %s not registered", name)
	}
	return desc, nil
}

// Has checks if a backend is registered
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.backends[name]
	return exists
}

// List returns the sorted names of registered backends
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Descriptors returns all registered descriptors sorted by name, for the
// "list connectors" surface.
func (r *Registry) Descriptors() []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	descs := make([]*Descriptor, 0, len(r.backends))
	for _, desc := range r.backends {
		descs = append(descs, desc)
	}
	sort.Slice(descs, func(i, j int) bool { return descs[i].Name < descs[j].Name })
	return descs
}

// Open constructs a connector by backend name. This is the parameter-call
// path that bypasses URI parsing entirely.
func (r *Registry) Open(name string, params map[string]string) (core.Connector, error) {
	desc, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}

	conn, err := desc.Factory(params)
	if err != nil {
		errType := errors.TypeOf(err)
		if errType == errors.ErrorTypeInternal {
			errType = errors.ErrorTypeBackend
		}
		return nil, errors.Wrap(err, errType, "failed to open backend "+name)
	}
	return conn, nil
}

// Clear removes all registered backends (mainly for testing)
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends = make(map[string]*Descriptor)
}

// Global registry functions

// Register adds a backend to the global registry
func Register(desc *Descriptor) error {
	return globalRegistry.Register(desc)
}

// MustRegister registers a backend and panics on collision. Backend packages
// call it from init, where a collision means the process is miswired.
func MustRegister(desc *Descriptor) {
	if err := globalRegistry.Register(desc); err != nil {
		panic(err)
	}
}

// Lookup returns a descriptor from the global registry
func Lookup(name string) (*Descriptor, error) {
	return globalRegistry.Lookup(name)
}

// Has checks if a backend is registered in the global registry
func Has(name string) bool {
	return globalRegistry.Has(name)
}

// List returns registered backend names from the global registry
func List() []string {
	return globalRegistry.List()
}

// Descriptors returns all descriptors from the global registry
func Descriptors() []*Descriptor {
	return globalRegistry.Descriptors()
}

// Open constructs a connector from the global registry
func Open(name string, params map[string]string) (core.Connector, error) {
	return globalRegistry.Open(name, params)
}

// GetRegistry returns the global registry instance
func GetRegistry() *Registry {
	return globalRegistry
}
