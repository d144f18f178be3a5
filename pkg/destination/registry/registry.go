// Package registry manages destination driver registration and instantiation.
package registry

import (
	"sync"

	"github.com/hzerrad/buildable-connections/pkg/config"
	"github.com/hzerrad/buildable-connections/pkg/destination/core"
	"github.com/hzerrad/buildable-connections/pkg/destination/proxy"
	"github.com/hzerrad/buildable-connections/pkg/errors"
	"github.com/hzerrad/buildable-connections/pkg/logger"
	"go.uber.org/zap"
)

// Registry manages driver registration and instantiation
type Registry struct {
	drivers map[string]DriverFactory
	mu      sync.RWMutex
	logger  *zap.Logger
}

// DriverFactory is a function that creates driver instances bound to a
// static configuration.
type DriverFactory func(cfg *config.DestinationConfig) (core.Driver, error)

// Global registry instance
var globalRegistry = NewRegistry()

// NewRegistry creates a new driver registry
func NewRegistry() *Registry {
	return &Registry{
		drivers: make(map[string]DriverFactory),
		logger:  logger.Get().With(zap.String("component", "destination_registry")),
	}
}

// Register registers a driver factory
func (r *Registry) Register(name string, factory DriverFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.drivers[name]; exists {
		return errors.Newf(errors.ErrorTypeConfig, "destination driver %s already registered", name)
	}

	r.drivers[name] = factory
	r.logger.Info("destination driver registered", zap.String("name", name))
	return nil
}

// Create creates a bare driver instance. Most callers want Open, which
// returns the driver wrapped in its lifecycle proxy.
func (r *Registry) Create(name string, cfg *config.DestinationConfig) (core.Driver, error) {
	r.mu.RLock()
	factory, exists := r.drivers[name]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "destination driver %s not found", name)
	}

	driver, err := factory(cfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create destination driver "+name)
	}

	return driver, nil
}

// Open creates a driver and wraps it in the lifecycle proxy. This is the
// factory a host platform calls: the returned handle performs implicit
// connect/disconnect around every action.
func (r *Registry) Open(name string, cfg *config.DestinationConfig) (*proxy.Proxy, error) {
	driver, err := r.Create(name, cfg)
	if err != nil {
		return nil, err
	}
	return proxy.Wrap(driver), nil
}

// List returns the names of registered drivers
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.drivers))
	for name := range r.drivers {
		names = append(names, name)
	}
	return names
}

// Has checks if a driver is registered
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.drivers[name]
	return exists
}

// Clear removes all registered drivers (mainly for testing)
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drivers = make(map[string]DriverFactory)
}

// Global registry functions

// Register registers a driver in the global registry
func Register(name string, factory DriverFactory) error {
	return globalRegistry.Register(name, factory)
}

// Create creates a bare driver from the global registry
func Create(name string, cfg *config.DestinationConfig) (core.Driver, error) {
	return globalRegistry.Create(name, cfg)
}

// Open creates a proxied driver from the global registry
func Open(name string, cfg *config.DestinationConfig) (*proxy.Proxy, error) {
	return globalRegistry.Open(name, cfg)
}

// List returns registered drivers from the global registry
func List() []string {
	return globalRegistry.List()
}

// Has checks if a driver is registered in the global registry
func Has(name string) bool {
	return globalRegistry.Has(name)
}

// GetRegistry returns the global registry instance
func GetRegistry() *Registry {
	return globalRegistry
}
