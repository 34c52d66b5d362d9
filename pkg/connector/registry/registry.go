// Package registry manages source registration and instantiation. Sources
// register a factory from their package init function; the CLI and embedding
// pipelines create instances by name.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ajitpratap0/railstream/pkg/config"
	"github.com/ajitpratap0/railstream/pkg/connector/core"
	"github.com/ajitpratap0/railstream/pkg/errors"
	"github.com/ajitpratap0/railstream/pkg/logger"
	"go.uber.org/zap"
)

// SourceFactory creates a source instance from a BaseConfig.
type SourceFactory func(config *config.BaseConfig) (core.Source, error)

// Registry manages source registration and instantiation
type Registry struct {
	sources map[string]SourceFactory
	mu      sync.RWMutex
	logger  *zap.Logger
}

// Global registry instance
var globalRegistry = NewRegistry()

// NewRegistry creates a new source registry
func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[string]SourceFactory),
		logger:  logger.Get().With(zap.String("component", "source_registry")),
	}
}

// RegisterSource registers a source factory
func (r *Registry) RegisterSource(name string, factory SourceFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sources[name]; exists {
		return errors.New(errors.ErrorTypeConfig, fmt.Sprintf("source %s already registered", name))
	}

	r.sources[name] = factory
	r.logger.Info("source registered", zap.String("name", name))
	return nil
}

// CreateSource creates a source instance
func (r *Registry) CreateSource(name string, cfg *config.BaseConfig) (core.Source, error) {
	r.mu.RLock()
	factory, exists := r.sources[name]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.New(errors.ErrorTypeConfig, fmt.Sprintf("source %s not found", name))
	}

	source, err := factory(cfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, fmt.Sprintf("failed to create source %s", name))
	}

	return source, nil
}

// ListSources returns the registered source names in sorted order
func (r *Registry) ListSources() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sources := make([]string, 0, len(r.sources))
	for name := range r.sources {
		sources = append(sources, name)
	}
	sort.Strings(sources)
	return sources
}

// RegisterSource registers a source factory with the global registry
func RegisterSource(name string, factory SourceFactory) error {
	return globalRegistry.RegisterSource(name, factory)
}

// CreateSource creates a source instance from the global registry
func CreateSource(name string, cfg *config.BaseConfig) (core.Source, error) {
	return globalRegistry.CreateSource(name, cfg)
}

// ListSources returns the source names registered with the global registry
func ListSources() []string {
	return globalRegistry.ListSources()
}
