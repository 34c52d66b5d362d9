// Package sources provides factory functions for all source connectors
package sources

import (
	"github.com/ajitpratap0/railstream/pkg/config"
	"github.com/ajitpratap0/railstream/pkg/connector/core"

	// Importing source packages triggers their init() registration
	"github.com/ajitpratap0/railstream/pkg/connector/sources/railz"
)

// NewRailzSource creates a new Railz source connector
func NewRailzSource(name string, cfg *config.BaseConfig) (core.Source, error) {
	return railz.NewRailzSource(name, cfg)
}
