package railz

import (
	"github.com/ajitpratap0/railstream/pkg/config"
	"github.com/ajitpratap0/railstream/pkg/connector/core"
	"github.com/ajitpratap0/railstream/pkg/connector/registry"
)

func init() {
	// Register the Railz source in the global registry
	registry.RegisterSource("railz", func(cfg *config.BaseConfig) (core.Source, error) {
		return NewRailzSource("railz", cfg)
	})
}
