package bigquery

import (
	"github.com/hzerrad/buildable-connections/pkg/config"
	"github.com/hzerrad/buildable-connections/pkg/destination/core"
	"github.com/hzerrad/buildable-connections/pkg/destination/registry"
)

func init() {
	// Register the BigQuery destination driver in the global registry
	_ = registry.Register("bigquery", func(cfg *config.DestinationConfig) (core.Driver, error) {
		return NewDriver(cfg)
	})

	// Also register as "bq" for convenience
	_ = registry.Register("bq", func(cfg *config.DestinationConfig) (core.Driver, error) {
		return NewDriver(cfg)
	})
}
