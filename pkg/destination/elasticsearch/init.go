package elasticsearch

import (
	"github.com/hzerrad/buildable-connections/pkg/destination/registry"
)

func init() {
	// Register the Elasticsearch destination driver in the global registry
	_ = registry.Register("elasticsearch", NewDriver)

	// Also register as "es" for convenience
	_ = registry.Register("es", NewDriver)
}
