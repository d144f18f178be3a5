package xero

import (
	"github.com/hzerrad/buildable-connections/pkg/destination/registry"
)

func init() {
	// Register the Xero destination driver in the global registry
	_ = registry.Register("xero", NewDriver)
}
