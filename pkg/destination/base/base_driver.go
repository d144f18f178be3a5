// Package base provides the foundational BaseDriver that all destination
// drivers embed. It carries the identity, bound configuration, and logger a
// driver needs, and resolves the effective configuration for each connect.
//
// Drivers embed BaseDriver and add their client handle and actions:
//
//	type Driver struct {
//	    *base.BaseDriver
//	    client *vendor.Client
//	}
package base

import (
	"github.com/hzerrad/buildable-connections/pkg/config"
	"github.com/hzerrad/buildable-connections/pkg/destination/core"
	"github.com/hzerrad/buildable-connections/pkg/logger"
	"go.uber.org/zap"
)

// BaseDriver provides common functionality for all destination drivers.
type BaseDriver struct {
	name     string
	destType core.DestinationType
	version  string
	config   *config.DestinationConfig
	logger   *zap.Logger
}

// NewBaseDriver creates a new base driver bound to a static configuration.
func NewBaseDriver(name string, destType core.DestinationType, version string, cfg *config.DestinationConfig) *BaseDriver {
	return &BaseDriver{
		name:     name,
		destType: destType,
		version:  version,
		config:   cfg,
		logger:   logger.Get().With(zap.String("destination", name)),
	}
}

// Name returns the driver name
func (bd *BaseDriver) Name() string {
	return bd.name
}

// Type returns the destination type
func (bd *BaseDriver) Type() core.DestinationType {
	return bd.destType
}

// Version returns the driver version
func (bd *BaseDriver) Version() string {
	return bd.version
}

// GetConfig returns the statically bound configuration
func (bd *BaseDriver) GetConfig() *config.DestinationConfig {
	return bd.config
}

// GetLogger returns the driver logger
func (bd *BaseDriver) GetLogger() *zap.Logger {
	return bd.logger
}

// EffectiveConfig resolves the configuration for one connect call: the bound
// configuration with any non-zero override field taking precedence.
func (bd *BaseDriver) EffectiveConfig(override *config.DestinationConfig) *config.DestinationConfig {
	if bd.config == nil {
		if override == nil {
			return &config.DestinationConfig{}
		}
		return override
	}
	return bd.config.Merge(override)
}
