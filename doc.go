// Package connections is a collection of destination drivers that wrap
// third-party systems (BigQuery, Elasticsearch, Xero) behind one uniform
// connect/disconnect/testConnection/action lifecycle, so a host platform can
// invoke arbitrary destinations through a single interface.
//
// # Architecture
//
// Every driver implements core.Driver: metadata, lifecycle, and a dispatch
// table of named domain actions. Drivers never manage their own lifecycle
// around an action; the proxy package wraps each driver and connects before
// every invocation and disconnects after it, success or failure. The
// registry package ties the two together: drivers self-register at init
// time, and registry.Open returns a proxied handle ready to invoke.
//
// # Quick Start
//
// Invoke an action against a configured destination:
//
//	import (
//	    "context"
//	    "github.com/hzerrad/buildable-connections/pkg/config"
//	    "github.com/hzerrad/buildable-connections/pkg/destination/registry"
//	    _ "github.com/hzerrad/buildable-connections/pkg/destination/bigquery"
//	)
//
//	cfg := &config.DestinationConfig{
//	    Name:            "analytics",
//	    Type:            "bigquery",
//	    ProjectID:       "my-project",
//	    CredentialsJSON: serviceAccountJSON,
//	}
//
//	handle, _ := registry.Open("bigquery", cfg)
//	result, err := handle.Do(context.Background(), "insert", map[string]interface{}{
//	    "dataset": "events",
//	    "table":   "signups",
//	    "data":    map[string]interface{}{"id": 1},
//	})
//
// # Key Packages
//
//	pkg/destination/core     - Driver interface, payload, test result
//	pkg/destination/base     - Embedded base driver (identity, config, logger)
//	pkg/destination/proxy    - Lifecycle wrapper around every invocation
//	pkg/destination/registry - Driver registration and the Open factory
//	pkg/destination/...      - The drivers themselves
//	pkg/config               - Destination configuration and YAML loader
//	pkg/clients              - Shared HTTP client for REST-backed drivers
//	pkg/errors               - Typed errors with stack capture
//	pkg/logger               - Structured logging (zap)
package connections
