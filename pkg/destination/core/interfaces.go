// Package core defines the interfaces every destination driver implements.
package core

import (
	"context"

	"github.com/hzerrad/buildable-connections/pkg/config"
	"github.com/hzerrad/buildable-connections/pkg/errors"
)

// DestinationType represents the kind of system a driver writes to
type DestinationType string

const (
	DestinationTypeWarehouse  DestinationType = "warehouse"
	DestinationTypeSearch     DestinationType = "search"
	DestinationTypeAccounting DestinationType = "accounting"
)

// Payload carries the named parameters of one action invocation
type Payload map[string]interface{}

// ActionFunc is a single domain action bound to its driver
type ActionFunc func(ctx context.Context, payload Payload) (interface{}, error)

// TestResult is the uniform outcome of a connection test. Query-level
// failures are reported here, never as an error.
type TestResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Driver is the interface all destination drivers implement. A driver owns
// exactly one client handle: created by Connect, dropped by Disconnect,
// never shared across instances. Domain actions invoked while disconnected
// fail with an explicit not-established error.
type Driver interface {
	// Metadata
	Name() string
	Type() DestinationType
	Version() string

	// Lifecycle. A nil override connects with the statically bound
	// configuration; override fields take precedence otherwise.
	Connect(ctx context.Context, override *config.DestinationConfig) error
	Disconnect(ctx context.Context) error
	TestConnection(ctx context.Context) (*TestResult, error)

	// Actions returns the driver's domain actions keyed by name. The map is
	// the dispatch table the lifecycle wrapper routes invocations through.
	Actions() map[string]ActionFunc
}

// String reads a required string field from the payload
func (p Payload) String(key string) (string, error) {
	v, ok := p[key]
	if !ok {
		return "", errors.Newf(errors.ErrorTypeValidation, "payload field %q is required", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", errors.Newf(errors.ErrorTypeValidation, "payload field %q must be a string", key)
	}
	return s, nil
}

// OptionalString reads a string field, returning "" when absent
func (p Payload) OptionalString(key string) string {
	s, _ := p[key].(string)
	return s
}

// Map reads a required object field from the payload
func (p Payload) Map(key string) (map[string]interface{}, error) {
	v, ok := p[key]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeValidation, "payload field %q is required", key)
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeValidation, "payload field %q must be an object", key)
	}
	return m, nil
}

// Slice reads a required array field from the payload
func (p Payload) Slice(key string) ([]interface{}, error) {
	v, ok := p[key]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeValidation, "payload field %q is required", key)
	}
	s, ok := v.([]interface{})
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeValidation, "payload field %q must be an array", key)
	}
	return s, nil
}
