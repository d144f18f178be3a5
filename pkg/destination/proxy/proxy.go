// Package proxy wraps a destination driver with the implicit
// connect-before / disconnect-after lifecycle. Callers never manage
// connection state: every action invocation opens the driver's client
// handle, runs the action, and tears the handle down again.
//
// Dispatch is table-driven: the wrapper routes invocations through the
// driver's Actions() map rather than intercepting arbitrary member access,
// so an unknown action name fails with an explicit error naming it.
package proxy

import (
	"context"
	"sync"

	"github.com/hzerrad/buildable-connections/pkg/config"
	"github.com/hzerrad/buildable-connections/pkg/destination/core"
	"github.com/hzerrad/buildable-connections/pkg/errors"
	"github.com/hzerrad/buildable-connections/pkg/logger"
	"go.uber.org/zap"
)

// Proxy enforces the driver lifecycle around every domain action.
//
// Concurrent calls through one Proxy are serialized: the underlying driver
// holds shared handle state (client, tenant set) that one in-flight call
// owns at a time. Callers that need parallelism open separate driver
// instances through the registry.
type Proxy struct {
	driver  core.Driver
	actions map[string]core.ActionFunc
	logger  *zap.Logger
	mu      sync.Mutex
}

// Wrap returns a lifecycle proxy around the driver. The driver's dispatch
// table is captured once at wrap time.
func Wrap(driver core.Driver) *Proxy {
	return &Proxy{
		driver:  driver,
		actions: driver.Actions(),
		logger:  logger.Get().With(zap.String("destination", driver.Name())),
	}
}

// Driver returns the wrapped driver.
func (p *Proxy) Driver() core.Driver {
	return p.driver
}

// Actions returns the names of the invocable domain actions.
func (p *Proxy) Actions() []string {
	names := make([]string, 0, len(p.actions))
	for name := range p.actions {
		names = append(names, name)
	}
	return names
}

// Do invokes a domain action with the driver's statically bound
// configuration.
func (p *Proxy) Do(ctx context.Context, action string, payload core.Payload) (interface{}, error) {
	return p.invoke(ctx, action, payload, nil)
}

// DoWithConfig invokes a domain action, connecting with override fields
// taking precedence over the bound configuration.
func (p *Proxy) DoWithConfig(ctx context.Context, action string, payload core.Payload, override *config.DestinationConfig) (interface{}, error) {
	return p.invoke(ctx, action, payload, override)
}

// TestConnection connects, probes the destination, and disconnects. The
// returned result reports query-level failures; an error means the lifecycle
// itself failed.
func (p *Proxy) TestConnection(ctx context.Context) (*core.TestResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.driver.Connect(ctx, nil); err != nil {
		p.logger.Error("connect failed", zap.Error(err))
		return nil, err
	}
	defer p.disconnect(ctx)

	return p.driver.TestConnection(ctx)
}

func (p *Proxy) invoke(ctx context.Context, action string, payload core.Payload, override *config.DestinationConfig) (interface{}, error) {
	fn, ok := p.actions[action]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeNotFound,
			"action %q not found on destination %s", action, p.driver.Name())
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.driver.Connect(ctx, override); err != nil {
		p.logger.Error("connect failed",
			zap.String("action", action),
			zap.Error(err))
		return nil, err
	}
	// The handle is released on every exit path, success or failure.
	defer p.disconnect(ctx)

	result, err := fn(ctx, payload)
	if err != nil {
		p.logger.Error("action failed",
			zap.String("action", action),
			zap.Error(err))
		return nil, err
	}

	return result, nil
}

func (p *Proxy) disconnect(ctx context.Context) {
	if err := p.driver.Disconnect(ctx); err != nil {
		p.logger.Error("disconnect failed", zap.Error(err))
	}
}
