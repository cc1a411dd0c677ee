// Package di wires the offerd services together.
package di

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"sort"
	"strings"
	"sync"
)

var ErrServiceNotFound = errors.New("service not found")

// Container is the dependency injection container.
// It manages service registration and resolution.
type Container struct {
	*state

	// chain lists the services whose builders led to this view, outermost first
	chain []string
}

type state struct {
	mu       sync.Mutex
	services map[string]interface{}
	builders map[string]Builder
	inflight map[string]*build

	// order in which services were added, for Close
	order []string
}

// build is a builder run other callers of Get can wait for
type build struct {
	done    chan struct{}
	service interface{}
	err     error
}

// Builder is a function that creates a service instance. It may resolve
// other services from the container it is handed.
type Builder func(c *Container) (interface{}, error)

// New creates a new dependency injection container.
func New() *Container {
	return &Container{state: &state{
		services: make(map[string]interface{}),
		builders: make(map[string]Builder),
		inflight: make(map[string]*build),
	}}
}

// Register registers a service instance.
func (c *Container) Register(name string, service interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.services[name]; !exists {
		c.order = append(c.order, name)
	}
	c.services[name] = service
}

// RegisterBuilder registers a builder function for lazy instantiation.
func (c *Container) RegisterBuilder(name string, builder Builder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.builders[name] = builder
}

// Get retrieves a service by name, building it on first use. The lock is
// not held while a builder runs so builders can resolve their own
// dependencies. Concurrent first uses of a service wait for a single build;
// a builder needing, directly or not, its own service is reported as a
// dependency cycle.
func (c *Container) Get(name string) (interface{}, error) {
	c.mu.Lock()
	if service, exists := c.services[name]; exists {
		c.mu.Unlock()
		return service, nil
	}
	builder, hasBuilder := c.builders[name]
	if !hasBuilder {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrServiceNotFound, name)
	}
	if slices.Contains(c.chain, name) {
		c.mu.Unlock()
		return nil, fmt.Errorf("dependency cycle: %s -> %s", strings.Join(c.chain, " -> "), name)
	}
	if b := c.inflight[name]; b != nil {
		c.mu.Unlock()
		<-b.done
		return b.service, b.err
	}
	b := &build{done: make(chan struct{})}
	c.inflight[name] = b
	c.mu.Unlock()

	view := &Container{state: c.state, chain: append(slices.Clip(c.chain), name)}
	service, err := builder(view)

	c.mu.Lock()
	delete(c.inflight, name)
	if err != nil {
		b.err = fmt.Errorf("failed to build %s: %w", name, err)
	} else {
		b.service = service
		c.services[name] = service
		c.order = append(c.order, name)
	}
	c.mu.Unlock()
	close(b.done)
	return b.service, b.err
}

// MustGet retrieves a service or panics if not found.
func (c *Container) MustGet(name string) interface{} {
	service, err := c.Get(name)
	if err != nil {
		panic(err)
	}
	return service
}

// Has checks if a service is registered.
func (c *Container) Has(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.services[name]; exists {
		return true
	}
	_, exists := c.builders[name]
	return exists
}

// ServiceNames returns all registered service names in sorted order.
func (c *Container) ServiceNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make(map[string]bool)
	for name := range c.services {
		names[name] = true
	}
	for name := range c.builders {
		names[name] = true
	}

	result := make([]string, 0, len(names))
	for name := range names {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

// Close closes every built service implementing io.Closer, most recently
// built first, and forgets all instances.
func (c *Container) Close() error {
	c.mu.Lock()
	order := c.order
	services := c.services
	c.order = nil
	c.services = make(map[string]interface{})
	c.mu.Unlock()

	var errs []error
	for i := len(order) - 1; i >= 0; i-- {
		closer, ok := services[order[i]].(io.Closer)
		if !ok {
			continue
		}
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", order[i], err))
		}
	}
	return errors.Join(errs...)
}

// Service names constants for type-safe access.
const (
	ServiceConfig     = "config"
	ServiceLogger     = "logger"
	ServiceStorage    = "storage"
	ServiceOfferStore = "offerstore"
	ServiceAudit      = "audit"
	ServiceBus        = "event.bus"
	ServiceRegistry   = "registry"
	ServiceBank       = "bank"
	ServiceLedger     = "ledger"
	ServiceEngine     = "market.engine"
	ServiceRPCServer  = "rpc.server"
	ServiceWebSocket  = "rpc.websocket"
)
