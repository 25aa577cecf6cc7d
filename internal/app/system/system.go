// Package system manages the lifecycle of long-running application
// components.
package system

import (
	"context"
	"fmt"
)

// Service is a lifecycle-managed component. The manager starts services
// in registration order and stops them in reverse.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// NoopService satisfies Service for components with no background work.
type NoopService struct {
	ServiceName string
}

func (s NoopService) Name() string                   { return s.ServiceName }
func (s NoopService) Start(context.Context) error    { return nil }
func (s NoopService) Stop(context.Context) error     { return nil }

// Manager registers and drives services.
type Manager struct {
	services []Service
	names    map[string]bool
	started  bool
}

// NewManager returns an empty manager.
func NewManager() *Manager {
	return &Manager{names: make(map[string]bool)}
}

// Register adds a service. Names must be unique and registration must
// happen before Start.
func (m *Manager) Register(s Service) error {
	if m.started {
		return fmt.Errorf("cannot register %s after start", s.Name())
	}
	if m.names[s.Name()] {
		return fmt.Errorf("service %s already registered", s.Name())
	}
	m.names[s.Name()] = true
	m.services = append(m.services, s)
	return nil
}

// Start starts every service in registration order. The first failure
// stops the services already started, in reverse order.
func (m *Manager) Start(ctx context.Context) error {
	for i, s := range m.services {
		if err := s.Start(ctx); err != nil {
			for j := i - 1; j >= 0; j-- {
				_ = m.services[j].Stop(ctx)
			}
			return fmt.Errorf("start %s: %w", s.Name(), err)
		}
	}
	m.started = true
	return nil
}

// Stop stops every service in reverse registration order, returning the
// first error after attempting all of them.
func (m *Manager) Stop(ctx context.Context) error {
	var firstErr error
	for i := len(m.services) - 1; i >= 0; i-- {
		if err := m.services[i].Stop(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("stop %s: %w", m.services[i].Name(), err)
		}
	}
	m.started = false
	return firstErr
}
