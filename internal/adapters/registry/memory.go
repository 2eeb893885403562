// Package registry provides the in-memory implementation of the tenant and
// instance registries. The production deployment backs these ports with the
// account service's relational store; this adapter carries wiring, tests,
// and single-node deployments.
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/craftplane/craftplane/internal/core/domain"
)

// Memory is a registry of tenants, instances, and API tokens guarded by a
// single RWMutex: concurrent reads, serialized writes.
type Memory struct {
	mu        sync.RWMutex
	tenants   map[string]domain.Tenant   // by tenant id
	tokens    map[string]string          // api token -> tenant id
	instances map[string]domain.Instance // by subdomain
	reserved  map[int]bool               // console ports allocated but not yet registered
}

func NewMemory() *Memory {
	return &Memory{
		tenants:   make(map[string]domain.Tenant),
		tokens:    make(map[string]string),
		instances: make(map[string]domain.Instance),
		reserved:  make(map[int]bool),
	}
}

// PutTenant registers or replaces a tenant record and its API token.
func (m *Memory) PutTenant(tenant domain.Tenant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tenants[tenant.ID] = tenant
	if tenant.APIToken != "" {
		m.tokens[tenant.APIToken] = tenant.ID
	}
}

func (m *Memory) Tenant(_ context.Context, id string) (domain.Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tenants[id]
	if !ok {
		return domain.Tenant{}, domain.ErrNotFound
	}
	return t, nil
}

func (m *Memory) TenantForToken(_ context.Context, token string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.tokens[token]
	if !ok {
		return "", domain.ErrAccessDenied
	}
	return id, nil
}

// Add registers an instance. The subdomain is the system-wide unique key;
// a duplicate fails with ErrSubdomainConflict regardless of which tenant
// already holds it. A nonzero console port must be unique across registered
// instances; registering consumes any reservation held for it.
func (m *Memory) Add(_ context.Context, inst domain.Instance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.instances[inst.Subdomain]; exists {
		return domain.ErrSubdomainConflict
	}
	if inst.RconPort != 0 {
		for _, other := range m.instances {
			if other.RconPort == inst.RconPort {
				return fmt.Errorf("%w: console port %d already registered to %q",
					domain.ErrRuntime, inst.RconPort, other.Subdomain)
			}
		}
		delete(m.reserved, inst.RconPort)
	}
	m.instances[inst.Subdomain] = inst
	return nil
}

func (m *Memory) Remove(_ context.Context, subdomain string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.instances[subdomain]; !exists {
		return domain.ErrNotFound
	}
	delete(m.instances, subdomain)
	return nil
}

func (m *Memory) BySubdomain(_ context.Context, subdomain string) (domain.Instance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.instances[subdomain]
	if !ok {
		return domain.Instance{}, domain.ErrNotFound
	}
	return inst, nil
}

func (m *Memory) ByID(_ context.Context, id string) (domain.Instance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, inst := range m.instances {
		if inst.ID == id {
			return inst, nil
		}
	}
	return domain.Instance{}, domain.ErrNotFound
}

func (m *Memory) ByContainerID(_ context.Context, containerID string) (domain.Instance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, inst := range m.instances {
		if inst.ContainerID == containerID {
			return inst, nil
		}
	}
	return domain.Instance{}, domain.ErrNotFound
}

func (m *Memory) OwnedBy(_ context.Context, tenantID string) ([]domain.Instance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var owned []domain.Instance
	for _, inst := range m.instances {
		if inst.OwnerID == tenantID {
			owned = append(owned, inst)
		}
	}
	return owned, nil
}

// AllocatePort reserves the lowest console port in [base, max] that is
// neither registered to an instance nor already reserved. The scan and the
// reservation happen under the write lock, so concurrent creates are always
// handed distinct ports.
func (m *Memory) AllocatePort(_ context.Context, base, max int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	used := make(map[int]bool, len(m.instances))
	for _, inst := range m.instances {
		used[inst.RconPort] = true
	}
	for p := base; p <= max; p++ {
		if used[p] || m.reserved[p] {
			continue
		}
		m.reserved[p] = true
		return p, nil
	}
	return 0, fmt.Errorf("%w: console port range %d-%d exhausted", domain.ErrRuntime, base, max)
}

// ReleasePort returns an unconsumed reservation to the pool.
func (m *Memory) ReleasePort(_ context.Context, port int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.reserved, port)
}
