package services

import (
	"context"
	"errors"

	"github.com/craftplane/craftplane/internal/core/domain"
	"github.com/craftplane/craftplane/internal/core/ports"
)

// Gate performs the per-request ownership and quota checks. It holds no
// state of its own; it wraps the registries.
type Gate struct {
	tenants   ports.TenantRegistry
	instances ports.InstanceRegistry
}

func NewGate(tenants ports.TenantRegistry, instances ports.InstanceRegistry) *Gate {
	return &Gate{tenants: tenants, instances: instances}
}

// Authorize returns the instance only when subdomain is owned by tenantID.
// Every failure collapses into ErrAccessDenied: a tenant probing a
// subdomain learns nothing about whether it exists.
func (g *Gate) Authorize(ctx context.Context, tenantID, subdomain string) (domain.Instance, error) {
	inst, err := g.instances.BySubdomain(ctx, subdomain)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Instance{}, domain.ErrAccessDenied
		}
		return domain.Instance{}, err
	}
	if inst.OwnerID != tenantID {
		return domain.Instance{}, domain.ErrAccessDenied
	}
	return inst, nil
}

// ReachedCreationLimit reports whether the tenant's live instance count has
// reached its quota.
func (g *Gate) ReachedCreationLimit(ctx context.Context, tenantID string) (bool, error) {
	tenant, err := g.tenants.Tenant(ctx, tenantID)
	if err != nil {
		return false, err
	}
	owned, err := g.instances.OwnedBy(ctx, tenantID)
	if err != nil {
		return false, err
	}
	return len(owned) >= tenant.Quota, nil
}
