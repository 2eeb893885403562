package ports

import (
	"context"

	"github.com/craftplane/craftplane/internal/core/domain"
)

// InstanceRegistry persists the instance records and the tenant↔instance
// ownership relation. Writes are serialized by the implementation; reads may
// run concurrently. Add must reject a subdomain already registered by any
// tenant with domain.ErrSubdomainConflict.
type InstanceRegistry interface {
	Add(ctx context.Context, inst domain.Instance) error
	Remove(ctx context.Context, subdomain string) error
	BySubdomain(ctx context.Context, subdomain string) (domain.Instance, error)
	ByID(ctx context.Context, id string) (domain.Instance, error)
	ByContainerID(ctx context.Context, containerID string) (domain.Instance, error)
	OwnedBy(ctx context.Context, tenantID string) ([]domain.Instance, error)

	// AllocatePort atomically reserves a free console port in [base, max].
	// Reservation and the registered instances share one uniqueness domain,
	// so concurrent creates can never be handed the same port. The
	// reservation is consumed when Add registers an instance carrying the
	// port, or returned with ReleasePort when provisioning fails.
	AllocatePort(ctx context.Context, base, max int) (int, error)
	ReleasePort(ctx context.Context, port int)
}

// TenantRegistry is the read side of the external account store.
type TenantRegistry interface {
	Tenant(ctx context.Context, id string) (domain.Tenant, error)
}

// Authenticator resolves an API credential to a tenant id. Unauthenticated
// requests never reach an ownership check.
type Authenticator interface {
	TenantForToken(ctx context.Context, token string) (string, error)
}
