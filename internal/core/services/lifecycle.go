package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/craftplane/craftplane/internal/core/domain"
	"github.com/craftplane/craftplane/internal/core/ports"
)

// LifecycleConfig carries the provisioning parameters for new instances.
type LifecycleConfig struct {
	Image        string // container image every instance runs
	DataRoot     string // host directory holding per-instance data dirs
	RconPortBase int    // first host port handed out for consoles
	RconPortMax  int    // last host port handed out for consoles
	RconPassword string // shared console secret injected into containers
}

// Lifecycle creates, supervises, and tears down game-server instances. A
// keyed mutex serializes lifecycle mutations per subdomain; operations on
// different subdomains run concurrently.
type Lifecycle struct {
	runtime   ports.ContainerRuntime
	instances ports.InstanceRegistry
	cfg       LifecycleConfig
	logger    *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLifecycle(runtime ports.ContainerRuntime, instances ports.InstanceRegistry, cfg LifecycleConfig, logger *slog.Logger) *Lifecycle {
	return &Lifecycle{
		runtime:   runtime,
		instances: instances,
		cfg:       cfg,
		logger:    logger,
		locks:     make(map[string]*sync.Mutex),
	}
}

// lock returns the mutex serializing operations on one subdomain. Lock
// entries are never reclaimed; the set of subdomains ever touched is small.
func (l *Lifecycle) lock(subdomain string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[subdomain]
	if !ok {
		m = &sync.Mutex{}
		l.locks[subdomain] = m
	}
	return m
}

// Create provisions a new instance for tenantID under subdomain: a fresh
// uuid names the data directory, a console port is reserved through the
// registry, the container is created, and the instance is registered.
// Registration consumes the port reservation; any failure before that point
// releases it. If registration fails the container is torn down again, and a
// teardown failure is logged as an operational inconsistency rather than
// dropped.
func (l *Lifecycle) Create(ctx context.Context, tenantID, subdomain string) (domain.Instance, error) {
	m := l.lock(subdomain)
	m.Lock()
	defer m.Unlock()

	if _, err := l.instances.BySubdomain(ctx, subdomain); err == nil {
		return domain.Instance{}, domain.ErrSubdomainConflict
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.Instance{}, err
	}

	port, err := l.instances.AllocatePort(ctx, l.cfg.RconPortBase, l.cfg.RconPortMax)
	if err != nil {
		return domain.Instance{}, err
	}

	inst := domain.Instance{
		ID:        uuid.NewString(),
		Subdomain: subdomain,
		RconPort:  port,
		OwnerID:   tenantID,
		CreatedAt: time.Now().UTC(),
	}

	containerID, err := l.runtime.CreateContainer(ctx, ports.ContainerSpec{
		Name:     subdomain,
		Image:    l.cfg.Image,
		DataDir:  filepath.Join(l.cfg.DataRoot, inst.ID),
		RconPort: port,
		Env: []string{
			"EULA=TRUE",
			"ENABLE_RCON=true",
			"RCON_PASSWORD=" + l.cfg.RconPassword,
		},
	})
	if err != nil {
		l.instances.ReleasePort(ctx, port)
		return domain.Instance{}, err
	}
	inst.ContainerID = containerID

	if err := l.instances.Add(ctx, inst); err != nil {
		l.instances.ReleasePort(ctx, port)
		// Roll the runtime unit back so the two stores stay consistent.
		if rmErr := l.runtime.RemoveContainer(ctx, containerID); rmErr != nil {
			l.logger.Error("inconsistency: container provisioned but not registered and rollback failed",
				"subdomain", subdomain, "container", containerID,
				"register_err", err, "rollback_err", rmErr)
			return domain.Instance{}, fmt.Errorf("register instance: %w", errors.Join(err, rmErr))
		}
		return domain.Instance{}, err
	}

	l.logger.Info("instance created", "subdomain", subdomain, "instance", inst.ID, "rcon_port", port)
	return inst, nil
}

// Start brings the instance's container up.
func (l *Lifecycle) Start(ctx context.Context, subdomain string) error {
	return l.withInstance(ctx, subdomain, func(inst domain.Instance) error {
		return l.runtime.StartContainer(ctx, inst.ContainerID)
	})
}

// Stop shuts the instance down gracefully.
func (l *Lifecycle) Stop(ctx context.Context, subdomain string) error {
	return l.withInstance(ctx, subdomain, func(inst domain.Instance) error {
		return l.runtime.StopContainer(ctx, inst.ContainerID)
	})
}

// Kill forces the instance down without a grace period.
func (l *Lifecycle) Kill(ctx context.Context, subdomain string) error {
	return l.withInstance(ctx, subdomain, func(inst domain.Instance) error {
		return l.runtime.KillContainer(ctx, inst.ContainerID)
	})
}

// Restart bounces the instance. Call it directly for a synchronous restart
// or hand it to the task pool for a deferred one.
func (l *Lifecycle) Restart(ctx context.Context, subdomain string) error {
	return l.withInstance(ctx, subdomain, func(inst domain.Instance) error {
		return l.runtime.RestartContainer(ctx, inst.ContainerID)
	})
}

// Delete removes the container and the registry record. The instance's data
// directory is retained: destroying world data is a deliberate separate
// step, never a side effect of deleting the server.
func (l *Lifecycle) Delete(ctx context.Context, subdomain string) error {
	return l.withInstance(ctx, subdomain, func(inst domain.Instance) error {
		if err := l.runtime.RemoveContainer(ctx, inst.ContainerID); err != nil {
			return err
		}
		if err := l.instances.Remove(ctx, subdomain); err != nil {
			l.logger.Error("inconsistency: container removed but instance still registered",
				"subdomain", subdomain, "container", inst.ContainerID, "err", err)
			return err
		}
		l.logger.Info("instance deleted", "subdomain", subdomain, "instance", inst.ID)
		return nil
	})
}

// withInstance resolves subdomain and runs op under the subdomain's lock.
func (l *Lifecycle) withInstance(ctx context.Context, subdomain string, op func(domain.Instance) error) error {
	m := l.lock(subdomain)
	m.Lock()
	defer m.Unlock()

	inst, err := l.instances.BySubdomain(ctx, subdomain)
	if err != nil {
		return err
	}
	return op(inst)
}

// Status reports the instance's current runtime state by id. It never
// returns an error: callers poll it for UI, so anything unresolvable is
// simply unknown.
func (l *Lifecycle) Status(ctx context.Context, instanceID string) domain.RuntimeStatus {
	inst, err := l.instances.ByID(ctx, instanceID)
	if err != nil {
		return domain.Status(domain.StatusUnknown)
	}
	state, err := l.runtime.ContainerState(ctx, inst.ContainerID)
	if err != nil {
		return domain.Status(domain.StatusUnknown)
	}
	return domain.StatusForState(state)
}

// ResolveIP returns the container-internal address for subdomain, resolved
// at query time.
func (l *Lifecycle) ResolveIP(ctx context.Context, subdomain string) (string, error) {
	inst, err := l.instances.BySubdomain(ctx, subdomain)
	if err != nil {
		return "", err
	}
	return l.runtime.ContainerIP(ctx, inst.ContainerID)
}
