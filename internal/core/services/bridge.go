package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/craftplane/craftplane/internal/core/domain"
	"github.com/craftplane/craftplane/internal/core/ports"
)

// StatusUpdate is published to the owning tenant's live channel for every
// lifecycle transition of one of their instances.
type StatusUpdate struct {
	Event     string `json:"event"`
	Subdomain string `json:"subdomain"`
	Status    string `json:"status"`
	Label     string `json:"label"`
	Color     string `json:"color"`
}

// Bridge consumes the runtime's global lifecycle event stream and fans each
// transition out to the owning tenant's live channel. Events for containers
// the registry does not know (sidecars, other workloads on the same engine)
// are dropped, and tenants never see each other's transitions.
type Bridge struct {
	runtime   ports.ContainerRuntime
	instances ports.InstanceRegistry
	hub       ports.StatusBroadcaster
	logger    *slog.Logger

	// resubscribe delay after a stream error
	retryDelay time.Duration
}

func NewBridge(runtime ports.ContainerRuntime, instances ports.InstanceRegistry, hub ports.StatusBroadcaster, logger *slog.Logger) *Bridge {
	return &Bridge{
		runtime:    runtime,
		instances:  instances,
		hub:        hub,
		logger:     logger,
		retryDelay: 2 * time.Second,
	}
}

// Run consumes events until ctx is cancelled, resubscribing with a delay
// when the stream fails. Missed transitions are not replayed; a client that
// reconnects sees only current state via polling.
func (b *Bridge) Run(ctx context.Context) error {
	for {
		err := b.consume(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			b.logger.Warn("event stream lost, resubscribing", "err", err, "delay", b.retryDelay)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.retryDelay):
		}
	}
}

// consume drains one subscription until it ends.
func (b *Bridge) consume(ctx context.Context) error {
	events, errs := b.runtime.Events(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-errs:
			if !ok {
				return nil
			}
			return err
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			b.publish(ctx, ev)
		}
	}
}

func (b *Bridge) publish(ctx context.Context, ev ports.LifecycleEvent) {
	if ev.Type != "container" {
		return
	}
	status, ok := domain.StatusForAction(ev.Action)
	if !ok {
		return
	}
	inst, err := b.instances.ByContainerID(ctx, ev.ContainerID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			b.logger.Warn("resolving event container", "container", ev.ContainerID, "err", err)
		}
		return
	}
	b.hub.Broadcast(inst.OwnerID, StatusUpdate{
		Event:     "status",
		Subdomain: inst.Subdomain,
		Status:    string(status.Key),
		Label:     status.Label,
		Color:     status.Color,
	})
}
