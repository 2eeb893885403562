package docker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/events"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"

	"github.com/craftplane/craftplane/internal/core/domain"
	"github.com/craftplane/craftplane/internal/core/ports"
)

// rcon listens on a fixed port inside every server container; isolation
// between tenants comes from the per-instance host port it is published on.
const rconContainerPort = "25575/tcp"

// Adapter implements ports.ContainerRuntime using the Docker SDK.
type Adapter struct {
	cli       *client.Client
	callLimit time.Duration // deadline applied to every engine call
}

// NewAdapter creates a new Docker adapter instance.
func NewAdapter(callTimeout time.Duration) (*Adapter, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	if callTimeout <= 0 {
		callTimeout = 30 * time.Second
	}
	return &Adapter{cli: cli, callLimit: callTimeout}, nil
}

func (a *Adapter) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, a.callLimit)
}

// CreateContainer provisions the runtime unit for one instance: data
// directory bind-mounted at the server root, rcon published on the
// instance's allocated host port. The container is created stopped.
func (a *Adapter) CreateContainer(ctx context.Context, spec ports.ContainerSpec) (string, error) {
	ctx, cancel := a.bound(ctx)
	defer cancel()

	hostPort := strconv.Itoa(spec.RconPort)
	resp, err := a.cli.ContainerCreate(ctx,
		&container.Config{
			Image: spec.Image,
			Env:   spec.Env,
			ExposedPorts: nat.PortSet{
				rconContainerPort: struct{}{},
			},
		},
		&container.HostConfig{
			Binds: []string{spec.DataDir + ":/data"},
			PortBindings: nat.PortMap{
				rconContainerPort: []nat.PortBinding{{HostIP: "0.0.0.0", HostPort: hostPort}},
			},
			RestartPolicy: container.RestartPolicy{Name: container.RestartPolicyUnlessStopped},
		},
		nil, nil, spec.Name)
	if err != nil {
		return "", fmt.Errorf("%w: create container: %v", domain.ErrRuntime, err)
	}
	return resp.ID, nil
}

func (a *Adapter) StartContainer(ctx context.Context, id string) error {
	ctx, cancel := a.bound(ctx)
	defer cancel()
	if err := a.cli.ContainerStart(ctx, id, types.ContainerStartOptions{}); err != nil {
		return fmt.Errorf("%w: start container: %v", domain.ErrRuntime, err)
	}
	return nil
}

// StopContainer stops gracefully, giving the server time to save and exit.
func (a *Adapter) StopContainer(ctx context.Context, id string) error {
	ctx, cancel := a.bound(ctx)
	defer cancel()
	grace := 10
	if err := a.cli.ContainerStop(ctx, id, container.StopOptions{Timeout: &grace}); err != nil {
		return fmt.Errorf("%w: stop container: %v", domain.ErrRuntime, err)
	}
	return nil
}

func (a *Adapter) KillContainer(ctx context.Context, id string) error {
	ctx, cancel := a.bound(ctx)
	defer cancel()
	if err := a.cli.ContainerKill(ctx, id, "SIGKILL"); err != nil {
		return fmt.Errorf("%w: kill container: %v", domain.ErrRuntime, err)
	}
	return nil
}

func (a *Adapter) RestartContainer(ctx context.Context, id string) error {
	ctx, cancel := a.bound(ctx)
	defer cancel()
	grace := 10
	if err := a.cli.ContainerRestart(ctx, id, container.StopOptions{Timeout: &grace}); err != nil {
		return fmt.Errorf("%w: restart container: %v", domain.ErrRuntime, err)
	}
	return nil
}

func (a *Adapter) RemoveContainer(ctx context.Context, id string) error {
	ctx, cancel := a.bound(ctx)
	defer cancel()
	if err := a.cli.ContainerRemove(ctx, id, types.ContainerRemoveOptions{Force: true}); err != nil {
		return fmt.Errorf("%w: remove container: %v", domain.ErrRuntime, err)
	}
	return nil
}

// ContainerState returns the engine's raw state string ("running", "exited",
// ...). Callers map it into the canonical status model.
func (a *Adapter) ContainerState(ctx context.Context, id string) (string, error) {
	ctx, cancel := a.bound(ctx)
	defer cancel()
	info, err := a.cli.ContainerInspect(ctx, id)
	if err != nil {
		if client.IsErrNotFound(err) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("%w: inspect container: %v", domain.ErrRuntime, err)
	}
	return info.State.Status, nil
}

// ContainerIP resolves the container-internal address at query time; it is
// never cached because the engine reassigns it across restarts.
func (a *Adapter) ContainerIP(ctx context.Context, id string) (string, error) {
	ctx, cancel := a.bound(ctx)
	defer cancel()
	info, err := a.cli.ContainerInspect(ctx, id)
	if err != nil {
		if client.IsErrNotFound(err) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("%w: inspect container: %v", domain.ErrRuntime, err)
	}
	if info.NetworkSettings == nil {
		return "", fmt.Errorf("%w: container has no network settings", domain.ErrRuntime)
	}
	if ip := info.NetworkSettings.IPAddress; ip != "" {
		return ip, nil
	}
	for _, net := range info.NetworkSettings.Networks {
		if net.IPAddress != "" {
			return net.IPAddress, nil
		}
	}
	return "", fmt.Errorf("%w: container has no address", domain.ErrRuntime)
}

// Events subscribes to the engine's event stream, pre-filtered to container
// lifecycle actions. The returned channels follow the ports contract: both
// close on ctx cancellation, errors terminate the subscription.
func (a *Adapter) Events(ctx context.Context) (<-chan ports.LifecycleEvent, <-chan error) {
	f := filters.NewArgs()
	f.Add("type", "container")
	f.Add("event", "start")
	f.Add("event", "stop")
	f.Add("event", "die")
	f.Add("event", "restart")

	msgs, errs := a.cli.Events(ctx, types.EventsOptions{Filters: f})

	out := make(chan ports.LifecycleEvent)
	outErrs := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(outErrs)
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-errs:
				if err != nil {
					outErrs <- fmt.Errorf("%w: event stream: %v", domain.ErrRuntime, err)
				}
				return
			case msg := <-msgs:
				if msg.Type != events.ContainerEventType {
					continue
				}
				ev := ports.LifecycleEvent{
					Type:        string(msg.Type),
					Action:      string(msg.Action),
					ContainerID: msg.Actor.ID,
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, outErrs
}
