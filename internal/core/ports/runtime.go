package ports

import "context"

// ContainerSpec describes the runtime unit to provision for one instance.
type ContainerSpec struct {
	Name     string // container name, set to the instance subdomain
	Image    string
	DataDir  string // host directory bind-mounted as the server's data volume
	RconPort int    // host port published to the container's rcon port
	Env      []string
}

// LifecycleEvent is one runtime-emitted transition notification.
type LifecycleEvent struct {
	Type        string // event category, e.g. "container"
	Action      string // start, stop, die, restart, ...
	ContainerID string
}

// ContainerRuntime defines the operations the control plane needs from a
// container engine. This interface allows us to switch between Docker,
// Podman, or Kubernetes without changing the business logic.
type ContainerRuntime interface {
	CreateContainer(ctx context.Context, spec ContainerSpec) (string, error)
	StartContainer(ctx context.Context, id string) error
	StopContainer(ctx context.Context, id string) error
	KillContainer(ctx context.Context, id string) error
	RestartContainer(ctx context.Context, id string) error
	RemoveContainer(ctx context.Context, id string) error

	// ContainerState returns the raw runtime state string for id.
	ContainerState(ctx context.Context, id string) (string, error)

	// ContainerIP returns the container-internal network address.
	ContainerIP(ctx context.Context, id string) (string, error)

	// Events subscribes to the runtime's global lifecycle event stream. Both
	// channels close when ctx is cancelled; a value on the error channel
	// terminates the subscription.
	Events(ctx context.Context) (<-chan LifecycleEvent, <-chan error)
}
