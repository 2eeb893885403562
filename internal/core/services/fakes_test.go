package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/craftplane/craftplane/internal/core/domain"
	"github.com/craftplane/craftplane/internal/core/ports"
)

// fakeRuntime is an in-memory ports.ContainerRuntime for service tests.
type fakeRuntime struct {
	mu      sync.Mutex
	nextID  int
	states  map[string]string // container id -> raw state
	ips     map[string]string
	removed []string

	failCreate bool

	events chan ports.LifecycleEvent
	errs   chan error
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{
		states: make(map[string]string),
		ips:    make(map[string]string),
		events: make(chan ports.LifecycleEvent, 16),
		errs:   make(chan error, 1),
	}
}

func (f *fakeRuntime) CreateContainer(_ context.Context, spec ports.ContainerSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate {
		return "", fmt.Errorf("%w: engine unavailable", domain.ErrRuntime)
	}
	f.nextID++
	id := fmt.Sprintf("ctr-%d", f.nextID)
	f.states[id] = "created"
	f.ips[id] = fmt.Sprintf("172.17.0.%d", f.nextID+1)
	return id, nil
}

func (f *fakeRuntime) setState(id, state string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.states[id]; !ok {
		return domain.ErrNotFound
	}
	f.states[id] = state
	return nil
}

func (f *fakeRuntime) StartContainer(_ context.Context, id string) error {
	return f.setState(id, "running")
}

func (f *fakeRuntime) StopContainer(_ context.Context, id string) error {
	return f.setState(id, "exited")
}

func (f *fakeRuntime) KillContainer(_ context.Context, id string) error {
	return f.setState(id, "exited")
}

func (f *fakeRuntime) RestartContainer(_ context.Context, id string) error {
	return f.setState(id, "running")
}

func (f *fakeRuntime) RemoveContainer(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.states[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.states, id)
	delete(f.ips, id)
	f.removed = append(f.removed, id)
	return nil
}

func (f *fakeRuntime) ContainerState(_ context.Context, id string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	state, ok := f.states[id]
	if !ok {
		return "", domain.ErrNotFound
	}
	return state, nil
}

func (f *fakeRuntime) ContainerIP(_ context.Context, id string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ip, ok := f.ips[id]
	if !ok {
		return "", domain.ErrNotFound
	}
	return ip, nil
}

func (f *fakeRuntime) Events(context.Context) (<-chan ports.LifecycleEvent, <-chan error) {
	return f.events, f.errs
}

// recordingHub captures bridge broadcasts.
type recordingHub struct {
	mu   sync.Mutex
	sent []broadcast
}

type broadcast struct {
	tenantID string
	msg      any
}

func (r *recordingHub) Broadcast(tenantID string, msg any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, broadcast{tenantID, msg})
}

func (r *recordingHub) all() []broadcast {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]broadcast(nil), r.sent...)
}

// failingAddRegistry wraps an InstanceRegistry and fails Add, for testing
// the create/register consistency path.
type failingAddRegistry struct {
	ports.InstanceRegistry
	addErr error
}

func (f *failingAddRegistry) Add(context.Context, domain.Instance) error {
	return f.addErr
}
