package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/craftplane/craftplane/internal/adapters/registry"
	"github.com/craftplane/craftplane/internal/core/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() LifecycleConfig {
	return LifecycleConfig{
		Image:        "itzg/minecraft-server",
		DataRoot:     "/var/lib/craftplane",
		RconPortBase: 25600,
		RconPortMax:  25699,
		RconPassword: "testpass",
	}
}

func newFixture(t *testing.T) (*Lifecycle, *fakeRuntime, *registry.Memory) {
	t.Helper()
	rt := newFakeRuntime()
	reg := registry.NewMemory()
	lc := NewLifecycle(rt, reg, testConfig(), testLogger())
	return lc, rt, reg
}

func TestCreateProvisionsAndRegisters(t *testing.T) {
	lc, rt, reg := newFixture(t)
	ctx := context.Background()

	inst, err := lc.Create(ctx, "tenant-a", "foo")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if inst.ID == "" || inst.ContainerID == "" {
		t.Errorf("instance missing identifiers: %+v", inst)
	}
	if inst.RconPort != 25600 {
		t.Errorf("rcon port = %d, want 25600", inst.RconPort)
	}
	if inst.OwnerID != "tenant-a" || inst.Subdomain != "foo" {
		t.Errorf("ownership wrong: %+v", inst)
	}

	// Registered and immediately resolvable: status right after create must
	// not report not-found for an instance the registry shows as owned.
	if _, err := reg.BySubdomain(ctx, "foo"); err != nil {
		t.Fatalf("instance not registered: %v", err)
	}
	if got := lc.Status(ctx, inst.ID); got.Key == domain.StatusUnknown {
		t.Errorf("Status right after Create = %q, want a known state", got.Key)
	}
	if state, _ := rt.ContainerState(ctx, inst.ContainerID); state != "created" {
		t.Errorf("container state = %q, want created", state)
	}
}

func TestCreateAllocatesDistinctPorts(t *testing.T) {
	lc, _, _ := newFixture(t)
	ctx := context.Background()

	a, err := lc.Create(ctx, "tenant-a", "foo")
	if err != nil {
		t.Fatalf("Create foo: %v", err)
	}
	b, err := lc.Create(ctx, "tenant-a", "bar")
	if err != nil {
		t.Fatalf("Create bar: %v", err)
	}
	if a.RconPort == b.RconPort {
		t.Errorf("both instances got port %d", a.RconPort)
	}
	if a.ID == b.ID {
		t.Error("both instances got the same uuid")
	}
}

func TestConcurrentCreatesAllocateDistinctPorts(t *testing.T) {
	lc, _, _ := newFixture(t)
	ctx := context.Background()

	// Creates for distinct subdomains hold no common lock; port uniqueness
	// rests entirely on the registry's reservation step.
	const n = 8
	var wg sync.WaitGroup
	insts := make([]domain.Instance, n)
	errs := make([]error, n)
	for i := range insts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			insts[i], errs[i] = lc.Create(ctx, "tenant-a", fmt.Sprintf("world-%d", i))
		}(i)
	}
	wg.Wait()

	seenPorts := make(map[int]string, n)
	seenIDs := make(map[string]bool, n)
	for i, inst := range insts {
		if errs[i] != nil {
			t.Fatalf("Create %s: %v", inst.Subdomain, errs[i])
		}
		if prev, dup := seenPorts[inst.RconPort]; dup {
			t.Errorf("port %d assigned to both %q and %q", inst.RconPort, prev, inst.Subdomain)
		}
		seenPorts[inst.RconPort] = inst.Subdomain
		if seenIDs[inst.ID] {
			t.Errorf("uuid %q assigned twice", inst.ID)
		}
		seenIDs[inst.ID] = true
	}
}

func TestCreateReleasesPortOnProvisionFailure(t *testing.T) {
	lc, rt, _ := newFixture(t)
	ctx := context.Background()

	rt.failCreate = true
	if _, err := lc.Create(ctx, "tenant-a", "foo"); err == nil {
		t.Fatal("Create succeeded despite runtime failure")
	}
	rt.failCreate = false

	inst, err := lc.Create(ctx, "tenant-a", "foo")
	if err != nil {
		t.Fatalf("Create after recovery: %v", err)
	}
	if inst.RconPort != 25600 {
		t.Errorf("port after failed attempt = %d, want the released 25600", inst.RconPort)
	}
}

func TestCreateDuplicateSubdomainConflicts(t *testing.T) {
	lc, _, _ := newFixture(t)
	ctx := context.Background()

	if _, err := lc.Create(ctx, "tenant-a", "foo"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	// Same subdomain, different tenant: still a conflict.
	_, err := lc.Create(ctx, "tenant-b", "foo")
	if !errors.Is(err, domain.ErrSubdomainConflict) {
		t.Errorf("err = %v, want ErrSubdomainConflict", err)
	}
}

func TestCreateRollsBackOnRegisterFailure(t *testing.T) {
	rt := newFakeRuntime()
	reg := &failingAddRegistry{
		InstanceRegistry: registry.NewMemory(),
		addErr:           errors.New("registry down"),
	}
	lc := NewLifecycle(rt, reg, testConfig(), testLogger())

	_, err := lc.Create(context.Background(), "tenant-a", "foo")
	if err == nil {
		t.Fatal("Create succeeded despite registry failure")
	}
	if len(rt.removed) != 1 {
		t.Errorf("provisioned container was not rolled back (removed = %v)", rt.removed)
	}
}

func TestLifecycleVerbs(t *testing.T) {
	lc, rt, _ := newFixture(t)
	ctx := context.Background()

	inst, err := lc.Create(ctx, "tenant-a", "foo")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	steps := []struct {
		name string
		op   func() error
		want string
	}{
		{"start", func() error { return lc.Start(ctx, "foo") }, "running"},
		{"stop", func() error { return lc.Stop(ctx, "foo") }, "exited"},
		{"restart", func() error { return lc.Restart(ctx, "foo") }, "running"},
		{"kill", func() error { return lc.Kill(ctx, "foo") }, "exited"},
	}
	for _, step := range steps {
		if err := step.op(); err != nil {
			t.Fatalf("%s: %v", step.name, err)
		}
		if state, _ := rt.ContainerState(ctx, inst.ContainerID); state != step.want {
			t.Errorf("after %s state = %q, want %q", step.name, state, step.want)
		}
	}

	if err := lc.Start(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Start missing err = %v, want ErrNotFound", err)
	}
}

func TestDeleteRemovesContainerAndRecord(t *testing.T) {
	lc, rt, reg := newFixture(t)
	ctx := context.Background()

	inst, err := lc.Create(ctx, "tenant-a", "foo")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := lc.Delete(ctx, "foo"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := reg.BySubdomain(ctx, "foo"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("record still present after Delete: %v", err)
	}
	if len(rt.removed) != 1 || rt.removed[0] != inst.ContainerID {
		t.Errorf("container not removed: %v", rt.removed)
	}
	if err := lc.Delete(ctx, "foo"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("second Delete err = %v, want ErrNotFound", err)
	}
}

func TestStatusNeverErrors(t *testing.T) {
	lc, rt, _ := newFixture(t)
	ctx := context.Background()

	if got := lc.Status(ctx, "no-such-id"); got.Key != domain.StatusUnknown {
		t.Errorf("unknown instance status = %q, want unknown", got.Key)
	}

	inst, err := lc.Create(ctx, "tenant-a", "foo")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := lc.Start(ctx, "foo"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := lc.Status(ctx, inst.ID); got.Key != domain.StatusRunning {
		t.Errorf("status = %q, want running", got.Key)
	}

	// Runtime lost the container: still no error, just unknown.
	rt.RemoveContainer(ctx, inst.ContainerID)
	if got := lc.Status(ctx, inst.ID); got.Key != domain.StatusUnknown {
		t.Errorf("status after container loss = %q, want unknown", got.Key)
	}
}

func TestResolveIP(t *testing.T) {
	lc, _, _ := newFixture(t)
	ctx := context.Background()

	if _, err := lc.ResolveIP(ctx, "foo"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("missing instance err = %v, want ErrNotFound", err)
	}

	if _, err := lc.Create(ctx, "tenant-a", "foo"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	ip, err := lc.ResolveIP(ctx, "foo")
	if err != nil || ip == "" {
		t.Errorf("ResolveIP = %q, %v", ip, err)
	}
}

// End-to-end ownership/quota scenario across gate and manager.
func TestCreateDeleteQuotaScenario(t *testing.T) {
	lc, _, reg := newFixture(t)
	gate := NewGate(reg, reg)
	ctx := context.Background()

	reg.PutTenant(domain.Tenant{ID: "tenant-a", Quota: 1})
	reg.PutTenant(domain.Tenant{ID: "tenant-b", Quota: 1})

	create := func(tenantID, subdomain string) error {
		full, err := gate.ReachedCreationLimit(ctx, tenantID)
		if err != nil {
			return err
		}
		if full {
			return domain.ErrQuotaExceeded
		}
		_, err = lc.Create(ctx, tenantID, subdomain)
		return err
	}

	if err := create("tenant-a", "foo"); err != nil {
		t.Fatalf("tenant-a create foo: %v", err)
	}
	if err := create("tenant-a", "bar"); !errors.Is(err, domain.ErrQuotaExceeded) {
		t.Errorf("tenant-a create bar err = %v, want ErrQuotaExceeded", err)
	}
	if err := create("tenant-b", "foo"); !errors.Is(err, domain.ErrSubdomainConflict) {
		t.Errorf("tenant-b create foo err = %v, want ErrSubdomainConflict", err)
	}
	if err := lc.Delete(ctx, "foo"); err != nil {
		t.Fatalf("tenant-a delete foo: %v", err)
	}
	if err := create("tenant-a", "bar"); err != nil {
		t.Errorf("tenant-a create bar after delete: %v", err)
	}
}
