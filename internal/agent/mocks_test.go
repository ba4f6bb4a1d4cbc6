package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/digitalocean/go-libvirt"

	"github.com/jbweber/jimvn/internal/bus"
	"github.com/jbweber/jimvn/internal/command"
)

// mockQueue returns queued payloads in order, then nil.
type mockQueue struct {
	mu    sync.Mutex
	items [][]byte
	err   error
	pops  int

	PopFunc func() ([]byte, error)
}

func (m *mockQueue) Pop(ctx context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pops++
	if m.PopFunc != nil {
		return m.PopFunc()
	}
	if m.err != nil {
		return nil, m.err
	}
	if len(m.items) == 0 {
		return nil, nil
	}
	item := m.items[0]
	m.items = m.items[1:]
	return item, nil
}

// mockChannel behaves like mockQueue for the operation channel.
type mockChannel struct {
	mu    sync.Mutex
	items [][]byte
	err   error

	ReceiveFunc func() ([]byte, error)
}

func (m *mockChannel) Receive(ctx context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReceiveFunc != nil {
		return m.ReceiveFunc()
	}
	if m.err != nil {
		return nil, m.err
	}
	if len(m.items) == 0 {
		return nil, nil
	}
	item := m.items[0]
	m.items = m.items[1:]
	return item, nil
}

// mockEmitter records every outcome and heartbeat. Outcomes emitted on a
// cancelled context are counted in cancelled.
type mockEmitter struct {
	mu         sync.Mutex
	successes  []bus.Response
	failures   []bus.Response
	heartbeats int
	cancelled  int
	err        error
}

func (m *mockEmitter) Success(ctx context.Context, r bus.Response) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.successes = append(m.successes, r)
	if ctx.Err() != nil {
		m.cancelled++
	}
	return m.err
}

func (m *mockEmitter) Failure(ctx context.Context, r bus.Response) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, r)
	if ctx.Err() != nil {
		m.cancelled++
	}
	return m.err
}

func (m *mockEmitter) Heartbeat(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.heartbeats++
	return m.err
}

func (m *mockEmitter) outcomes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.successes) + len(m.failures)
}

func (m *mockEmitter) beats() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.heartbeats
}

// mockProvisioning is a mock implementation of Provisioning. Each method
// records its call and returns the error registered under its name.
type mockProvisioning struct {
	mu     sync.Mutex
	calls  []string
	errs   map[string]error
	domain libvirt.Domain
	info   map[string]interface{}

	GenerateSystemImageFunc func(ctx context.Context, job *command.CreateGuest) error
}

func newMockProvisioning() *mockProvisioning {
	return &mockProvisioning{
		errs:   make(map[string]error),
		domain: libvirt.Domain{Name: "web01"},
		info:   map[string]interface{}{"virtual-size": float64(10 << 30)},
	}
}

func (m *mockProvisioning) record(call string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	name := strings.Fields(call)[0]
	m.calls = append(m.calls, call)
	return m.errs[name]
}

func (m *mockProvisioning) GenerateSystemImage(ctx context.Context, job *command.CreateGuest) error {
	if m.GenerateSystemImageFunc != nil {
		if err := m.GenerateSystemImageFunc(ctx, job); err != nil {
			return err
		}
	}
	return m.record("generate " + job.Disk.Path)
}

func (m *mockProvisioning) DefineGuest(ctx context.Context, job *command.CreateGuest) (libvirt.Domain, error) {
	if err := m.record("define " + job.UUID); err != nil {
		return libvirt.Domain{}, err
	}
	return m.domain, nil
}

func (m *mockProvisioning) DiskInfo(ctx context.Context, volume, path string) (map[string]interface{}, error) {
	if err := m.record(fmt.Sprintf("info %s/%s", volume, path)); err != nil {
		return nil, err
	}
	return m.info, nil
}

func (m *mockProvisioning) Start(domain libvirt.Domain) error {
	return m.record("start " + domain.Name)
}

func (m *mockProvisioning) RemoveImage(ctx context.Context, volume, path string) error {
	return m.record(fmt.Sprintf("remove %s/%s", volume, path))
}

func (m *mockProvisioning) CreateDisk(ctx context.Context, job *command.CreateDisk) error {
	return m.record(fmt.Sprintf("create_disk %s %d", job.ImagePath, job.Size))
}

func (m *mockProvisioning) ResizeDisk(ctx context.Context, job *command.ResizeDiskOffline) error {
	return m.record(fmt.Sprintf("resize_disk %s %d", job.ImagePath, job.Size))
}

func (m *mockProvisioning) DeleteDisk(ctx context.Context, job *command.DeleteDisk) error {
	return m.record("delete_disk " + job.ImagePath)
}

func (m *mockProvisioning) getCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// mockOperations is a mock implementation of Operations.
type mockOperations struct {
	mu    sync.Mutex
	calls []string
	err   error

	LifecycleFunc func(domain libvirt.Domain, action command.Action) error
	DeleteFunc    func(ctx context.Context, domain libvirt.Domain) error
}

func (m *mockOperations) record(call string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
	return m.err
}

func (m *mockOperations) Lifecycle(domain libvirt.Domain, action command.Action) error {
	if m.LifecycleFunc != nil {
		return m.LifecycleFunc(domain, action)
	}
	return m.record(string(action) + " " + domain.Name)
}

func (m *mockOperations) Delete(ctx context.Context, domain libvirt.Domain) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, domain)
	}
	return m.record("delete_guest " + domain.Name)
}

func (m *mockOperations) ResizeAttachedDisk(domain libvirt.Domain, device string, sizeKiB uint64) error {
	return m.record(fmt.Sprintf("resize %s %s %d", domain.Name, device, sizeKiB))
}

func (m *mockOperations) AttachDisk(domain libvirt.Domain, xml string) error {
	return m.record("attach " + domain.Name)
}

func (m *mockOperations) DetachDisk(domain libvirt.Domain, xml string) error {
	return m.record("detach " + domain.Name)
}

func (m *mockOperations) Migrate(domain libvirt.Domain, duri string) error {
	return m.record("migrate " + domain.Name + " " + duri)
}

// mockRegistry holds a fixed set of guests and counts refreshes.
type mockRegistry struct {
	guests     map[string]libvirt.Domain
	refreshes  int
	refreshErr error
}

func (m *mockRegistry) Refresh() error {
	m.refreshes++
	return m.refreshErr
}

func (m *mockRegistry) Lookup(id string) (libvirt.Domain, bool) {
	d, ok := m.guests[id]
	return d, ok
}

// noSleep records requested waits without blocking.
type noSleep struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *noSleep) sleep(ctx context.Context, d time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waits = append(s.waits, d)
	return ctx.Err() == nil
}
