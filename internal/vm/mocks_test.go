package vm

import (
	"context"
	"fmt"
	"sync"

	"github.com/digitalocean/go-libvirt"

	"github.com/jbweber/jimvn/internal/naming"
	"github.com/jbweber/jimvn/internal/storage"
)

// mockLibvirtClient is a mock implementation of the libvirtClient interface for testing.
type mockLibvirtClient struct {
	mu sync.Mutex

	// Configurable behavior
	connectListAllDomainsFunc func(needResults int32, flags libvirt.ConnectListAllDomainsFlags) ([]libvirt.Domain, uint32, error)
	domainGetStateFunc        func(dom libvirt.Domain, flags uint32) (int32, int32, error)
	domainGetInfoFunc         func(dom libvirt.Domain) (uint8, uint64, uint64, uint16, uint64, error)
	domainDefineXMLFunc       func(xml string) (libvirt.Domain, error)
	domainIsActiveFunc        func(dom libvirt.Domain) (int32, error)
	domainGetXMLDescFunc      func(dom libvirt.Domain, flags libvirt.DomainXMLFlags) (string, error)
	domainMigrateFunc         func(dom libvirt.Domain, dconnuri libvirt.OptString, flags libvirt.DomainMigrateFlags) error

	// errs maps a method name to the error it returns
	errs map[string]error

	// Call tracking
	connectListAllDomainsCalls int
	calls                      []string
	defineXMLCalls             []string
	blockResizeCalls           []blockResizeCall
	deviceCalls                []deviceCall
	migrateFlags               []libvirt.DomainMigrateFlags
	migrateURIs                []string
}

type blockResizeCall struct {
	disk string
	size uint64
}

type deviceCall struct {
	method string
	xml    string
	flags  uint32
}

// newMockLibvirtClient creates a new mock libvirt client with default behavior.
func newMockLibvirtClient() *mockLibvirtClient {
	m := &mockLibvirtClient{errs: make(map[string]error)}

	// Default: no domains
	m.connectListAllDomainsFunc = func(needResults int32, flags libvirt.ConnectListAllDomainsFlags) ([]libvirt.Domain, uint32, error) {
		return []libvirt.Domain{}, 0, nil
	}

	// Default: running
	m.domainGetStateFunc = func(dom libvirt.Domain, flags uint32) (int32, int32, error) {
		return int32(libvirt.DomainRunning), 0, nil
	}

	m.domainGetInfoFunc = func(dom libvirt.Domain) (uint8, uint64, uint64, uint16, uint64, error) {
		return uint8(libvirt.DomainRunning), 2097152, 2097152, 2, 0, nil
	}

	m.domainDefineXMLFunc = func(xml string) (libvirt.Domain, error) {
		return libvirt.Domain{Name: "web01"}, nil
	}

	// Default: active
	m.domainIsActiveFunc = func(dom libvirt.Domain) (int32, error) {
		return 1, nil
	}

	m.domainGetXMLDescFunc = func(dom libvirt.Domain, flags libvirt.DomainXMLFlags) (string, error) {
		return "", fmt.Errorf("no XML for %s", dom.Name)
	}

	m.domainMigrateFunc = func(dom libvirt.Domain, dconnuri libvirt.OptString, flags libvirt.DomainMigrateFlags) error {
		return nil
	}

	return m
}

// record tracks a call and returns the configured error for it.
func (m *mockLibvirtClient) record(method string) error {
	m.calls = append(m.calls, method)
	return m.errs[method]
}

func (m *mockLibvirtClient) ConnectListAllDomains(needResults int32, flags libvirt.ConnectListAllDomainsFlags) ([]libvirt.Domain, uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectListAllDomainsCalls++
	return m.connectListAllDomainsFunc(needResults, flags)
}

func (m *mockLibvirtClient) DomainGetState(dom libvirt.Domain, flags uint32) (int32, int32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.domainGetStateFunc(dom, flags)
}

func (m *mockLibvirtClient) DomainGetInfo(dom libvirt.Domain) (uint8, uint64, uint64, uint16, uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.domainGetInfoFunc(dom)
}

func (m *mockLibvirtClient) DomainDefineXML(xml string) (libvirt.Domain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defineXMLCalls = append(m.defineXMLCalls, xml)
	return m.domainDefineXMLFunc(xml)
}

func (m *mockLibvirtClient) DomainCreate(dom libvirt.Domain) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.record("DomainCreate")
}

func (m *mockLibvirtClient) DomainReboot(dom libvirt.Domain, flags libvirt.DomainRebootFlagValues) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.record("DomainReboot")
}

func (m *mockLibvirtClient) DomainShutdown(dom libvirt.Domain) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.record("DomainShutdown")
}

func (m *mockLibvirtClient) DomainDestroy(dom libvirt.Domain) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.record("DomainDestroy")
}

func (m *mockLibvirtClient) DomainSuspend(dom libvirt.Domain) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.record("DomainSuspend")
}

func (m *mockLibvirtClient) DomainResume(dom libvirt.Domain) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.record("DomainResume")
}

func (m *mockLibvirtClient) DomainUndefine(dom libvirt.Domain) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.record("DomainUndefine")
}

func (m *mockLibvirtClient) DomainIsActive(dom libvirt.Domain) (int32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.domainIsActiveFunc(dom)
}

func (m *mockLibvirtClient) DomainGetXMLDesc(dom libvirt.Domain, flags libvirt.DomainXMLFlags) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.domainGetXMLDescFunc(dom, flags)
}

func (m *mockLibvirtClient) DomainBlockResize(dom libvirt.Domain, disk string, size uint64, flags libvirt.DomainBlockResizeFlags) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blockResizeCalls = append(m.blockResizeCalls, blockResizeCall{disk: disk, size: size})
	return m.record("DomainBlockResize")
}

func (m *mockLibvirtClient) DomainAttachDeviceFlags(dom libvirt.Domain, xml string, flags uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deviceCalls = append(m.deviceCalls, deviceCall{method: "attach", xml: xml, flags: flags})
	return m.record("DomainAttachDeviceFlags")
}

func (m *mockLibvirtClient) DomainDetachDeviceFlags(dom libvirt.Domain, xml string, flags uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deviceCalls = append(m.deviceCalls, deviceCall{method: "detach", xml: xml, flags: flags})
	return m.record("DomainDetachDeviceFlags")
}

func (m *mockLibvirtClient) DomainMigratePerform3Params(dom libvirt.Domain, dconnuri libvirt.OptString, params []libvirt.TypedParam, cookieIn []byte, flags libvirt.DomainMigrateFlags) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.migrateFlags = append(m.migrateFlags, flags)
	m.migrateURIs = append(m.migrateURIs, dconnuri...)
	return nil, m.domainMigrateFunc(dom, dconnuri, flags)
}

// mockStore is an in-memory gluster volume.
type mockStore struct {
	volume    string
	images    map[string]bool
	removeErr error
	existsErr error
}

func (s *mockStore) Exists(ctx context.Context, path string) (bool, error) {
	if s.existsErr != nil {
		return false, s.existsErr
	}
	return s.images[path], nil
}

func (s *mockStore) Remove(ctx context.Context, path string) error {
	if s.removeErr != nil {
		return s.removeErr
	}
	if !s.images[path] {
		return fmt.Errorf("%w: %s/%s", storage.ErrPathNotFound, s.volume, path)
	}
	delete(s.images, path)
	return nil
}

func (s *mockStore) URL(path string) string {
	return naming.GlusterURL("gfs01", s.volume, path)
}

// mockStores hands out one mockStore per volume.
type mockStores struct {
	mu      sync.Mutex
	stores  map[string]*mockStore
	openErr error
	opened  []string
}

func newMockStores() *mockStores {
	return &mockStores{stores: make(map[string]*mockStore)}
}

func (m *mockStores) Open(ctx context.Context, volume string) (ImageStore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opened = append(m.opened, volume)
	if m.openErr != nil {
		return nil, m.openErr
	}
	return m.store(volume), nil
}

func (m *mockStores) store(volume string) *mockStore {
	s, ok := m.stores[volume]
	if !ok {
		s = &mockStore{volume: volume, images: make(map[string]bool)}
		m.stores[volume] = s
	}
	return s
}

// mockImageTool records qemu-img operations.
type mockImageTool struct {
	mu    sync.Mutex
	calls []string
	errs  map[string]error
	info  map[string]interface{}
}

func newMockImageTool() *mockImageTool {
	return &mockImageTool{
		errs: make(map[string]error),
		info: map[string]interface{}{"format": "qcow2"},
	}
}

func (m *mockImageTool) record(call string, method string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
	return m.errs[method]
}

func (m *mockImageTool) Create(ctx context.Context, url string, sizeGiB int64) error {
	return m.record(fmt.Sprintf("create %s %d", url, sizeGiB), "Create")
}

func (m *mockImageTool) CloneTemplate(ctx context.Context, template, dst string, sizeGiB int64) error {
	return m.record(fmt.Sprintf("clone %s %s %d", template, dst, sizeGiB), "CloneTemplate")
}

func (m *mockImageTool) Resize(ctx context.Context, url string, sizeGiB int64) error {
	return m.record(fmt.Sprintf("resize %s %d", url, sizeGiB), "Resize")
}

func (m *mockImageTool) Import(ctx context.Context, src, dst string) error {
	return m.record(fmt.Sprintf("import %s", dst), "Import")
}

func (m *mockImageTool) Info(ctx context.Context, url string) (map[string]interface{}, error) {
	if err := m.record(fmt.Sprintf("info %s", url), "Info"); err != nil {
		return nil, err
	}
	return m.info, nil
}
