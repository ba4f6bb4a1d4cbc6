package storage

import (
	"fmt"
	"strings"
	"sync"

	"github.com/digitalocean/go-libvirt"
)

// mockLibvirtClient is a mock implementation of LibvirtClient for testing.
type mockLibvirtClient struct {
	mu      sync.Mutex
	pools   map[string]*mockPool
	volumes map[string]map[string]*mockVolume // pool name -> volume name -> volume

	defineCalls  int
	refreshCalls int
	buildCalls   int

	// Optional error injection
	defineErr error
}

type mockPool struct {
	name      string
	uuid      [16]byte
	state     libvirt.StoragePoolState
	capacity  uint64
	allocated uint64
	available uint64
	xmlDesc   string
}

type mockVolume struct {
	name      string
	path      string
	capacity  uint64
	allocated uint64
}

func newMockLibvirtClient() *mockLibvirtClient {
	return &mockLibvirtClient{
		pools:   make(map[string]*mockPool),
		volumes: make(map[string]map[string]*mockVolume),
	}
}

// addVolume places an image in a pool as if qemu-img had written it.
func (m *mockLibvirtClient) addVolume(pool, name string, capacity uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.volumes[pool] == nil {
		m.volumes[pool] = make(map[string]*mockVolume)
	}
	m.volumes[pool][name] = &mockVolume{
		name:     name,
		path:     "gluster://gfs01/" + strings.TrimPrefix(pool, "jimvn-") + "/" + name,
		capacity: capacity,
	}
}

func (m *mockLibvirtClient) StoragePoolLookupByName(name string) (libvirt.StoragePool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pool, ok := m.pools[name]
	if !ok {
		return libvirt.StoragePool{}, fmt.Errorf("storage pool not found: %s", name)
	}
	return libvirt.StoragePool{Name: pool.name, UUID: pool.uuid}, nil
}

func (m *mockLibvirtClient) StoragePoolDefineXML(xml string, flags uint32) (libvirt.StoragePool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defineCalls++
	if m.defineErr != nil {
		return libvirt.StoragePool{}, m.defineErr
	}

	name := extractTagValue(xml, "name")
	if name == "" {
		return libvirt.StoragePool{}, fmt.Errorf("invalid pool XML: missing name")
	}
	if _, ok := m.pools[name]; ok {
		return libvirt.StoragePool{}, fmt.Errorf("storage pool already exists: %s", name)
	}

	pool := &mockPool{
		name:      name,
		state:     libvirt.StoragePoolInactive,
		capacity:  1024 * 1024 * 1024 * 1024, // 1 TB
		available: 1024 * 1024 * 1024 * 1024,
		xmlDesc:   xml,
	}
	copy(pool.uuid[:], "0123456789abcdef")
	m.pools[name] = pool
	if m.volumes[name] == nil {
		m.volumes[name] = make(map[string]*mockVolume)
	}

	return libvirt.StoragePool{Name: pool.name, UUID: pool.uuid}, nil
}

func (m *mockLibvirtClient) StoragePoolCreate(pool libvirt.StoragePool, flags libvirt.StoragePoolCreateFlags) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pools[pool.Name]
	if !ok {
		return fmt.Errorf("storage pool not found: %s", pool.Name)
	}
	p.state = libvirt.StoragePoolRunning
	return nil
}

func (m *mockLibvirtClient) StoragePoolBuild(pool libvirt.StoragePool, flags libvirt.StoragePoolBuildFlags) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buildCalls++
	if _, ok := m.pools[pool.Name]; !ok {
		return fmt.Errorf("storage pool not found: %s", pool.Name)
	}
	return nil
}

func (m *mockLibvirtClient) StoragePoolSetAutostart(pool libvirt.StoragePool, autostart int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pools[pool.Name]; !ok {
		return fmt.Errorf("storage pool not found: %s", pool.Name)
	}
	return nil
}

func (m *mockLibvirtClient) StoragePoolUndefine(pool libvirt.StoragePool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pools[pool.Name]; !ok {
		return fmt.Errorf("storage pool not found: %s", pool.Name)
	}
	delete(m.pools, pool.Name)
	delete(m.volumes, pool.Name)
	return nil
}

func (m *mockLibvirtClient) StoragePoolGetInfo(pool libvirt.StoragePool) (rState uint8, rCapacity uint64, rAllocation uint64, rAvailable uint64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pools[pool.Name]
	if !ok {
		return 0, 0, 0, 0, fmt.Errorf("storage pool not found: %s", pool.Name)
	}
	return uint8(p.state), p.capacity, p.allocated, p.available, nil
}

func (m *mockLibvirtClient) StoragePoolGetXMLDesc(pool libvirt.StoragePool, flags libvirt.StorageXMLFlags) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pools[pool.Name]
	if !ok {
		return "", fmt.Errorf("storage pool not found: %s", pool.Name)
	}
	return p.xmlDesc, nil
}

func (m *mockLibvirtClient) StoragePoolRefresh(pool libvirt.StoragePool, flags uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshCalls++
	if _, ok := m.pools[pool.Name]; !ok {
		return fmt.Errorf("storage pool not found: %s", pool.Name)
	}
	return nil
}

func (m *mockLibvirtClient) StorageVolLookupByName(pool libvirt.StoragePool, name string) (libvirt.StorageVol, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	vols, ok := m.volumes[pool.Name]
	if !ok {
		return libvirt.StorageVol{}, fmt.Errorf("storage pool not found: %s", pool.Name)
	}
	vol, ok := vols[name]
	if !ok {
		return libvirt.StorageVol{}, fmt.Errorf("storage volume not found: %s", name)
	}
	return libvirt.StorageVol{Pool: pool.Name, Name: vol.name}, nil
}

func (m *mockLibvirtClient) StorageVolDelete(vol libvirt.StorageVol, flags libvirt.StorageVolDeleteFlags) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	vols, ok := m.volumes[vol.Pool]
	if !ok {
		return fmt.Errorf("storage pool not found: %s", vol.Pool)
	}
	if _, ok := vols[vol.Name]; !ok {
		return fmt.Errorf("storage volume not found: %s", vol.Name)
	}
	delete(vols, vol.Name)
	return nil
}

func (m *mockLibvirtClient) StorageVolGetPath(vol libvirt.StorageVol) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.volumes[vol.Pool][vol.Name]
	if !ok {
		return "", fmt.Errorf("storage volume not found: %s", vol.Name)
	}
	return v.path, nil
}

func (m *mockLibvirtClient) StorageVolGetInfo(vol libvirt.StorageVol) (rType int8, rCapacity uint64, rAllocation uint64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.volumes[vol.Pool][vol.Name]
	if !ok {
		return 0, 0, 0, fmt.Errorf("storage volume not found: %s", vol.Name)
	}
	return 3, v.capacity, v.allocated, nil
}

func (m *mockLibvirtClient) ConnectListAllStoragePools(needResults int32, flags libvirt.ConnectListAllStoragePoolsFlags) ([]libvirt.StoragePool, uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []libvirt.StoragePool
	for name, pool := range m.pools {
		result = append(result, libvirt.StoragePool{Name: name, UUID: pool.uuid})
	}
	return result, uint32(len(result)), nil
}

// extractTagValue returns the text of the first <tag> or <tag attr=...> element.
func extractTagValue(xml, tag string) string {
	start := strings.Index(xml, "<"+tag+">")
	if start == -1 {
		start = strings.Index(xml, "<"+tag+" ")
		if start == -1 {
			return ""
		}
		gt := strings.Index(xml[start:], ">")
		if gt == -1 {
			return ""
		}
		start += gt + 1
	} else {
		start += len(tag) + 2
	}
	end := strings.Index(xml[start:], "</"+tag+">")
	if end == -1 {
		return ""
	}
	return xml[start : start+end]
}
