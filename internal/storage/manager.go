package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/digitalocean/go-libvirt"

	"github.com/jbweber/jimvn/internal/naming"
)

// LibvirtClient is the interface for libvirt operations.
// This allows for dependency injection and testing.
type LibvirtClient interface {
	StoragePoolLookupByName(Name string) (libvirt.StoragePool, error)
	StoragePoolDefineXML(XML string, Flags uint32) (libvirt.StoragePool, error)
	StoragePoolCreate(Pool libvirt.StoragePool, Flags libvirt.StoragePoolCreateFlags) error
	StoragePoolBuild(Pool libvirt.StoragePool, Flags libvirt.StoragePoolBuildFlags) error
	StoragePoolSetAutostart(Pool libvirt.StoragePool, Autostart int32) error
	StoragePoolUndefine(Pool libvirt.StoragePool) error
	StoragePoolGetInfo(Pool libvirt.StoragePool) (rState uint8, rCapacity uint64, rAllocation uint64, rAvailable uint64, err error)
	StoragePoolGetXMLDesc(Pool libvirt.StoragePool, Flags libvirt.StorageXMLFlags) (string, error)
	StoragePoolRefresh(Pool libvirt.StoragePool, Flags uint32) error
	StorageVolLookupByName(Pool libvirt.StoragePool, Name string) (libvirt.StorageVol, error)
	StorageVolDelete(Vol libvirt.StorageVol, Flags libvirt.StorageVolDeleteFlags) error
	StorageVolGetPath(Vol libvirt.StorageVol) (string, error)
	StorageVolGetInfo(Vol libvirt.StorageVol) (rType int8, rCapacity uint64, rAllocation uint64, err error)
	ConnectListAllStoragePools(NeedResults int32, Flags libvirt.ConnectListAllStoragePoolsFlags) ([]libvirt.StoragePool, uint32, error)
}

// Manager coordinates storage pool operations.
type Manager struct {
	client LibvirtClient
}

// NewManager creates a new storage manager.
func NewManager(client LibvirtClient) *Manager {
	return &Manager{
		client: client,
	}
}

// Sessions hands out one Session per gluster volume. The first request for
// a volume ensures its storage pool exists; later requests reuse the
// session. It is safe for concurrent use by all engines.
type Sessions struct {
	mgr  *Manager
	host string

	mu   sync.Mutex
	open map[string]*Session
}

// NewSessions creates a session cache for volumes served by the gluster host.
func NewSessions(client LibvirtClient, host string) *Sessions {
	return &Sessions{
		mgr:  NewManager(client),
		host: host,
		open: make(map[string]*Session),
	}
}

// Get returns the session for volume, initializing it on first use.
// A failed initialization is not cached; the next call retries.
func (s *Sessions) Get(ctx context.Context, volume string) (*Session, error) {
	if volume == "" {
		return nil, fmt.Errorf("volume name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if session, ok := s.open[volume]; ok {
		return session, nil
	}

	spec := PoolSpec{
		Name:   naming.PoolName(volume),
		Type:   PoolTypeGluster,
		Host:   s.host,
		Volume: volume,
	}
	if err := s.mgr.EnsurePool(ctx, spec); err != nil {
		return nil, fmt.Errorf("failed to open volume %s: %w", volume, err)
	}

	pool, err := s.mgr.client.StoragePoolLookupByName(spec.Name)
	if err != nil {
		return nil, fmt.Errorf("pool not found: %w", err)
	}

	session := &Session{
		client: s.mgr.client,
		pool:   pool,
		host:   s.host,
		volume: volume,
	}
	s.open[volume] = session
	return session, nil
}

// Manager returns the pool manager backing the sessions.
func (s *Sessions) Manager() *Manager {
	return s.mgr
}
