package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/digitalocean/go-libvirt"
	"github.com/google/uuid"
	libvirtxml "libvirt.org/go/libvirtxml"
)

// EnsurePool ensures a storage pool exists and is running, creating it if
// necessary. If the pool already exists, it is started when inactive.
func (m *Manager) EnsurePool(ctx context.Context, spec PoolSpec) error {
	if err := spec.Validate(); err != nil {
		return fmt.Errorf("invalid pool spec: %w", err)
	}

	// Check if pool already exists
	pool, err := m.client.StoragePoolLookupByName(spec.Name)
	if err != nil {
		// Pool doesn't exist, create it
		return m.CreatePool(ctx, spec)
	}

	state, _, _, _, err := m.client.StoragePoolGetInfo(pool)
	if err != nil {
		return fmt.Errorf("failed to get pool info: %w", err)
	}
	if libvirt.StoragePoolState(state) != libvirt.StoragePoolRunning {
		if err := m.client.StoragePoolCreate(pool, 0); err != nil {
			return fmt.Errorf("failed to start pool: %w", err)
		}
	}

	return nil
}

// CreatePool defines, starts and autostarts a new storage pool.
// Returns an error if the pool already exists.
func (m *Manager) CreatePool(ctx context.Context, spec PoolSpec) error {
	if err := spec.Validate(); err != nil {
		return fmt.Errorf("invalid pool spec: %w", err)
	}

	poolXML, err := generatePoolXML(spec)
	if err != nil {
		return fmt.Errorf("failed to generate pool XML: %w", err)
	}

	// Define the pool
	pool, err := m.client.StoragePoolDefineXML(poolXML, 0)
	if err != nil {
		return fmt.Errorf("failed to define pool: %w", err)
	}

	// Only dir pools have anything to build; gluster volumes already exist
	if spec.Type == PoolTypeDir {
		if err := m.client.StoragePoolBuild(pool, 0); err != nil {
			_ = m.client.StoragePoolUndefine(pool)
			return fmt.Errorf("failed to build pool: %w", err)
		}
	}

	// Start the pool
	if err := m.client.StoragePoolCreate(pool, 0); err != nil {
		_ = m.client.StoragePoolUndefine(pool)
		return fmt.Errorf("failed to start pool: %w", err)
	}

	// Set autostart
	if err := m.client.StoragePoolSetAutostart(pool, 1); err != nil {
		// Pool is created and started, but autostart failed
		return fmt.Errorf("pool created but failed to set autostart: %w", err)
	}

	return nil
}

// ListPools lists all storage pools.
func (m *Manager) ListPools(ctx context.Context) ([]PoolInfo, error) {
	pools, _, err := m.client.ConnectListAllStoragePools(1, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list pools: %w", err)
	}

	var poolInfos []PoolInfo
	for _, pool := range pools {
		info, err := m.GetPoolInfo(ctx, pool.Name)
		if err != nil {
			// Skip pools we can't get info for
			continue
		}
		poolInfos = append(poolInfos, *info)
	}

	return poolInfos, nil
}

// GetPoolInfo gets detailed information about a storage pool.
func (m *Manager) GetPoolInfo(ctx context.Context, name string) (*PoolInfo, error) {
	pool, err := m.client.StoragePoolLookupByName(name)
	if err != nil {
		return nil, fmt.Errorf("pool not found: %w", err)
	}

	poolState, capacity, allocation, available, err := m.client.StoragePoolGetInfo(pool)
	if err != nil {
		return nil, fmt.Errorf("failed to get pool info: %w", err)
	}

	xmlDesc, err := m.client.StoragePoolGetXMLDesc(pool, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to get pool XML: %w", err)
	}

	var poolDef libvirtxml.StoragePool
	if err := poolDef.Unmarshal(xmlDesc); err != nil {
		return nil, fmt.Errorf("failed to parse pool XML: %w", err)
	}

	info := &PoolInfo{
		Name:       pool.Name,
		Type:       PoolType(poolDef.Type),
		UUID:       uuid.UUID(pool.UUID).String(),
		State:      poolStateToString(libvirt.StoragePoolState(poolState)),
		Capacity:   capacity,
		Allocation: allocation,
		Available:  available,
	}

	switch {
	case poolDef.Type == string(PoolTypeGluster) && poolDef.Source != nil:
		host := ""
		if len(poolDef.Source.Host) > 0 {
			host = poolDef.Source.Host[0].Name
		}
		info.Source = host + "/" + poolDef.Source.Name
	case poolDef.Target != nil:
		info.Source = poolDef.Target.Path
	}

	return info, nil
}

func poolStateToString(state libvirt.StoragePoolState) string {
	switch state {
	case libvirt.StoragePoolInactive:
		return "inactive"
	case libvirt.StoragePoolBuilding:
		return "building"
	case libvirt.StoragePoolRunning:
		return "running"
	case libvirt.StoragePoolDegraded:
		return "degraded"
	case libvirt.StoragePoolInaccessible:
		return "inaccessible"
	default:
		return "unknown"
	}
}

// generatePoolXML generates XML for a dir or gluster storage pool.
func generatePoolXML(spec PoolSpec) (string, error) {
	pool := &libvirtxml.StoragePool{
		Type: string(spec.Type),
		Name: spec.Name,
	}

	switch spec.Type {
	case PoolTypeDir:
		pool.Target = &libvirtxml.StoragePoolTarget{
			Path: spec.Path,
			Permissions: &libvirtxml.StoragePoolTargetPermissions{
				Owner: "107", // qemu user (typically uid 107)
				Group: "107", // qemu group (typically gid 107)
				Mode:  "0755",
			},
		}
	case PoolTypeGluster:
		pool.Source = &libvirtxml.StoragePoolSource{
			Name: spec.Volume,
			Host: []libvirtxml.StoragePoolSourceHost{{Name: spec.Host}},
			Dir:  &libvirtxml.StoragePoolSourceDir{Path: "/"},
		}
	}

	return marshalXML(pool.Marshal)
}

// marshalXML runs a libvirtxml Marshal func and strips the XML declaration.
func marshalXML(marshal func() (string, error)) (string, error) {
	doc, err := marshal()
	if err != nil {
		return "", err
	}
	doc = strings.TrimPrefix(doc, "<?xml version=\"1.0\" encoding=\"UTF-8\"?>")
	return strings.TrimSpace(doc), nil
}
