package storage

import (
	"errors"
	"fmt"
)

// ErrPathNotFound is returned when an image does not exist in a volume.
var ErrPathNotFound = errors.New("path not found")

// PoolType represents the type of storage pool backend.
type PoolType string

const (
	PoolTypeDir     PoolType = "dir"     // Directory-based storage
	PoolTypeGluster PoolType = "gluster" // GlusterFS
)

// PoolSpec specifies how to create a storage pool.
type PoolSpec struct {
	Name   string   // Pool name (e.g., "jimvn-gv0")
	Type   PoolType // Pool type
	Path   string   // Target path for dir pools
	Host   string   // Gluster server for gluster pools
	Volume string   // Gluster volume for gluster pools
}

// Validate checks if the pool spec is valid.
func (p *PoolSpec) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("pool name is required")
	}
	switch p.Type {
	case PoolTypeDir:
		if p.Path == "" {
			return fmt.Errorf("path is required for dir pools")
		}
	case PoolTypeGluster:
		if p.Host == "" {
			return fmt.Errorf("host is required for gluster pools")
		}
		if p.Volume == "" {
			return fmt.Errorf("volume is required for gluster pools")
		}
	default:
		return fmt.Errorf("unsupported pool type: %s", p.Type)
	}
	return nil
}

// PoolInfo contains information about a storage pool.
type PoolInfo struct {
	Name       string   `json:"name" yaml:"name"`
	Type       PoolType `json:"type" yaml:"type"`
	Source     string   `json:"source" yaml:"source"` // Target path, or host/volume for gluster
	UUID       string   `json:"uuid" yaml:"uuid"`
	State      string   `json:"state" yaml:"state"`
	Capacity   uint64   `json:"capacity" yaml:"capacity"`
	Allocation uint64   `json:"allocation" yaml:"allocation"`
	Available  uint64   `json:"available" yaml:"available"`
}

// CapacityGB returns the pool capacity in GB.
func (p *PoolInfo) CapacityGB() float64 {
	return float64(p.Capacity) / (1024 * 1024 * 1024)
}

// AvailableGB returns the pool available space in GB.
func (p *PoolInfo) AvailableGB() float64 {
	return float64(p.Available) / (1024 * 1024 * 1024)
}

// VolumeInfo contains information about an image in a volume.
type VolumeInfo struct {
	Name       string // Path relative to the gluster volume
	Path       string // Full path or URL reported by libvirt
	Pool       string // Pool name
	Capacity   uint64 // Capacity in bytes
	Allocation uint64 // Allocated space in bytes
}

// CapacityGB returns the volume capacity in GB.
func (v *VolumeInfo) CapacityGB() float64 {
	return float64(v.Capacity) / (1024 * 1024 * 1024)
}
