package storage

import (
	"context"
	"fmt"

	"github.com/digitalocean/go-libvirt"

	"github.com/jbweber/jimvn/internal/naming"
)

// Session gives access to the images inside one gluster volume through the
// libvirt storage pool that backs it. Paths are relative to the volume root.
// Images are written by qemu-img (see internal/disk) against URL; the
// session answers existence and removal through libvirt.
type Session struct {
	client LibvirtClient
	pool   libvirt.StoragePool
	host   string
	volume string
}

// Volume returns the gluster volume name.
func (s *Session) Volume() string {
	return s.volume
}

// URL returns the qemu gluster URL of an image in this volume.
func (s *Session) URL(path string) string {
	return naming.GlusterURL(s.host, s.volume, path)
}

// Refresh rescans the volume so images written by qemu-img become visible.
func (s *Session) Refresh(ctx context.Context) error {
	if err := s.client.StoragePoolRefresh(s.pool, 0); err != nil {
		return fmt.Errorf("failed to refresh pool %s: %w", s.pool.Name, err)
	}
	return nil
}

// Exists reports whether an image exists at path.
func (s *Session) Exists(ctx context.Context, path string) (bool, error) {
	if err := s.Refresh(ctx); err != nil {
		return false, err
	}

	// Try to look up the volume
	if _, err := s.client.StorageVolLookupByName(s.pool, path); err != nil {
		// Volume doesn't exist
		return false, nil
	}
	return true, nil
}

// Remove deletes the image at path. It returns ErrPathNotFound when there
// is nothing to delete.
func (s *Session) Remove(ctx context.Context, path string) error {
	vol, err := s.lookup(ctx, path)
	if err != nil {
		return err
	}

	if err := s.client.StorageVolDelete(vol, 0); err != nil {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	return nil
}

// Info returns capacity and allocation of the image at path.
func (s *Session) Info(ctx context.Context, path string) (*VolumeInfo, error) {
	vol, err := s.lookup(ctx, path)
	if err != nil {
		return nil, err
	}

	fullPath, err := s.client.StorageVolGetPath(vol)
	if err != nil {
		return nil, fmt.Errorf("failed to get volume path: %w", err)
	}

	_, capacity, allocation, err := s.client.StorageVolGetInfo(vol)
	if err != nil {
		return nil, fmt.Errorf("failed to get volume info: %w", err)
	}

	return &VolumeInfo{
		Name:       path,
		Path:       fullPath,
		Pool:       s.pool.Name,
		Capacity:   capacity,
		Allocation: allocation,
	}, nil
}

func (s *Session) lookup(ctx context.Context, path string) (libvirt.StorageVol, error) {
	if err := s.Refresh(ctx); err != nil {
		return libvirt.StorageVol{}, err
	}

	vol, err := s.client.StorageVolLookupByName(s.pool, path)
	if err != nil {
		return libvirt.StorageVol{}, fmt.Errorf("%w: %s/%s", ErrPathNotFound, s.volume, path)
	}
	return vol, nil
}
