package vm

import (
	"context"
	"fmt"
	"os"

	"github.com/digitalocean/go-libvirt"

	"github.com/jbweber/jimvn/internal/cloudinit"
	"github.com/jbweber/jimvn/internal/command"
	jimvnlibvirt "github.com/jbweber/jimvn/internal/libvirt"
	"github.com/jbweber/jimvn/internal/naming"
)

// Manager performs guest and image operations on one hypervisor.
type Manager struct {
	lv          libvirtClient
	stores      ImageStores
	images      imageTool
	glusterHost string
}

// NewManager creates a manager. glusterHost is written into the network
// disk sources of new guests.
func NewManager(lv libvirtClient, stores ImageStores, images imageTool, glusterHost string) *Manager {
	return &Manager{
		lv:          lv,
		stores:      stores,
		images:      images,
		glusterHost: glusterHost,
	}
}

// GenerateSystemImage writes the guest's system image as a copy of its
// template, grown to the requested size.
func (m *Manager) GenerateSystemImage(ctx context.Context, job *command.CreateGuest) error {
	store, err := m.stores.Open(ctx, job.GlusterVolume)
	if err != nil {
		return err
	}

	if err := m.images.CloneTemplate(ctx, store.URL(job.TemplatePath), store.URL(job.Disk.Path), job.Disk.Size); err != nil {
		return fmt.Errorf("failed to generate system image: %w", err)
	}
	return nil
}

// DefineGuest writes the guest's seed image next to its system image and
// defines the domain from the job's XML.
func (m *Manager) DefineGuest(ctx context.Context, job *command.CreateGuest) (libvirt.Domain, error) {
	store, err := m.stores.Open(ctx, job.GlusterVolume)
	if err != nil {
		return libvirt.Domain{}, err
	}

	seedPath := naming.SeedImagePath(job.Disk.Path, job.UUID)
	if err := m.writeSeed(ctx, job, store.URL(seedPath)); err != nil {
		return libvirt.Domain{}, err
	}

	xml, err := jimvnlibvirt.PrepareGuestXML(job.XML, jimvnlibvirt.GuestSpec{
		UUID:        job.UUID,
		Name:        job.Name,
		GlusterHost: m.glusterHost,
		Volume:      job.GlusterVolume,
		SystemImage: job.Disk.Path,
		SeedImage:   seedPath,
	})
	if err != nil {
		return libvirt.Domain{}, err
	}

	domain, err := m.lv.DomainDefineXML(xml)
	if err != nil {
		return libvirt.Domain{}, fmt.Errorf("failed to define domain: %w", err)
	}
	return domain, nil
}

func (m *Manager) writeSeed(ctx context.Context, job *command.CreateGuest, dst string) error {
	isoData, err := cloudinit.GenerateISO(job)
	if err != nil {
		return fmt.Errorf("failed to generate seed image: %w", err)
	}

	f, err := os.CreateTemp("", "jimvn-seed-*.iso")
	if err != nil {
		return fmt.Errorf("failed to create seed file: %w", err)
	}
	defer func() {
		_ = os.Remove(f.Name())
	}()

	if _, err := f.Write(isoData); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write seed file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write seed file: %w", err)
	}

	if err := m.images.Import(ctx, f.Name(), dst); err != nil {
		return fmt.Errorf("failed to upload seed image: %w", err)
	}
	return nil
}

// DiskInfo describes an image as reported by qemu-img.
func (m *Manager) DiskInfo(ctx context.Context, volume, path string) (map[string]interface{}, error) {
	store, err := m.stores.Open(ctx, volume)
	if err != nil {
		return nil, err
	}
	return m.images.Info(ctx, store.URL(path))
}

// Start boots a defined guest.
func (m *Manager) Start(domain libvirt.Domain) error {
	if err := m.lv.DomainCreate(domain); err != nil {
		return fmt.Errorf("failed to start domain %s: %w", domain.Name, err)
	}
	return nil
}

// RemoveImage deletes an image. It returns storage.ErrPathNotFound when
// the image does not exist.
func (m *Manager) RemoveImage(ctx context.Context, volume, path string) error {
	store, err := m.stores.Open(ctx, volume)
	if err != nil {
		return err
	}
	return store.Remove(ctx, path)
}

// CreateDisk allocates an empty data disk.
func (m *Manager) CreateDisk(ctx context.Context, job *command.CreateDisk) error {
	store, err := m.stores.Open(ctx, job.GlusterVolume)
	if err != nil {
		return err
	}
	return m.images.Create(ctx, store.URL(job.ImagePath), job.Size)
}

// ResizeDisk grows a data disk no running guest has open.
func (m *Manager) ResizeDisk(ctx context.Context, job *command.ResizeDiskOffline) error {
	store, err := m.stores.Open(ctx, job.GlusterVolume)
	if err != nil {
		return err
	}
	return m.images.Resize(ctx, store.URL(job.ImagePath), job.Size)
}

// DeleteDisk removes a data disk.
func (m *Manager) DeleteDisk(ctx context.Context, job *command.DeleteDisk) error {
	return m.RemoveImage(ctx, job.GlusterVolume, job.ImagePath)
}
