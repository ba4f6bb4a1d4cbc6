package vm

import (
	"context"
	"fmt"

	"github.com/digitalocean/go-libvirt"

	"github.com/jbweber/jimvn/internal/command"
	jimvnlibvirt "github.com/jbweber/jimvn/internal/libvirt"
)

// Lifecycle applies a parameterless state transition to a guest.
func (m *Manager) Lifecycle(domain libvirt.Domain, action command.Action) error {
	var err error
	switch action {
	case command.ActionReboot:
		err = m.lv.DomainReboot(domain, 0)
	case command.ActionForceReboot:
		if err = m.lv.DomainDestroy(domain); err == nil {
			err = m.lv.DomainCreate(domain)
		}
	case command.ActionShutdown:
		err = m.lv.DomainShutdown(domain)
	case command.ActionForceShutdown:
		err = m.lv.DomainDestroy(domain)
	case command.ActionBoot:
		err = m.lv.DomainCreate(domain)
	case command.ActionSuspend:
		err = m.lv.DomainSuspend(domain)
	case command.ActionResume:
		err = m.lv.DomainResume(domain)
	default:
		return fmt.Errorf("%w: %q", command.ErrUnknownAction, action)
	}

	if err != nil {
		return fmt.Errorf("failed to %s domain %s: %w", action, domain.Name, err)
	}
	return nil
}

// Delete stops and undefines a guest, then removes its system image. The
// image is located through the first disk of the guest's domain XML. The
// seed image, if any, is removed last and does not affect the result.
func (m *Manager) Delete(ctx context.Context, domain libvirt.Domain) error {
	xml, err := m.lv.DomainGetXMLDesc(domain, 0)
	if err != nil {
		return fmt.Errorf("failed to get domain XML: %w", err)
	}

	volume, path, err := jimvnlibvirt.SystemImage(xml)
	if err != nil {
		return err
	}

	store, err := m.stores.Open(ctx, volume)
	if err != nil {
		return err
	}

	active, err := m.isActive(domain)
	if err != nil {
		return err
	}
	if active {
		// Best effort; undefine decides the outcome
		_ = m.lv.DomainDestroy(domain)
	}

	if err := m.lv.DomainUndefine(domain); err != nil {
		return fmt.Errorf("failed to undefine domain %s: %w", domain.Name, err)
	}

	exists, err := store.Exists(ctx, path)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("system image %s/%s not found", volume, path)
	}

	if err := store.Remove(ctx, path); err != nil {
		return err
	}

	m.removeSeed(ctx, xml)
	return nil
}

// removeSeed deletes the seed image referenced by a guest's cdrom.
func (m *Manager) removeSeed(ctx context.Context, xml string) {
	volume, path, ok := jimvnlibvirt.SeedImage(xml)
	if !ok {
		return
	}
	store, err := m.stores.Open(ctx, volume)
	if err != nil {
		return
	}
	_ = store.Remove(ctx, path)
}

// ResizeAttachedDisk grows a disk attached to a guest. sizeKiB is the new
// size.
func (m *Manager) ResizeAttachedDisk(domain libvirt.Domain, device string, sizeKiB uint64) error {
	if err := m.lv.DomainBlockResize(domain, device, sizeKiB, 0); err != nil {
		return fmt.Errorf("failed to resize %s on domain %s: %w", device, domain.Name, err)
	}
	return nil
}

// AttachDisk attaches the device described by xml. The change is always
// persisted and is also applied live when the guest is running.
func (m *Manager) AttachDisk(domain libvirt.Domain, xml string) error {
	flags, err := m.deviceFlags(domain)
	if err != nil {
		return err
	}
	if err := m.lv.DomainAttachDeviceFlags(domain, xml, flags); err != nil {
		return fmt.Errorf("failed to attach disk to domain %s: %w", domain.Name, err)
	}
	return nil
}

// DetachDisk is the inverse of AttachDisk.
func (m *Manager) DetachDisk(domain libvirt.Domain, xml string) error {
	flags, err := m.deviceFlags(domain)
	if err != nil {
		return err
	}
	if err := m.lv.DomainDetachDeviceFlags(domain, xml, flags); err != nil {
		return fmt.Errorf("failed to detach disk from domain %s: %w", domain.Name, err)
	}
	return nil
}

// Migrate performs a peer-to-peer migration to the hypervisor at duri.
func (m *Manager) Migrate(domain libvirt.Domain, duri string) error {
	active, err := m.isActive(domain)
	if err != nil {
		return err
	}

	dconnuri := libvirt.OptString{duri}
	if _, err := m.lv.DomainMigratePerform3Params(domain, dconnuri, nil, nil, MigrateFlags(active)); err != nil {
		return fmt.Errorf("failed to migrate domain %s to %s: %w", domain.Name, duri, err)
	}
	return nil
}

func (m *Manager) deviceFlags(domain libvirt.Domain) (uint32, error) {
	active, err := m.isActive(domain)
	if err != nil {
		return 0, err
	}
	return DeviceFlags(active), nil
}

func (m *Manager) isActive(domain libvirt.Domain) (bool, error) {
	active, err := m.lv.DomainIsActive(domain)
	if err != nil {
		return false, fmt.Errorf("failed to get state of domain %s: %w", domain.Name, err)
	}
	return active == 1, nil
}

// DeviceFlags returns the attach/detach flags for a guest.
func DeviceFlags(active bool) uint32 {
	flags := uint32(libvirt.DomainAffectConfig)
	if active {
		flags |= uint32(libvirt.DomainAffectLive)
	}
	return flags
}

// MigrateFlags returns the migration flags for a guest. Running guests move
// live over a tunnel; stopped guests move their definition only.
func MigrateFlags(active bool) libvirt.DomainMigrateFlags {
	flags := libvirt.MigratePeer2peer | libvirt.MigratePersistDest |
		libvirt.MigrateUndefineSource | libvirt.MigrateCompressed
	if active {
		flags |= libvirt.MigrateLive | libvirt.MigrateTunnelled
	} else {
		flags |= libvirt.MigrateOffline
	}
	return flags
}
