package libvirt

import (
	"fmt"

	"libvirt.org/go/libvirtxml"

	"github.com/jbweber/jimvn/internal/naming"
)

// GuestSpec identifies the storage a new guest boots from.
type GuestSpec struct {
	UUID        string
	Name        string
	GlusterHost string
	Volume      string
	SystemImage string // relative to Volume
	SeedImage   string // relative to Volume; empty for no seed
}

// PrepareGuestXML takes the domain XML supplied with a create_guest job and
// binds it to the guest: UUID and name are forced, the first disk is
// pointed at the system image on gluster and the seed image is attached as
// a read-only cdrom.
func PrepareGuestXML(raw string, spec GuestSpec) (string, error) {
	domain := &libvirtxml.Domain{}
	if err := domain.Unmarshal(raw); err != nil {
		return "", fmt.Errorf("failed to parse domain XML: %w", err)
	}

	domain.UUID = spec.UUID
	domain.Name = spec.Name
	if domain.Devices == nil {
		domain.Devices = &libvirtxml.DomainDeviceList{}
	}

	system := glusterSource(spec.GlusterHost, spec.Volume, spec.SystemImage)
	if idx := firstDisk(domain); idx >= 0 {
		domain.Devices.Disks[idx].Source = system
	} else {
		domain.Devices.Disks = append([]libvirtxml.DomainDisk{{
			Device: "disk",
			Driver: &libvirtxml.DomainDiskDriver{
				Name:  "qemu",
				Type:  "qcow2",
				Cache: "none",
			},
			Source: system,
			Target: &libvirtxml.DomainDiskTarget{
				Dev: "vda",
				Bus: "virtio",
			},
			Boot: &libvirtxml.DomainDeviceBoot{
				Order: 1,
			},
		}}, domain.Devices.Disks...)
	}

	if spec.SeedImage != "" {
		domain.Devices.Disks = append(domain.Devices.Disks, libvirtxml.DomainDisk{
			Device: "cdrom",
			Driver: &libvirtxml.DomainDiskDriver{
				Name: "qemu",
				Type: "raw",
			},
			Source: glusterSource(spec.GlusterHost, spec.Volume, spec.SeedImage),
			Target: &libvirtxml.DomainDiskTarget{
				Dev: "sda",
				Bus: "sata",
			},
			ReadOnly: &libvirtxml.DomainDiskReadOnly{},
		})
	}

	xml, err := domain.Marshal()
	if err != nil {
		return "", fmt.Errorf("failed to marshal domain XML: %w", err)
	}
	return xml, nil
}

// SystemImage returns the gluster volume and path of a guest's system
// image, read from the source name of the first disk in its domain XML.
func SystemImage(xml string) (volume, path string, err error) {
	domain := &libvirtxml.Domain{}
	if err := domain.Unmarshal(xml); err != nil {
		return "", "", fmt.Errorf("failed to parse domain XML: %w", err)
	}

	idx := firstDisk(domain)
	if idx < 0 {
		return "", "", fmt.Errorf("domain %s has no disk", domain.Name)
	}

	source := domain.Devices.Disks[idx].Source
	if source == nil || source.Network == nil || source.Network.Name == "" {
		return "", "", fmt.Errorf("first disk of domain %s is not on a network volume", domain.Name)
	}
	return naming.SplitImagePath(source.Network.Name)
}

// SeedImage returns the gluster volume and path of a guest's seed image,
// read from the first cdrom backed by a network volume. ok is false when the
// guest has no such cdrom.
func SeedImage(xml string) (volume, path string, ok bool) {
	domain := &libvirtxml.Domain{}
	if err := domain.Unmarshal(xml); err != nil || domain.Devices == nil {
		return "", "", false
	}

	for _, d := range domain.Devices.Disks {
		if d.Device != "cdrom" || d.Source == nil || d.Source.Network == nil {
			continue
		}
		v, p, err := naming.SplitImagePath(d.Source.Network.Name)
		if err != nil {
			continue
		}
		return v, p, true
	}
	return "", "", false
}

// firstDisk returns the index of the first disk device, skipping cdroms
// and floppies, or -1.
func firstDisk(domain *libvirtxml.Domain) int {
	if domain.Devices == nil {
		return -1
	}
	for i, d := range domain.Devices.Disks {
		if d.Device == "" || d.Device == "disk" {
			return i
		}
	}
	return -1
}

func glusterSource(host, volume, path string) *libvirtxml.DomainDiskSource {
	return &libvirtxml.DomainDiskSource{
		Network: &libvirtxml.DomainDiskSourceNetwork{
			Protocol: "gluster",
			Name:     naming.JoinImagePath(volume, path),
			Hosts: []libvirtxml.DomainDiskSourceHost{
				{Name: host},
			},
		},
	}
}
