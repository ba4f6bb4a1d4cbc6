package vm

import (
	"context"

	"github.com/digitalocean/go-libvirt"

	"github.com/jbweber/jimvn/internal/storage"
)

// libvirtClient defines the libvirt operations needed for guest management.
//
// In production, this is satisfied by *libvirt.Libvirt directly.
// In tests, this is satisfied by mock implementations.
type libvirtClient interface {
	registryClient

	DomainDefineXML(xml string) (libvirt.Domain, error)
	DomainCreate(dom libvirt.Domain) error
	DomainReboot(dom libvirt.Domain, flags libvirt.DomainRebootFlagValues) error
	DomainShutdown(dom libvirt.Domain) error
	DomainDestroy(dom libvirt.Domain) error
	DomainSuspend(dom libvirt.Domain) error
	DomainResume(dom libvirt.Domain) error
	DomainUndefine(dom libvirt.Domain) error
	DomainIsActive(dom libvirt.Domain) (int32, error)
	DomainGetXMLDesc(dom libvirt.Domain, flags libvirt.DomainXMLFlags) (string, error)
	DomainBlockResize(dom libvirt.Domain, disk string, size uint64, flags libvirt.DomainBlockResizeFlags) error
	DomainAttachDeviceFlags(dom libvirt.Domain, xml string, flags uint32) error
	DomainDetachDeviceFlags(dom libvirt.Domain, xml string, flags uint32) error
	DomainMigratePerform3Params(dom libvirt.Domain, dconnuri libvirt.OptString, params []libvirt.TypedParam, cookieIn []byte, flags libvirt.DomainMigrateFlags) ([]byte, error)
}

// registryClient is the read-only subset used to enumerate guests.
type registryClient interface {
	ConnectListAllDomains(needResults int32, flags libvirt.ConnectListAllDomainsFlags) ([]libvirt.Domain, uint32, error)
	DomainGetState(dom libvirt.Domain, flags uint32) (int32, int32, error)
	DomainGetInfo(dom libvirt.Domain) (uint8, uint64, uint64, uint16, uint64, error)
}

// ImageStore is one opened gluster volume.
type ImageStore interface {
	Exists(ctx context.Context, path string) (bool, error)
	Remove(ctx context.Context, path string) error
	URL(path string) string
}

// ImageStores opens volumes, initializing each at most once.
type ImageStores interface {
	Open(ctx context.Context, volume string) (ImageStore, error)
}

// imageTool writes and inspects images.
//
// In production, this is satisfied by *disk.Manager.
type imageTool interface {
	Create(ctx context.Context, url string, sizeGiB int64) error
	CloneTemplate(ctx context.Context, template, dst string, sizeGiB int64) error
	Resize(ctx context.Context, url string, sizeGiB int64) error
	Import(ctx context.Context, src, dst string) error
	Info(ctx context.Context, url string) (map[string]interface{}, error)
}

type sessionStores struct {
	sessions *storage.Sessions
}

// SessionStores exposes storage sessions as ImageStores.
func SessionStores(sessions *storage.Sessions) ImageStores {
	return sessionStores{sessions: sessions}
}

func (s sessionStores) Open(ctx context.Context, volume string) (ImageStore, error) {
	session, err := s.sessions.Get(ctx, volume)
	if err != nil {
		return nil, err
	}
	return session, nil
}
