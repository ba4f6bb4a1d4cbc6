package agent

import (
	"context"

	"github.com/digitalocean/go-libvirt"

	"github.com/jbweber/jimvn/internal/bus"
	"github.com/jbweber/jimvn/internal/command"
)

// Queue is the provisioning work queue.
//
// In production, this is satisfied by *bus.Queue.
type Queue interface {
	Pop(ctx context.Context) ([]byte, error)
}

// Channel is the operation channel subscription.
//
// In production, this is satisfied by *bus.Channel.
type Channel interface {
	Receive(ctx context.Context) ([]byte, error)
}

// Emitter publishes outcomes and heartbeats.
//
// In production, this is satisfied by *bus.Emitter.
type Emitter interface {
	Success(ctx context.Context, r bus.Response) error
	Failure(ctx context.Context, r bus.Response) error
	Heartbeat(ctx context.Context) error
}

// Provisioning is the image and definition work behind provisioning jobs.
//
// In production, this is satisfied by *vm.Manager.
type Provisioning interface {
	GenerateSystemImage(ctx context.Context, job *command.CreateGuest) error
	DefineGuest(ctx context.Context, job *command.CreateGuest) (libvirt.Domain, error)
	DiskInfo(ctx context.Context, volume, path string) (map[string]interface{}, error)
	Start(domain libvirt.Domain) error
	RemoveImage(ctx context.Context, volume, path string) error
	CreateDisk(ctx context.Context, job *command.CreateDisk) error
	ResizeDisk(ctx context.Context, job *command.ResizeDiskOffline) error
	DeleteDisk(ctx context.Context, job *command.DeleteDisk) error
}

// Operations applies guest operations to existing guests.
//
// In production, this is satisfied by *vm.Manager.
type Operations interface {
	Lifecycle(domain libvirt.Domain, action command.Action) error
	Delete(ctx context.Context, domain libvirt.Domain) error
	ResizeAttachedDisk(domain libvirt.Domain, device string, sizeKiB uint64) error
	AttachDisk(domain libvirt.Domain, xml string) error
	DetachDisk(domain libvirt.Domain, xml string) error
	Migrate(domain libvirt.Domain, duri string) error
}

// Registry resolves guest UUIDs.
//
// In production, this is satisfied by *vm.Registry.
type Registry interface {
	Refresh() error
	Lookup(id string) (libvirt.Domain, bool)
}

// LoadFunc returns the host's 5-minute load average.
type LoadFunc func() (float64, error)
