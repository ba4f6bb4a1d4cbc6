// Package libvirt wraps github.com/digitalocean/go-libvirt with the
// connection handling and domain XML preparation the agent needs.
//
// Connection Management:
//
// One connection to the local daemon is opened at startup and shared by
// every engine:
//
//	client, err := libvirt.Connect(cfg.Libvirt.Socket, cfg.Libvirt.Timeout)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
// Domain XML:
//
// create_guest jobs carry a complete domain XML. PrepareGuestXML binds it
// to the guest's UUID, name, system image and seed image; SystemImage reads
// the system image location back when the guest is deleted.
//
// Consumer-Side Interfaces:
//
// This package does not define interfaces. Consumers (internal/vm,
// internal/storage, internal/events) declare the subset of *libvirt.Libvirt
// they use, which keeps them testable with hand-written mocks.
package libvirt
