// Package vm implements the guest and image operations the agent's engines
// dispatch to.
//
// The main pieces are:
//   - Registry: the UUID to domain map, rebuilt before every lookup
//   - Manager: provisioning steps (system image, seed, define, start),
//     data disk jobs, and operations on existing guests
//
// Error Handling:
//
// Every operation returns an error wrapped with the step that failed. The
// engines turn that into a single failure outcome; nothing here retries or
// cleans up, except where a step says so.
//
// Dependencies:
//
// The hypervisor, the gluster volumes and qemu-img are reached through the
// consumer-side interfaces in interfaces.go, which *libvirt.Libvirt,
// *storage.Sessions (via SessionStores) and *disk.Manager satisfy.
package vm
