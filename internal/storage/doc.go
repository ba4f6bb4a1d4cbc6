// Package storage provides access to guest images on gluster volumes
// through libvirt storage pools.
//
// Each gluster volume is backed by one libvirt pool of type gluster, named
// by naming.PoolName. Sessions opens that pool the first time a volume is
// used and hands the same Session to every later caller, so the agent's
// engines share one initialized backend per volume.
//
// Image paths passed to a Session are relative to the volume root, e.g.
// "instances/web01/system.qcow2" in volume "gv0".
//
// Example usage:
//
//	sessions := storage.NewSessions(client.Libvirt(), "gfs01.example.com")
//
//	session, err := sessions.Get(ctx, "gv0")
//	if err != nil {
//	    return err
//	}
//
//	if err := session.Remove(ctx, "disks/d1.qcow2"); err != nil {
//	    return err
//	}
package storage
