// Package naming provides the naming conventions the agent uses for
// libvirt storage pools, gluster image paths and per-guest seed images.
package naming

import (
	"fmt"
	"path"
	"strings"
)

// PoolPrefix prefixes the libvirt storage pool backing each gluster volume.
const PoolPrefix = "jimvn-"

// PoolName returns the libvirt storage pool name for a gluster volume.
//
// Example: gv0 → jimvn-gv0
func PoolName(volume string) string {
	return PoolPrefix + volume
}

// SplitImagePath splits a "volume/relative/path" disk source into the
// gluster volume and the path inside it.
//
// Example: gv0/instances/web01/system.qcow2 → ("gv0", "instances/web01/system.qcow2")
func SplitImagePath(source string) (volume, rel string, err error) {
	parts := strings.SplitN(strings.TrimPrefix(source, "/"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("image path %q is not of the form volume/path", source)
	}
	return parts[0], parts[1], nil
}

// JoinImagePath is the inverse of SplitImagePath.
func JoinImagePath(volume, rel string) string {
	return volume + "/" + strings.TrimPrefix(rel, "/")
}

// GlusterURL returns the qemu URL for an image inside a gluster volume.
//
// Example: (gfs01, gv0, disks/d1.qcow2) → gluster://gfs01/gv0/disks/d1.qcow2
func GlusterURL(host, volume, rel string) string {
	return fmt.Sprintf("gluster://%s/%s/%s", host, volume, strings.TrimPrefix(rel, "/"))
}

// SeedImagePath returns the path of a guest's seed ISO, stored next to its
// system image and named after the guest so guests sharing a directory keep
// separate seeds.
//
// Example: (instances/system.qcow2, 6d4b...) → instances/6d4b....seed.iso
func SeedImagePath(systemImage, uuid string) string {
	return path.Join(path.Dir(systemImage), uuid+".seed.iso")
}
