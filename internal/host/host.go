// Package host reads facts about the hypervisor node the agent runs on.
package host

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

// loadScale is the fixed-point scale the kernel reports load averages in (SI_LOAD_SHIFT).
const loadScale = 1 << 16

// LoadAverage returns the 5-minute load average.
func LoadAverage() (float64, error) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0, fmt.Errorf("failed to read sysinfo: %w", err)
	}
	return float64(info.Loads[1]) / loadScale, nil
}

// Hostname returns the node's hostname.
func Hostname() (string, error) {
	name, err := os.Hostname()
	if err != nil {
		return "", fmt.Errorf("failed to get hostname: %w", err)
	}
	return name, nil
}

// NodeID returns the node identifier uuid derives version 1 UUIDs from: the
// first interface hardware address, or a random value on hosts without one,
// as a 48-bit integer.
func NodeID() uint64 {
	return nodeIDFrom(uuid.NodeID())
}

func nodeIDFrom(node []byte) uint64 {
	var id uint64
	for _, b := range node {
		id = id<<8 | uint64(b)
	}
	return id
}
