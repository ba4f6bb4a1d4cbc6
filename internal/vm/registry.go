package vm

import (
	"fmt"
	"strings"

	"github.com/digitalocean/go-libvirt"
	"github.com/google/uuid"
)

// Registry maps guest UUIDs to domains. It is owned by a single engine and
// rebuilt from the hypervisor before every lookup, so guests defined or
// removed elsewhere are always seen.
type Registry struct {
	lv     registryClient
	guests map[string]libvirt.Domain
}

// NewRegistry creates an empty registry.
func NewRegistry(lv registryClient) *Registry {
	return &Registry{
		lv:     lv,
		guests: make(map[string]libvirt.Domain),
	}
}

// Refresh replaces the registry contents with every defined guest, active
// or not. On error the previous contents are kept.
func (r *Registry) Refresh() error {
	// NeedResults: 1 means populate the domains slice
	// Flags: 0 means all domains (active and inactive)
	domains, _, err := r.lv.ConnectListAllDomains(1, 0)
	if err != nil {
		return fmt.Errorf("failed to list domains: %w", err)
	}

	guests := make(map[string]libvirt.Domain, len(domains))
	for _, d := range domains {
		guests[DomainUUID(d)] = d
	}
	r.guests = guests
	return nil
}

// Lookup returns the guest with the given UUID.
func (r *Registry) Lookup(id string) (libvirt.Domain, bool) {
	d, ok := r.guests[strings.ToLower(id)]
	return d, ok
}

// Len returns the number of known guests.
func (r *Registry) Len() int {
	return len(r.guests)
}

// DomainUUID returns the canonical string form of a domain's UUID.
func DomainUUID(d libvirt.Domain) string {
	return uuid.UUID(d.UUID).String()
}

// GuestInfo represents information about a guest.
type GuestInfo struct {
	Name     string `json:"name" yaml:"name"`
	UUID     string `json:"uuid" yaml:"uuid"`
	State    string `json:"state" yaml:"state"`
	CPUs     uint16 `json:"cpus" yaml:"cpus"`
	MemoryMB uint64 `json:"memoryMB" yaml:"memoryMB"`
}

// List returns every guest defined on the hypervisor. Guests whose details
// cannot be read are skipped.
func List(lv registryClient) ([]GuestInfo, error) {
	domains, _, err := lv.ConnectListAllDomains(1, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list domains: %w", err)
	}

	guests := make([]GuestInfo, 0, len(domains))
	for _, d := range domains {
		_, _, memory, nrVirtCPU, _, err := lv.DomainGetInfo(d)
		if err != nil {
			continue
		}
		state, _, err := lv.DomainGetState(d, 0)
		if err != nil {
			continue
		}

		guests = append(guests, GuestInfo{
			Name:     d.Name,
			UUID:     DomainUUID(d),
			State:    StateName(state),
			CPUs:     nrVirtCPU,
			MemoryMB: memory / 1024,
		})
	}
	return guests, nil
}

// StateName converts a libvirt domain state to the name used in guest
// events. Unknown states report as no_state.
func StateName(state int32) string {
	switch libvirt.DomainState(state) {
	case libvirt.DomainRunning:
		return "running"
	case libvirt.DomainBlocked:
		return "blocked"
	case libvirt.DomainPaused:
		return "paused"
	case libvirt.DomainShutdown:
		return "shutdown"
	case libvirt.DomainShutoff:
		return "shutoff"
	case libvirt.DomainCrashed:
		return "crashed"
	case libvirt.DomainPmsuspended:
		return "pm_suspended"
	default:
		return "no_state"
	}
}
