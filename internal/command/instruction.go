package command

import "fmt"

// Instruction is a guest operation received on the operation channel.
type Instruction interface {
	InstructionMeta() Meta
}

// Lifecycle is a parameterless state transition: reboot, force_reboot,
// shutdown, force_shutdown, boot, suspend or resume.
type Lifecycle struct {
	Meta `mapstructure:",squash"`
}

// DeleteGuest undefines a guest and removes its system image.
type DeleteGuest struct {
	Meta `mapstructure:",squash"`
}

// ResizeDiskOnline grows a disk attached to a guest through the hypervisor.
type ResizeDiskOnline struct {
	Meta       `mapstructure:",squash"`
	DiskUUID   string `mapstructure:"disk_uuid"`
	DeviceNode string `mapstructure:"device_node"`
	Size       int64  `mapstructure:"size"` // GiB
}

// DiskDevice attaches or detaches a disk described by a device XML fragment.
type DiskDevice struct {
	Meta `mapstructure:",squash"`
	XML  string `mapstructure:"xml"`
}

// Migrate moves a guest to another hypervisor.
type Migrate struct {
	Meta `mapstructure:",squash"`
	DURI string `mapstructure:"duri"`
}

func (i *Lifecycle) InstructionMeta() Meta        { return i.Meta }
func (i *DeleteGuest) InstructionMeta() Meta      { return i.Meta }
func (i *ResizeDiskOnline) InstructionMeta() Meta { return i.Meta }
func (i *DiskDevice) InstructionMeta() Meta       { return i.Meta }
func (i *Migrate) InstructionMeta() Meta          { return i.Meta }

// SizeKiB converts the requested size to KiB, the unit block resize
// takes when no flags are set.
func (i *ResizeDiskOnline) SizeKiB() uint64 {
	return uint64(i.Size) * 1024 * 1024
}

// Instruction decodes the envelope as a guest operation.
func (e *Envelope) Instruction() (Instruction, error) {
	switch e.Action {
	case ActionReboot, ActionForceReboot, ActionShutdown, ActionForceShutdown,
		ActionBoot, ActionSuspend, ActionResume:
		return &Lifecycle{Meta: e.Meta}, nil

	case ActionDeleteGuest:
		return &DeleteGuest{Meta: e.Meta}, nil

	case ActionResizeDisk:
		i := &ResizeDiskOnline{}
		if err := e.decodeInto(i); err != nil {
			return nil, err
		}
		if _, ok := e.fields["device_node"]; !ok || i.DeviceNode == "" {
			return nil, missing(e.Action, "device_node")
		}
		if _, ok := e.fields["size"]; !ok {
			return nil, missing(e.Action, "size")
		}
		if i.Size <= 0 {
			return nil, &ValidationError{Action: e.Action, Field: "size", Reason: "must be positive"}
		}
		return i, nil

	case ActionAttachDisk, ActionDetachDisk:
		i := &DiskDevice{}
		if err := e.decodeInto(i); err != nil {
			return nil, err
		}
		if i.XML == "" {
			return nil, missing(e.Action, "xml")
		}
		return i, nil

	case ActionMigrate:
		i := &Migrate{}
		if err := e.decodeInto(i); err != nil {
			return nil, err
		}
		if i.DURI == "" {
			return nil, missing(e.Action, "duri")
		}
		return i, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownAction, e.Action)
}
