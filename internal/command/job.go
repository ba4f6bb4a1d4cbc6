package command

import (
	"fmt"
	"strings"
)

// Job is a provisioning job popped from the work queue.
type Job interface {
	JobMeta() Meta
}

// FileWrite is a file the seed image drops into the guest on first boot.
type FileWrite struct {
	Path        string `mapstructure:"path"`
	Content     string `mapstructure:"content"`
	Permissions string `mapstructure:"permissions"`
}

// DiskSpec locates a guest's system disk.
type DiskSpec struct {
	Path string `mapstructure:"path"`
	Size int64  `mapstructure:"size"` // GiB; zero keeps the template's size
}

// CreateGuest provisions a new guest from a template image.
type CreateGuest struct {
	Meta          `mapstructure:",squash"`
	Name          string      `mapstructure:"name"`
	GlusterVolume string      `mapstructure:"glusterfs_volume"`
	TemplatePath  string      `mapstructure:"template_path"`
	Disk          DiskSpec    `mapstructure:"disk"`
	Password      string      `mapstructure:"password"`
	Writes        []FileWrite `mapstructure:"writes"`
	XML           string      `mapstructure:"xml"`
}

// CreateDisk creates an empty data disk image.
type CreateDisk struct {
	Meta          `mapstructure:",squash"`
	GlusterVolume string `mapstructure:"glusterfs_volume"`
	ImagePath     string `mapstructure:"image_path"`
	Size          int64  `mapstructure:"size"` // GiB
}

// ResizeDiskOffline grows a disk image that is not attached to a running guest.
type ResizeDiskOffline struct {
	Meta          `mapstructure:",squash"`
	DiskUUID      string `mapstructure:"disk_uuid"`
	GlusterVolume string `mapstructure:"glusterfs_volume"`
	ImagePath     string `mapstructure:"image_path"`
	Size          int64  `mapstructure:"size"` // GiB
}

// DeleteDisk removes a disk image.
type DeleteDisk struct {
	Meta          `mapstructure:",squash"`
	GlusterVolume string `mapstructure:"glusterfs_volume"`
	ImagePath     string `mapstructure:"image_path"`
}

func (j *CreateGuest) JobMeta() Meta       { return j.Meta }
func (j *CreateDisk) JobMeta() Meta        { return j.Meta }
func (j *ResizeDiskOffline) JobMeta() Meta { return j.Meta }
func (j *DeleteDisk) JobMeta() Meta        { return j.Meta }

// Job decodes the envelope as a provisioning job.
func (e *Envelope) Job() (Job, error) {
	var (
		job      Job
		validate func() error
	)

	switch e.Action {
	case ActionCreateGuest:
		j := &CreateGuest{}
		job, validate = j, j.validate
	case ActionCreateDisk:
		j := &CreateDisk{}
		job, validate = j, j.validate
	case ActionResizeDisk:
		j := &ResizeDiskOffline{}
		job, validate = j, j.validate
	case ActionDeleteDisk:
		j := &DeleteDisk{}
		job, validate = j, j.validate
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, e.Action)
	}

	if err := e.decodeInto(job); err != nil {
		return nil, err
	}
	if err := validate(); err != nil {
		return nil, err
	}
	return job, nil
}

func (j *CreateGuest) validate() error {
	a := ActionCreateGuest
	switch {
	case j.UUID == "":
		return missing(a, "uuid")
	case j.Name == "":
		return missing(a, "name")
	case j.GlusterVolume == "":
		return missing(a, "glusterfs_volume")
	case j.TemplatePath == "":
		return missing(a, "template_path")
	case j.Disk.Path == "":
		return missing(a, "disk.path")
	case j.XML == "":
		return missing(a, "xml")
	}
	if j.Disk.Size < 0 {
		return &ValidationError{Action: a, Field: "disk.size", Reason: "must not be negative"}
	}
	for i, w := range j.Writes {
		if !strings.HasPrefix(w.Path, "/") {
			return &ValidationError{Action: a, Field: fmt.Sprintf("writes[%d].path", i), Reason: "must be absolute"}
		}
	}
	return nil
}

func (j *CreateDisk) validate() error {
	a := ActionCreateDisk
	switch {
	case j.UUID == "":
		return missing(a, "uuid")
	case j.GlusterVolume == "":
		return missing(a, "glusterfs_volume")
	case j.ImagePath == "":
		return missing(a, "image_path")
	case j.Size <= 0:
		return &ValidationError{Action: a, Field: "size", Reason: "must be positive"}
	}
	return nil
}

func (j *ResizeDiskOffline) validate() error {
	a := ActionResizeDisk
	switch {
	case j.DiskUUID == "":
		return missing(a, "disk_uuid")
	case j.GlusterVolume == "":
		return missing(a, "glusterfs_volume")
	case j.ImagePath == "":
		return missing(a, "image_path")
	case j.Size <= 0:
		return &ValidationError{Action: a, Field: "size", Reason: "must be positive"}
	}
	return nil
}

func (j *DeleteDisk) validate() error {
	a := ActionDeleteDisk
	switch {
	case j.UUID == "":
		return missing(a, "uuid")
	case j.GlusterVolume == "":
		return missing(a, "glusterfs_volume")
	case j.ImagePath == "":
		return missing(a, "image_path")
	}
	return nil
}
