// Package cloudinit builds the NoCloud seed image a new guest boots with.
//
// The seed carries the root password and the files the guest should find
// on first boot (the create_guest "password" and "writes" fields).
//
// See https://cloudinit.readthedocs.io/en/latest/reference/datasources/nocloud.html
package cloudinit

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/jbweber/jimvn/internal/command"
)

// UserData represents the cloud-config user-data structure.
// This is marshaled to YAML and prefixed with "#cloud-config" header.
//
// See https://cloudinit.readthedocs.io/en/latest/explanation/format.html#cloud-config-data
type UserData struct {
	Hostname        string      `yaml:"hostname"`
	Chpasswd        *Chpasswd   `yaml:"chpasswd,omitempty"`
	SSHPasswordAuth bool        `yaml:"ssh_pwauth"`
	WriteFiles      []WriteFile `yaml:"write_files,omitempty"`
	Output          *Output     `yaml:"output,omitempty"`
}

// Chpasswd configures user password settings.
type Chpasswd struct {
	Expire bool   `yaml:"expire"` // Whether to expire passwords on first login
	List   string `yaml:"list"`   // Format: "username:password"
}

// WriteFile is one entry of the write_files module.
type WriteFile struct {
	Path        string `yaml:"path"`
	Content     string `yaml:"content"`
	Permissions string `yaml:"permissions,omitempty"`
}

// Output configures cloud-init output logging.
type Output struct {
	All string `yaml:"all"`
}

// MetaData represents the cloud-init meta-data structure.
type MetaData struct {
	InstanceID    string `yaml:"instance-id"`
	LocalHostname string `yaml:"local-hostname"`
}

// GenerateUserData generates the user-data content for a new guest.
//
// Returns the complete user-data file content including the "#cloud-config" header.
func GenerateUserData(job *command.CreateGuest) (string, error) {
	if job == nil {
		return "", fmt.Errorf("guest job cannot be nil")
	}

	userData := UserData{
		Hostname: job.Name,
		Output: &Output{
			All: "| tee -a /var/log/cloud-init-output.log",
		},
	}

	if job.Password != "" {
		userData.Chpasswd = &Chpasswd{
			Expire: false,
			List:   fmt.Sprintf("root:%s", job.Password),
		}
		userData.SSHPasswordAuth = true
	}

	for _, w := range job.Writes {
		userData.WriteFiles = append(userData.WriteFiles, WriteFile{
			Path:        w.Path,
			Content:     w.Content,
			Permissions: w.Permissions,
		})
	}

	yamlBytes, err := yaml.Marshal(&userData)
	if err != nil {
		return "", fmt.Errorf("failed to marshal user-data to YAML: %w", err)
	}

	// Prepend #cloud-config header (required by cloud-init)
	return "#cloud-config\n" + string(yamlBytes), nil
}

// GenerateMetaData generates the meta-data content for a new guest.
//
// The instance-id is the guest UUID, so cloud-init runs once per guest and
// again if the same name is reused for a new guest.
func GenerateMetaData(job *command.CreateGuest) (string, error) {
	if job == nil {
		return "", fmt.Errorf("guest job cannot be nil")
	}

	metaData := MetaData{
		InstanceID:    job.UUID,
		LocalHostname: job.Name,
	}

	yamlBytes, err := yaml.Marshal(&metaData)
	if err != nil {
		return "", fmt.Errorf("failed to marshal meta-data to YAML: %w", err)
	}

	return string(yamlBytes), nil
}
