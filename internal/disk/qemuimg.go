// Package disk drives qemu-img against gluster URLs.
//
// Images are addressed by the URL a storage.Session hands out, e.g.
// gluster://gfs01/gv0/instances/web01/system.qcow2. Sizes are in GiB.
package disk

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
)

// FormatQCOW2 is the format of every image the agent creates.
const FormatQCOW2 = "qcow2"

// Runner executes a command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Manager handles image operations through qemu-img.
type Manager struct {
	run Runner
}

// NewManager creates a manager that shells out to qemu-img.
func NewManager() *Manager {
	return NewManagerWithRunner(execRunner)
}

// NewManagerWithRunner creates a manager with a custom command runner.
func NewManagerWithRunner(run Runner) *Manager {
	return &Manager{run: run}
}

// Create allocates an empty qcow2 image.
func (m *Manager) Create(ctx context.Context, url string, sizeGiB int64) error {
	if sizeGiB <= 0 {
		return fmt.Errorf("size must be greater than 0, got %d", sizeGiB)
	}

	if output, err := m.run(ctx, "qemu-img", "create", "-f", FormatQCOW2, url, sizeArg(sizeGiB)); err != nil {
		return fmt.Errorf("failed to create image %s: %w\nOutput: %s", url, err, string(output))
	}
	return nil
}

// CloneTemplate writes a standalone qcow2 copy of template to dst and grows
// it to sizeGiB when that is set.
func (m *Manager) CloneTemplate(ctx context.Context, template, dst string, sizeGiB int64) error {
	if output, err := m.run(ctx, "qemu-img", "convert", "-O", FormatQCOW2, template, dst); err != nil {
		return fmt.Errorf("failed to copy template %s to %s: %w\nOutput: %s", template, dst, err, string(output))
	}

	if sizeGiB > 0 {
		return m.Resize(ctx, dst, sizeGiB)
	}
	return nil
}

// Resize sets the virtual size of an image that no guest has open.
func (m *Manager) Resize(ctx context.Context, url string, sizeGiB int64) error {
	if sizeGiB <= 0 {
		return fmt.Errorf("size must be greater than 0, got %d", sizeGiB)
	}

	if output, err := m.run(ctx, "qemu-img", "resize", "-f", FormatQCOW2, url, sizeArg(sizeGiB)); err != nil {
		return fmt.Errorf("failed to resize image %s: %w\nOutput: %s", url, err, string(output))
	}
	return nil
}

// Import copies a local raw file, such as a seed ISO, into dst.
func (m *Manager) Import(ctx context.Context, src, dst string) error {
	if output, err := m.run(ctx, "qemu-img", "convert", "-f", "raw", "-O", "raw", src, dst); err != nil {
		return fmt.Errorf("failed to import %s to %s: %w\nOutput: %s", src, dst, err, string(output))
	}
	return nil
}

// Info returns the image description reported by qemu-img, decoded as-is
// so it can be passed upstream without loss.
func (m *Manager) Info(ctx context.Context, url string) (map[string]interface{}, error) {
	output, err := m.run(ctx, "qemu-img", "info", "--output=json", url)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect image %s: %w\nOutput: %s", url, err, string(output))
	}

	info := make(map[string]interface{})
	if err := json.Unmarshal(output, &info); err != nil {
		return nil, fmt.Errorf("failed to parse image info for %s: %w", url, err)
	}
	return info, nil
}

func sizeArg(sizeGiB int64) string {
	return fmt.Sprintf("%dG", sizeGiB)
}
