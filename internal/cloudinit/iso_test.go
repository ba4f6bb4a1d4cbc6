package cloudinit

import (
	"bytes"
	"io"
	"testing"

	"github.com/kdomanski/iso9660"

	"github.com/jbweber/jimvn/internal/command"
)

func TestGenerateISO(t *testing.T) {
	job := newJob()
	job.Password = "s3cret"
	job.Writes = []command.FileWrite{{Path: "/etc/motd", Content: "hello\n"}}

	isoBytes, err := GenerateISO(job)
	if err != nil {
		t.Fatalf("GenerateISO() unexpected error: %v", err)
	}
	if len(isoBytes) == 0 {
		t.Fatal("GenerateISO() returned empty byte slice")
	}

	img, err := iso9660.OpenImage(bytes.NewReader(isoBytes))
	if err != nil {
		t.Fatalf("failed to open ISO image: %v", err)
	}

	label, err := img.Label()
	if err != nil {
		t.Fatalf("failed to get volume label: %v", err)
	}
	if label != "CIDATA" {
		t.Errorf("ISO volume identifier = %q, want %q", label, "CIDATA")
	}

	rootDir, err := img.RootDir()
	if err != nil {
		t.Fatalf("failed to get root directory: %v", err)
	}
	children, err := rootDir.GetChildren()
	if err != nil {
		t.Fatalf("failed to get children: %v", err)
	}
	if len(children) != 2 {
		t.Errorf("ISO contains %d files, want 2", len(children))
	}

	expected := map[string]func(*command.CreateGuest) (string, error){
		"user-data": GenerateUserData,
		"meta-data": GenerateMetaData,
	}
	for _, child := range children {
		generate, ok := expected[child.Name()]
		if !ok {
			t.Errorf("unexpected file in ISO: %q", child.Name())
			continue
		}
		delete(expected, child.Name())

		content, err := readISOFile(child)
		if err != nil {
			t.Fatalf("failed to read %s: %v", child.Name(), err)
		}
		want, err := generate(job)
		if err != nil {
			t.Fatalf("failed to generate expected %s: %v", child.Name(), err)
		}
		if content != want {
			t.Errorf("%s content mismatch:\ngot:\n%s\n\nwant:\n%s", child.Name(), content, want)
		}
	}
	for name := range expected {
		t.Errorf("required file %q not found in ISO", name)
	}
}

func TestGenerateISO_NilJob(t *testing.T) {
	if _, err := GenerateISO(nil); err == nil {
		t.Error("GenerateISO() expected error for nil job")
	}
}

// readISOFile reads the content of a file from the ISO image
func readISOFile(file *iso9660.File) (string, error) {
	content, err := io.ReadAll(file.Reader())
	if err != nil {
		return "", err
	}
	return string(content), nil
}
