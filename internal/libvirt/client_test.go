package libvirt

import (
	"context"
	"testing"
	"time"
)

// TestConnect is an integration test that requires libvirt to be running.
func TestConnect(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	c, err := Connect("", 0)
	if err != nil {
		t.Skipf("libvirt not available: %v", err)
	}
	defer func() {
		if err := c.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	}()

	if err := c.Ping(); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}

	info, err := c.Describe()
	if err != nil {
		t.Fatalf("Describe failed: %v", err)
	}
	if info.Socket != DefaultSocket {
		t.Errorf("Socket = %q, want %q", info.Socket, DefaultSocket)
	}
	if info.Hostname == "" {
		t.Error("Describe returned empty hostname")
	}
}

func TestConnect_InvalidSocket(t *testing.T) {
	_, err := Connect("/nonexistent/socket", 100*time.Millisecond)
	if err == nil {
		t.Fatal("expected error connecting to nonexistent socket, got nil")
	}
}

func TestConnectWithContext_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ConnectWithContext(ctx, "/nonexistent/socket", 100*time.Millisecond)
	if err == nil {
		t.Fatal("expected error from cancelled context, got nil")
	}
}

func TestClose_Idempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	c, err := Connect("", 0)
	if err != nil {
		t.Skipf("libvirt not available: %v", err)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
}

func TestDisconnectedClient(t *testing.T) {
	c := &Client{}

	if err := c.Ping(); err == nil {
		t.Error("expected error from Ping on disconnected client")
	}
	if _, err := c.Describe(); err == nil {
		t.Error("expected error from Describe on disconnected client")
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close on disconnected client: %v", err)
	}
}

func TestFormatVersion(t *testing.T) {
	tests := []struct {
		in   uint64
		want string
	}{
		{in: 9000000, want: "9.0.0"},
		{in: 10010002, want: "10.10.2"},
		{in: 8005001, want: "8.5.1"},
	}

	for _, tt := range tests {
		if got := FormatVersion(tt.in); got != tt.want {
			t.Errorf("FormatVersion(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
