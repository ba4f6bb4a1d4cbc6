package libvirt

import (
	"context"
	"fmt"
	"time"

	"github.com/digitalocean/go-libvirt"
	"github.com/digitalocean/go-libvirt/socket/dialers"
)

const (
	// DefaultSocket is the qemu:///system daemon socket.
	DefaultSocket = "/var/run/libvirt/libvirt-sock"

	// DefaultTimeout bounds the initial dial.
	DefaultTimeout = 5 * time.Second
)

// Client owns the process-wide hypervisor connection. All engines share
// it; go-libvirt serializes requests on the socket.
type Client struct {
	libvirt *libvirt.Libvirt
	socket  string
}

// Connect establishes a connection to the local libvirt daemon.
// It returns a Client that must be closed via Close() when done.
//
// Empty socketPath and zero timeout select DefaultSocket and DefaultTimeout.
func Connect(socketPath string, timeout time.Duration) (*Client, error) {
	if socketPath == "" {
		socketPath = DefaultSocket
	}
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	dialer := dialers.NewLocal(
		dialers.WithSocket(socketPath),
		dialers.WithLocalTimeout(timeout),
	)

	l := libvirt.NewWithDialer(dialer)
	if err := l.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to libvirt at %s: %w", socketPath, err)
	}

	return &Client{libvirt: l, socket: socketPath}, nil
}

// ConnectWithContext is Connect, abandoned when ctx is cancelled first.
func ConnectWithContext(ctx context.Context, socketPath string, timeout time.Duration) (*Client, error) {
	type result struct {
		client *Client
		err    error
	}
	resultCh := make(chan result, 1)

	go func() {
		c, err := Connect(socketPath, timeout)
		resultCh <- result{client: c, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("connection cancelled: %w", ctx.Err())
	case res := <-resultCh:
		return res.client, res.err
	}
}

// Close closes the libvirt connection. It is safe to call more than once.
func (c *Client) Close() error {
	if c.libvirt == nil {
		return nil
	}

	l := c.libvirt
	c.libvirt = nil
	if err := l.Disconnect(); err != nil {
		return fmt.Errorf("failed to disconnect from libvirt: %w", err)
	}

	return nil
}

// Libvirt returns the underlying go-libvirt client. Consumers declare the
// subset of its methods they need as their own interface.
func (c *Client) Libvirt() *libvirt.Libvirt {
	return c.libvirt
}

// Ping verifies the connection is still alive.
func (c *Client) Ping() error {
	if c.libvirt == nil {
		return fmt.Errorf("client not connected")
	}

	if _, err := c.libvirt.ConnectGetLibVersion(); err != nil {
		return fmt.Errorf("libvirt connection is dead: %w", err)
	}

	return nil
}

// Info describes the daemon on the other end of the connection.
type Info struct {
	Socket   string `json:"socket" yaml:"socket"`
	Hostname string `json:"hostname" yaml:"hostname"`
	Version  string `json:"version" yaml:"version"`
}

// Describe reports the daemon's hostname and library version.
func (c *Client) Describe() (*Info, error) {
	if c.libvirt == nil {
		return nil, fmt.Errorf("client not connected")
	}

	hostname, err := c.libvirt.ConnectGetHostname()
	if err != nil {
		return nil, fmt.Errorf("failed to get hypervisor hostname: %w", err)
	}

	version, err := c.libvirt.ConnectGetLibVersion()
	if err != nil {
		return nil, fmt.Errorf("failed to get libvirt version: %w", err)
	}

	return &Info{
		Socket:   c.socket,
		Hostname: hostname,
		Version:  FormatVersion(version),
	}, nil
}

// FormatVersion renders libvirt's packed major*1e6+minor*1e3+release
// version number.
func FormatVersion(v uint64) string {
	return fmt.Sprintf("%d.%d.%d", v/1000000, (v/1000)%1000, v%1000)
}
