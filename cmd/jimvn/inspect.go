package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jbweber/jimvn/internal/libvirt"
	"github.com/jbweber/jimvn/internal/output"
	"github.com/jbweber/jimvn/internal/storage"
	"github.com/jbweber/jimvn/internal/vm"
)

// connect opens the libvirt connection for an inspection command.
func connect() (*libvirt.Client, func(), error) {
	client, err := libvirt.Connect(socketPath, libvirt.DefaultTimeout)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to libvirt: %w", err)
	}
	return client, func() {
		if closeErr := client.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close libvirt connection: %v\n", closeErr)
		}
	}, nil
}

func newFormatter() (output.Formatter, error) {
	if err := output.ValidateFormat(outputFormat); err != nil {
		return nil, err
	}
	return output.NewFormatter(output.Options{
		Format:    output.Format(outputFormat),
		NoHeaders: noHeaders,
	})
}

func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "output format: table, json, yaml")
	cmd.Flags().BoolVar(&noHeaders, "no-headers", false, "omit table headers")
}

var testConnCmd = &cobra.Command{
	Use:   "test-conn",
	Short: "Test libvirt connection",
	Long:  `Test connectivity to the libvirt daemon and display version information.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("Testing libvirt connection...")

		client, done, err := connect()
		if err != nil {
			return err
		}
		defer done()

		fmt.Println("✓ Connected to libvirt daemon")

		if err := client.Ping(); err != nil {
			return fmt.Errorf("connection test failed: %w", err)
		}

		info, err := client.Describe()
		if err != nil {
			return err
		}

		fmt.Printf("✓ Libvirt version: %s\n", info.Version)
		fmt.Printf("✓ Hypervisor hostname: %s\n", info.Hostname)
		fmt.Printf("✓ Socket: %s\n", info.Socket)

		fmt.Println("\nConnection test successful!")
		return nil
	},
}

var guestsCmd = &cobra.Command{
	Use:   "guests",
	Short: "List guests on this host",
	Long: `List every guest defined on the local hypervisor, running or not.

Output formats:
  -o table  Human-readable table (default)
  -o yaml   One YAML document per guest
  -o json   JSON array`,
	RunE: func(cmd *cobra.Command, args []string) error {
		formatter, err := newFormatter()
		if err != nil {
			return err
		}

		client, done, err := connect()
		if err != nil {
			return err
		}
		defer done()

		guests, err := vm.List(client.Libvirt())
		if err != nil {
			return err
		}

		result, err := formatter.FormatGuests(guests)
		if err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}

		fmt.Print(result)
		return nil
	},
}

// Storage pool commands
var poolCmd = &cobra.Command{
	Use:   "pool",
	Short: "Inspect storage pools",
	Long: `Inspect the libvirt storage pools backing gluster volumes.

The agent defines one pool per gluster volume the first time a job touches
that volume.`,
}

func init() {
	addOutputFlags(guestsCmd)
	addOutputFlags(poolListCmd)

	poolCmd.AddCommand(poolListCmd)
	poolCmd.AddCommand(poolImageCmd)
}

var poolListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all storage pools",
	RunE: func(cmd *cobra.Command, args []string) error {
		formatter, err := newFormatter()
		if err != nil {
			return err
		}

		client, done, err := connect()
		if err != nil {
			return err
		}
		defer done()

		pools, err := storage.NewManager(client.Libvirt()).ListPools(context.Background())
		if err != nil {
			return fmt.Errorf("failed to list pools: %w", err)
		}

		result, err := formatter.FormatPools(pools)
		if err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}

		fmt.Print(result)
		return nil
	},
}

var glusterHost string

var poolImageCmd = &cobra.Command{
	Use:   "image <volume> <path>",
	Short: "Show an image in a gluster volume",
	Long: `Display capacity and allocation of an image in a gluster volume.

The volume's storage pool is defined if it does not exist yet.

Example:
  jimvn pool image gv0 instances/web01/system.qcow2 --gluster-host gfs01`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		volume, path := args[0], args[1]
		ctx := context.Background()

		client, done, err := connect()
		if err != nil {
			return err
		}
		defer done()

		session, err := storage.NewSessions(client.Libvirt(), glusterHost).Get(ctx, volume)
		if err != nil {
			return err
		}

		info, err := session.Info(ctx, path)
		if err != nil {
			return err
		}

		fmt.Printf("Image: %s\n", info.Name)
		fmt.Printf("Pool: %s\n", info.Pool)
		fmt.Printf("URL: %s\n", session.URL(path))
		fmt.Printf("Capacity: %.2f GB (%d bytes)\n", info.CapacityGB(), info.Capacity)
		fmt.Printf("Allocation: %d bytes\n", info.Allocation)
		fmt.Printf("Path: %s\n", info.Path)
		return nil
	},
}

func init() {
	poolImageCmd.Flags().StringVar(&glusterHost, "gluster-host", "", "gluster server hosting the volume")
	_ = poolImageCmd.MarkFlagRequired("gluster-host")
}
