package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "unknown"
)

var (
	socketPath   string
	outputFormat string
	noHeaders    bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "jimvn",
	Short: "jimvn - hypervisor node agent",
	Long: `jimvn runs on every hypervisor node. It provisions guests from jobs on a
Redis work queue, applies guest operations received over Redis pub/sub, and
reports heartbeats and guest state changes back upstream.

The inspection commands talk to the local libvirt daemon directly and do not
need Redis.`,
	Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", "", "libvirt daemon socket (default /var/run/libvirt/libvirt-sock)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(testConnCmd)
	rootCmd.AddCommand(guestsCmd)
	rootCmd.AddCommand(poolCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("jimvn %s (commit: %s)\n", version, commit)
	},
}
