// Package commands implements the nfsctl command line.
package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// globalFlags holds the persistent flag values shared by every command.
type globalFlags struct {
	ConfigFile string
	Host       string
	Protocol   string
	NFSPort    int
	MountPort  int
	Output     string
	LogLevel   string
}

var flags = &globalFlags{}

var rootCmd = &cobra.Command{
	Use:   "nfsctl",
	Short: "NFS version 2 client",
	Long: `nfsctl talks to NFS version 2 servers over ONC RPC.

It lists and mounts exports with the Mount protocol, then resolves paths,
reads attributes, lists directories and changes permissions with NFS.

Settings come from the configuration file (see "nfsctl config init"),
NFSCLIENT_* environment variables, and the flags below, in increasing
order of precedence.

Use "nfsctl [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "nfsctl %s (commit: %s, built: %s)\n", Version, Commit, Date)
	},
}

// Execute runs the root command with a background context.
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command. ctx is cancelled on interrupt.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.ConfigFile, "config", "", "config file (default: $XDG_CONFIG_HOME/nfsclient/config.yaml)")
	pf.StringVarP(&flags.Host, "host", "H", "", "server host name or address")
	pf.StringVar(&flags.Protocol, "protocol", "", "transport protocol (tcp|udp)")
	pf.IntVar(&flags.NFSPort, "nfs-port", 0, "NFS port, 0 asks the portmapper")
	pf.IntVar(&flags.MountPort, "mount-port", 0, "Mount port, 0 asks the portmapper")
	pf.StringVarP(&flags.Output, "output", "o", "table", "output format (table|json|yaml)")
	pf.StringVar(&flags.LogLevel, "log-level", "", "log level (DEBUG|INFO|WARN|ERROR)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(exportsCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(mountCmd)
	rootCmd.AddCommand(umountCmd)
	rootCmd.AddCommand(umountAllCmd)
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(statCmd)
	rootCmd.AddCommand(lookupCmd)
	rootCmd.AddCommand(chmodCmd)
	rootCmd.AddCommand(pingCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(configCmd)
}
