package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/nfsclient/internal/cli/output"
	"github.com/marmos91/nfsclient/pkg/config"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
	Long: `Manage the nfsctl configuration file.

Subcommands:
  init      Write a default configuration file
  show      Display the effective configuration
  validate  Check a configuration file`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Write a commented configuration file with default values.

Examples:
  # Default location ($XDG_CONFIG_HOME/nfsclient/config.yaml)
  nfsctl config init

  # Custom location, replacing an existing file
  nfsctl config init --config ./nfsclient.yaml --force`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the effective configuration",
	Long: `Display the configuration after defaults, environment variables and
flags are applied. Prints YAML unless --output json is given.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a configuration file",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := flags.ConfigFile

	var err error
	if path != "" {
		err = config.InitConfigToPath(path, configForce)
	} else {
		path, err = config.InitConfig(configForce)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Configuration file created at: %s\n", path)
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "  1. Set server.host to your NFS server")
	fmt.Fprintln(out, "  2. List its exports with: nfsctl exports")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(flags.Output)
	if err != nil {
		return err
	}
	if format == output.FormatJSON {
		return output.PrintJSON(cmd.OutOrStdout(), cfg)
	}
	return output.PrintYAML(cmd.OutOrStdout(), cfg)
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	if _, err := loadConfig(cmd); err != nil {
		return err
	}

	source := flags.ConfigFile
	if source == "" {
		source = config.GetDefaultConfigPath()
		if !config.ConfigExists() {
			source = "defaults"
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Configuration is valid (%s)\n", source)
	return nil
}
