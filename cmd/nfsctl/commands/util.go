package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marmos91/nfsclient/internal/cli/output"
	"github.com/marmos91/nfsclient/internal/logger"
	"github.com/marmos91/nfsclient/pkg/client"
	"github.com/marmos91/nfsclient/pkg/config"
)

// loadConfig reads the configuration and applies the command line
// overrides on top of it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(flags.ConfigFile)
	if err != nil {
		return nil, err
	}

	f := cmd.Flags()
	if flags.Host != "" {
		cfg.Server.Host = flags.Host
	}
	if flags.Protocol != "" {
		cfg.Server.Protocol = strings.ToLower(flags.Protocol)
	}
	if f.Changed("nfs-port") {
		cfg.Server.NFSPort = flags.NFSPort
	}
	if f.Changed("mount-port") {
		cfg.Server.MountPort = flags.MountPort
	}
	if flags.LogLevel != "" {
		cfg.Logging.Level = strings.ToUpper(flags.LogLevel)
	}

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	if err := logger.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output); err != nil {
		return nil, fmt.Errorf("configure logger: %w", err)
	}
	return cfg, nil
}

// connect loads the configuration and opens a Session to the server.
func connect(cmd *cobra.Command, opts ...client.Option) (*client.Session, *config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}

	s, err := client.Dial(cmd.Context(), cfg, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to %s: %w", cfg.Server.Host, err)
	}
	return s, cfg, nil
}

// closeSession closes s and logs a failure.
func closeSession(s *client.Session) {
	if err := s.Close(); err != nil {
		logger.Warn("Close session: %v", err)
	}
}

func newPrinter(w io.Writer) (*output.Printer, error) {
	format, err := output.ParseFormat(flags.Output)
	if err != nil {
		return nil, err
	}
	return output.NewPrinter(w, format), nil
}

// printList prints data, or emptyMsg for an empty table.
func printList(w io.Writer, data output.TableRenderer, isEmpty bool, emptyMsg string) error {
	p, err := newPrinter(w)
	if err != nil {
		return err
	}
	if isEmpty && p.Format() == output.FormatTable {
		p.Printf("%s\n", emptyMsg)
		return nil
	}
	return p.Print(data)
}

// pathArg returns args[i], or "/" when absent.
func pathArg(args []string, i int) string {
	if len(args) > i {
		return args[i]
	}
	return "/"
}
