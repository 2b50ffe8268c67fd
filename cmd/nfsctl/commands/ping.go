package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/nfsclient/internal/logger"
	"github.com/marmos91/nfsclient/pkg/client"
	"github.com/marmos91/nfsclient/pkg/config"
)

var (
	probeInterval time.Duration
	probeCount    int
	probeExport   string
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the Mount and NFS programs answer",
	Long:  `Call the NULL procedure of the Mount and NFS programs and report the round trip time.`,
	Args:  cobra.NoArgs,
	RunE:  runPing,
}

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Ping the server periodically and export Prometheus metrics",
	Long: `Ping the server at a fixed interval until interrupted.

When metrics are enabled in the configuration, RPC and handle cache
metrics are served on the configured port for Prometheus to scrape.
With --export, each round also stats the export root.

Examples:
  # Probe every 10 seconds
  nfsctl probe --interval 10s

  # Probe an export 5 times
  nfsctl probe --export /export --count 5`,
	Args: cobra.NoArgs,
	RunE: runProbe,
}

func init() {
	probeCmd.Flags().DurationVar(&probeInterval, "interval", 5*time.Second, "time between probes")
	probeCmd.Flags().IntVar(&probeCount, "count", 0, "stop after this many probes (0 = until interrupted)")
	probeCmd.Flags().StringVar(&probeExport, "export", "", "also stat the root of this export")
}

func runPing(cmd *cobra.Command, args []string) error {
	s, cfg, err := connect(cmd)
	if err != nil {
		return err
	}
	defer closeSession(s)

	start := time.Now()
	if err := s.Ping(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s is alive (%s, %s)\n",
		cfg.Server.Host, cfg.Server.Protocol, time.Since(start).Round(time.Microsecond))
	return nil
}

func runProbe(cmd *cobra.Command, args []string) error {
	if probeInterval <= 0 {
		return fmt.Errorf("--interval must be positive")
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// metricsDone stays nil without a metrics server
	var metricsDone chan error
	m := config.InitializeMetrics(cfg)
	if m.Server != nil {
		metricsDone = make(chan error, 1)
		go func() { metricsDone <- m.Server.Start(ctx) }()
	}

	s, err := client.Dial(ctx, cfg, client.WithMetrics(m.RPCMetrics, m.CacheMetrics))
	if err != nil {
		return fmt.Errorf("connect to %s: %w", cfg.Server.Host, err)
	}
	defer closeSession(s)

	ticker := time.NewTicker(probeInterval)
	defer ticker.Stop()

	for n := 1; ; n++ {
		probeOnce(ctx, s, n)

		if probeCount > 0 && n >= probeCount {
			break
		}
		select {
		case <-ctx.Done():
			logger.Info("Probe stopped after %d rounds", n)
			if metricsDone != nil {
				return <-metricsDone
			}
			return nil
		case err := <-metricsDone:
			return err
		case <-ticker.C:
		}
	}

	cancel()
	if metricsDone != nil {
		return <-metricsDone
	}
	return nil
}

// probeOnce runs one round and logs its outcome. Failures do not stop the
// probe.
func probeOnce(ctx context.Context, s *client.Session, n int) {
	start := time.Now()
	if err := s.Ping(ctx); err != nil {
		logger.Error("Probe %d: ping failed: %v", n, err)
		return
	}
	if probeExport != "" {
		if _, err := s.Stat(ctx, probeExport, "/"); err != nil {
			logger.Error("Probe %d: stat %s failed: %v", n, probeExport, err)
			return
		}
	}
	logger.Info("Probe %d: ok in %s", n, time.Since(start).Round(time.Microsecond))
}
