package client

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/marmos91/nfsclient/internal/logger"
	"github.com/marmos91/nfsclient/internal/protocol/portmap"
	"github.com/marmos91/nfsclient/internal/protocol/rpc"
	"github.com/marmos91/nfsclient/pkg/config"
	"github.com/marmos91/nfsclient/pkg/metrics"
)

// dialer opens transports for one server.
type dialer struct {
	cfg     *config.Config
	metrics metrics.RPCMetrics
}

// program returns a Dialer for program/version. A zero port is resolved on
// every dial, so a redial follows a server that re-registered elsewhere.
func (d *dialer) program(program, version uint32, port int) rpc.Dialer {
	return func(ctx context.Context) (rpc.Transport, error) {
		return d.dial(ctx, program, version, port)
	}
}

// dial connects to program/version. A zero port is resolved first.
func (d *dialer) dial(ctx context.Context, program, version uint32, port int) (rpc.Transport, error) {
	if port == 0 {
		resolved, err := d.lookupPort(ctx, program, version)
		if err != nil {
			return nil, err
		}
		port = resolved
	}
	return d.connect(ctx, port)
}

// connect opens a transport to port using the configured protocol.
func (d *dialer) connect(ctx context.Context, port int) (rpc.Transport, error) {
	addr := net.JoinHostPort(d.cfg.Server.Host, strconv.Itoa(port))

	if d.cfg.Timeouts.Dial > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.Timeouts.Dial)
		defer cancel()
	}

	switch d.cfg.Server.Protocol {
	case "udp":
		t, err := rpc.DialUDP(ctx, addr, rpc.UDPConfig{RetryPolicy: retryPolicy(&d.cfg.UDP)})
		if err != nil {
			return nil, err
		}
		return t, nil
	case "tcp", "":
		t, err := rpc.DialTCP(ctx, addr, rpc.TCPConfig{
			MaxRecordSize:   d.cfg.TCP.MaxRecordSize,
			MaxFragmentSize: d.cfg.TCP.MaxFragmentSize,
		})
		if err != nil {
			return nil, err
		}
		return t, nil
	default:
		return nil, fmt.Errorf("unsupported protocol %q", d.cfg.Server.Protocol)
	}
}

// lookupPort asks the server's portmapper for the port of program/version
// on the configured protocol.
func (d *dialer) lookupPort(ctx context.Context, program, version uint32) (int, error) {
	t, err := d.connect(ctx, d.cfg.Server.PortmapPort)
	if err != nil {
		return 0, fmt.Errorf("portmapper: %w", err)
	}

	pm := portmap.NewClient(t, portmap.Config{
		CallTimeout: d.cfg.Timeouts.Call,
		Metrics:     d.metrics,
	})
	defer func() { _ = pm.Close() }()

	port, err := pm.Lookup(ctx, program, version, d.cfg.Server.Protocol)
	if err != nil {
		return 0, err
	}

	logger.Debug("Portmapper: program %d v%d on %s/%d", program, version, d.cfg.Server.Protocol, port)
	return port, nil
}

// retryPolicy converts the udp section. Unset fields keep the transport
// defaults.
func retryPolicy(cfg *config.UDPConfig) rpc.RetryPolicy {
	policy := rpc.DefaultRetryPolicy()
	if cfg.Timeout > 0 {
		policy.Timeout = cfg.Timeout
	}
	if cfg.MaxTimeout > 0 {
		policy.MaxTimeout = cfg.MaxTimeout
	}
	if cfg.Retries != nil {
		policy.Retries = *cfg.Retries
	}
	return policy
}

// serverID identifies the NFS server behind t for cache keys: the
// transport's remote address when it has one, otherwise the configured
// host and NFS port.
func serverID(cfg *config.Config, t rpc.Transport) string {
	if ra, ok := t.(interface{ RemoteAddr() net.Addr }); ok {
		if addr := ra.RemoteAddr(); addr != nil {
			return addr.String()
		}
	}
	return net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.NFSPort))
}
