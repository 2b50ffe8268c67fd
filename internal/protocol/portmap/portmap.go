// Package portmap implements the GETPORT call of the port mapper, version 2
// (RFC 1833 Section 3), used to find the port of a program that was not
// configured explicitly.
package portmap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/marmos91/nfsclient/internal/logger"
	"github.com/marmos91/nfsclient/internal/protocol/rpc"
	"github.com/marmos91/nfsclient/internal/protocol/xdr"
	"github.com/marmos91/nfsclient/pkg/metrics"
)

const (
	// Version is the port mapper protocol version.
	Version = 2

	// DefaultPort is the well-known port mapper port.
	DefaultPort = 111

	ProcNull    = 0
	ProcGetPort = 3
)

// Transport protocols in a mapping.
const (
	IPProtoTCP = 6
	IPProtoUDP = 17
)

// Mapping is the pmap argument of GETPORT. Port is ignored in the call.
type Mapping struct {
	Program  uint32
	Version  uint32
	Protocol uint32
	Port     uint32
}

// ErrNotRegistered is returned by Lookup when the server has no mapping
// for the program.
var ErrNotRegistered = errors.New("program not registered with portmapper")

// ProtocolFor returns the IP protocol number for a network name
// ("tcp" or "udp").
func ProtocolFor(network string) (uint32, error) {
	switch network {
	case "tcp", "tcp4", "tcp6":
		return IPProtoTCP, nil
	case "udp", "udp4", "udp6":
		return IPProtoUDP, nil
	default:
		return 0, fmt.Errorf("unsupported network %q", network)
	}
}

func procedureName(proc uint32) string {
	switch proc {
	case ProcNull:
		return "NULL"
	case ProcGetPort:
		return "GETPORT"
	default:
		return ""
	}
}

// Config configures a port mapper Client.
type Config struct {
	CallTimeout time.Duration
	Metrics     metrics.RPCMetrics
}

// Client calls the port mapper. Every call uses AUTH_NULL.
type Client struct {
	rpc *rpc.Client
}

// NewClient creates a port mapper client over t. The client owns t.
func NewClient(t rpc.Transport, config Config) *Client {
	return &Client{
		rpc: rpc.NewClient(t, rpc.ClientConfig{
			Program:       rpc.ProgramPortmap,
			Version:       Version,
			ProgramName:   "portmap",
			ProcedureName: procedureName,
			CallTimeout:   config.CallTimeout,
			Metrics:       config.Metrics,
		}),
	}
}

// GetPort returns the port registered for the mapping, or 0 when none is.
func (c *Client) GetPort(ctx context.Context, m Mapping) (uint32, error) {
	var port uint32

	err := c.rpc.Call(ctx, ProcGetPort,
		func(p *xdr.Packer) error {
			p.PackUint(m.Program)
			p.PackUint(m.Version)
			p.PackUint(m.Protocol)
			p.PackUint(m.Port)
			return nil
		},
		func(u *xdr.Unpacker) error {
			var err error
			port, err = u.UnpackUint()
			return err
		})
	if err != nil {
		return 0, err
	}

	logger.Debug("GETPORT prog=%d vers=%d prot=%d: %d", m.Program, m.Version, m.Protocol, port)
	return port, nil
}

// Lookup is GetPort for a program reached over network ("tcp" or "udp").
// An unregistered program yields ErrNotRegistered.
func (c *Client) Lookup(ctx context.Context, program, version uint32, network string) (int, error) {
	prot, err := ProtocolFor(network)
	if err != nil {
		return 0, err
	}

	port, err := c.GetPort(ctx, Mapping{Program: program, Version: version, Protocol: prot})
	if err != nil {
		return 0, err
	}
	if port == 0 {
		return 0, fmt.Errorf("program %d version %d over %s: %w", program, version, network, ErrNotRegistered)
	}
	return int(port), nil
}

// Null pings the port mapper.
func (c *Client) Null(ctx context.Context) error {
	return c.rpc.Null(ctx)
}

// Close closes the transport.
func (c *Client) Close() error {
	return c.rpc.Close()
}
