package nfs

import (
	"context"
	"time"

	"github.com/marmos91/nfsclient/internal/protocol/rpc"
	"github.com/marmos91/nfsclient/internal/ratelimiter"
	"github.com/marmos91/nfsclient/pkg/metrics"
)

// Config configures an NFS Client.
type Config struct {
	// Credential is sent with every procedure except NULL. Nil builds one
	// from the local process identity on first use.
	Credential *rpc.LazyCredential

	// ReadDirCount is the byte budget of each READDIR page issued by
	// Listdir.
	// Default: DefaultReadDirCount
	ReadDirCount uint32

	CallTimeout time.Duration
	Metrics     metrics.RPCMetrics
	RateLimiter *ratelimiter.RateLimiter

	// Redial reconnects after the connection breaks. Nil never redials.
	Redial rpc.Dialer
}

// Client calls NFS version 2 procedures over one transport. It carries one
// call at a time.
type Client struct {
	rpc          *rpc.Client
	readDirCount uint32
}

// NewClient creates an NFS client over t. The client owns t.
func NewClient(t rpc.Transport, config Config) *Client {
	cred := config.Credential
	if cred == nil {
		cred = rpc.NewLazyCredential(rpc.LocalUnixAuth)
	}
	if config.ReadDirCount == 0 {
		config.ReadDirCount = DefaultReadDirCount
	}

	return &Client{
		rpc: rpc.NewClient(t, rpc.ClientConfig{
			Program:       rpc.ProgramNFS,
			Version:       Version,
			ProgramName:   "nfs",
			ProcedureName: ProcedureName,
			Credentials:   credentialFor(cred),
			CallTimeout:   config.CallTimeout,
			Metrics:       config.Metrics,
			RateLimiter:   config.RateLimiter,
			Redial:        config.Redial,
		}),
		readDirCount: config.ReadDirCount,
	}
}

// credentialFor sends AUTH_NULL for the NULL ping and the Unix credential
// for everything else.
func credentialFor(unix *rpc.LazyCredential) rpc.CredentialFunc {
	return func(proc uint32) (rpc.OpaqueAuth, error) {
		if proc == NFSProcNull {
			return rpc.NullAuth(), nil
		}
		return unix.Get()
	}
}

// RPC returns the underlying RPC client.
func (c *Client) RPC() *rpc.Client {
	return c.rpc
}

// Null pings the NFS server.
func (c *Client) Null(ctx context.Context) error {
	return c.rpc.Null(ctx)
}

// Close closes the transport.
func (c *Client) Close() error {
	return c.rpc.Close()
}
