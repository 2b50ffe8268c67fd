// Package mount implements a client for the Mount protocol version 1
// (RFC 1094 Appendix A): obtaining the root file handle of an export and
// listing exports and active mounts.
package mount

import (
	"context"
	"time"

	"github.com/marmos91/nfsclient/internal/protocol/rpc"
	"github.com/marmos91/nfsclient/internal/ratelimiter"
	"github.com/marmos91/nfsclient/pkg/metrics"
)

// Config configures a mount Client.
type Config struct {
	// Credential is sent with MNT, UMNT and UMNTALL. Nil builds one from
	// the local process identity on first use.
	Credential *rpc.LazyCredential

	CallTimeout time.Duration
	Metrics     metrics.RPCMetrics
	RateLimiter *ratelimiter.RateLimiter

	// Redial reconnects after the connection breaks. Nil never redials.
	Redial rpc.Dialer
}

// Client calls the Mount program over one transport. Like rpc.Client it
// carries one call at a time.
type Client struct {
	rpc *rpc.Client
}

// NewClient creates a mount client over t. The client owns t.
func NewClient(t rpc.Transport, config Config) *Client {
	cred := config.Credential
	if cred == nil {
		cred = rpc.NewLazyCredential(rpc.LocalUnixAuth)
	}

	return &Client{
		rpc: rpc.NewClient(t, rpc.ClientConfig{
			Program:       rpc.ProgramMount,
			Version:       Version,
			ProgramName:   "mount",
			ProcedureName: ProcedureName,
			Credentials:   credentialFor(cred),
			CallTimeout:   config.CallTimeout,
			Metrics:       config.Metrics,
			RateLimiter:   config.RateLimiter,
			Redial:        config.Redial,
		}),
	}
}

// NeedsUnixAuth reports whether proc changes the server's mount table and
// therefore identifies the caller with AUTH_UNIX.
func NeedsUnixAuth(proc uint32) bool {
	switch proc {
	case MountProcMnt, MountProcUmnt, MountProcUmntAll:
		return true
	default:
		return false
	}
}

// credentialFor sends the Unix credential for the procedures that need it
// and AUTH_NULL otherwise. The credential is only built once a procedure
// asks for it.
func credentialFor(unix *rpc.LazyCredential) rpc.CredentialFunc {
	return func(proc uint32) (rpc.OpaqueAuth, error) {
		if NeedsUnixAuth(proc) {
			return unix.Get()
		}
		return rpc.NullAuth(), nil
	}
}

// RPC returns the underlying RPC client.
func (c *Client) RPC() *rpc.Client {
	return c.rpc
}

// Null pings the mount server.
func (c *Client) Null(ctx context.Context) error {
	return c.rpc.Null(ctx)
}

// Close closes the transport.
func (c *Client) Close() error {
	return c.rpc.Close()
}
