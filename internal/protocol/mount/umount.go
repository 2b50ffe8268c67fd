package mount

import (
	"context"

	"github.com/marmos91/nfsclient/internal/logger"
	"github.com/marmos91/nfsclient/internal/protocol/xdr"
)

// Umnt removes the caller's mount entry for dir. The reply carries no data.
func (c *Client) Umnt(ctx context.Context, dir string) error {
	err := c.rpc.Call(ctx, MountProcUmnt,
		func(p *xdr.Packer) error {
			return packDirPath(p, dir)
		}, nil)
	if err != nil {
		return err
	}

	logger.Debug("UMNT %s", dir)
	return nil
}
