package mount

import (
	"context"

	"github.com/marmos91/nfsclient/internal/logger"
)

// Umntall removes every mount entry the server holds for the caller.
func (c *Client) Umntall(ctx context.Context) error {
	if err := c.rpc.Call(ctx, MountProcUmntAll, nil, nil); err != nil {
		return err
	}

	logger.Debug("UMNTALL")
	return nil
}
