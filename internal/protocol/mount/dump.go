package mount

import (
	"context"

	"github.com/marmos91/nfsclient/internal/logger"
	"github.com/marmos91/nfsclient/internal/protocol/xdr"
)

// Dump returns the server's list of active mounts.
//
// Entries may be stale: servers only drop them on UMNT or UMNTALL, so a
// client that crashed stays listed.
func (c *Client) Dump(ctx context.Context) ([]MountEntry, error) {
	var entries []MountEntry

	err := c.rpc.Call(ctx, MountProcDump, nil, func(u *xdr.Unpacker) error {
		var err error
		entries, err = UnpackMountList(u)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Debug("DUMP: %d active mount(s)", len(entries))
	return entries, nil
}
