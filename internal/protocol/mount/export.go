package mount

import (
	"context"

	"github.com/marmos91/nfsclient/internal/logger"
	"github.com/marmos91/nfsclient/internal/protocol/xdr"
)

// Export returns the directories the server exports and the groups allowed
// to mount each one.
func (c *Client) Export(ctx context.Context) ([]ExportEntry, error) {
	var entries []ExportEntry

	err := c.rpc.Call(ctx, MountProcExport, nil, func(u *xdr.Unpacker) error {
		var err error
		entries, err = UnpackExportList(u)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Debug("EXPORT: %d export(s)", len(entries))
	for _, e := range entries {
		logger.Debug("  export %s groups=%v", e.Directory, e.Groups)
	}
	return entries, nil
}
