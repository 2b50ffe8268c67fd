package mount

import (
	"context"

	"github.com/marmos91/nfsclient/internal/logger"
	"github.com/marmos91/nfsclient/internal/protocol/rpcerr"
	"github.com/marmos91/nfsclient/internal/protocol/xdr"
)

func packDirPath(p *xdr.Packer, dir string) error {
	if len(dir) > MaxPathLen {
		return rpcerr.Value("pack_dirpath", "path of %d bytes exceeds %d", len(dir), MaxPathLen)
	}
	p.PackString(dir)
	return nil
}

// Mnt asks the server to mount dir and returns its root file handle.
//
// A refused mount is not an error: the returned FHStatus carries the
// server's errno and a nil Handle. Errors are reserved for RPC, transport
// and decoding failures.
func (c *Client) Mnt(ctx context.Context, dir string) (*FHStatus, error) {
	var res *FHStatus

	err := c.rpc.Call(ctx, MountProcMnt,
		func(p *xdr.Packer) error {
			return packDirPath(p, dir)
		},
		func(u *xdr.Unpacker) error {
			var err error
			res, err = UnpackFHStatus(u)
			return err
		})
	if err != nil {
		return nil, err
	}

	if res.OK() {
		logger.Debug("MNT %s: handle=%s", dir, res.Handle)
	} else {
		logger.Debug("MNT %s refused: %s", dir, StatusString(res.Status))
	}
	return res, nil
}
