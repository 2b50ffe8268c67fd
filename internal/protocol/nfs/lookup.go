package nfs

import (
	"context"

	"github.com/marmos91/nfsclient/internal/logger"
	"github.com/marmos91/nfsclient/internal/protocol/nfs/types"
	"github.com/marmos91/nfsclient/internal/protocol/rpcerr"
	"github.com/marmos91/nfsclient/internal/protocol/xdr"
)

// Lookup resolves name inside the directory dir.
//
// name is a single path component: the server does not interpret "/".
func (c *Client) Lookup(ctx context.Context, dir types.FileHandle, name string) (*DirOpRes, error) {
	var res *DirOpRes

	err := c.rpc.Call(ctx, NFSProcLookup,
		func(p *xdr.Packer) error {
			if len(name) > MaxNameLen {
				return rpcerr.Value("lookup", "name of %d bytes exceeds %d", len(name), MaxNameLen)
			}
			if err := types.PackFileHandle(p, dir); err != nil {
				return err
			}
			p.PackString(name)
			return nil
		},
		func(u *xdr.Unpacker) error {
			var err error
			res, err = UnpackDirOpRes(u)
			return err
		})
	if err != nil {
		return nil, err
	}

	logger.Debug("LOOKUP %s/%q: %s", dir, name, StatusString(res.Status))
	return res, nil
}
