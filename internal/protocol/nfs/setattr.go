package nfs

import (
	"context"

	"github.com/marmos91/nfsclient/internal/logger"
	"github.com/marmos91/nfsclient/internal/protocol/nfs/types"
	"github.com/marmos91/nfsclient/internal/protocol/xdr"
)

// Setattr changes the attributes of fh that attrs does not mark NoChange
// and returns the attributes after the change.
func (c *Client) Setattr(ctx context.Context, fh types.FileHandle, attrs SetAttr) (*AttrStat, error) {
	var res *AttrStat

	err := c.rpc.Call(ctx, NFSProcSetAttr,
		func(p *xdr.Packer) error {
			if err := types.PackFileHandle(p, fh); err != nil {
				return err
			}
			PackSetAttr(p, &attrs)
			return nil
		},
		func(u *xdr.Unpacker) error {
			var err error
			res, err = UnpackAttrStat(u)
			return err
		})
	if err != nil {
		return nil, err
	}

	logger.Debug("SETATTR %s mode=0x%x: %s", fh, attrs.Mode, StatusString(res.Status))
	return res, nil
}
