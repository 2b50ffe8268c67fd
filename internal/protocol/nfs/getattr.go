package nfs

import (
	"context"

	"github.com/marmos91/nfsclient/internal/logger"
	"github.com/marmos91/nfsclient/internal/protocol/nfs/types"
	"github.com/marmos91/nfsclient/internal/protocol/xdr"
	"github.com/marmos91/nfsclient/internal/telemetry"
)

// Getattr returns the attributes of the file identified by fh.
//
// A non-OK stat is returned in AttrStat.Status with a nil error.
func (c *Client) Getattr(ctx context.Context, fh types.FileHandle) (*AttrStat, error) {
	var res *AttrStat

	err := c.rpc.Call(ctx, NFSProcGetAttr,
		func(p *xdr.Packer) error {
			return types.PackFileHandle(p, fh)
		},
		func(u *xdr.Unpacker) error {
			var err error
			res, err = UnpackAttrStat(u)
			return err
		})
	if err != nil {
		return nil, err
	}

	telemetry.SetAttributes(ctx, telemetry.NFSHandle(fh[:]), telemetry.NFSStatus(res.Status))
	logger.Debug("GETATTR %s: %s", fh, StatusString(res.Status))
	return res, nil
}
