package nfs

import (
	"context"
	"fmt"

	"github.com/marmos91/nfsclient/internal/logger"
	"github.com/marmos91/nfsclient/internal/protocol/nfs/types"
	"github.com/marmos91/nfsclient/internal/protocol/rpcerr"
	"github.com/marmos91/nfsclient/internal/protocol/xdr"
	"github.com/marmos91/nfsclient/internal/telemetry"
)

// ErrCookieNotAdvancing is returned by Listdir when the server sends a
// page that is not the last one but does not move the cookie forward.
// Following such a server would loop forever.
var ErrCookieNotAdvancing = rpcerr.Protocol("listdir", rpcerr.ReasonCookie, 0, "readdir cookie did not advance")

// Readdir reads one page of directory entries starting after cookie
// (0 starts at the beginning). count bounds the reply size in bytes.
func (c *Client) Readdir(ctx context.Context, dir types.FileHandle, cookie, count uint32) (*ReadDirRes, error) {
	var res *ReadDirRes

	err := c.rpc.Call(ctx, NFSProcReadDir,
		func(p *xdr.Packer) error {
			if err := types.PackFileHandle(p, dir); err != nil {
				return err
			}
			p.PackUint(cookie)
			p.PackUint(count)
			return nil
		},
		func(u *xdr.Unpacker) error {
			var err error
			res, err = UnpackReadDirRes(u)
			return err
		})
	if err != nil {
		return nil, err
	}

	logger.Debug("READDIR %s cookie=%d count=%d: %s entries=%d eof=%t",
		dir, cookie, count, StatusString(res.Status), len(res.Entries), res.EOF)
	return res, nil
}

// Listdir reads the whole directory by issuing READDIR with the cookie of
// the last entry of each page until the server reports EOF.
//
// Errors:
//   - *StatusError when a page carries a non-OK stat
//   - ErrCookieNotAdvancing when a non-EOF page is empty or ends on the
//     cookie that was requested
//
// No partial listing is returned with an error.
func (c *Client) Listdir(ctx context.Context, dir types.FileHandle) ([]DirEntry, error) {
	var entries []DirEntry
	var cookie uint32

	for page := 1; ; page++ {
		res, err := c.Readdir(ctx, dir, cookie, c.readDirCount)
		if err != nil {
			return nil, err
		}
		if err := CheckStatus("READDIR", res.Status); err != nil {
			return nil, err
		}

		entries = append(entries, res.Entries...)
		if res.EOF {
			telemetry.SetAttributes(ctx, telemetry.NFSEOF(true))
			logger.Debug("Listdir %s: %d entries in %d page(s)", dir, len(entries), page)
			return entries, nil
		}

		if len(res.Entries) == 0 || res.Entries[len(res.Entries)-1].Cookie == cookie {
			logger.Warn("Listdir %s: server returned a non-final page at cookie %d without advancing", dir, cookie)
			return nil, fmt.Errorf("listdir page %d: %w", page, ErrCookieNotAdvancing)
		}
		cookie = res.Entries[len(res.Entries)-1].Cookie
		telemetry.SetAttributes(ctx, telemetry.NFSCookie(cookie))
	}
}
