package client_test

import (
	"sort"
	"sync"

	"github.com/marmos91/nfsclient/internal/protocol/mount"
	"github.com/marmos91/nfsclient/internal/protocol/nfs"
	"github.com/marmos91/nfsclient/internal/protocol/nfs/types"
	"github.com/marmos91/nfsclient/internal/protocol/rpc"
	"github.com/marmos91/nfsclient/internal/protocol/rpc/rpctest"
	"github.com/marmos91/nfsclient/internal/protocol/xdr"
)

// fakeNode is a file or directory in fakeFS.
type fakeNode struct {
	attr     types.FileAttr
	children map[string]types.FileHandle
}

// fakeFS is an in-memory export served over rpctest loopback servers.
type fakeFS struct {
	mu      sync.Mutex
	export  string
	root    types.FileHandle
	nodes   map[types.FileHandle]*fakeNode
	nextID  uint32
	mounted map[string]bool
	lookups int

	mountSrv *rpctest.Server
	nfsSrv   *rpctest.Server
}

func newFakeFS(export string) *fakeFS {
	f := &fakeFS{
		export:  export,
		nodes:   make(map[types.FileHandle]*fakeNode),
		mounted: make(map[string]bool),
	}
	f.root = f.newNode(types.NFDIR, 040755)
	f.mountSrv = rpctest.NewServer()
	f.nfsSrv = rpctest.NewServer()
	f.registerMount(f.mountSrv)
	f.registerNFS(f.nfsSrv)
	return f
}

func (f *fakeFS) newNode(ft types.FileType, mode uint32) types.FileHandle {
	f.nextID++
	var fh types.FileHandle
	fh[0] = byte(f.nextID)
	fh[1] = byte(f.nextID >> 8)
	fh[31] = 0xfe

	node := &fakeNode{attr: types.FileAttr{
		Type:      ft,
		Mode:      mode,
		Nlink:     1,
		UID:       1000,
		GID:       1000,
		BlockSize: 4096,
		FSID:      7,
		FileID:    f.nextID,
	}}
	if ft == types.NFDIR {
		node.children = make(map[string]types.FileHandle)
		node.attr.Size = 4096
	}
	f.nodes[fh] = node
	return fh
}

// add creates name under dir and returns its handle.
func (f *fakeFS) add(dir types.FileHandle, name string, ft types.FileType) types.FileHandle {
	f.mu.Lock()
	defer f.mu.Unlock()

	mode := uint32(0100644)
	if ft == types.NFDIR {
		mode = 040755
	}
	fh := f.newNode(ft, mode)
	f.nodes[dir].children[name] = fh
	return fh
}

// replace gives the node at dir/name a new handle. The old handle becomes
// stale, like on a server that re-exported the file system.
func (f *fakeFS) replace(dir types.FileHandle, name string) types.FileHandle {
	f.mu.Lock()
	defer f.mu.Unlock()

	old := f.nodes[dir].children[name]
	node := f.nodes[old]
	delete(f.nodes, old)

	f.nextID++
	var fh types.FileHandle
	fh[0] = byte(f.nextID)
	fh[31] = 0xfd
	f.nodes[fh] = node
	f.nodes[dir].children[name] = fh
	return fh
}

func (f *fakeFS) lookupCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lookups
}

func (f *fakeFS) registerMount(srv *rpctest.Server) {
	srv.Handle(rpc.ProgramMount, mount.Version, mount.MountProcMnt, func(c *rpctest.Call, res *xdr.Packer) error {
		dir, err := c.ArgsUnpacker().UnpackString()
		if err != nil {
			return err
		}
		f.mu.Lock()
		defer f.mu.Unlock()

		if dir != f.export {
			return mount.PackFHStatus(res, &mount.FHStatus{Status: mount.MountErrNoEnt})
		}
		f.mounted[dir] = true
		root := f.root
		return mount.PackFHStatus(res, &mount.FHStatus{Status: mount.MountOK, Handle: &root})
	})

	srv.Handle(rpc.ProgramMount, mount.Version, mount.MountProcUmnt, func(c *rpctest.Call, res *xdr.Packer) error {
		dir, err := c.ArgsUnpacker().UnpackString()
		if err != nil {
			return err
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.mounted, dir)
		return nil
	})

	srv.Handle(rpc.ProgramMount, mount.Version, mount.MountProcUmntAll, func(c *rpctest.Call, res *xdr.Packer) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.mounted = make(map[string]bool)
		return nil
	})

	srv.Handle(rpc.ProgramMount, mount.Version, mount.MountProcExport, func(c *rpctest.Call, res *xdr.Packer) error {
		return mount.PackExportList(res, []mount.ExportEntry{{Directory: f.export, Groups: []string{"lan"}}})
	})

	srv.Handle(rpc.ProgramMount, mount.Version, mount.MountProcDump, func(c *rpctest.Call, res *xdr.Packer) error {
		f.mu.Lock()
		defer f.mu.Unlock()

		var entries []mount.MountEntry
		for dir := range f.mounted {
			entries = append(entries, mount.MountEntry{Hostname: "testhost", Directory: dir})
		}
		return mount.PackMountList(res, entries)
	})
}

func (f *fakeFS) registerNFS(srv *rpctest.Server) {
	srv.Handle(rpc.ProgramNFS, nfs.Version, nfs.NFSProcGetAttr, func(c *rpctest.Call, res *xdr.Packer) error {
		fh, err := types.UnpackFileHandle(c.ArgsUnpacker())
		if err != nil {
			return err
		}
		f.mu.Lock()
		defer f.mu.Unlock()

		node, ok := f.nodes[fh]
		if !ok {
			nfs.PackAttrStat(res, &nfs.AttrStat{Status: nfs.NFSErrStale})
			return nil
		}
		attr := node.attr
		nfs.PackAttrStat(res, &nfs.AttrStat{Status: nfs.NFSOK, Attr: &attr})
		return nil
	})

	srv.Handle(rpc.ProgramNFS, nfs.Version, nfs.NFSProcSetAttr, func(c *rpctest.Call, res *xdr.Packer) error {
		u := c.ArgsUnpacker()
		fh, err := types.UnpackFileHandle(u)
		if err != nil {
			return err
		}
		sa, err := nfs.UnpackSetAttr(u)
		if err != nil {
			return err
		}
		f.mu.Lock()
		defer f.mu.Unlock()

		node, ok := f.nodes[fh]
		if !ok {
			nfs.PackAttrStat(res, &nfs.AttrStat{Status: nfs.NFSErrStale})
			return nil
		}
		if sa.Mode != nfs.NoChange {
			node.attr.Mode = node.attr.Mode&^07777 | sa.Mode
		}
		attr := node.attr
		nfs.PackAttrStat(res, &nfs.AttrStat{Status: nfs.NFSOK, Attr: &attr})
		return nil
	})

	srv.Handle(rpc.ProgramNFS, nfs.Version, nfs.NFSProcLookup, func(c *rpctest.Call, res *xdr.Packer) error {
		u := c.ArgsUnpacker()
		dir, err := types.UnpackFileHandle(u)
		if err != nil {
			return err
		}
		name, err := u.UnpackString()
		if err != nil {
			return err
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		f.lookups++

		node, ok := f.nodes[dir]
		switch {
		case !ok:
			return nfs.PackDirOpRes(res, &nfs.DirOpRes{Status: nfs.NFSErrStale})
		case node.children == nil:
			return nfs.PackDirOpRes(res, &nfs.DirOpRes{Status: nfs.NFSErrNotDir})
		}
		child, ok := node.children[name]
		if !ok {
			return nfs.PackDirOpRes(res, &nfs.DirOpRes{Status: nfs.NFSErrNoEnt})
		}
		attr := f.nodes[child].attr
		return nfs.PackDirOpRes(res, &nfs.DirOpRes{Status: nfs.NFSOK, Handle: &child, Attr: &attr})
	})

	// READDIR returns two entries per page with cookie = index+1
	srv.Handle(rpc.ProgramNFS, nfs.Version, nfs.NFSProcReadDir, func(c *rpctest.Call, res *xdr.Packer) error {
		u := c.ArgsUnpacker()
		dir, err := types.UnpackFileHandle(u)
		if err != nil {
			return err
		}
		cookie, err := u.UnpackUint()
		if err != nil {
			return err
		}
		f.mu.Lock()
		defer f.mu.Unlock()

		node, ok := f.nodes[dir]
		switch {
		case !ok:
			return nfs.PackReadDirRes(res, &nfs.ReadDirRes{Status: nfs.NFSErrStale})
		case node.children == nil:
			return nfs.PackReadDirRes(res, &nfs.ReadDirRes{Status: nfs.NFSErrNotDir})
		}

		names := make([]string, 0, len(node.children))
		for name := range node.children {
			names = append(names, name)
		}
		sort.Strings(names)

		var entries []nfs.DirEntry
		i := int(cookie)
		for ; i < len(names) && len(entries) < 2; i++ {
			entries = append(entries, nfs.DirEntry{
				FileID: f.nodes[node.children[names[i]]].attr.FileID,
				Name:   names[i],
				Cookie: uint32(i + 1),
			})
		}
		return nfs.PackReadDirRes(res, &nfs.ReadDirRes{Status: nfs.NFSOK, Entries: entries, EOF: i >= len(names)})
	})
}
