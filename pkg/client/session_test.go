package client_test

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/nfsclient/internal/protocol/mount"
	"github.com/marmos91/nfsclient/internal/protocol/nfs"
	"github.com/marmos91/nfsclient/internal/protocol/nfs/types"
	"github.com/marmos91/nfsclient/internal/protocol/portmap"
	"github.com/marmos91/nfsclient/internal/protocol/rpc"
	"github.com/marmos91/nfsclient/internal/protocol/rpc/rpctest"
	"github.com/marmos91/nfsclient/internal/protocol/rpcerr"
	"github.com/marmos91/nfsclient/internal/protocol/xdr"
	"github.com/marmos91/nfsclient/pkg/client"
	"github.com/marmos91/nfsclient/pkg/config"
	"github.com/marmos91/nfsclient/pkg/handlecache"
)

const testExport = "/export"

func testCredential() *rpc.LazyCredential {
	return rpc.StaticCredential(rpc.NewUnixAuth("testhost", 1000, 1000, nil))
}

func newSession(t *testing.T, f *fakeFS, opts ...client.Option) *client.Session {
	t.Helper()

	opts = append([]client.Option{
		client.WithTransports(f.mountSrv, f.nfsSrv),
		client.WithCredential(testCredential()),
	}, opts...)

	s, err := client.Dial(context.Background(), config.GetDefaultConfig(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSessionExportsAndDump(t *testing.T) {
	f := newFakeFS(testExport)
	s := newSession(t, f)
	ctx := context.Background()

	exports, err := s.Exports(ctx)
	require.NoError(t, err)
	require.Len(t, exports, 1)
	assert.Equal(t, testExport, exports[0].Directory)
	assert.Equal(t, []string{"lan"}, exports[0].Groups)

	dump, err := s.Dump(ctx)
	require.NoError(t, err)
	assert.Empty(t, dump)

	root, err := s.Mount(ctx, testExport)
	require.NoError(t, err)
	assert.Equal(t, f.root, root)

	dump, err = s.Dump(ctx)
	require.NoError(t, err)
	assert.Equal(t, []mount.MountEntry{{Hostname: "testhost", Directory: testExport}}, dump)
}

func TestSessionMountRefused(t *testing.T) {
	f := newFakeFS(testExport)
	s := newSession(t, f)

	_, err := s.Mount(context.Background(), "/nope")
	require.Error(t, err)

	var me *client.MountError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, "/nope", me.Export)
	assert.Equal(t, uint32(mount.MountErrNoEnt), me.Status)
	assert.Contains(t, err.Error(), "/nope")
}

func TestSessionMountSendsUnixCredential(t *testing.T) {
	f := newFakeFS(testExport)
	s := newSession(t, f)
	ctx := context.Background()

	_, err := s.Mount(ctx, testExport)
	require.NoError(t, err)

	calls := f.mountSrv.Calls()
	require.NotEmpty(t, calls)
	last := calls[len(calls)-1]
	require.Equal(t, uint32(rpc.AuthUnix), last.Message.Cred.Flavor)

	auth, err := rpc.ParseUnixAuth(last.Message.Cred.Body)
	require.NoError(t, err)
	assert.Equal(t, "testhost", auth.MachineName)
	assert.Equal(t, uint32(1000), auth.UID)
}

func TestSessionResolveUsesCache(t *testing.T) {
	f := newFakeFS(testExport)
	dir := f.add(f.root, "a", types.NFDIR)
	file := f.add(dir, "b.txt", types.NFREG)

	s := newSession(t, f)
	ctx := context.Background()

	fh, err := s.Resolve(ctx, testExport, "a/b.txt")
	require.NoError(t, err)
	assert.Equal(t, file, fh)
	assert.Equal(t, 2, f.lookupCount())

	fh, err = s.Resolve(ctx, testExport, "/a/../a/b.txt")
	require.NoError(t, err)
	assert.Equal(t, file, fh)

	fh, err = s.Resolve(ctx, testExport, "a")
	require.NoError(t, err)
	assert.Equal(t, dir, fh)

	assert.Equal(t, 2, f.lookupCount(), "cached components must not be looked up again")
}

func TestSessionResolveRootMountsExport(t *testing.T) {
	f := newFakeFS(testExport)
	s := newSession(t, f)
	ctx := context.Background()

	fh, err := s.Resolve(ctx, testExport, "/")
	require.NoError(t, err)
	assert.Equal(t, f.root, fh)

	dump, err := s.Dump(ctx)
	require.NoError(t, err)
	require.Len(t, dump, 1)
	assert.Equal(t, testExport, dump[0].Directory)
}

func TestSessionResolveNotFound(t *testing.T) {
	f := newFakeFS(testExport)
	f.add(f.root, "file", types.NFREG)
	s := newSession(t, f)
	ctx := context.Background()

	_, err := s.Resolve(ctx, testExport, "missing")
	require.Error(t, err)
	assert.True(t, nfs.IsStatus(err, nfs.NFSErrNoEnt))

	var se *nfs.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "LOOKUP", se.Proc)

	_, err = s.Resolve(ctx, testExport, "file/child")
	require.Error(t, err)
	assert.True(t, nfs.IsStatus(err, nfs.NFSErrNotDir))
}

func TestSessionStat(t *testing.T) {
	f := newFakeFS(testExport)
	f.add(f.root, "notes.txt", types.NFREG)
	s := newSession(t, f)

	attr, err := s.Stat(context.Background(), testExport, "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, types.NFREG, attr.Type)
	assert.Equal(t, uint32(0100644), attr.Mode)
	assert.Equal(t, uint32(1000), attr.UID)

	attr, err = s.Stat(context.Background(), testExport, "/")
	require.NoError(t, err)
	assert.Equal(t, types.NFDIR, attr.Type)
}

func TestSessionListPages(t *testing.T) {
	f := newFakeFS(testExport)
	for _, name := range []string{"c", "a", "e", "b", "d"} {
		f.add(f.root, name, types.NFREG)
	}
	s := newSession(t, f)

	entries, err := s.List(context.Background(), testExport, "/")
	require.NoError(t, err)

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, names)
}

func TestSessionListNotDir(t *testing.T) {
	f := newFakeFS(testExport)
	f.add(f.root, "file", types.NFREG)
	s := newSession(t, f)

	_, err := s.List(context.Background(), testExport, "file")
	require.Error(t, err)
	assert.True(t, nfs.IsStatus(err, nfs.NFSErrNotDir))
}

func TestSessionChmod(t *testing.T) {
	f := newFakeFS(testExport)
	f.add(f.root, "script.sh", types.NFREG)
	s := newSession(t, f)
	ctx := context.Background()

	attr, err := s.Chmod(ctx, testExport, "script.sh", 0100755)
	require.NoError(t, err)
	assert.Equal(t, uint32(0100755), attr.Mode, "file type bits are kept")
	assert.Equal(t, uint32(1000), attr.UID, "unset fields are unchanged")

	attr, err = s.Stat(ctx, testExport, "script.sh")
	require.NoError(t, err)
	assert.Equal(t, uint32(0755), attr.Mode&07777)
}

func TestSessionStaleHandleRemounts(t *testing.T) {
	f := newFakeFS(testExport)
	dir := f.add(f.root, "a", types.NFDIR)
	f.add(dir, "b.txt", types.NFREG)
	s := newSession(t, f)
	ctx := context.Background()

	_, err := s.Resolve(ctx, testExport, "a/b.txt")
	require.NoError(t, err)
	before := f.lookupCount()

	fresh := f.replace(dir, "b.txt")

	attr, err := s.Stat(ctx, testExport, "a/b.txt")
	require.NoError(t, err)
	assert.Equal(t, types.NFREG, attr.Type)
	assert.Equal(t, before+2, f.lookupCount(), "path is resolved again after the stale reply")

	fh, err := s.Resolve(ctx, testExport, "a/b.txt")
	require.NoError(t, err)
	assert.Equal(t, fresh, fh)
}

func TestSessionStaleTwiceFails(t *testing.T) {
	f := newFakeFS(testExport)
	f.add(f.root, "gone", types.NFREG)
	s := newSession(t, f)
	ctx := context.Background()

	_, err := s.Resolve(ctx, testExport, "gone")
	require.NoError(t, err)

	// Every GETATTR answers stale from now on.
	f.nfsSrv.Handle(rpc.ProgramNFS, nfs.Version, nfs.NFSProcGetAttr, func(c *rpctest.Call, res *xdr.Packer) error {
		nfs.PackAttrStat(res, &nfs.AttrStat{Status: nfs.NFSErrStale})
		return nil
	})

	_, err = s.Stat(ctx, testExport, "gone")
	require.Error(t, err)
	assert.True(t, nfs.IsStatus(err, nfs.NFSErrStale))
}

func TestSessionUnmountForgetsHandles(t *testing.T) {
	f := newFakeFS(testExport)
	f.add(f.root, "x", types.NFREG)
	s := newSession(t, f)
	ctx := context.Background()

	_, err := s.Resolve(ctx, testExport, "x")
	require.NoError(t, err)
	require.Equal(t, 1, f.lookupCount())

	require.NoError(t, s.Unmount(ctx, testExport))

	dump, err := s.Dump(ctx)
	require.NoError(t, err)
	assert.Empty(t, dump)

	_, err = s.Resolve(ctx, testExport, "x")
	require.NoError(t, err)
	assert.Equal(t, 2, f.lookupCount())
}

func TestSessionUnmountAll(t *testing.T) {
	f := newFakeFS(testExport)
	f.add(f.root, "x", types.NFREG)
	s := newSession(t, f)
	ctx := context.Background()

	_, err := s.Resolve(ctx, testExport, "x")
	require.NoError(t, err)

	require.NoError(t, s.UnmountAll(ctx))

	dump, err := s.Dump(ctx)
	require.NoError(t, err)
	assert.Empty(t, dump)

	_, err = s.Resolve(ctx, testExport, "x")
	require.NoError(t, err)
	assert.Equal(t, 2, f.lookupCount())
}

func TestSessionPing(t *testing.T) {
	f := newFakeFS(testExport)
	rec := &recordingMetrics{}
	s := newSession(t, f, client.WithMetrics(rec, nil))

	require.NoError(t, s.Ping(context.Background()))
	assert.Equal(t, []string{"mount/NULL", "nfs/NULL"}, rec.calls())
}

func TestSessionClosed(t *testing.T) {
	f := newFakeFS(testExport)
	s := newSession(t, f)
	ctx := context.Background()

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err := s.Exports(ctx)
	assert.ErrorIs(t, err, client.ErrClosed)
	_, err = s.Resolve(ctx, testExport, "/")
	assert.ErrorIs(t, err, client.ErrClosed)
	assert.ErrorIs(t, s.Ping(ctx), client.ErrClosed)
}

func TestSessionSuppliedCacheOutlivesSession(t *testing.T) {
	f := newFakeFS(testExport)
	f.add(f.root, "x", types.NFREG)
	cache := handlecache.NewMemory(handlecache.MemoryConfig{})
	t.Cleanup(func() { _ = cache.Close() })

	s := newSession(t, f, client.WithHandleCache(cache))
	ctx := context.Background()

	fh, err := s.Resolve(ctx, testExport, "x")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	got, ok, err := cache.Get(ctx, handlecache.Key(s.Server(), testExport, "x"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, fh, got)
}

func TestSessionSharedCacheIsScopedByServer(t *testing.T) {
	cache, err := handlecache.NewBadger(context.Background(), handlecache.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	a := newFakeFS(testExport)
	fromA := a.add(a.root, "x", types.NFREG)

	b := newFakeFS(testExport)
	b.add(b.root, "padding", types.NFREG)
	fromB := b.add(b.root, "x", types.NFREG)
	require.NotEqual(t, fromA, fromB)

	ctx := context.Background()
	dial := func(f *fakeFS, host string) *client.Session {
		cfg := config.GetDefaultConfig()
		cfg.Server.Host = host
		s, err := client.Dial(ctx, cfg,
			client.WithTransports(f.mountSrv, f.nfsSrv),
			client.WithCredential(testCredential()),
			client.WithHandleCache(cache))
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	}

	sa := dial(a, "fs-a")
	fh, err := sa.Resolve(ctx, testExport, "x")
	require.NoError(t, err)
	assert.Equal(t, fromA, fh)

	sb := dial(b, "fs-b")
	assert.NotEqual(t, sa.Server(), sb.Server())
	fh, err = sb.Resolve(ctx, testExport, "x")
	require.NoError(t, err)
	assert.Equal(t, fromB, fh, "handles cached for another server are not reused")
	assert.Equal(t, 1, b.lookupCount())

	fh, err = sa.Resolve(ctx, testExport, "x")
	require.NoError(t, err)
	assert.Equal(t, fromA, fh)
	assert.Equal(t, 1, a.lookupCount())
}

func TestSessionRedialsAfterTimeout(t *testing.T) {
	f := newFakeFS(testExport)
	f.add(f.root, "hello", types.NFREG)

	srv := rpctest.NewServer()
	f.registerMount(srv)
	f.registerNFS(srv)
	port := serveTCP(t, srv)

	cfg := config.GetDefaultConfig()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Protocol = "tcp"
	cfg.Server.NFSPort = port
	cfg.Server.MountPort = port
	cfg.Timeouts.Call = 50 * time.Millisecond

	s, err := client.Dial(context.Background(), cfg, client.WithCredential(testCredential()))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	// The first mount NULL is answered after the call has given up.
	srv.ReplyOnce(func(c *rpctest.Call) []byte {
		time.Sleep(200 * time.Millisecond)
		r, _ := rpc.MakeSuccessReply(c.Message.XID, nil)
		return r
	})

	err = s.Ping(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, rpcerr.ErrTimeout)

	require.NoError(t, s.Ping(context.Background()))

	attr, err := s.Stat(context.Background(), testExport, "hello")
	require.NoError(t, err)
	assert.Equal(t, types.NFREG, attr.Type)
}

func TestSessionDialContextCanceled(t *testing.T) {
	f := newFakeFS(testExport)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Dial(ctx, config.GetDefaultConfig(), client.WithTransports(f.mountSrv, f.nfsSrv))
	assert.ErrorIs(t, err, context.Canceled)
}

// serveTCP serves srv on a loopback listener and returns its port.
func serveTCP(t *testing.T, srv *rpctest.Server) int {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer func() { _ = conn.Close() }()
				_ = srv.ServeStream(conn)
			}()
		}
	}()
	return ln.Addr().(*net.TCPAddr).Port
}

// serveUDP serves srv on a loopback datagram socket and returns its port.
func serveUDP(t *testing.T, srv *rpctest.Server) int {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = pc.Close() })

	go func() {
		buf := make([]byte, 65536)
		for {
			n, addr, err := pc.ReadFrom(buf)
			if err != nil {
				return
			}
			reply, err := srv.Serve(append([]byte(nil), buf[:n]...))
			if err != nil || reply == nil {
				continue
			}
			_, _ = pc.WriteTo(reply, addr)
		}
	}()
	return pc.LocalAddr().(*net.UDPAddr).Port
}

// handlePortmap registers GETPORT answering port for the Mount program
// only.
func handlePortmap(srv *rpctest.Server, prot uint32, port *int) {
	srv.Handle(rpc.ProgramPortmap, portmap.Version, portmap.ProcGetPort, func(c *rpctest.Call, res *xdr.Packer) error {
		u := c.ArgsUnpacker()
		prog, err := u.UnpackUint()
		if err != nil {
			return err
		}
		if _, err := u.UnpackUint(); err != nil {
			return err
		}
		p, err := u.UnpackUint()
		if err != nil {
			return err
		}
		if prog == rpc.ProgramMount && p == prot {
			res.PackUint(uint32(*port))
		} else {
			res.PackUint(0)
		}
		return nil
	})
}

func TestDialTCPResolvesMountPort(t *testing.T) {
	f := newFakeFS(testExport)
	f.add(f.root, "hello", types.NFREG)

	srv := rpctest.NewServer()
	f.registerMount(srv)
	f.registerNFS(srv)
	var port int
	handlePortmap(srv, portmap.IPProtoTCP, &port)
	port = serveTCP(t, srv)

	cfg := config.GetDefaultConfig()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Protocol = "tcp"
	cfg.Server.PortmapPort = port
	cfg.Server.NFSPort = port
	cfg.Server.MountPort = 0

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s, err := client.Dial(ctx, cfg, client.WithCredential(testCredential()))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	attr, err := s.Stat(ctx, testExport, "hello")
	require.NoError(t, err)
	assert.Equal(t, types.NFREG, attr.Type)

	var getports int
	for _, c := range srv.Calls() {
		if c.Message.Program == rpc.ProgramPortmap && c.Message.Procedure == portmap.ProcGetPort {
			getports++
			assert.Equal(t, uint32(rpc.AuthNull), c.Message.Cred.Flavor)
		}
	}
	assert.Equal(t, 1, getports)
}

func TestDialUDP(t *testing.T) {
	f := newFakeFS(testExport)
	f.add(f.root, "hello", types.NFREG)

	srv := rpctest.NewServer()
	f.registerMount(srv)
	f.registerNFS(srv)
	port := serveUDP(t, srv)

	cfg := config.GetDefaultConfig()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Protocol = "udp"
	cfg.Server.NFSPort = port
	cfg.Server.MountPort = port

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s, err := client.Dial(ctx, cfg, client.WithCredential(testCredential()))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	require.NoError(t, s.Ping(ctx))

	entries, err := s.List(ctx, testExport, "/")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "hello", entries[0].Name)
}

func TestDialUnregisteredProgram(t *testing.T) {
	srv := rpctest.NewServer()
	var port int
	handlePortmap(srv, portmap.IPProtoTCP, &port)
	port = serveTCP(t, srv)

	cfg := config.GetDefaultConfig()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.PortmapPort = port
	cfg.Server.MountPort = port
	cfg.Server.NFSPort = 0

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := client.Dial(ctx, cfg, client.WithCredential(testCredential()))
	require.Error(t, err)
	assert.ErrorIs(t, err, portmap.ErrNotRegistered)
	assert.Contains(t, err.Error(), "dial nfs")
}

// recordingMetrics keeps the program/procedure of every completed call.
type recordingMetrics struct {
	mu  sync.Mutex
	got []string
}

func (r *recordingMetrics) RecordCall(program, procedure string, _ time.Duration, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, program+"/"+procedure)
}

func (r *recordingMetrics) RecordCallStart(string, string)  {}
func (r *recordingMetrics) RecordCallEnd(string, string)    {}
func (r *recordingMetrics) RecordRetransmit(string, string) {}
func (r *recordingMetrics) RecordBytes(string, int)         {}

func (r *recordingMetrics) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.got...)
}
