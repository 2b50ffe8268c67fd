// Package nfs implements a client for NFS version 2 (RFC 1094).
//
// The client issues NULL, GETATTR, SETATTR, LOOKUP and READDIR over an
// rpc.Transport. Handles come from the mount package; the nfs package never
// looks inside them.
//
// # Errors
//
// Two layers of failure are kept apart:
//
//   - The call failed: transport, framing, truncation or a rejected reply.
//     These are rpcerr errors returned as the error value.
//   - The server executed the procedure but answered a non-OK stat. The
//     stat is returned in the result struct (AttrStat, DirOpRes,
//     ReadDirRes) with a nil error. CheckStatus turns it into a
//     *StatusError for callers that want a single error path.
//
// Listdir is the exception: it pages through READDIR itself and reports a
// non-OK page as *StatusError.
//
// # Concurrency
//
// A Client carries one call at a time. Share one across goroutines only
// behind a mutex, as pkg/client.Session does.
package nfs
