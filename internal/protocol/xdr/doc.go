// Package xdr implements the stateful XDR (RFC 1014) codec used by the RPC
// client: a Packer that appends values to an output buffer and an Unpacker
// that consumes them from an input cursor.
//
// Primitive encoding is delegated to github.com/rasky/go-xdr/xdr2. This
// package adds the call-scoped buffer lifecycle (Reset/Bytes, Reset/Done),
// truncation detection before every read, and the composite forms the RPC
// programs need: fixed and variable arrays and the continuation-flag list.
//
// Composite helpers are generic functions rather than methods:
//
//	err := xdr.PackList(p, exports, func(p *xdr.Packer, e Export) error {
//	    p.PackString(e.Dir)
//	    return xdr.PackList(p, e.Groups, (*xdr.Packer).PackStringItem)
//	})
//
// All values are big-endian and padded to 4-byte boundaries regardless of
// host byte order.
package xdr

// Unit is the XDR alignment unit in bytes.
const Unit = 4

// Padding returns the number of zero bytes that follow n bytes of opaque data.
//
// Examples:
//   - n=1: 3
//   - n=4: 0
//   - n=5: 3
func Padding(n int) int {
	return (Unit - n%Unit) % Unit
}

// RoundUp returns n rounded up to the next multiple of Unit.
func RoundUp(n int) int {
	return n + Padding(n)
}
