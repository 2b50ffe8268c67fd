package xdr

import (
	"bytes"

	xdr2 "github.com/rasky/go-xdr/xdr2"

	"github.com/marmos91/nfsclient/internal/protocol/rpcerr"
)

// Packer appends XDR-encoded values to an owned output buffer.
//
// The buffer grows during a single call's argument packing and is emptied
// by Reset at the start of the next call. The underlying writer is a
// bytes.Buffer, which never fails, so primitive Pack methods have no error
// return; only composite operations that validate caller input do.
//
// A Packer is not safe for concurrent use.
type Packer struct {
	buf bytes.Buffer
	enc *xdr2.Encoder
}

// NewPacker returns an empty Packer.
func NewPacker() *Packer {
	p := &Packer{}
	p.enc = xdr2.NewEncoder(&p.buf)
	return p
}

// Reset empties the buffer, keeping its capacity.
func (p *Packer) Reset() {
	p.buf.Reset()
}

// Bytes returns the accumulated buffer. The slice aliases the Packer's
// storage and is only valid until the next Reset or Pack call.
func (p *Packer) Bytes() []byte {
	return p.buf.Bytes()
}

// Len returns the number of bytes packed so far.
func (p *Packer) Len() int {
	return p.buf.Len()
}

func (p *Packer) PackInt(x int32) {
	_, _ = p.enc.EncodeInt(x)
}

func (p *Packer) PackUint(x uint32) {
	_, _ = p.enc.EncodeUint(x)
}

// PackEnum writes an enumerated value as a signed 32-bit int.
func (p *Packer) PackEnum(x int32) {
	p.PackInt(x)
}

func (p *Packer) PackBool(b bool) {
	_, _ = p.enc.EncodeBool(b)
}

// PackHyper writes a signed 64-bit value, high word first.
func (p *Packer) PackHyper(x int64) {
	_, _ = p.enc.EncodeHyper(x)
}

// PackUhyper writes an unsigned 64-bit value, high word first.
func (p *Packer) PackUhyper(x uint64) {
	_, _ = p.enc.EncodeUhyper(x)
}

func (p *Packer) PackFloat(x float32) {
	_, _ = p.enc.EncodeFloat(x)
}

func (p *Packer) PackDouble(x float64) {
	_, _ = p.enc.EncodeDouble(x)
}

// PackFString writes exactly n bytes of b, truncating or zero-extending as
// needed, followed by padding to the next 4-byte boundary.
func (p *Packer) PackFString(n int, b []byte) error {
	if n < 0 {
		return rpcerr.Value("pack_fstring", "negative length %d", n)
	}

	var data []byte
	if len(b) == n {
		// Capacity is clipped so padding never writes into the caller's array.
		data = b[:n:n]
	} else {
		data = make([]byte, n)
		copy(data, b)
	}

	_, _ = p.enc.EncodeFixedOpaque(data)
	return nil
}

// PackOpaque writes a length-prefixed variable-length byte string.
func (p *Packer) PackOpaque(b []byte) {
	p.PackUint(uint32(len(b)))
	_ = p.PackFString(len(b), b)
}

// PackString writes s as a variable-length byte string.
func (p *Packer) PackString(s string) {
	p.PackOpaque([]byte(s))
}

// PackStringItem adapts PackString to the item packer signature used by
// PackList, PackArray and PackFArray.
func (p *Packer) PackStringItem(s string) error {
	p.PackString(s)
	return nil
}

// PackUintItem adapts PackUint to the item packer signature.
func (p *Packer) PackUintItem(x uint32) error {
	p.PackUint(x)
	return nil
}

// PackFArray writes exactly n items with no length prefix.
func PackFArray[T any](p *Packer, n int, items []T, packItem func(*Packer, T) error) error {
	if len(items) != n {
		return rpcerr.Value("pack_farray", "wrong array size: have %d items, want %d", len(items), n)
	}

	for _, item := range items {
		if err := packItem(p, item); err != nil {
			return err
		}
	}
	return nil
}

// PackArray writes a 4-byte count followed by the items.
func PackArray[T any](p *Packer, items []T, packItem func(*Packer, T) error) error {
	p.PackUint(uint32(len(items)))
	return PackFArray(p, len(items), items, packItem)
}

// PackList writes each item preceded by a continuation flag of 1, then a
// terminating 0.
func PackList[T any](p *Packer, items []T, packItem func(*Packer, T) error) error {
	for _, item := range items {
		p.PackUint(1)
		if err := packItem(p, item); err != nil {
			return err
		}
	}
	p.PackUint(0)
	return nil
}
