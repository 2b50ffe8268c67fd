package xdr

import (
	"bytes"

	xdr2 "github.com/rasky/go-xdr/xdr2"

	"github.com/marmos91/nfsclient/internal/protocol/rpcerr"
)

// Unpacker decodes XDR values from a byte buffer, tracking a forward-only
// read cursor.
//
// Every read checks the remaining length first, so a short buffer yields a
// truncation error without a partial decode. Done reports a framing error
// when bytes remain, which catches a result decoder that does not match what
// the server sent.
//
// An Unpacker is not safe for concurrent use.
type Unpacker struct {
	data   []byte
	reader *bytes.Reader
	dec    *xdr2.Decoder
}

// NewUnpacker returns an Unpacker positioned at the start of data.
func NewUnpacker(data []byte) *Unpacker {
	u := &Unpacker{
		data:   data,
		reader: bytes.NewReader(data),
	}
	u.dec = xdr2.NewDecoder(u.reader)
	return u
}

// Reset rebinds the Unpacker to data and moves the cursor to zero.
func (u *Unpacker) Reset(data []byte) {
	u.data = data
	u.reader.Reset(data)
}

// Pos returns the cursor offset from the start of the buffer.
func (u *Unpacker) Pos() int {
	return len(u.data) - u.reader.Len()
}

// Remaining returns the number of undecoded bytes.
func (u *Unpacker) Remaining() int {
	return u.reader.Len()
}

// Buffer returns the whole buffer the Unpacker is bound to.
func (u *Unpacker) Buffer() []byte {
	return u.data
}

// Done returns a framing error if the cursor has not reached the end.
func (u *Unpacker) Done() error {
	if n := u.reader.Len(); n != 0 {
		return rpcerr.Framing("done", "%d unextracted bytes at offset %d", n, u.Pos())
	}
	return nil
}

func (u *Unpacker) need(op string, n int) error {
	if have := u.reader.Len(); have < n {
		return rpcerr.Truncation(op, "need %d bytes at offset %d, have %d", n, u.Pos(), have)
	}
	return nil
}

func (u *Unpacker) UnpackInt() (int32, error) {
	if err := u.need("unpack_int", 4); err != nil {
		return 0, err
	}
	v, _, err := u.dec.DecodeInt()
	if err != nil {
		return 0, rpcerr.Truncation("unpack_int", "%v", err)
	}
	return v, nil
}

func (u *Unpacker) UnpackUint() (uint32, error) {
	if err := u.need("unpack_uint", 4); err != nil {
		return 0, err
	}
	v, _, err := u.dec.DecodeUint()
	if err != nil {
		return 0, rpcerr.Truncation("unpack_uint", "%v", err)
	}
	return v, nil
}

// UnpackEnum reads an enumerated value as a signed 32-bit int.
func (u *Unpacker) UnpackEnum() (int32, error) {
	return u.UnpackInt()
}

// UnpackBool reads a 32-bit int; any nonzero value is true.
func (u *Unpacker) UnpackBool() (bool, error) {
	v, err := u.UnpackInt()
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// UnpackHyper reads two words, high first; values >= 2^63 come back negative.
func (u *Unpacker) UnpackHyper() (int64, error) {
	if err := u.need("unpack_hyper", 8); err != nil {
		return 0, err
	}
	v, _, err := u.dec.DecodeHyper()
	if err != nil {
		return 0, rpcerr.Truncation("unpack_hyper", "%v", err)
	}
	return v, nil
}

func (u *Unpacker) UnpackUhyper() (uint64, error) {
	if err := u.need("unpack_uhyper", 8); err != nil {
		return 0, err
	}
	v, _, err := u.dec.DecodeUhyper()
	if err != nil {
		return 0, rpcerr.Truncation("unpack_uhyper", "%v", err)
	}
	return v, nil
}

func (u *Unpacker) UnpackFloat() (float32, error) {
	if err := u.need("unpack_float", 4); err != nil {
		return 0, err
	}
	v, _, err := u.dec.DecodeFloat()
	if err != nil {
		return 0, rpcerr.Truncation("unpack_float", "%v", err)
	}
	return v, nil
}

func (u *Unpacker) UnpackDouble() (float64, error) {
	if err := u.need("unpack_double", 8); err != nil {
		return 0, err
	}
	v, _, err := u.dec.DecodeDouble()
	if err != nil {
		return 0, rpcerr.Truncation("unpack_double", "%v", err)
	}
	return v, nil
}

// UnpackFString reads n bytes and discards the padding that follows them.
func (u *Unpacker) UnpackFString(n int) ([]byte, error) {
	if n < 0 {
		return nil, rpcerr.Value("unpack_fstring", "negative length %d", n)
	}
	if err := u.need("unpack_fstring", RoundUp(n)); err != nil {
		return nil, err
	}
	if n == 0 {
		return []byte{}, nil
	}

	v, _, err := u.dec.DecodeFixedOpaque(int32(n))
	if err != nil {
		return nil, rpcerr.Truncation("unpack_fstring", "%v", err)
	}
	return v, nil
}

// UnpackOpaque reads a length-prefixed variable-length byte string.
func (u *Unpacker) UnpackOpaque() ([]byte, error) {
	return u.unpackVar("unpack_opaque")
}

// UnpackString reads a variable-length byte string as a Go string.
func (u *Unpacker) UnpackString() (string, error) {
	b, err := u.unpackVar("unpack_string")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (u *Unpacker) unpackVar(op string) ([]byte, error) {
	n, err := u.UnpackUint()
	if err != nil {
		return nil, err
	}
	// Lengths above the remaining buffer cannot be satisfied; report them
	// before converting to int so a corrupt prefix never allocates.
	if int64(n) > int64(u.reader.Len()) {
		return nil, rpcerr.Truncation(op, "length %d exceeds %d remaining bytes", n, u.reader.Len())
	}
	return u.UnpackFString(int(n))
}

// UnpackStringItem adapts UnpackString to the item unpacker signature used
// by UnpackList, UnpackArray and UnpackFArray.
func (u *Unpacker) UnpackStringItem() (string, error) {
	return u.UnpackString()
}

// UnpackUintItem adapts UnpackUint to the item unpacker signature.
func (u *Unpacker) UnpackUintItem() (uint32, error) {
	return u.UnpackUint()
}

// UnpackFArray calls unpackItem exactly n times.
func UnpackFArray[T any](u *Unpacker, n int, unpackItem func(*Unpacker) (T, error)) ([]T, error) {
	if n < 0 {
		return nil, rpcerr.Value("unpack_farray", "negative length %d", n)
	}

	items := make([]T, 0, min(n, u.Remaining()/Unit+1))
	for i := 0; i < n; i++ {
		item, err := unpackItem(u)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// UnpackArray reads a 4-byte count and then that many items.
func UnpackArray[T any](u *Unpacker, unpackItem func(*Unpacker) (T, error)) ([]T, error) {
	n, err := u.UnpackUint()
	if err != nil {
		return nil, err
	}
	// Every item occupies at least one unit.
	if int64(n)*Unit > int64(u.Remaining()) {
		return nil, rpcerr.Truncation("unpack_array", "count %d exceeds %d remaining bytes", n, u.Remaining())
	}
	return UnpackFArray(u, int(n), unpackItem)
}

// UnpackList reads continuation-flagged items until a 0 flag.
// A flag other than 0 or 1 is a framing error.
func UnpackList[T any](u *Unpacker, unpackItem func(*Unpacker) (T, error)) ([]T, error) {
	items := []T{}
	for {
		flag, err := u.UnpackUint()
		if err != nil {
			return nil, err
		}

		switch flag {
		case 0:
			return items, nil
		case 1:
			item, err := unpackItem(u)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		default:
			return nil, rpcerr.Framing("unpack_list", "invalid continuation flag %d at offset %d", flag, u.Pos()-Unit)
		}
	}
}
