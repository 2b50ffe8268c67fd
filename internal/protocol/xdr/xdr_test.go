package xdr

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/nfsclient/internal/protocol/rpcerr"
)

// ============================================================================
// Primitive Round-Trip Tests
// ============================================================================

func TestIntRoundTrip(t *testing.T) {
	values := []int32{0, 1, -1, 0x7fffffff, -0x80000000, 42}

	for _, v := range values {
		p := NewPacker()
		p.PackInt(v)
		require.Equal(t, 4, p.Len())

		u := NewUnpacker(p.Bytes())
		got, err := u.UnpackInt()
		require.NoError(t, err)
		assert.Equal(t, v, got)
		assert.NoError(t, u.Done())
	}
}

func TestUintRoundTrip(t *testing.T) {
	for _, v := range []uint32{0, 1, 0x7fffffff, 0x80000000, 0xffffffff} {
		p := NewPacker()
		p.PackUint(v)

		u := NewUnpacker(p.Bytes())
		got, err := u.UnpackUint()
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestBigEndianLayout(t *testing.T) {
	p := NewPacker()
	p.PackUint(0x01020304)
	p.PackInt(-2)
	p.PackUhyper(0x0102030405060708)

	assert.Equal(t, []byte{
		0x01, 0x02, 0x03, 0x04,
		0xff, 0xff, 0xff, 0xfe,
		0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08,
	}, p.Bytes())
}

func TestBoolRoundTrip(t *testing.T) {
	p := NewPacker()
	p.PackBool(true)
	p.PackBool(false)
	assert.Equal(t, []byte{0, 0, 0, 1, 0, 0, 0, 0}, p.Bytes())

	u := NewUnpacker(p.Bytes())
	b, err := u.UnpackBool()
	require.NoError(t, err)
	assert.True(t, b)
	b, err = u.UnpackBool()
	require.NoError(t, err)
	assert.False(t, b)

	t.Run("NonzeroIsTrue", func(t *testing.T) {
		u := NewUnpacker([]byte{0, 0, 0, 7})
		b, err := u.UnpackBool()
		require.NoError(t, err)
		assert.True(t, b)
	})
}

func TestHyperRoundTrip(t *testing.T) {
	for _, v := range []int64{0, -1, math.MaxInt64, math.MinInt64} {
		p := NewPacker()
		p.PackHyper(v)
		require.Equal(t, 8, p.Len())

		got, err := NewUnpacker(p.Bytes()).UnpackHyper()
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}

	for _, v := range []uint64{0, math.MaxUint64, 1 << 63} {
		p := NewPacker()
		p.PackUhyper(v)

		got, err := NewUnpacker(p.Bytes()).UnpackUhyper()
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}

	t.Run("HighBitIsNegativeHyper", func(t *testing.T) {
		p := NewPacker()
		p.PackUhyper(1 << 63)
		got, err := NewUnpacker(p.Bytes()).UnpackHyper()
		require.NoError(t, err)
		assert.Equal(t, int64(math.MinInt64), got)
	})
}

func TestFloatRoundTrip(t *testing.T) {
	p := NewPacker()
	p.PackFloat(1.5)
	p.PackDouble(-2.25)
	assert.Equal(t, []byte{0x3f, 0xc0, 0, 0}, p.Bytes()[:4])

	u := NewUnpacker(p.Bytes())
	f, err := u.UnpackFloat()
	require.NoError(t, err)
	assert.Equal(t, float32(1.5), f)

	d, err := u.UnpackDouble()
	require.NoError(t, err)
	assert.Equal(t, -2.25, d)
	assert.NoError(t, u.Done())
}

// ============================================================================
// String and Padding Tests
// ============================================================================

func TestFStringPadding(t *testing.T) {
	for n := 0; n <= 9; n++ {
		p := NewPacker()
		require.NoError(t, p.PackFString(n, []byte("abcdefghij")))

		assert.Equal(t, 4*((n+3)/4), p.Len(), "n=%d", n)
		assert.Zero(t, p.Len()%4)
	}
}

func TestFStringTruncatesAndPads(t *testing.T) {
	p := NewPacker()
	require.NoError(t, p.PackFString(3, []byte("abcdef")))
	require.NoError(t, p.PackFString(5, []byte("xy")))

	assert.Equal(t, []byte{
		'a', 'b', 'c', 0,
		'x', 'y', 0, 0, 0, 0, 0, 0,
	}, p.Bytes())
}

func TestFStringDoesNotWriteIntoCallerArray(t *testing.T) {
	backing := []byte{'a', 'b', 'c', 'Z', 'Z'}
	p := NewPacker()
	require.NoError(t, p.PackFString(3, backing[:3]))

	assert.Equal(t, []byte{'a', 'b', 'c', 'Z', 'Z'}, backing)
}

func TestFStringNegativeLength(t *testing.T) {
	err := NewPacker().PackFString(-1, nil)
	assert.True(t, rpcerr.Is(err, rpcerr.KindValue))

	_, err = NewUnpacker(nil).UnpackFString(-1)
	assert.True(t, rpcerr.Is(err, rpcerr.KindValue))
}

func TestStringRoundTrip(t *testing.T) {
	for _, s := range []string{"", "a", "abc", "abcd", "/export/home"} {
		p := NewPacker()
		p.PackString(s)
		assert.Equal(t, 4+RoundUp(len(s)), p.Len())

		u := NewUnpacker(p.Bytes())
		got, err := u.UnpackString()
		require.NoError(t, err)
		assert.Equal(t, s, got)
		assert.NoError(t, u.Done())
	}
}

func TestOpaqueRoundTrip(t *testing.T) {
	data := []byte{0x00, 0xff, 0x10}
	p := NewPacker()
	p.PackOpaque(data)

	got, err := NewUnpacker(p.Bytes()).UnpackOpaque()
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestPadding(t *testing.T) {
	assert.Equal(t, 0, Padding(0))
	assert.Equal(t, 3, Padding(1))
	assert.Equal(t, 2, Padding(2))
	assert.Equal(t, 1, Padding(3))
	assert.Equal(t, 0, Padding(4))
	assert.Equal(t, 8, RoundUp(5))
}

// ============================================================================
// Truncation Tests
// ============================================================================

func TestTruncation(t *testing.T) {
	t.Run("ShortInt", func(t *testing.T) {
		_, err := NewUnpacker([]byte{0, 0, 1}).UnpackInt()
		assert.True(t, rpcerr.Is(err, rpcerr.KindTruncation))
	})

	t.Run("ShortHyper", func(t *testing.T) {
		_, err := NewUnpacker([]byte{0, 0, 0, 1, 0}).UnpackHyper()
		assert.True(t, rpcerr.Is(err, rpcerr.KindTruncation))
	})

	t.Run("MissingPadding", func(t *testing.T) {
		// length 3 needs 4 bytes on the wire
		_, err := NewUnpacker([]byte{'a', 'b', 'c'}).UnpackFString(3)
		assert.True(t, rpcerr.Is(err, rpcerr.KindTruncation))
	})

	t.Run("HugeStringLength", func(t *testing.T) {
		_, err := NewUnpacker([]byte{0xff, 0xff, 0xff, 0xff, 'a', 0, 0, 0}).UnpackString()
		var rerr *rpcerr.Error
		require.ErrorAs(t, err, &rerr)
		assert.Equal(t, rpcerr.KindTruncation, rerr.Kind)
		assert.Equal(t, "unpack_string", rerr.Op)
	})

	t.Run("HugeOpaqueLength", func(t *testing.T) {
		_, err := NewUnpacker([]byte{0, 0, 0, 9, 1, 2, 3, 4}).UnpackOpaque()
		var rerr *rpcerr.Error
		require.ErrorAs(t, err, &rerr)
		assert.Equal(t, rpcerr.KindTruncation, rerr.Kind)
		assert.Equal(t, "unpack_opaque", rerr.Op)
	})

	t.Run("HugeArrayCount", func(t *testing.T) {
		u := NewUnpacker([]byte{0x7f, 0xff, 0xff, 0xff})
		_, err := UnpackArray(u, (*Unpacker).UnpackUintItem)
		assert.True(t, rpcerr.Is(err, rpcerr.KindTruncation))
	})
}

// ============================================================================
// Done Tests
// ============================================================================

func TestDone(t *testing.T) {
	u := NewUnpacker([]byte{0, 0, 0, 1, 0, 0, 0, 2})

	_, err := u.UnpackUint()
	require.NoError(t, err)
	assert.True(t, rpcerr.Is(u.Done(), rpcerr.KindFraming))

	_, err = u.UnpackUint()
	require.NoError(t, err)
	assert.NoError(t, u.Done())
	assert.NoError(t, u.Done())
}

func TestReset(t *testing.T) {
	u := NewUnpacker([]byte{0, 0, 0, 1})
	_, err := u.UnpackUint()
	require.NoError(t, err)

	u.Reset([]byte{0, 0, 0, 9, 0, 0, 0, 8})
	assert.Equal(t, 0, u.Pos())
	assert.Equal(t, 8, u.Remaining())

	v, err := u.UnpackUint()
	require.NoError(t, err)
	assert.Equal(t, uint32(9), v)

	p := NewPacker()
	p.PackUint(1)
	p.Reset()
	assert.Equal(t, 0, p.Len())
	assert.Empty(t, p.Bytes())
}

// ============================================================================
// Array and List Tests
// ============================================================================

func TestFArrayLengthMismatch(t *testing.T) {
	items := []uint32{1, 2, 3}
	for _, n := range []int{0, 1, 2, 4, 10} {
		err := PackFArray(NewPacker(), n, items, (*Packer).PackUintItem)
		assert.True(t, rpcerr.Is(err, rpcerr.KindValue), "n=%d", n)
	}

	p := NewPacker()
	require.NoError(t, PackFArray(p, 3, items, (*Packer).PackUintItem))
	assert.Equal(t, 12, p.Len())
}

func TestArrayRoundTrip(t *testing.T) {
	for _, items := range [][]uint32{{}, {7}, {1, 2, 3}} {
		p := NewPacker()
		require.NoError(t, PackArray(p, items, (*Packer).PackUintItem))
		assert.Equal(t, 4+4*len(items), p.Len())

		u := NewUnpacker(p.Bytes())
		got, err := UnpackArray(u, (*Unpacker).UnpackUintItem)
		require.NoError(t, err)
		assert.Equal(t, items, got)
		assert.NoError(t, u.Done())
	}
}

func TestFArrayUnpack(t *testing.T) {
	p := NewPacker()
	p.PackString("a")
	p.PackString("bc")

	got, err := UnpackFArray(NewUnpacker(p.Bytes()), 2, (*Unpacker).UnpackStringItem)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "bc"}, got)
}

func TestListRoundTrip(t *testing.T) {
	for _, items := range [][]string{{}, {"one"}, {"grp1", "grp2", "abc"}} {
		p := NewPacker()
		require.NoError(t, PackList(p, items, (*Packer).PackStringItem))

		u := NewUnpacker(p.Bytes())
		got, err := UnpackList(u, (*Unpacker).UnpackStringItem)
		require.NoError(t, err)
		assert.Equal(t, items, got)
		assert.NoError(t, u.Done())
	}
}

func TestListEncoding(t *testing.T) {
	p := NewPacker()
	require.NoError(t, PackList(p, []uint32{5, 6}, (*Packer).PackUintItem))

	assert.Equal(t, []byte{
		0, 0, 0, 1, 0, 0, 0, 5,
		0, 0, 0, 1, 0, 0, 0, 6,
		0, 0, 0, 0,
	}, p.Bytes())
}

func TestListInvalidFlag(t *testing.T) {
	u := NewUnpacker([]byte{0, 0, 0, 1, 0, 0, 0, 5, 0, 0, 0, 2})
	_, err := UnpackList(u, (*Unpacker).UnpackUintItem)
	require.Error(t, err)
	assert.True(t, rpcerr.Is(err, rpcerr.KindFraming))
}

func TestListMissingTerminator(t *testing.T) {
	u := NewUnpacker([]byte{0, 0, 0, 1, 0, 0, 0, 5})
	_, err := UnpackList(u, (*Unpacker).UnpackUintItem)
	assert.True(t, rpcerr.Is(err, rpcerr.KindTruncation))
}
