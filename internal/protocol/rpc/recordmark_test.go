package rpc

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/nfsclient/internal/protocol/rpcerr"
)

func TestEncodeRecordSingleFragment(t *testing.T) {
	rec := EncodeRecord([]byte{1, 2, 3, 4, 5, 6, 7, 8}, 0)

	require.Len(t, rec, 12)
	assert.Equal(t, uint32(0x80000008), binary.BigEndian.Uint32(rec[:4]))
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, rec[4:])
}

func TestEncodeRecordFragments(t *testing.T) {
	rec := EncodeRecord([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 4)

	// 4 + 4 + 2 bytes, each with a header
	require.Len(t, rec, 10+3*4)
	assert.Equal(t, uint32(4), binary.BigEndian.Uint32(rec[0:4]))
	assert.Equal(t, uint32(4), binary.BigEndian.Uint32(rec[8:12]))
	assert.Equal(t, uint32(0x80000002), binary.BigEndian.Uint32(rec[16:20]))
}

func TestEncodeRecordEmpty(t *testing.T) {
	assert.Equal(t, []byte{0x80, 0, 0, 0}, EncodeRecord(nil, 0))
}

func TestReadRecordReassembles(t *testing.T) {
	msg := bytes.Repeat([]byte{0xab, 0xcd, 0xef}, 100)
	r := bytes.NewReader(EncodeRecord(msg, 7))

	got, err := ReadRecord(r, 0)
	require.NoError(t, err)
	assert.Equal(t, msg, got)
	assert.Equal(t, 0, r.Len())
}

func TestReadRecordSequence(t *testing.T) {
	var stream bytes.Buffer
	require.NoError(t, WriteRecord(&stream, []byte("first"), 2))
	require.NoError(t, WriteRecord(&stream, []byte("second"), 0))

	first, err := ReadRecord(&stream, 0)
	require.NoError(t, err)
	second, err := ReadRecord(&stream, 0)
	require.NoError(t, err)

	assert.Equal(t, "first", string(first))
	assert.Equal(t, "second", string(second))

	_, err = ReadRecord(&stream, 0)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadRecordTooLarge(t *testing.T) {
	r := bytes.NewReader(EncodeRecord(make([]byte, 64), 16))

	_, err := ReadRecord(r, 32)
	assert.True(t, rpcerr.Is(err, rpcerr.KindFraming))
}

func TestReadRecordTruncated(t *testing.T) {
	t.Run("InsideFragment", func(t *testing.T) {
		rec := EncodeRecord([]byte{1, 2, 3, 4}, 0)
		_, err := ReadRecord(bytes.NewReader(rec[:6]), 0)
		assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	})

	t.Run("BetweenFragments", func(t *testing.T) {
		rec := EncodeRecord([]byte{1, 2, 3, 4, 5, 6}, 4)
		_, err := ReadRecord(bytes.NewReader(rec[:8]), 0)
		assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	})
}
