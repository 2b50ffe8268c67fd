package rpc

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/marmos91/nfsclient/internal/protocol/rpcerr"
)

// Record marking (RFC 1057 Section 10).
//
// On a stream transport each message is sent as one or more fragments.
// Every fragment is prefixed with a 4-byte header:
//   - Bit 31: last fragment flag (1 = last, 0 = more fragments)
//   - Bits 0-30: fragment length in bytes
const (
	lastFragmentBit  = 0x80000000
	fragmentLenMask  = 0x7FFFFFFF
	fragmentHdrBytes = 4

	// DefaultMaxRecordSize bounds a reassembled reply. NFS v2 replies are
	// at most a few KB; the bound stops a corrupt header from allocating.
	DefaultMaxRecordSize = 1 << 20
)

// fragmentHeader is a decoded record mark.
type fragmentHeader struct {
	IsLast bool
	Length uint32
}

func readFragmentHeader(r io.Reader) (fragmentHeader, error) {
	var buf [fragmentHdrBytes]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return fragmentHeader{}, err
	}

	header := binary.BigEndian.Uint32(buf[:])
	return fragmentHeader{
		IsLast: header&lastFragmentBit != 0,
		Length: header & fragmentLenMask,
	}, nil
}

// EncodeRecord returns msg split into fragments of at most maxFragment bytes,
// each prefixed with its record mark. maxFragment <= 0 sends one fragment.
func EncodeRecord(msg []byte, maxFragment int) []byte {
	if maxFragment <= 0 || maxFragment > fragmentLenMask {
		maxFragment = fragmentLenMask
	}

	fragments := max(1, (len(msg)+maxFragment-1)/maxFragment)
	out := make([]byte, 0, len(msg)+fragments*fragmentHdrBytes)

	for i := 0; i < fragments; i++ {
		start := i * maxFragment
		end := min(start+maxFragment, len(msg))

		header := uint32(end - start)
		if i == fragments-1 {
			header |= lastFragmentBit
		}
		out = binary.BigEndian.AppendUint32(out, header)
		out = append(out, msg[start:end]...)
	}
	return out
}

// WriteRecord writes msg as one record in a single Write.
func WriteRecord(w io.Writer, msg []byte, maxFragment int) error {
	_, err := w.Write(EncodeRecord(msg, maxFragment))
	return err
}

// ReadRecord reads fragments until the last one and returns the reassembled
// message.
//
// Errors:
//   - io.EOF before any byte of the record: the peer closed the connection
//   - a record larger than maxRecord: framing error
//   - io.ErrUnexpectedEOF inside a record: the peer closed mid-message
func ReadRecord(r io.Reader, maxRecord int) ([]byte, error) {
	if maxRecord <= 0 {
		maxRecord = DefaultMaxRecordSize
	}

	var record []byte
	for {
		header, err := readFragmentHeader(r)
		if err != nil {
			if errors.Is(err, io.EOF) && record != nil {
				err = io.ErrUnexpectedEOF
			}
			return nil, err
		}

		if int64(len(record))+int64(header.Length) > int64(maxRecord) {
			return nil, rpcerr.Framing("read_record", "record of at least %d bytes exceeds maximum %d",
				int64(len(record))+int64(header.Length), maxRecord)
		}

		start := len(record)
		if record == nil {
			record = make([]byte, 0, header.Length)
		}
		record = append(record, make([]byte, header.Length)...)
		if _, err := io.ReadFull(r, record[start:]); err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return nil, err
		}

		if header.IsLast {
			return record, nil
		}
	}
}
