package codec

import (
	"encoding/binary"
	"io"

	"github.com/cockroachdb/apd/v3"
	"github.com/cockroachdb/errors"
)

// Input reads encoded values from a byte slice. It never copies: slices it
// returns alias the original data.
type Input struct {
	orig []byte
	buf  []byte
}

var _ io.ByteReader = (*Input)(nil)

func NewInput(b []byte) *Input {
	return &Input{b, b}
}

func (in *Input) Off() int {
	return len(in.orig) - len(in.buf)
}

func (in *Input) EOF() bool {
	return len(in.buf) == 0
}

// Remaining returns the unread part of the input.
func (in *Input) Remaining() []byte {
	return in.buf
}

func (in *Input) PeekByte() (byte, error) {
	if len(in.buf) == 0 {
		return 0, dataErrf(in.orig, in.Off(), io.ErrUnexpectedEOF, "cannot peek past end of input")
	}
	return in.buf[0], nil
}

func (in *Input) ReadByte() (byte, error) {
	if len(in.buf) == 0 {
		return 0, dataErrf(in.orig, in.Off(), io.ErrUnexpectedEOF, "cannot read past end of input")
	}
	v := in.buf[0]
	in.buf = in.buf[1:]
	return v, nil
}

func (in *Input) Raw(n int) ([]byte, error) {
	if len(in.buf) < n {
		return nil, dataErrf(in.orig, in.Off(), io.ErrUnexpectedEOF, "not enough data: %d bytes remaining, %d wanted", len(in.buf), n)
	}
	v := in.buf[:n:n]
	in.buf = in.buf[n:]
	return v, nil
}

// ReadUint64 reads a fixed-width big-endian uint64.
func (in *Input) ReadUint64() (uint64, error) {
	raw, err := in.Raw(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(raw), nil
}

func (in *Input) ReadUvarint() (uint64, error) {
	v, n := binary.Uvarint(in.buf)
	if n <= 0 {
		return 0, dataErrf(in.orig, in.Off(), nil, "invalid uvarint")
	}
	in.buf = in.buf[n:]
	return v, nil
}

func (in *Input) ReadVarint() (int64, error) {
	v, n := binary.Varint(in.buf)
	if n <= 0 {
		return 0, dataErrf(in.orig, in.Off(), nil, "invalid varint")
	}
	in.buf = in.buf[n:]
	return v, nil
}

// CutOne consumes exactly one flagged value and returns its encoded bytes,
// flag included.
func (in *Input) CutOne() ([]byte, error) {
	n, err := peek(in.buf)
	if err != nil {
		return nil, in.reoffset(err)
	}
	return in.Raw(n)
}

// ReadBytes reads a grouped bytes payload (the flag already consumed).
func (in *Input) ReadBytes() ([]byte, error) {
	rest, data, err := DecodeBytes(in.buf, nil)
	if err != nil {
		return nil, in.reoffset(err)
	}
	in.buf = rest
	return data, nil
}

// ReadCompactBytes reads a length-prefixed payload. The result aliases the
// input.
func (in *Input) ReadCompactBytes() ([]byte, error) {
	rest, data, err := DecodeCompactBytes(in.buf)
	if err != nil {
		return nil, in.reoffset(err)
	}
	in.buf = rest
	return data, nil
}

func (in *Input) ReadDecimal() (*apd.Decimal, error) {
	rest, d, _, _, err := DecodeDecimal(in.buf)
	if err != nil {
		return nil, in.reoffset(err)
	}
	in.buf = rest
	return d, nil
}

// reoffset rebases a DataError produced on the unread tail onto the whole
// input.
func (in *Input) reoffset(err error) error {
	var de *DataError
	if errors.As(err, &de) {
		return dataErrf(in.orig, in.Off()+de.Off, de.Err, "%s", de.Msg)
	}
	return err
}
