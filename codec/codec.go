/*
Package codec implements the memcomparable key encoding of the row store.

Every encoded value starts with a flag byte that names its layout:

	flag  layout                        width
	0x00  NULL                          flag only
	0x01  bytes, groups of 8+1          1 + 9*n
	0x02  compact bytes                 1 + varint(len) + len
	0x03  int64, sign bit flipped, BE   1 + 8
	0x04  uint64, BE                    1 + 8
	0x05  float64, order-preserving BE  1 + 8
	0x06  decimal: prec, frac, bin      1 + 2 + binSize(prec, frac)
	0x07  duration nanos as int64       1 + 8
	0x08  varint                        1 + 1..10
	0x09  uvarint                       1 + 1..10

Byte groups carry 8 payload bytes and a marker 0xFF - pad, so a marker of
0xFF means another group follows. Flags 0x01, 0x03, 0x04, 0x05, 0x06 and 0x07
compare correctly as raw bytes; compact bytes and varints are value-only.
*/
package codec

import (
	"encoding/binary"
	"time"

	"github.com/cockroachdb/errors"
)

const (
	NilFlag          byte = 0
	BytesFlag        byte = 1
	CompactBytesFlag byte = 2
	IntFlag          byte = 3
	UintFlag         byte = 4
	FloatFlag        byte = 5
	DecimalFlag      byte = 6
	DurationFlag     byte = 7
	VarintFlag       byte = 8
	UvarintFlag      byte = 9
)

// CutOne splits the first flagged value off b.
func CutOne(b []byte) (value, remaining []byte, err error) {
	n, err := peek(b)
	if err != nil {
		return nil, nil, err
	}
	return b[:n:n], b[n:], nil
}

// peek returns the encoded width of the first value in b, flag included.
func peek(b []byte) (int, error) {
	if len(b) < 1 {
		return 0, dataErrf(b, 0, nil, "insufficient bytes to cut a value")
	}
	var l int
	var err error
	switch flag := b[0]; flag {
	case NilFlag:
	case IntFlag, UintFlag, FloatFlag, DurationFlag:
		l = 8
	case BytesFlag:
		l, err = peekBytes(b[1:])
	case CompactBytesFlag:
		l, err = peekCompactBytes(b[1:])
	case DecimalFlag:
		l, err = peekDecimal(b[1:])
	case VarintFlag, UvarintFlag:
		l, err = peekVarint(b[1:])
	default:
		return 0, dataErrf(b, 0, nil, "invalid encoded key flag %d", flag)
	}
	if err != nil {
		var de *DataError
		if errors.As(err, &de) {
			return 0, dataErrf(b, de.Off+1, de.Err, "%s", de.Msg)
		}
		return 0, err
	}
	if 1+l > len(b) {
		return 0, dataErrf(b, 1, nil, "insufficient bytes for flag %d: %d remaining, %d wanted", b[0], len(b)-1, l)
	}
	return 1 + l, nil
}

func peekVarint(b []byte) (int, error) {
	for i, c := range b {
		if i >= binary.MaxVarintLen64 {
			break
		}
		if c < 0x80 {
			return i + 1, nil
		}
	}
	return 0, dataErrf(b, 0, nil, "invalid varint")
}

// DecodeOne decodes the first flagged value of b. Bytes decode to string,
// ints to int64, uints to uint64, floats to float64, decimals to
// *apd.Decimal, durations to time.Duration and NULL to nil.
func DecodeOne(b []byte) (remaining []byte, v any, err error) {
	if len(b) == 0 {
		return nil, nil, dataErrf(b, 0, nil, "insufficient bytes to decode value")
	}
	flag, rest := b[0], b[1:]
	switch flag {
	case NilFlag:
		return rest, nil, nil
	case IntFlag:
		rest, n, err := DecodeInt(rest)
		return rest, n, err
	case UintFlag:
		rest, n, err := DecodeUint(rest)
		return rest, n, err
	case VarintFlag:
		rest, n, err := DecodeVarint(rest)
		return rest, n, err
	case UvarintFlag:
		rest, n, err := DecodeUvarint(rest)
		return rest, n, err
	case FloatFlag:
		rest, f, err := DecodeFloat(rest)
		return rest, f, err
	case BytesFlag:
		rest, data, err := DecodeBytes(rest, nil)
		if err != nil {
			return nil, nil, err
		}
		return rest, string(data), nil
	case CompactBytesFlag:
		rest, data, err := DecodeCompactBytes(rest)
		if err != nil {
			return nil, nil, err
		}
		return rest, string(data), nil
	case DecimalFlag:
		rest, d, _, _, err := DecodeDecimal(rest)
		if err != nil {
			return nil, nil, err
		}
		return rest, d, nil
	case DurationFlag:
		rest, n, err := DecodeInt(rest)
		if err != nil {
			return nil, nil, err
		}
		return rest, time.Duration(n), nil
	default:
		return nil, nil, dataErrf(b, 0, nil, "invalid encoded key flag %d", flag)
	}
}

// PrefixNext returns the next key of the same length: the last byte that is
// not 0xFF is incremented and the 0xFF bytes after it wrap to zero. The
// result is greater than every key having b as a prefix. An all-0xFF key has
// no such successor of its length, so a zero byte is appended instead.
func PrefixNext(b []byte) []byte {
	next := make([]byte, len(b))
	copy(next, b)
	i := len(next) - 1
	for ; i >= 0; i-- {
		next[i]++
		if next[i] != 0 {
			break
		}
	}
	if i == -1 {
		copy(next, b)
		next = append(next, 0)
	}
	return next
}
