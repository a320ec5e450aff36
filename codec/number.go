package codec

import (
	"encoding/binary"
	"math"
)

const signMask uint64 = 0x8000000000000000

// EncodeIntToCmpUint flips the sign bit so that signed order equals unsigned
// order.
func EncodeIntToCmpUint(v int64) uint64 {
	return uint64(v) ^ signMask
}

func DecodeCmpUintToInt(u uint64) int64 {
	return int64(u ^ signMask)
}

// EncodeInt appends the 8-byte comparable form of v.
func EncodeInt(b []byte, v int64) []byte {
	return binary.BigEndian.AppendUint64(b, EncodeIntToCmpUint(v))
}

func DecodeInt(b []byte) (remaining []byte, v int64, err error) {
	if len(b) < 8 {
		return nil, 0, dataErrf(b, 0, nil, "insufficient bytes to decode int")
	}
	return b[8:], DecodeCmpUintToInt(binary.BigEndian.Uint64(b)), nil
}

// EncodeUint appends v as 8 big-endian bytes.
func EncodeUint(b []byte, v uint64) []byte {
	return binary.BigEndian.AppendUint64(b, v)
}

func DecodeUint(b []byte) (remaining []byte, v uint64, err error) {
	if len(b) < 8 {
		return nil, 0, dataErrf(b, 0, nil, "insufficient bytes to decode uint")
	}
	return b[8:], binary.BigEndian.Uint64(b), nil
}

// EncodeVarint appends the zig-zag varint form of v. Not order-preserving.
func EncodeVarint(b []byte, v int64) []byte {
	return binary.AppendVarint(b, v)
}

func DecodeVarint(b []byte) (remaining []byte, v int64, err error) {
	v, n := binary.Varint(b)
	if n <= 0 {
		return nil, 0, dataErrf(b, 0, nil, "invalid varint")
	}
	return b[n:], v, nil
}

func EncodeUvarint(b []byte, v uint64) []byte {
	return binary.AppendUvarint(b, v)
}

func DecodeUvarint(b []byte) (remaining []byte, v uint64, err error) {
	v, n := binary.Uvarint(b)
	if n <= 0 {
		return nil, 0, dataErrf(b, 0, nil, "invalid uvarint")
	}
	return b[n:], v, nil
}

func encodeFloatToCmpUint(f float64) uint64 {
	u := math.Float64bits(f)
	if f >= 0 {
		u |= signMask
	} else {
		u = ^u
	}
	return u
}

func decodeCmpUintToFloat(u uint64) float64 {
	if u&signMask > 0 {
		u &= ^signMask
	} else {
		u = ^u
	}
	return math.Float64frombits(u)
}

// EncodeFloat appends an 8-byte form of f whose byte order matches numeric
// order.
func EncodeFloat(b []byte, f float64) []byte {
	return binary.BigEndian.AppendUint64(b, encodeFloatToCmpUint(f))
}

func DecodeFloat(b []byte) (remaining []byte, f float64, err error) {
	if len(b) < 8 {
		return nil, 0, dataErrf(b, 0, nil, "insufficient bytes to decode float")
	}
	return b[8:], decodeCmpUintToFloat(binary.BigEndian.Uint64(b)), nil
}
