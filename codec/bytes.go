package codec

import (
	"encoding/binary"
)

const (
	encGroupSize = 8
	encMarker    = byte(0xFF)
	encPad       = byte(0x00)
)

var pads = make([]byte, encGroupSize)

// EncodeBytes appends the memcomparable form of data: groups of 8 bytes,
// each followed by a marker. The last group is zero-padded and its marker is
// 0xFF minus the pad count, so data whose length is a multiple of 8 ends with
// an all-padding group.
func EncodeBytes(b []byte, data []byte) []byte {
	dLen := len(data)
	b = growBytes(b, (dLen/encGroupSize+1)*(encGroupSize+1))
	for idx := 0; idx <= dLen; idx += encGroupSize {
		remain := dLen - idx
		padCount := 0
		if remain >= encGroupSize {
			b = append(b, data[idx:idx+encGroupSize]...)
		} else {
			padCount = encGroupSize - remain
			b = append(b, data[idx:]...)
			b = append(b, pads[:padCount]...)
		}
		b = append(b, encMarker-byte(padCount))
	}
	return b
}

// DecodeBytes decodes a value produced by EncodeBytes, appending the payload
// to buf.
func DecodeBytes(b []byte, buf []byte) (remaining []byte, data []byte, err error) {
	if buf == nil {
		buf = make([]byte, 0, len(b))
	}
	off := 0
	for {
		if len(b)-off < encGroupSize+1 {
			return nil, nil, dataErrf(b, off, nil, "insufficient bytes to decode byte group")
		}
		group := b[off : off+encGroupSize]
		marker := b[off+encGroupSize]
		padCount := encMarker - marker
		if padCount > encGroupSize {
			return nil, nil, dataErrf(b, off+encGroupSize, nil, "invalid group marker %#x", marker)
		}
		realGroupSize := encGroupSize - int(padCount)
		buf = append(buf, group[:realGroupSize]...)
		off += encGroupSize + 1
		if padCount != 0 {
			for i, v := range group[realGroupSize:] {
				if v != encPad {
					return nil, nil, dataErrf(b, off-encGroupSize-1+realGroupSize+i, nil, "invalid padding byte %#x", v)
				}
			}
			break
		}
	}
	return b[off:], buf, nil
}

// peekBytes returns the width of a grouped bytes value without decoding it.
func peekBytes(b []byte) (int, error) {
	off := 0
	for {
		if len(b) < off+encGroupSize+1 {
			return 0, dataErrf(b, off, nil, "insufficient bytes to cut byte group")
		}
		marker := b[off+encGroupSize]
		off += encGroupSize + 1
		if encMarker-marker != 0 {
			return off, nil
		}
	}
}

// EncodeCompactBytes appends a varint length followed by data. The result
// does not preserve order.
func EncodeCompactBytes(b []byte, data []byte) []byte {
	b = growBytes(b, binary.MaxVarintLen64+len(data))
	b = EncodeVarint(b, int64(len(data)))
	return append(b, data...)
}

func DecodeCompactBytes(b []byte) (remaining []byte, data []byte, err error) {
	n, w := binary.Varint(b)
	if w <= 0 {
		return nil, nil, dataErrf(b, 0, nil, "invalid compact bytes length")
	}
	if n < 0 || int64(len(b)-w) < n {
		return nil, nil, dataErrf(b, w, nil, "insufficient bytes for compact bytes: %d remaining, %d wanted", len(b)-w, n)
	}
	return b[w+int(n):], b[w : w+int(n) : w+int(n)], nil
}

func peekCompactBytes(b []byte) (int, error) {
	n, w := binary.Varint(b)
	if w <= 0 {
		return 0, dataErrf(b, 0, nil, "invalid compact bytes length")
	}
	if n < 0 || int64(len(b)-w) < n {
		return 0, dataErrf(b, w, nil, "insufficient bytes for compact bytes: %d remaining, %d wanted", len(b)-w, n)
	}
	return w + int(n), nil
}

// growBytes makes room for n more bytes without changing len(b).
func growBytes(b []byte, n int) []byte {
	if cap(b)-len(b) >= n {
		return b
	}
	c := cap(b)
	if c < 16 {
		c = 16
	}
	for len(b)+n > c {
		c <<= 1
	}
	nb := make([]byte, len(b), c)
	copy(nb, b)
	return nb
}
