package rowkey

import (
	"io"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/cockroachdb/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// Ext type of reduced decimals inside canonical tuples.
const decimalExtID int8 = 1

// appendCanonicalTuple appends a msgpack array of values in a canonical form:
// integers of any Go type that hold the same number encode identically,
// decimals are reduced so that 1.50 equals 1.5, times encode the instant
// regardless of location and maps have sorted keys.
func appendCanonicalTuple(buf []byte, values []any) ([]byte, error) {
	bb := bytesBuilder{buf}
	enc := msgpack.GetEncoder()
	defer msgpack.PutEncoder(enc)
	enc.Reset(&bb)
	enc.SetSortMapKeys(true)

	if err := enc.EncodeArrayLen(len(values)); err != nil {
		return nil, err
	}
	for _, v := range values {
		if err := encodeCanonical(enc, &bb, v); err != nil {
			return nil, errors.Wrapf(err, "failed to encode %T using MsgPack", v)
		}
	}
	return bb.Buf, nil
}

func encodeCanonical(enc *msgpack.Encoder, bb *bytesBuilder, v any) error {
	switch v := v.(type) {
	case nil:
		return enc.EncodeNil()
	case bool:
		return enc.EncodeBool(v)
	case string:
		return enc.EncodeString(v)
	case []byte:
		return enc.EncodeBytes(v)
	case float32:
		return enc.EncodeFloat64(float64(v))
	case float64:
		return enc.EncodeFloat64(v)
	case time.Time:
		return enc.EncodeTime(v)
	case *apd.Decimal:
		if v == nil {
			return enc.EncodeNil()
		}
		return encodeDecimal(enc, bb, v)
	case apd.Decimal:
		return encodeDecimal(enc, bb, &v)
	case uint:
		return encodeCanonicalUint(enc, uint64(v))
	case uint64:
		return encodeCanonicalUint(enc, v)
	case uint32, uint16, uint8:
		n, _ := toInt64(v)
		return enc.EncodeInt(n)
	case int, int8, int16, int32, int64, time.Duration:
		n, _ := toInt64(v)
		return enc.EncodeInt(n)
	default:
		return enc.Encode(v)
	}
}

func encodeCanonicalUint(enc *msgpack.Encoder, v uint64) error {
	if int64(v) >= 0 {
		return enc.EncodeInt(int64(v))
	}
	return enc.EncodeUint(v)
}

func encodeDecimal(enc *msgpack.Encoder, bb *bytesBuilder, d *apd.Decimal) error {
	var s string
	if d.IsZero() {
		s = "0"
	} else {
		var r apd.Decimal
		r.Reduce(d)
		s = r.String()
	}
	if err := enc.EncodeExtHeader(decimalExtID, len(s)); err != nil {
		return err
	}
	bb.Buf = append(bb.Buf, s...)
	return nil
}

type bytesBuilder struct {
	Buf []byte
}

var _ io.Writer = (*bytesBuilder)(nil)
var _ io.ByteWriter = (*bytesBuilder)(nil)

func (bb *bytesBuilder) Write(b []byte) (int, error) {
	bb.Buf = append(bb.Buf, b...)
	return len(b), nil
}

func (bb *bytesBuilder) WriteByte(c byte) error {
	bb.Buf = append(bb.Buf, c)
	return nil
}
