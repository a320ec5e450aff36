package rowkey

import (
	"bytes"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cockroachdb/errors"

	"github.com/andreyvit/rowkey/codec"
)

// minEncodedLen is the shortest common handle; shorter input is zero-padded.
const minEncodedLen = 9

type handleKind uint8

const (
	intHandle handleKind = iota
	commonHandle
)

// Handle identifies a row. An int handle is a single int64 row id; a common
// handle is the memcomparable encoding of the primary-key columns. Handles
// are immutable and safe to share between goroutines.
type Handle struct {
	kind handleKind
	id   int64

	encoded       []byte
	colEndOffsets []int
}

func NewIntHandle(id int64) Handle {
	return Handle{kind: intHandle, id: id}
}

// NewCommonHandle encodes values in key mode. TIMESTAMP values are epoch
// milliseconds and DATE values are day counts since the epoch; other values
// are anything DataType.Encode accepts. A positive prefixLengths[i] truncates
// a longer string value to that many characters. prefixLengths may be nil.
func NewCommonHandle(types []DataType, values []any, prefixLengths []int) (Handle, error) {
	if len(types) != len(values) {
		return Handle{}, errors.Newf("got %d values for %d column types", len(values), len(types))
	}
	if prefixLengths != nil && len(prefixLengths) != len(types) {
		return Handle{}, errors.Newf("got %d prefix lengths for %d column types", len(prefixLengths), len(types))
	}
	var b []byte
	for i, dt := range types {
		v := values[i]
		if v == nil {
			return Handle{}, errors.Newf("handle column %d is NULL", i)
		}
		switch dt.Tp() {
		case TypeTimestamp:
			ms, err := toInt64(v)
			if err != nil {
				return Handle{}, errors.Wrapf(dt.convErr(v, err), "handle column %d", i)
			}
			v = floorDiv(ms, 1000)
		case TypeDate:
			days, err := toInt64(v)
			if err != nil {
				return Handle{}, errors.Wrapf(dt.convErr(v, err), "handle column %d", i)
			}
			// Zones west of UTC would otherwise land on the previous day.
			// The offset is sampled at the epoch, not at the value, so zones
			// whose offset changed sign since 1970 are still off by one.
			if _, off := time.Unix(0, 0).In(dt.Location()).Zone(); off < 0 {
				days++
			}
			v = time.Unix(days*secondsPerDay, 0).UTC()
		default:
			if s, ok := v.(string); ok && prefixLengths != nil && prefixLengths[i] > 0 {
				v = truncateChars(s, prefixLengths[i])
			}
		}
		var err error
		b, err = dt.Encode(b, EncodeKey, v)
		if err != nil {
			return Handle{}, errors.Wrapf(err, "handle column %d", i)
		}
	}
	return newCommonHandle(b)
}

const secondsPerDay = 24 * 60 * 60

func truncateChars(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for j := range s {
		if i == n {
			return s[:j]
		}
		i++
	}
	return s
}

// NewCommonHandleFromBytes parses a handle read back from the store. The
// input is copied.
func NewCommonHandleFromBytes(b []byte) (Handle, error) {
	return newCommonHandle(slices.Clone(b))
}

// newCommonHandle takes ownership of b. Columns are cut from b as given;
// the zero padding added to reach minEncodedLen never becomes column data.
func newCommonHandle(b []byte) (Handle, error) {
	var offsets []int
	in := codec.NewInput(b)
	for !in.EOF() {
		c, _ := in.PeekByte()
		if c == 0 {
			break
		}
		if _, err := in.CutOne(); err != nil {
			return Handle{}, err
		}
		offsets = append(offsets, in.Off()-1)
	}
	if len(b) < minEncodedLen {
		b = append(b, make([]byte, minEncodedLen-len(b))...)
	}
	return Handle{kind: commonHandle, encoded: b, colEndOffsets: offsets}, nil
}

func (h Handle) IsInt() bool {
	return h.kind == intHandle
}

func (h Handle) IntValue() (int64, error) {
	if h.kind != intHandle {
		return 0, errors.Wrap(ErrUnsupportedOperation, "IntValue on a common handle")
	}
	return h.id, nil
}

// Next returns a handle greater than h and than every handle that has h as
// a prefix; it serves as an exclusive scan bound. A common handle keeps its
// column offsets. The int handle of math.MaxInt64 has no successor and is
// returned unchanged.
func (h Handle) Next() Handle {
	if h.kind == intHandle {
		if h.id == math.MaxInt64 {
			return h
		}
		return NewIntHandle(h.id + 1)
	}
	return Handle{kind: commonHandle, encoded: codec.PrefixNext(h.encoded), colEndOffsets: h.colEndOffsets}
}

// prefixRange returns the key range holding h and every key that extends
// the columns of h. A nil end leaves the range unbounded.
func (h Handle) prefixRange() (start, end []byte) {
	if h.kind == intHandle {
		start = h.Encoded()
		if h.id == math.MaxInt64 {
			return start, nil
		}
		return start, h.Next().Encoded()
	}
	start = h.encoded
	if n := len(h.colEndOffsets); n > 0 {
		start = h.encoded[:h.colEndOffsets[n-1]+1]
	}
	return start, codec.PrefixNext(start)
}

// Compare orders handles of the same kind. Comparing an int handle with a
// common handle fails.
func (h Handle) Compare(other Handle) (int, error) {
	if h.kind != other.kind {
		return 0, errors.Wrap(ErrUnsupportedOperation, "comparing an int handle with a common handle")
	}
	if h.kind == intHandle {
		switch {
		case h.id < other.id:
			return -1, nil
		case h.id > other.id:
			return 1, nil
		default:
			return 0, nil
		}
	}
	return bytes.Compare(h.encoded, other.encoded), nil
}

func (h Handle) Equal(other Handle) bool {
	if h.kind != other.kind {
		return false
	}
	if h.kind == intHandle {
		return h.id == other.id
	}
	return bytes.Equal(h.encoded, other.encoded)
}

// Encoded returns the raw key bytes. Callers must not modify them.
func (h Handle) Encoded() []byte {
	if h.kind == intHandle {
		return codec.EncodeInt(nil, h.id)
	}
	return h.encoded
}

func (h Handle) EncodedAsKey() []byte {
	return h.Encoded()
}

func (h Handle) Len() int {
	if h.kind == intHandle {
		return 8
	}
	return len(h.encoded)
}

func (h Handle) NumCols() int {
	if h.kind == intHandle {
		return 1
	}
	return len(h.colEndOffsets)
}

// EncodedCol returns a copy of the flagged encoding of column i.
func (h Handle) EncodedCol(i int) ([]byte, error) {
	if h.kind == intHandle {
		return nil, errors.Wrap(ErrUnsupportedOperation, "EncodedCol on an int handle")
	}
	if i < 0 || i >= len(h.colEndOffsets) {
		return nil, errors.Newf("column %d out of range, handle has %d", i, len(h.colEndOffsets))
	}
	return slices.Clone(h.col(i)), nil
}

func (h Handle) col(i int) []byte {
	start := 0
	if i > 0 {
		start = h.colEndOffsets[i-1] + 1
	}
	return h.encoded[start : h.colEndOffsets[i]+1]
}

// Data decodes every column using the flag embedded in its bytes. DATETIME
// columns therefore come back as packed uint64 values; use DecodeTyped to
// get times.
func (h Handle) Data() ([]any, error) {
	if h.kind == intHandle {
		return []any{h.id}, nil
	}
	data := make([]any, len(h.colEndOffsets))
	for i := range data {
		_, v, err := codec.DecodeOne(h.col(i))
		if err != nil {
			return nil, errors.Wrapf(err, "handle column %d", i)
		}
		data[i] = v
	}
	return data, nil
}

// DecodeTyped decodes every column as the corresponding type.
func (h Handle) DecodeTyped(types []DataType) ([]any, error) {
	if h.kind == intHandle {
		if len(types) != 1 {
			return nil, errors.Newf("int handle has 1 column, got %d types", len(types))
		}
		v, err := types[0].Convert(h.id)
		if err != nil {
			return nil, err
		}
		return []any{v}, nil
	}
	if len(types) != len(h.colEndOffsets) {
		return nil, errors.Newf("handle has %d columns, got %d types", len(h.colEndOffsets), len(types))
	}
	data := make([]any, len(types))
	for i, dt := range types {
		in := codec.NewInput(h.col(i))
		v, err := dt.Decode(in)
		if err != nil {
			return nil, errors.Wrapf(err, "handle column %d", i)
		}
		if !in.EOF() {
			return nil, errors.Newf("handle column %d: %d trailing bytes", i, len(in.Remaining()))
		}
		data[i] = v
	}
	return data, nil
}

// String renders the decoded columns as {v1},{v2}.
func (h Handle) String() string {
	if h.kind == intHandle {
		return fmt.Sprintf("{%d}", h.id)
	}
	data, err := h.Data()
	if err != nil {
		return "{" + hexstr(h.encoded) + "}"
	}
	parts := make([]string, len(data))
	for i, v := range data {
		parts[i] = fmt.Sprint(v)
	}
	return "{" + strings.Join(parts, "},{") + "}"
}
